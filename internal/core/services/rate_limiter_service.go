package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

// DefaultMaxBackoff limita o crescimento exponencial das penalidades. Sem um
// teto, ofensores contínuos acumulariam TTLs astronomicamente longos.
const DefaultMaxBackoff = 24 * time.Hour

const penaltySuffix = ":penalty"

// RateLimiterService implementa o contador de janela deslizante com
// penalidade exponencial sobre o CounterStore compartilhado.
type RateLimiterService struct {
	storage    ports.CounterStore
	maxBackoff time.Duration
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço. maxBackoff não
// positivo cai no padrão de 24h.
func NewRateLimiterService(storage ports.CounterStore, maxBackoff time.Duration) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}

	return &RateLimiterService{storage: storage, maxBackoff: maxBackoff}, nil
}

// CheckRateLimit avalia e consome uma unidade do orçamento da chave.
//
// A leitura da penalidade, o incremento do contador e a leitura do TTL são
// uma única unidade atômica no store: dois chamadores concorrentes nunca
// observam o mesmo valor de contador e não conseguem ultrapassar o limite em
// corrida.
func (s *RateLimiterService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitResult, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return domain.RateLimitResult{}, err
	}
	if window <= 0 {
		return domain.RateLimitResult{}, fmt.Errorf("window must be positive")
	}

	snap, err := s.storage.CheckAndIncrement(ctx, key, key+penaltySuffix)
	if err != nil {
		return domain.RateLimitResult{}, err
	}

	// limit <= 0 nega toda requisição.
	if limit <= 0 || snap.Count > int64(limit) {
		newLevel := snap.PenaltyLevel + 1
		if _, err := s.storage.IncrementPenalty(ctx, key+penaltySuffix); err != nil {
			return domain.RateLimitResult{}, err
		}

		backoff := s.backoffFor(window, newLevel)
		// Rearma o lockout: contador e penalidade passam a viver até o fim do
		// backoff, de modo que reincidência prolonga a punição.
		if err := s.storage.Expire(ctx, backoff, key, key+penaltySuffix); err != nil {
			return domain.RateLimitResult{}, err
		}

		return domain.RateLimitResult{Allowed: false, Remaining: 0, ResetIn: backoff}, nil
	}

	ttl := snap.TTL
	if ttl < 0 {
		// Primeira requisição de uma janela nova: o contador ainda não expira.
		if err := s.storage.Expire(ctx, window, key); err != nil {
			return domain.RateLimitResult{}, err
		}
		ttl = window
	}

	remaining := limit - int(snap.Count)
	if remaining < 0 {
		remaining = 0
	}

	return domain.RateLimitResult{Allowed: true, Remaining: remaining, ResetIn: ttl}, nil
}

// IncrementCounter incrementa um registro simples (ex.: logins falhos) sem
// participar da decisão de admissão. O TTL é armado apenas quando ausente.
func (s *RateLimiterService) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	return s.storage.Increment(ctx, key, window)
}

// GetRemainingRequests estima o orçamento restante sem mutação e sem
// consultar o estado de penalidade.
func (s *RateLimiterService) GetRemainingRequests(ctx context.Context, key string, limit int) (int, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}

	count, err := s.storage.GetCount(ctx, key)
	if err != nil {
		return 0, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ResetRateLimit apaga contador e penalidade da chave (override administrativo).
func (s *RateLimiterService) ResetRateLimit(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.storage.Delete(ctx, key, key+penaltySuffix)
}

// backoffFor calcula window * 2^level limitado ao teto configurado.
func (s *RateLimiterService) backoffFor(window time.Duration, level int64) time.Duration {
	backoff := window
	for i := int64(0); i < level; i++ {
		backoff *= 2
		if backoff >= s.maxBackoff {
			return s.maxBackoff
		}
	}
	return backoff
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("rate limit key is required")
	}
	return key, nil
}
