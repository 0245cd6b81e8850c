package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

const blockCachePrefix = "block:ip:"

// BlockGateService verifica bloqueios de IP em duas camadas: uma entrada de
// cache no CounterStore para o caminho rápido e um registro durável como
// fonte de verdade.
type BlockGateService struct {
	cache  ports.CounterStore
	blocks ports.BlockStore
	logger *slog.Logger
}

var _ ports.BlockGate = (*BlockGateService)(nil)

// NewBlockGateService cria uma nova instância do gate.
func NewBlockGateService(cache ports.CounterStore, blocks ports.BlockStore, logger *slog.Logger) (*BlockGateService, error) {
	if cache == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if blocks == nil {
		return nil, fmt.Errorf("block store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BlockGateService{cache: cache, blocks: blocks, logger: logger}, nil
}

// BlockIP grava o registro durável e aquece o cache. Duração não positiva
// significa bloqueio sem prazo. Erros de escrita sempre sobem: falhar em
// silêncio deixaria o operador com uma falsa sensação de segurança.
func (s *BlockGateService) BlockIP(ctx context.Context, ip, reason, blockedBy string, duration time.Duration) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return fmt.Errorf("ip is required")
	}

	record := domain.IPBlockRecord{
		ID:        uuid.NewString(),
		IP:        ip,
		Reason:    reason,
		BlockedBy: blockedBy,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if duration > 0 {
		until := record.CreatedAt.Add(duration)
		record.BlockedUntil = &until
	}

	if err := s.blocks.Create(ctx, record); err != nil {
		return fmt.Errorf("create block record: %w", err)
	}

	if err := s.cache.SetBlock(ctx, blockCachePrefix+ip, duration); err != nil {
		return fmt.Errorf("warm block cache: %w", err)
	}

	s.logger.InfoContext(ctx, "ip blocked",
		"ip", ip,
		"reason", reason,
		"blocked_by", blockedBy,
		"duration", duration,
	)
	return nil
}

// IsIPBlocked responde se o IP está bloqueado agora. Qualquer erro de storage
// falha aberto: um soluço de infraestrutura não pode virar negação de serviço
// contra tráfego legítimo.
func (s *BlockGateService) IsIPBlocked(ctx context.Context, ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}

	cacheKey := blockCachePrefix + ip

	blocked, err := s.cache.IsBlocked(ctx, cacheKey)
	if err != nil {
		s.logger.WarnContext(ctx, "block cache check failed", "ip", ip, "error", err)
	} else if blocked {
		return true
	}

	record, err := s.blocks.FindActive(ctx, ip)
	if err != nil {
		s.logger.WarnContext(ctx, "block store lookup failed", "ip", ip, "error", err)
		return false
	}
	if record == nil {
		return false
	}

	if record.BlockedUntil == nil {
		s.rewarmCache(ctx, cacheKey, 0, ip)
		return true
	}

	remaining := time.Until(*record.BlockedUntil)
	if remaining > 0 {
		s.rewarmCache(ctx, cacheKey, remaining, ip)
		return true
	}

	// Registro expirado mas ainda ativo: inconsistência transitória corrigida
	// na leitura, sem esperar por varredura em lote.
	if err := s.blocks.Deactivate(ctx, record.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to deactivate expired block", "ip", ip, "record_id", record.ID, "error", err)
	}
	return false
}

// rewarmCache repõe a entrada de cache perdida. Best-effort: o registro
// durável já garantiu a resposta.
func (s *BlockGateService) rewarmCache(ctx context.Context, key string, ttl time.Duration, ip string) {
	if err := s.cache.SetBlock(ctx, key, ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to rewarm block cache", "ip", ip, "error", err)
	}
}
