// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
)

// RateLimiter é o contador de janela deslizante com penalidade exponencial.
// Todas as operações falham fechado: erros de storage sobem ao chamador.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitResult, error)
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)
	GetRemainingRequests(ctx context.Context, key string, limit int) (int, error)
	ResetRateLimit(ctx context.Context, key string) error
}

// BlockGate é a checagem de bloqueio de IP em duas camadas (cache + durável).
// IsIPBlocked falha aberto; BlockIP falha fechado.
type BlockGate interface {
	IsIPBlocked(ctx context.Context, ip string) bool
	BlockIP(ctx context.Context, ip, reason, blockedBy string, duration time.Duration) error
}

// RiskScorer compõe os sinais de rate limit, bloqueio e contexto em uma
// decisão única de admissão.
type RiskScorer interface {
	CheckLoginSecurity(ctx context.Context, in domain.LoginCheck) (domain.RiskCheckResult, error)
	CheckTransactionSecurity(ctx context.Context, in domain.TransactionCheck) (domain.RiskCheckResult, error)
	CalculateRiskScore(ctx context.Context, subjectID string, signals domain.RiskSignals) int
	RecordFailedLogin(ctx context.Context, userID, ip string) error
	IsSuspiciousActivity(ctx context.Context, subjectID string) (bool, error)
}

// ReputationClient é a consulta externa de reputação, sempre best-effort.
// Use NoopReputation quando não houver provedor configurado.
type ReputationClient interface {
	Lookup(ctx context.Context, subjectID string) (domain.Reputation, error)
}

// NoopReputation é a implementação nula de ReputationClient.
type NoopReputation struct{}

// Lookup sempre retorna uma reputação neutra.
func (NoopReputation) Lookup(context.Context, string) (domain.Reputation, error) {
	return domain.Reputation{}, nil
}
