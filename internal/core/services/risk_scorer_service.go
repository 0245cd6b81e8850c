package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

// Pesos e patamares da composição de risco.
const (
	baseRiskScore      = 10
	rateDimensionMax   = 40
	additiveCeiling    = 95
	violationFloor     = 85
	flaggedBonus       = 15
	highAmountBonus    = 25
	maxGradedRiskScore = 99
)

// Motivos legíveis por máquina retornados em decisões negadas.
const (
	ReasonIPBlocked     = "IP is blocked"
	ReasonRateLimited   = "Rate limit exceeded"
	ReasonHighAmount    = "High amount transaction"
	ReasonAccountLocked = "Account is locked"
)

// RiskConfig agrega limites e pesos consumidos pelo avaliador de risco.
type RiskConfig struct {
	LoginIPLimit    int
	LoginIPWindow   time.Duration
	LoginUserLimit  int
	LoginUserWindow time.Duration

	TxUserLimit  int
	TxUserWindow time.Duration

	TxAmountThreshold float64

	SuspiciousWindow time.Duration
	SuspiciousCount  int

	// RiskFlagThreshold marca no log de auditoria decisões que merecem
	// revisão mesmo quando admitidas.
	RiskFlagThreshold int
}

// RiskScorerService compõe BlockGate, RateLimiter e sinais de contexto em uma
// decisão única de admissão com pontuação de risco.
type RiskScorerService struct {
	limiter    ports.RateLimiter
	gate       ports.BlockGate
	reputation ports.ReputationClient
	logger     *slog.Logger
	config     RiskConfig
}

var _ ports.RiskScorer = (*RiskScorerService)(nil)

// RiskOption configura colaboradores opcionais do avaliador.
type RiskOption func(*RiskScorerService)

// WithLogger define o logger estruturado usado na trilha de auditoria.
func WithLogger(logger *slog.Logger) RiskOption {
	return func(s *RiskScorerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReputation define o provedor externo de reputação. A ausência dele é
// modelada por ports.NoopReputation, nunca por nil checado em cada chamada.
func WithReputation(client ports.ReputationClient) RiskOption {
	return func(s *RiskScorerService) {
		if client != nil {
			s.reputation = client
		}
	}
}

// NewRiskScorerService cria uma nova instância do avaliador.
func NewRiskScorerService(limiter ports.RateLimiter, gate ports.BlockGate, cfg RiskConfig, opts ...RiskOption) (*RiskScorerService, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("block gate is required")
	}
	applyRiskDefaults(&cfg)

	svc := &RiskScorerService{
		limiter:    limiter,
		gate:       gate,
		reputation: ports.NoopReputation{},
		logger:     slog.Default(),
		config:     cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

func applyRiskDefaults(cfg *RiskConfig) {
	if cfg.LoginIPLimit <= 0 {
		cfg.LoginIPLimit = 10
	}
	if cfg.LoginIPWindow <= 0 {
		cfg.LoginIPWindow = time.Minute
	}
	if cfg.LoginUserLimit <= 0 {
		cfg.LoginUserLimit = 5
	}
	if cfg.LoginUserWindow <= 0 {
		cfg.LoginUserWindow = 5 * time.Minute
	}
	if cfg.TxUserLimit <= 0 {
		cfg.TxUserLimit = 10
	}
	if cfg.TxUserWindow <= 0 {
		cfg.TxUserWindow = time.Minute
	}
	if cfg.TxAmountThreshold <= 0 {
		cfg.TxAmountThreshold = 10000
	}
	if cfg.SuspiciousWindow <= 0 {
		cfg.SuspiciousWindow = time.Hour
	}
	if cfg.SuspiciousCount <= 0 {
		cfg.SuspiciousCount = 5
	}
	if cfg.RiskFlagThreshold <= 0 {
		cfg.RiskFlagThreshold = 70
	}
}

// CheckLoginSecurity decide se uma tentativa de login é admitida.
func (s *RiskScorerService) CheckLoginSecurity(ctx context.Context, in domain.LoginCheck) (domain.RiskCheckResult, error) {
	if s.gate.IsIPBlocked(ctx, in.IP) {
		result := hardBlockResult(ReasonIPBlocked)
		s.logDecision(ctx, "login_check", in.UserID, in.IP, result)
		return result, nil
	}

	ipRes, err := s.limiter.CheckRateLimit(ctx, rateLimitKey("login", "ip", in.IP), s.config.LoginIPLimit, s.config.LoginIPWindow)
	if err != nil {
		return domain.RiskCheckResult{}, err
	}
	userRes, err := s.limiter.CheckRateLimit(ctx, rateLimitKey("login", "user", in.UserID), s.config.LoginUserLimit, s.config.LoginUserWindow)
	if err != nil {
		return domain.RiskCheckResult{}, err
	}

	score := baseRiskScore
	score += consumptionScore(s.config.LoginIPLimit, ipRes.Remaining)
	score += consumptionScore(s.config.LoginUserLimit, userRes.Remaining)
	if score > additiveCeiling {
		score = additiveCeiling
	}

	result := domain.RiskCheckResult{Allowed: ipRes.Allowed && userRes.Allowed}
	if !result.Allowed {
		result.Reason = ReasonRateLimited
		// Estourar o limite é sempre alto risco, independente da soma.
		if score < violationFloor {
			score = violationFloor
		}
	}

	// Enriquecimento best-effort: falha na consulta nunca derruba a checagem.
	if rep, repErr := s.reputation.Lookup(ctx, in.UserID); repErr == nil {
		if rep.Locked {
			result.Allowed = false
			result.Reason = joinReasons(result.Reason, ReasonAccountLocked)
			result.RiskScore = domain.HardBlockScore
			s.logDecision(ctx, "login_check", in.UserID, in.IP, result)
			return result, nil
		}
		if rep.Flagged {
			score += flaggedBonus
		}
	}

	result.RiskScore = clampGraded(score)

	s.logDecision(ctx, "login_check", in.UserID, in.IP, result)
	return result, nil
}

// CheckTransactionSecurity decide se uma transação é admitida. Difere do
// login apenas no conjunto de sinais: uma dimensão de frequência por usuário
// e o patamar de valor da transação.
func (s *RiskScorerService) CheckTransactionSecurity(ctx context.Context, in domain.TransactionCheck) (domain.RiskCheckResult, error) {
	if s.gate.IsIPBlocked(ctx, in.IP) {
		result := hardBlockResult(ReasonIPBlocked)
		s.logDecision(ctx, "transaction_check", in.UserID, in.IP, result)
		return result, nil
	}

	txRes, err := s.limiter.CheckRateLimit(ctx, rateLimitKey("tx", "user", in.UserID), s.config.TxUserLimit, s.config.TxUserWindow)
	if err != nil {
		return domain.RiskCheckResult{}, err
	}

	score := baseRiskScore + consumptionScore(s.config.TxUserLimit, txRes.Remaining)
	if score > additiveCeiling {
		score = additiveCeiling
	}

	var reasons []string
	if in.Amount >= s.config.TxAmountThreshold {
		score += highAmountBonus
		reasons = append(reasons, ReasonHighAmount)
	}

	result := domain.RiskCheckResult{Allowed: txRes.Allowed}
	if !result.Allowed {
		reasons = append(reasons, ReasonRateLimited)
		if score < violationFloor {
			score = violationFloor
		}
	}

	result.Reason = strings.Join(reasons, "; ")
	result.RiskScore = clampGraded(score)

	s.logDecision(ctx, "transaction_check", in.UserID, in.IP, result)
	return result, nil
}

// CalculateRiskScore é a variante somente leitura: nunca consome orçamento e
// nunca bloqueia, apenas retorna um inteiro limitado. Erros de leitura são
// engolidos — a estimativa degrada em vez de falhar.
func (s *RiskScorerService) CalculateRiskScore(ctx context.Context, subjectID string, signals domain.RiskSignals) int {
	if signals.IP != "" && s.gate.IsIPBlocked(ctx, signals.IP) {
		return domain.HardBlockScore
	}

	score := baseRiskScore

	if remaining, err := s.limiter.GetRemainingRequests(ctx, rateLimitKey("login", "user", subjectID), s.config.LoginUserLimit); err == nil {
		score += consumptionScore(s.config.LoginUserLimit, remaining)
	}
	if signals.IP != "" {
		if remaining, err := s.limiter.GetRemainingRequests(ctx, rateLimitKey("login", "ip", signals.IP), s.config.LoginIPLimit); err == nil {
			score += consumptionScore(s.config.LoginIPLimit, remaining)
		}
	}
	if score > additiveCeiling {
		score = additiveCeiling
	}

	if signals.Amount >= s.config.TxAmountThreshold {
		score += highAmountBonus
	}

	if rep, err := s.reputation.Lookup(ctx, subjectID); err == nil {
		if rep.Locked {
			return domain.HardBlockScore
		}
		if rep.Flagged {
			score += flaggedBonus
		}
	}

	return clampGraded(score)
}

// RecordFailedLogin registra uma tentativa de login falha por usuário e por
// IP dentro da janela de atividade suspeita.
func (s *RiskScorerService) RecordFailedLogin(ctx context.Context, userID, ip string) error {
	if _, err := s.limiter.IncrementCounter(ctx, rateLimitKey("failed", "user", userID), s.config.SuspiciousWindow); err != nil {
		return err
	}
	if ip != "" {
		if _, err := s.limiter.IncrementCounter(ctx, rateLimitKey("failed", "ip", ip), s.config.SuspiciousWindow); err != nil {
			return err
		}
	}
	return nil
}

// IsSuspiciousActivity responde se o sujeito acumulou falhas de login demais
// dentro da janela configurada.
func (s *RiskScorerService) IsSuspiciousActivity(ctx context.Context, subjectID string) (bool, error) {
	remaining, err := s.limiter.GetRemainingRequests(ctx, rateLimitKey("failed", "user", subjectID), s.config.SuspiciousCount)
	if err != nil {
		return false, err
	}
	return remaining == 0, nil
}

func (s *RiskScorerService) logDecision(ctx context.Context, check, userID, ip string, result domain.RiskCheckResult) {
	s.logger.InfoContext(ctx, "security decision",
		"check", check,
		"user_id", userID,
		"ip", ip,
		"allowed", result.Allowed,
		"risk_score", result.RiskScore,
		"reason", result.Reason,
		"recommendations", result.Recommendations,
		"flagged", result.RiskScore >= s.config.RiskFlagThreshold,
	)
}

func hardBlockResult(reason string) domain.RiskCheckResult {
	return domain.RiskCheckResult{
		Allowed:         false,
		RiskScore:       domain.HardBlockScore,
		Reason:          reason,
		Recommendations: []string{domain.RecommendationBlockIP},
	}
}

// consumptionScore converte a fração consumida do orçamento em pontos de
// risco, até rateDimensionMax por dimensão.
func consumptionScore(limit, remaining int) int {
	if limit <= 0 {
		return rateDimensionMax
	}
	used := float64(limit-remaining) / float64(limit)
	if used < 0 {
		used = 0
	}
	if used > 1 {
		used = 1
	}
	return int(used * rateDimensionMax)
}

// clampGraded limita a pontuação ao intervalo graduado [0, 99]. O valor 100 é
// reservado para bloqueios definitivos e atribuído explicitamente, nunca por
// transbordamento da soma.
func clampGraded(score int) int {
	if score > maxGradedRiskScore {
		return maxGradedRiskScore
	}
	if score < 0 {
		return 0
	}
	return score
}

func rateLimitKey(action, kind, identifier string) string {
	return fmt.Sprintf("security:rl:%s:%s:%s", action, kind, strings.ToLower(strings.TrimSpace(identifier)))
}

func joinReasons(reasons ...string) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "; ")
}
