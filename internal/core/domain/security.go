// Package domain concentra entidades e estruturas centrais do motor de segurança.
package domain

import "time"

// HardBlockScore é reservado para bloqueios definitivos; o intervalo graduado
// de risco vai de 0 a 99.
const HardBlockScore = 100

// RecommendationBlockIP sinaliza ao chamador que o IP de origem merece um
// bloqueio efetivo.
const RecommendationBlockIP = "BLOCK_IP"

// RateLimitResult descreve o resultado de uma checagem de rate limit.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// IPBlockRecord é o registro durável de bloqueio de IP. A camada de cache é
// apenas otimização; este registro é a fonte de verdade.
type IPBlockRecord struct {
	ID           string
	IP           string
	Reason       string
	BlockedUntil *time.Time // nil = bloqueio sem prazo
	BlockedBy    string
	IsActive     bool
	CreatedAt    time.Time
}

// RiskCheckResult é o veredito de uma avaliação de risco.
type RiskCheckResult struct {
	Allowed         bool
	RiskScore       int
	Reason          string
	Recommendations []string
}

// LoginCheck agrega os sinais de uma tentativa de login.
type LoginCheck struct {
	UserID    string
	IP        string
	UserAgent string
}

// TransactionCheck agrega os sinais de uma transação.
type TransactionCheck struct {
	UserID string
	Amount float64
	IP     string
}

// RiskSignals carrega o contexto opcional para pontuação avulsa de risco.
type RiskSignals struct {
	IP     string
	Amount float64
}

// Reputation é a dica externa de reputação de um sujeito. Best-effort:
// falhas na consulta nunca derrubam uma avaliação.
type Reputation struct {
	Locked  bool
	Flagged bool
}
