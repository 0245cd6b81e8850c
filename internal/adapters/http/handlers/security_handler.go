// Package handlers agrupa os handlers HTTP do motor de segurança.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

// BlockLister expõe a listagem administrativa de bloqueios ativos.
type BlockLister interface {
	ActiveBlocks(ctx context.Context, limit int) ([]domain.IPBlockRecord, error)
}

// SecurityHandler traduz o contrato HTTP para as operações do núcleo.
type SecurityHandler struct {
	scorer  ports.RiskScorer
	gate    ports.BlockGate
	limiter ports.RateLimiter
	blocks  BlockLister
}

func NewSecurityHandler(scorer ports.RiskScorer, gate ports.BlockGate, limiter ports.RateLimiter, blocks BlockLister) *SecurityHandler {
	return &SecurityHandler{scorer: scorer, gate: gate, limiter: limiter, blocks: blocks}
}

type loginCheckRequest struct {
	UserID    string `json:"user_id"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

type transactionCheckRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
	IP     string  `json:"ip"`
}

type riskCheckResponse struct {
	Allowed         bool     `json:"allowed"`
	RiskScore       int      `json:"risk_score"`
	Reason          string   `json:"reason,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type blockRequest struct {
	IP              string `json:"ip"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
	BlockedBy       string `json:"blocked_by,omitempty"`
}

type blockResponse struct {
	IP           string     `json:"ip"`
	Reason       string     `json:"reason"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	BlockedBy    string     `json:"blocked_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LoginCheck avalia uma tentativa de login.
func (h *SecurityHandler) LoginCheck(w http.ResponseWriter, r *http.Request) {
	var req loginCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.IP) == "" {
		http.Error(w, "user_id and ip are required", http.StatusBadRequest)
		return
	}

	result, err := h.scorer.CheckLoginSecurity(r.Context(), domain.LoginCheck{
		UserID:    req.UserID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		log.Printf("login check failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toRiskResponse(result))
}

// TransactionCheck avalia uma transação.
func (h *SecurityHandler) TransactionCheck(w http.ResponseWriter, r *http.Request) {
	var req transactionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.IP) == "" {
		http.Error(w, "user_id and ip are required", http.StatusBadRequest)
		return
	}

	result, err := h.scorer.CheckTransactionSecurity(r.Context(), domain.TransactionCheck{
		UserID: req.UserID,
		Amount: req.Amount,
		IP:     req.IP,
	})
	if err != nil {
		log.Printf("transaction check failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toRiskResponse(result))
}

// LoginFailure registra uma tentativa de login falha.
func (h *SecurityHandler) LoginFailure(w http.ResponseWriter, r *http.Request) {
	var req loginCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := h.scorer.RecordFailedLogin(r.Context(), req.UserID, req.IP); err != nil {
		log.Printf("record failed login failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RiskScore retorna a pontuação avulsa (somente leitura) de um sujeito.
func (h *SecurityHandler) RiskScore(w http.ResponseWriter, r *http.Request) {
	subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
	if subjectID == "" {
		http.Error(w, "subject_id is required", http.StatusBadRequest)
		return
	}

	signals := domain.RiskSignals{IP: strings.TrimSpace(r.URL.Query().Get("ip"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("amount")); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}
		signals.Amount = amount
	}

	score := h.scorer.CalculateRiskScore(r.Context(), subjectID, signals)

	suspicious, err := h.scorer.IsSuspiciousActivity(r.Context(), subjectID)
	if err != nil {
		log.Printf("suspicious activity check failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"risk_score": score,
		"suspicious": suspicious,
	})
}

// CreateBlock registra um bloqueio de IP (ação administrativa).
func (h *SecurityHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.IP) == "" || strings.TrimSpace(req.Reason) == "" {
		http.Error(w, "ip and reason are required", http.StatusBadRequest)
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	if err := h.gate.BlockIP(r.Context(), req.IP, req.Reason, req.BlockedBy, duration); err != nil {
		log.Printf("block ip failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// ListBlocks lista os bloqueios ativos.
func (h *SecurityHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.blocks.ActiveBlocks(r.Context(), limit)
	if err != nil {
		log.Printf("list blocks failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	response := make([]blockResponse, 0, len(records))
	for _, record := range records {
		response = append(response, blockResponse{
			IP:           record.IP,
			Reason:       record.Reason,
			BlockedUntil: record.BlockedUntil,
			BlockedBy:    record.BlockedBy,
			CreatedAt:    record.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// ResetRateLimit apaga contador e penalidade de uma chave (override administrativo).
func (h *SecurityHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	if err := h.limiter.ResetRateLimit(r.Context(), key); err != nil {
		log.Printf("reset rate limit failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemainingRequests estima o orçamento restante de uma chave sem consumi-lo.
func (h *SecurityHandler) RemainingRequests(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	limit, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil || limit < 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	remaining, err := h.limiter.GetRemainingRequests(r.Context(), key, limit)
	if err != nil {
		log.Printf("remaining requests failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}

func toRiskResponse(result domain.RiskCheckResult) riskCheckResponse {
	return riskCheckResponse{
		Allowed:         result.Allowed,
		RiskScore:       result.RiskScore,
		Reason:          result.Reason,
		Recommendations: result.Recommendations,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
