package handlers

import "net/http"

// HealthHandler responde com uma mensagem simples; a rota fica atrás do
// middleware de rate limit e serve para verificar o limiter em produção.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
