package app

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/whatsapp"
)

// handleVerify answers the Cloud API webhook verification handshake.
func (a *App) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := a.client.VerifyWebhook(
		q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"),
	)
	if !ok {
		a.log.Warn("webhook verification failed")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	a.log.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleWebhook receives inbound events. It always answers 200 once the
// payload is read: processing failures are logged, not surfaced, so the
// platform does not re-deliver the same event indefinitely.
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	msgs := whatsapp.ExtractMessages(body)
	for _, msg := range msgs {
		a.router.HandleInbound(r.Context(), msg)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "processed"})
}

// handleStats reports row counts for operators.
func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.repo.CountStats(r.Context())
	if err != nil {
		a.log.Error("stats query failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
