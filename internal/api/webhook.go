package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// TelegramWebhook decodes one update and dispatches it inline. Only a bad
// secret is refused; every other request, undecodable ones included, is
// answered with 200 so Telegram does not redeliver it.
func (h *Handler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if !secretMatches(h.Secrets.Webhook, r.Header.Get(secretHeader)) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}

	var update models.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadSize)).Decode(&update); err != nil {
		h.log.Warn("dropping undecodable webhook update", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// finish the update even if Telegram drops the connection
	h.Dispatch(context.WithoutCancel(r.Context()), &update)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
