package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/scheduler"
)

type cronResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Processed int         `json:"processed"`
	Remaining int         `json:"remaining"`
	Errors    []cronError `json:"errors,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type cronError struct {
	ID     string `json:"id"`
	FileID string `json:"fileId,omitempty"`
	Error  string `json:"error"`
}

func cronSecret(r *http.Request) string {
	if s := r.URL.Query().Get("secret"); s != "" {
		return s
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// CronAutoDelete runs one reaper batch for an external scheduler and wakes the
// in-process loop when a backlog remains. It only answers non-2xx for a bad
// secret.
func (h *Handler) CronAutoDelete(w http.ResponseWriter, r *http.Request) {
	if h.Secrets.Cron != "" && !secretMatches(h.Secrets.Cron, cronSecret(r)) {
		writeJSON(w, http.StatusUnauthorized, cronResponse{
			Success:   false,
			Error:     "Unauthorized",
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
		return
	}

	batchSize := scheduler.DefaultBatchSize
	if raw := r.URL.Query().Get("batchSize"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			batchSize = scheduler.ClampBatchSize(n)
		}
	}

	res, err := h.Reaper.ProcessBatch(r.Context(), batchSize)
	ts := h.now().UTC().Format(time.RFC3339)
	if err != nil {
		h.log.Error("cron auto-delete", zap.Error(err))
		writeJSON(w, http.StatusOK, cronResponse{Success: false, Error: err.Error(), Timestamp: ts})
		return
	}

	if res.Remaining > 0 {
		h.Reaper.Trigger()
	}

	resp := cronResponse{
		Success:   true,
		Message:   "Auto-delete job completed successfully",
		Processed: res.Processed,
		Remaining: res.Remaining,
		Timestamp: ts,
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, cronError{ID: e.ID, FileID: e.FileID, Error: e.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}
