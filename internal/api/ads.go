package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/adverify"
)

// Redirect marks the ad as clicked and forwards to the ad, or to the fallback
// URL when no ad link is configured. It always redirects.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	fileParam := q.Get("fileParam")

	if err == nil && userID > 0 && fileParam != "" {
		if _, err := h.Ads.MarkClicked(r.Context(), userID, fileParam); err != nil {
			h.log.Warn("mark ad clicked", zap.Int64("user_id", userID), zap.Error(err))
		}
	} else {
		h.log.Debug("redirect without tracking data", zap.String("user_id", q.Get("userId")))
	}

	adLink := h.Settings.Get(r.Context()).AdLink
	if adLink == "" {
		adLink = h.FallbackAdURL
	}
	http.Redirect(w, r, adLink, http.StatusFound)
}

// flexInt64 accepts both JSON numbers and numeric strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

type adWebhookRequest struct {
	UserID         flexInt64       `json:"userId"`
	Timestamp      json.RawMessage `json:"timestamp"`
	Secret         string          `json:"secret"`
	UserAgent      string          `json:"userAgent"`
	IPAddress      string          `json:"ipAddress"`
	Referrer       string          `json:"referrer"`
	ConversionTime *int64          `json:"conversionTime"`
}

// parseTimestamp reads an RFC 3339 string or unix milliseconds.
func parseTimestamp(raw json.RawMessage) time.Time {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

type adWebhookResponse struct {
	Success  bool   `json:"success"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// AdWebhook records a conversion reported by the ad network.
func (h *Handler) AdWebhook(w http.ResponseWriter, r *http.Request) {
	var req adWebhookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, adWebhookResponse{Error: "invalid payload"})
		return
	}
	if !secretMatches(h.Secrets.AdWebhook, req.Secret) {
		writeJSON(w, http.StatusForbidden, adWebhookResponse{Error: "Invalid secret"})
		return
	}
	if req.UserID <= 0 {
		writeJSON(w, http.StatusBadRequest, adWebhookResponse{Error: "userId is required"})
		return
	}

	ua := req.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}
	verified, err := h.Ads.ConfirmConversion(r.Context(), adverify.Conversion{
		UserID:         int64(req.UserID),
		Timestamp:      parseTimestamp(req.Timestamp),
		UserAgent:      ua,
		IPAddress:      req.IPAddress,
		Referrer:       req.Referrer,
		ConversionTime: req.ConversionTime,
	})
	if err != nil {
		h.log.Error("confirm ad conversion", zap.Int64("user_id", int64(req.UserID)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, adWebhookResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, adWebhookResponse{Success: true, Verified: verified})
}
