package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/adverify"
	"github.com/BatmanBruc/file-share-bot/internal/middleware"
	"github.com/BatmanBruc/file-share-bot/internal/scheduler"
	"github.com/BatmanBruc/file-share-bot/types"
)

const (
	WebhookPath    = "/api/telegram/webhook"
	CronPath       = "/api/cron/auto-delete"
	RedirectPath   = "/api/redirect"
	AdWebhookPath  = "/api/webhook/ad-click"
	HealthPath     = "/healthz"
	MetricsPath    = "/metrics"
	secretHeader   = "X-Telegram-Bot-Api-Secret-Token"
	maxPayloadSize = 1 << 20

	// DefaultFallbackAdURL is where the redirect goes when no ad link is set.
	DefaultFallbackAdURL = "https://example.com"
)

type Reaper interface {
	ProcessBatch(ctx context.Context, batchSize int) (scheduler.Result, error)
	Trigger()
}

type AdTracker interface {
	MarkClicked(ctx context.Context, userID int64, fileParam string) (bool, error)
	ConfirmConversion(ctx context.Context, c adverify.Conversion) (bool, error)
}

type SettingsSource interface {
	Get(ctx context.Context) types.Settings
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Secrets struct {
	Webhook   string
	Cron      string
	AdWebhook string
}

type Deps struct {
	// Dispatch handles decoded webhook updates. Nil disables the webhook
	// route, as in polling mode.
	Dispatch middleware.HandlerFunc
	Reaper   Reaper
	Ads      AdTracker
	Settings SettingsSource
	Pinger   Pinger
	Secrets  Secrets
	// FallbackAdURL replaces an empty ad link in redirects.
	FallbackAdURL string
	Log           *zap.Logger
}

type Handler struct {
	Deps
	log *zap.Logger
	now func() time.Time
}

func NewHandler(deps Deps) *Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.FallbackAdURL == "" {
		deps.FallbackAdURL = DefaultFallbackAdURL
	}
	return &Handler{Deps: deps, log: log.Named("api"), now: time.Now}
}

// Router builds the chi router with every route and the shared middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(chimw.Recoverer)

	if h.Dispatch != nil {
		r.Post(WebhookPath, h.TelegramWebhook)
	}
	r.With(cronCORS).Get(CronPath, h.CronAutoDelete)
	r.With(cronCORS).Options(CronPath, h.CronAutoDelete)
	r.Get(RedirectPath, h.Redirect)
	r.Post(AdWebhookPath, h.AdWebhook)
	r.Get(HealthPath, h.Health)
	r.Handle(MetricsPath, promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// secretMatches compares in constant time. An unset expected secret
// accepts anything.
func secretMatches(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

type healthResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: h.now().UTC().Format(time.RFC3339)}
	if h.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.Pinger.Ping(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			resp.Status = "fail"
			resp.Error = "database unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
