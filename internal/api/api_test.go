package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/file-share-bot/internal/adverify"
	"github.com/BatmanBruc/file-share-bot/internal/scheduler"
	"github.com/BatmanBruc/file-share-bot/types"
)

type fakeReaper struct {
	gotBatch  int
	res       scheduler.Result
	err       error
	triggered int
}

func (f *fakeReaper) Trigger() { f.triggered++ }

func (f *fakeReaper) ProcessBatch(_ context.Context, n int) (scheduler.Result, error) {
	f.gotBatch = n
	return f.res, f.err
}

type fakeAds struct {
	clicks      []string
	clickErr    error
	conversions []adverify.Conversion
	verified    bool
}

func (f *fakeAds) MarkClicked(_ context.Context, userID int64, param string) (bool, error) {
	f.clicks = append(f.clicks, param)
	return f.clickErr == nil, f.clickErr
}

func (f *fakeAds) ConfirmConversion(_ context.Context, c adverify.Conversion) (bool, error) {
	f.conversions = append(f.conversions, c)
	return f.verified, nil
}

type staticSettings types.Settings

func (s staticSettings) Get(context.Context) types.Settings { return types.Settings(s) }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fixture struct {
	reaper  *fakeReaper
	ads     *fakeAds
	updates []*models.Update
	router  http.Handler
}

func newFixture(secrets Secrets, ping error) *fixture {
	f := &fixture{reaper: &fakeReaper{}, ads: &fakeAds{}}
	h := NewHandler(Deps{
		Dispatch: func(_ context.Context, u *models.Update) { f.updates = append(f.updates, u) },
		Reaper:   f.reaper,
		Ads:      f.ads,
		Settings: staticSettings{AdLink: "https://ads.example.com/offer"},
		Pinger:   pinger{err: ping},
		Secrets:  secrets,
	})
	h.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	f.router = h.Router()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTelegramWebhook(t *testing.T) {
	f := newFixture(Secrets{Webhook: "tg-secret"}, nil)
	body := `{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"/start"}}`

	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	rec := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.updates)

	req = httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set(secretHeader, "tg-secret")
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.updates, 1)
	assert.Equal(t, int64(7), f.updates[0].ID)
	assert.Equal(t, "/start", f.updates[0].Message.Text)

	req = httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader("{"))
	req.Header.Set(secretHeader, "tg-secret")
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code, "undecodable updates are acknowledged")
	assert.Equal(t, true, decode(t, rec)["ok"])
	assert.Len(t, f.updates, 1, "nothing dispatched")
}

func TestCronAutoDelete(t *testing.T) {
	f := newFixture(Secrets{Cron: "c"}, nil)
	f.reaper.res = scheduler.Result{
		Processed: 3,
		Remaining: 4,
		Errors:    []scheduler.ItemError{{ID: "x", FileID: "9", Err: errors.New("gone")}},
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, CronPath+"?secret=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, CronPath+"?batchSize=500", nil)
	req.Header.Set("Authorization", "Bearer c")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, scheduler.MaxBatchSize, f.reaper.gotBatch)
	assert.Equal(t, 1, f.reaper.triggered, "backlog wakes the reaper loop")

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Auto-delete job completed successfully", out["message"])
	assert.Equal(t, float64(3), out["processed"])
	assert.Equal(t, float64(4), out["remaining"])
	assert.Equal(t, "2024-07-01T00:00:00Z", out["timestamp"])
	assert.Len(t, out["errors"], 1)
}

func TestCronDefaultsAndFailures(t *testing.T) {
	f := newFixture(Secrets{}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, CronPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, scheduler.DefaultBatchSize, f.reaper.gotBatch)
	assert.Zero(t, f.reaper.triggered, "no backlog, no wake-up")

	f.do(httptest.NewRequest(http.MethodGet, CronPath+"?batchSize=0", nil))
	assert.Equal(t, 1, f.reaper.gotBatch)

	f.reaper.err = errors.New("db down")
	rec = f.do(httptest.NewRequest(http.MethodGet, CronPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "db down")
}

func TestCronPreflight(t *testing.T) {
	f := newFixture(Secrets{Cron: "c"}, nil)
	rec := f.do(httptest.NewRequest(http.MethodOptions, CronPath, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Zero(t, f.reaper.gotBatch)
}

func TestRedirect(t *testing.T) {
	f := newFixture(Secrets{}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, RedirectPath+"?userId=42&fileParam=abc", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://ads.example.com/offer", rec.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, f.ads.clicks)

	f.ads.clickErr = errors.New("db down")
	rec = f.do(httptest.NewRequest(http.MethodGet, RedirectPath+"?userId=42&fileParam=abc", nil))
	assert.Equal(t, http.StatusFound, rec.Code, "bookkeeping failures still redirect")

	rec = f.do(httptest.NewRequest(http.MethodGet, RedirectPath+"?userId=oops", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Len(t, f.ads.clicks, 2)
}

func TestAdWebhook(t *testing.T) {
	f := newFixture(Secrets{AdWebhook: "ad"}, nil)
	f.ads.verified = true
	post := func(body string) *httptest.ResponseRecorder {
		return f.do(httptest.NewRequest(http.MethodPost, AdWebhookPath, strings.NewReader(body)))
	}

	assert.Equal(t, http.StatusForbidden, post(`{"userId":1,"secret":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"secret":"ad"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)
	assert.Empty(t, f.ads.conversions)

	rec := post(`{"userId":"77","secret":"ad","timestamp":1719792000000,"userAgent":"Mozilla/5.0 (Windows NT 10.0)","conversionTime":15}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["verified"])

	require.Len(t, f.ads.conversions, 1)
	c := f.ads.conversions[0]
	assert.Equal(t, int64(77), c.UserID)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), c.Timestamp)
	require.NotNil(t, c.ConversionTime)
	assert.Equal(t, int64(15), *c.ConversionTime)
}

func TestHealth(t *testing.T) {
	rec := newFixture(Secrets{}, nil).do(httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = newFixture(Secrets{}, errors.New("down")).do(httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "fail", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(Secrets{}, nil)
	f.do(httptest.NewRequest(http.MethodGet, HealthPath, nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fsb_http_requests_total")
}

func TestWebhookRouteAbsentInPollingMode(t *testing.T) {
	h := NewHandler(Deps{Reaper: &fakeReaper{}, Ads: &fakeAds{}, Settings: staticSettings{}})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedirectWithoutAdLink(t *testing.T) {
	ads := &fakeAds{}
	h := NewHandler(Deps{Reaper: &fakeReaper{}, Ads: ads, Settings: staticSettings{}})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RedirectPath+"?userId=42&fileParam=abc", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, DefaultFallbackAdURL, rec.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, ads.clicks)

	h = NewHandler(Deps{Reaper: &fakeReaper{}, Ads: ads, Settings: staticSettings{}, FallbackAdURL: "https://fallback.example.org"})
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RedirectPath, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://fallback.example.org", rec.Header().Get("Location"))
}
