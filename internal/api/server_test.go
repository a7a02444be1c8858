package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/config"
	"inspiro/internal/embed"
	"inspiro/internal/fbclient"
	"inspiro/internal/nn"
	"inspiro/internal/nn/nntest"
	"inspiro/internal/predict"
	"inspiro/internal/schedule"
	"inspiro/internal/store/jsonfile"
)

const dim = 16

var testNow = time.Date(2024, 12, 10, 12, 0, 0, 0, time.UTC)

type fakeEmotion struct{}

func (fakeEmotion) Classify(context.Context, string) (map[string]float64, error) {
	return map[string]float64{"joy": 6, "neutral": 2, "sadness": 1, "anger": 1}, nil
}

type fakePublisher struct {
	err  error
	sent []string
}

func (f *fakePublisher) Publish(_ context.Context, msg string) (string, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return "123_456", nil
}

type fixture struct {
	srv *Server
	pub *fakePublisher
}

func newFixture(t *testing.T, cfg config.ServerConfig, withModels bool) fixture {
	t.Helper()
	now := func() time.Time { return testNow }
	var p *predict.Service
	if withModels {
		reg, err := nn.LoadRegistry(nntest.WriteRegistry(t, dim), nn.LoadOptions{})
		require.NoError(t, err)
		p = predict.New(reg, embed.NewHash(dim), predict.Options{Location: time.UTC, Emotion: fakeEmotion{}, Now: now})
	} else {
		p = predict.New(nil, nil, predict.Options{Location: time.UTC, Now: now})
	}
	pub := &fakePublisher{}
	store := jsonfile.New(filepath.Join(t.TempDir(), "posts.json"))
	sched := schedule.New(store, pub, schedule.Options{Now: now})
	return fixture{
		srv: New(cfg, Deps{Predict: p, Schedule: sched, Publisher: pub, Now: now}),
		pub: pub,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, true)
	code, body := do(t, f.srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, true, body["models_loaded"])
	assert.Nil(t, body["token_valid"])
}

func TestModelsNotLoaded(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)
	assert.False(t, f.srv.ModelsLoaded())
	for _, path := range []string{"/api/analyze", "/api/analyze/batch", "/api/analyze_caption", "/api/best-time"} {
		code, body := do(t, f.srv.Handler(), http.MethodPost, path, `{"text":"hi","caption":"hi","texts":["hi"],"day":"Monday"}`)
		assert.Equal(t, http.StatusInternalServerError, code, path)
		assert.Equal(t, "Models not loaded", body["error"], path)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing 'text' field in request", body["error"])

	code, body = do(t, h, http.MethodPost, "/api/analyze", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Empty text provided", body["error"])

	code, _ = do(t, h, http.MethodPost, "/api/analyze", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAnalyze(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/analyze", `{"text":"Loving the morning workout at the gym with friends #fitness"}`)
	require.Equal(t, http.StatusOK, code)

	fr := body["fake_real"].(map[string]any)
	sum := fr["fake_percentage"].(float64) + fr["real_percentage"].(float64)
	assert.InDelta(t, 100, sum, 1)
	assert.Greater(t, fr["real_percentage"].(float64), fr["fake_percentage"].(float64))

	emotions := body["emotions"].(map[string]any)
	assert.Len(t, emotions, 6)
	assert.Equal(t, float64(60), emotions["joy"])

	assert.NotEmpty(t, body["keywords"])
	assert.NotEmpty(t, body["hashtags"])
	reach := body["reach"].(map[string]any)
	assert.Contains(t, []any{predict.LabelHighReach, predict.LabelLowReach}, reach["prediction"])
	rw := body["rewrites"].(map[string]any)
	assert.NotEmpty(t, rw["version1"])
	assert.NotEmpty(t, rw["version2"])
}

func TestAnalyzeBatch(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/analyze/batch", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing 'texts' field", body["error"])

	code, _ = do(t, h, http.MethodPost, "/api/analyze/batch", `{"texts":"one"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, h, http.MethodPost, "/api/analyze/batch", `{"texts":["A quiet evening reading by the window", "", 5]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["count"])
	results := body["results"].([]any)
	first := results[0].(map[string]any)
	assert.Nil(t, first["error"])
	assert.Nil(t, first["rewrites"])
	assert.Equal(t, "Empty text provided", results[1].(map[string]any)["error"])
	assert.Equal(t, "Empty text provided", results[2].(map[string]any)["error"])
}

func TestAnalyzeCaption(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()

	code, body := do(t, h, http.MethodPost, "/api/analyze_caption", `{"caption":"Just finished my shift at the office, tired but happy"}`)
	require.Equal(t, http.StatusOK, code)
	auth := body["authenticity"].(map[string]any)
	assert.Equal(t, "Real", auth["label"])
	assert.Empty(t, body["optimized_real_caption"])
	emo := body["emotion"].(map[string]any)
	assert.Equal(t, "joy", emo["dominant"])
	assert.NotEmpty(t, emo["reason"])

	code, body = do(t, h, http.MethodPost, "/api/analyze_caption", `{"caption":"WOW!!! This is amazing!!! Everyone needs this!!!"}`)
	require.Equal(t, http.StatusOK, code)
	auth = body["authenticity"].(map[string]any)
	assert.Equal(t, "Fake", auth["label"])
	optimized := body["optimized_real_caption"].(string)
	assert.NotEmpty(t, optimized)
	assert.NotContains(t, optimized, "!!")

	code, body = do(t, h, http.MethodPost, "/api/analyze_caption", `{"caption":"Buy now at http://deals.example.com"}`)
	require.Equal(t, http.StatusOK, code)
	auth = body["authenticity"].(map[string]any)
	assert.Equal(t, "Spam", auth["label"])
	assert.Equal(t, float64(65), auth["spam"])
}

func TestRewriteIsDeterministicWithSeed(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	req := `{"caption":"OMG!!! Check this out http://spam.example.com #a #b #c #d amazing deal!!!","seed":7}`
	code, first := do(t, h, http.MethodPost, "/api/rewrite", req)
	require.Equal(t, http.StatusOK, code)
	_, second := do(t, h, http.MethodPost, "/api/rewrite", req)

	out := first["rewritten"].(string)
	assert.Equal(t, out, second["rewritten"])
	assert.NotContains(t, out, "http")
	assert.NotContains(t, out, "!!")
	assert.LessOrEqual(t, strings.Count(out, "#"), 2)
	before := first["fakeness_before"].(map[string]any)
	assert.Greater(t, before["count"].(float64), float64(0))
	assert.Nil(t, first["polished"])
}

func TestBestTime(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/best-time", `{"caption":"Morning run done #fitness","day":"monday"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Monday", body["day"])
	hours := body["hours"].([]any)
	require.Len(t, hours, 24)
	best := body["best_hour"].(float64)
	top := body["top_hours"].([]any)
	require.Len(t, top, 3)
	assert.Equal(t, best, top[0].(map[string]any)["hour"])
	assert.Equal(t, predict.FormatHour(int(best)), body["selected_day_best_time"])

	code, body = do(t, h, http.MethodPost, "/api/best-time", `{"caption":"x y z","date":"2024-12-15"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Sunday", body["day"])

	assert.Equal(t, "model", body["source"])
	assert.Equal(t, map[string]any{"day": "Monday", "time": "9:00 AM"}, body["next_recommended"])
	assert.Equal(t, "non_paid", body["post_type"])

	code, _ = do(t, h, http.MethodPost, "/api/best-time", `{"caption":"x y z"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodPost, "/api/best-time", `{"caption":"x y z","day":"Someday"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodPost, "/api/best-time", `{"caption":"  ","day":"monday"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBestTimeWithoutCaptionUsesDayTable(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, false).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/best-time", `{"day":"Thursday","post_type":"PAID"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "6:30 PM", body["selected_day_best_time"])
	assert.Equal(t, float64(18), body["best_hour"])
	assert.Equal(t, "schedule", body["source"])
	assert.Equal(t, "paid", body["post_type"])
	assert.Equal(t, map[string]any{"day": "Friday", "time": "5:00 PM"}, body["next_recommended"])
	assert.Equal(t, map[string]any{"paid": "High reach (+40%)", "non_paid": "Moderate reach (+15%)"}, body["reach_estimation"])

	code, body = do(t, h, http.MethodPost, "/api/best-time", `{"day":"sunday"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "non_paid", body["post_type"])
	assert.Equal(t, "Very High reach (+60%)", body["reach_estimation"].(map[string]any)["paid"])

	code, body = do(t, h, http.MethodPost, "/api/best-time", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing 'day' field", body["error"])
}

func TestConfirmSchedule(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/schedule/confirm", `{"date":"2024-12-15","time":"6:30 PM","caption":"Sunday vibes"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "2024-12-15T18:30:00Z", body["scheduled_datetime"])
	assert.Equal(t, "Sunday, 15 Dec at 06:30 PM", body["readable_format"])
	assert.Equal(t, "Your post is scheduled for Sunday, 15 Dec at 06:30 PM.", body["message"])
	assert.Equal(t, "Sunday vibes", body["caption_preview"])
	assert.Equal(t, "5d 6h 30m", body["countdown"])

	code, body = do(t, h, http.MethodPost, "/api/schedule/confirm", `{"date":"2024-12-01","time":"6:30 PM"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", body["status"])

	code, _ = do(t, h, http.MethodPost, "/api/schedule/confirm", `{"date":"2024-12-15"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodPost, "/api/schedule/confirm", `{"date":"someday","time":"6:30 PM"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPostsLifecycle(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/posts", `{"caption":"Launch day","date":"2024-12-15","time":"18:30"}`)
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "Pending", body["status"])
	assert.Equal(t, "Sunday, 15 Dec at 06:30 PM", body["readable_format"])

	code, _ = do(t, h, http.MethodPost, "/api/posts", `{"caption":"  ","date":"2024-12-15","time":"18:30"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, h, http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["by_status"].(map[string]any)["Pending"])

	code, _ = do(t, h, http.MethodDelete, "/api/posts/"+id, "")
	assert.Equal(t, http.StatusOK, code)
	code, body = do(t, h, http.MethodDelete, "/api/posts/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Post not found", body["error"])
}

func TestPublish(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, true)
	h := f.srv.Handler()
	code, body := do(t, h, http.MethodPost, "/api/publish", `{"caption":"Hello page"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "123_456", body["post_id"])
	assert.Equal(t, "https://facebook.com/123_456", body["url"])
	assert.Equal(t, []string{"Hello page"}, f.pub.sent)

	f.pub.err = &fbclient.APIError{Status: 400, Code: 190, Type: "OAuthException", Message: "expired",
		Explanation: fbclient.Explain(190, "expired", "OAuthException")}
	code, body = do(t, h, http.MethodPost, "/api/publish", `{"caption":"Hello page"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(190), body["error_code"])

	f.pub.err = &fbclient.NetworkError{Kind: fbclient.KindTimeout, Err: errors.New("deadline")}
	code, body = do(t, h, http.MethodPost, "/api/publish", `{"caption":"Hello page"}`)
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, float64(504), body["error_code"])
}

func TestPublishNotConfigured(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, true)
	f.srv.deps.Publisher = nil
	code, _ := do(t, f.srv.Handler(), http.MethodPost, "/api/publish", `{"caption":"Hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestNotFoundAndMethod(t *testing.T) {
	h := newFixture(t, config.ServerConfig{}, true).srv.Handler()
	code, body := do(t, h, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Endpoint not found", body["error"])

	code, _ = do(t, h, http.MethodGet, "/api/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestRateLimitAndCORS(t *testing.T) {
	h := newFixture(t, config.ServerConfig{RateLimit: 2, RateWindow: time.Minute, CORSOrigin: "*"}, true).srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	code, _ := do(t, h, http.MethodGet, "/api/posts", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodGet, "/api/posts", "")
	assert.Equal(t, http.StatusOK, code)
	code, body := do(t, h, http.MethodGet, "/api/posts", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Rate limit exceeded", body["error"])

	code, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
}
