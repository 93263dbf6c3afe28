package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(context.Context) error { return nil }

// toggle returns a check whose result is controlled by the test.
func toggle() (CheckFunc, *error) {
	var err error
	return func(context.Context) error { return err }, &err
}

func serve(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", passing)

	rec := serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCheck_Thresholds(t *testing.T) {
	fn, errp := toggle()
	h := New()
	h.AddLivenessCheck("db", fn, WithThresholds(2, 2))
	c := h.live[0]
	ctx := context.Background()

	*errp = errors.New("connection refused")
	c.run(ctx)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint, "/livez").Code, "one failure is tolerated")

	c.run(ctx)
	rec := serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, rec.Body.String())

	*errp = nil
	c.run(ctx)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.LiveEndpoint, "/livez").Code)
	c.run(ctx)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint, "/livez").Code)
}

func TestReadyEndpoint(t *testing.T) {
	fn, errp := toggle()
	h := New()
	h.AddReadinessCheck("redis", fn, WithThresholds(1, 1))
	c := h.deps[0]

	rec := serve(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"service":"not ready"}}`, rec.Body.String())
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint, "/readyz").Code)
	assert.True(t, h.IsReady())

	*errp = errors.New("dial tcp: refused")
	c.run(context.Background())
	rec = serve(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"redis":"dial tcp: refused"}}`, rec.Body.String())
	assert.False(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))

	h.deps[0].run(context.Background())

	msg, failed := h.deps[0].failure()
	require.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStart_RunsChecks(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", func(context.Context) error {
		return errors.New("down")
	}, WithThresholds(1, 1))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)
	defer h.Stop()

	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("postgres", passing)
	require.NoError(t, ok(context.Background()))

	bad := PingCheck("postgres", func(context.Context) error { return errors.New("refused") })
	assert.EqualError(t, bad(context.Background()), "ping postgres: refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
