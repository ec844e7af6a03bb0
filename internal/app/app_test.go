package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/startup"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:                       "clover-test",
		Version:                       "test",
		Port:                          0,
		HttpServerReadTimeoutSeconds:  5,
		HttpServerWriteTimeoutSeconds: 5,
		HttpServerIdleTimeoutSeconds:  5,
		ReadHeaderTimeoutSeconds:      5,
		MaxHeaderBytes:                64000,
		AllowOrigins:                  []string{"*"},
		AllowMethods:                  []string{"GET", "POST"},
		StartupMaxAttempts:            1,
		ShutdownTimeoutSeconds:        5,
		StoreDriver:                   config.StoreDriverMemory,
		LockDriver:                    config.LockDriverLocal,
		EmailNormalizers:              "trim",
		PhoneNormalizers:              "trim",
		TracingExporter:               "none",
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	logger := testLogger()
	opts = append(opts, WithStartup(startup.NewStartup(logger, 1).WithBackoffUnit(time.Millisecond)))
	a := New(cfg, logger, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a
}

func TestApp_StartsEngineWithoutServer(t *testing.T) {
	a := newTestApp(t, testConfig())
	require.NoError(t, a.Start(context.Background()))

	require.NotNil(t, a.Engine())
	assert.Nil(t, a.Echo())
	assert.Empty(t, a.Addr())

	resp, err := a.Engine().Identify(context.Background(), models.IdentifyRequest{Email: models.StringPtr("doc@hillvalley.edu")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.PrimaryID)
}

func TestApp_SeedOnStartup(t *testing.T) {
	cfg := testConfig()
	cfg.SeedOnStartup = true

	a := newTestApp(t, cfg)
	require.NoError(t, a.Start(context.Background()))

	contacts, err := a.Engine().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, int64(23), contacts[1].ID)
}

func TestApp_InvalidNormalizersFailStartup(t *testing.T) {
	cfg := testConfig()
	cfg.PhoneNormalizers = "trim,shout"

	a := newTestApp(t, cfg)
	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PHONE_NORMALIZERS")
	assert.Nil(t, a.Engine())
}

func TestApp_ServesHTTP(t *testing.T) {
	a := newTestApp(t, testConfig(), WithServer())
	require.NoError(t, a.Start(context.Background()))
	require.NotEmpty(t, a.Addr())

	base := "http://" + a.Addr()

	resp, err := http.Post(base+"/identify", "application/json", strings.NewReader(`{"email":"lorraine@hillvalley.edu","phoneNumber":"123456"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp, err = http.Get(base + "/api/v1/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_MetricsEndpoint(t *testing.T) {
	a := newTestApp(t, testConfig(), WithServer())
	require.NoError(t, a.Start(context.Background()))

	rec := httptest.NewRecorder()
	a.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/identify", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	a.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clover_identity_identify_total")
	assert.Contains(t, rec.Body.String(), "clover_http_requests_total")
}

func TestApp_StopIsIdempotent(t *testing.T) {
	a := newTestApp(t, testConfig(), WithServer())
	require.NoError(t, a.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, a.Stop(ctx))
	require.NoError(t, a.Stop(ctx))
}

func TestRun_StopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testConfig(), testLogger())
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
