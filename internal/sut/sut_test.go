package sut

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/eyesight-qa/apiverify/internal/auth"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newAdapter(t *testing.T, srv *httptest.Server, cfg APIConfig, authCfg auth.Config) (*APIAdapter, *telemetry.Recorder) {
	t.Helper()

	cfg.BaseURL = srv.URL

	log := testLogger()
	recorder := telemetry.NewRecorder(log, srv.Client(), telemetry.NewRedactor())
	resolver := auth.NewResolver(log, authCfg)

	return NewAPIAdapter(log, cfg, resolver, recorder), recorder
}

func TestDictAdapter_HitAndMiss(t *testing.T) {
	t.Parallel()

	d := NewDictAdapter(map[string]any{
		"device.model": "eyeSight-DEMO",
		"bool.off":     false,
		"zero":         0,
	})

	v, err := d.GetMetric(context.Background(), "device.model")
	require.NoError(t, err)
	require.Equal(t, "eyeSight-DEMO", v)

	// Stored falsy values are hits, not misses.
	v, err = d.GetMetric(context.Background(), "bool.off")
	require.NoError(t, err)
	require.Equal(t, false, v)

	v, err = d.GetMetric(context.Background(), "zero")
	require.NoError(t, err)
	require.Equal(t, 0, v)

	_, err = d.GetMetric(context.Background(), "absent")

	var nf *MetricNotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "absent", nf.Metric)
}

func TestAPIAdapter_BulkModeFetchesOnceAndCaches(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metrics", r.URL.Path)
		atomic.AddInt32(&hits, 1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"metrics": map[string]any{
				"device.model":     "eyeSight-DEMO",
				"device.fw_semver": "2.4.1",
			},
		})
	}))
	defer srv.Close()

	a, rec := newAdapter(t, srv, APIConfig{}, auth.Config{Mode: auth.ModeNone})

	v, err := a.GetMetric(context.Background(), "device.model")
	require.NoError(t, err)
	require.Equal(t, "eyeSight-DEMO", v)

	v, err = a.GetMetric(context.Background(), "device.fw_semver")
	require.NoError(t, err)
	require.Equal(t, "2.4.1", v)

	_, err = a.GetMetric(context.Background(), "absent.metric")

	var nf *MetricNotFoundError
	require.ErrorAs(t, err, &nf)

	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Len(t, rec.Calls(), 1)
}

func TestAPIAdapter_BulkModeRawMapping(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"a.b": 1})
	}))
	defer srv.Close()

	a, _ := newAdapter(t, srv, APIConfig{}, auth.Config{Mode: auth.ModeNone})

	v, err := a.GetMetric(context.Background(), "a.b")
	require.NoError(t, err)
	require.Equal(t, float64(1), v)
}

func TestAPIAdapter_PerMetricModeWithValuePath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metrics/performance.max_throughput_mbps", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"value": 250}})
	}))
	defer srv.Close()

	a, rec := newAdapter(t, srv, APIConfig{
		MetricURLTemplate: "{base_url}/metrics/{metric}",
		MetricValuePath:   "data.value",
	}, auth.Config{Mode: auth.ModeNone})

	v, err := a.GetMetric(context.Background(), "performance.max_throughput_mbps")
	require.NoError(t, err)
	require.Equal(t, float64(250), v)
	require.Len(t, rec.Calls(), 1)
}

func TestAPIAdapter_PerMetricDefaultValueShapes(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"/metrics/m1": `{"value": "v1"}`,
		"/metrics/m2": `{"data": {"value": 7}}`,
		"/metrics/m3": `{"result": true}`,
		"/metrics/m4": `"raw-scalar"`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		require.True(t, ok, r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	a, _ := newAdapter(t, srv, APIConfig{
		MetricURLTemplate: "{base_url}/metrics/{metric}",
	}, auth.Config{Mode: auth.ModeNone})

	for metric, want := range map[string]any{
		"m1": "v1",
		"m2": float64(7),
		"m3": true,
		"m4": "raw-scalar",
	} {
		v, err := a.GetMetric(context.Background(), metric)
		require.NoError(t, err, metric)
		require.Equal(t, want, v, metric)
	}
}

func TestAPIAdapter_AuthHeaderAndQueryApplied(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k-1", r.Header.Get("X-API-Key"))
		_ = json.NewEncoder(w).Encode(map[string]any{"m": 1})
	}))
	defer srv.Close()

	a, _ := newAdapter(t, srv, APIConfig{}, auth.Config{Mode: auth.ModeAPIKey, APIKey: "k-1"})

	_, err := a.GetMetric(context.Background(), "m")
	require.NoError(t, err)
}

func TestAPIAdapter_TLSVerificationFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"m": 1})
	}))
	defer srv.Close()

	log := testLogger()
	// Default client does not trust the self-signed certificate.
	recorder := telemetry.NewRecorder(log, &http.Client{Timeout: 5 * time.Second}, telemetry.NewRedactor())
	resolver := auth.NewResolver(log, auth.Config{Mode: auth.ModeNone})
	a := NewAPIAdapter(log, APIConfig{BaseURL: srv.URL}, resolver, recorder)

	_, err := a.GetMetric(context.Background(), "m")
	require.Error(t, err)

	var tlsErr *telemetry.TLSError
	require.ErrorAs(t, err, &tlsErr)

	// The failed call is still observable.
	require.Len(t, recorder.Calls(), 1)
}
