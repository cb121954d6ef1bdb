package sut

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/auth"
	"github.com/eyesight-qa/apiverify/internal/jsonpath"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

// APIConfig configures the remote-API adapter. Exactly one retrieval strategy
// is active: a non-empty MetricURLTemplate selects per-metric mode, otherwise
// the bulk metrics endpoint is fetched once and cached.
type APIConfig struct {
	BaseURL string

	// Bulk mode
	MetricsEndpoint string

	// Per-metric mode, e.g. "{base_url}/metrics/{metric}".
	MetricURLTemplate string

	// Optional dotted path into the per-metric JSON body.
	MetricValuePath string
}

// APIAdapter fetches metric values from a remote HTTP API. All calls go
// through the telemetry recorder; auth comes from the shared resolver.
type APIAdapter struct {
	cfg      APIConfig
	resolver *auth.Resolver
	recorder *telemetry.Recorder
	log      logrus.FieldLogger

	cache map[string]any
}

// NewAPIAdapter creates the adapter. The recorder owns the HTTP client (and
// with it the TLS and timeout behavior).
func NewAPIAdapter(log logrus.FieldLogger, cfg APIConfig, resolver *auth.Resolver, recorder *telemetry.Recorder) *APIAdapter {
	if cfg.MetricsEndpoint == "" {
		cfg.MetricsEndpoint = "/metrics"
	}

	return &APIAdapter{
		cfg:      cfg,
		resolver: resolver,
		recorder: recorder,
		log:      log.WithField("component", "api_adapter"),
	}
}

// GetMetric returns the metric's current value, issuing one GET per call in
// per-metric mode or serving from the bulk cache otherwise.
func (a *APIAdapter) GetMetric(ctx context.Context, name string) (any, error) {
	if name == "" {
		return nil, &MetricNotFoundError{Metric: name}
	}

	if a.cfg.MetricURLTemplate != "" {
		url := strings.NewReplacer(
			"{base_url}", strings.TrimRight(a.cfg.BaseURL, "/"),
			"{metric}", name,
		).Replace(a.cfg.MetricURLTemplate)

		payload, err := a.getJSON(ctx, url)
		if err != nil {
			return nil, err
		}

		return a.extractValue(payload), nil
	}

	if a.cache == nil {
		cache, err := a.fetchAllMetrics(ctx)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}

	v, ok := a.cache[name]
	if !ok {
		return nil, &MetricNotFoundError{Metric: name}
	}

	return v, nil
}

// fetchAllMetrics loads the bulk metrics mapping once per adapter lifetime.
// Accepts either {"metrics": {...}} or a raw mapping.
func (a *APIAdapter) fetchAllMetrics(ctx context.Context) (map[string]any, error) {
	url := strings.TrimRight(a.cfg.BaseURL, "/") + a.cfg.MetricsEndpoint

	payload, err := a.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metrics endpoint returned unsupported JSON shape; expected an object")
	}

	if inner, ok := obj["metrics"].(map[string]any); ok {
		return inner, nil
	}

	return obj, nil
}

// extractValue pulls the metric value out of a per-metric response body.
// Falls back through the common shapes before treating the body as the value.
func (a *APIAdapter) extractValue(payload any) any {
	if a.cfg.MetricValuePath != "" {
		if v, ok := jsonpath.Lookup(payload, a.cfg.MetricValuePath); ok && v != nil {
			return v
		}
	}

	if obj, ok := payload.(map[string]any); ok {
		if v, ok := obj["value"]; ok {
			return v
		}
		if data, ok := obj["data"].(map[string]any); ok {
			if v, ok := data["value"]; ok {
				return v
			}
		}
		if v, ok := obj["result"]; ok {
			return v
		}
	}

	return payload
}

func (a *APIAdapter) getJSON(ctx context.Context, url string) (any, error) {
	cred, err := a.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	url = cred.ApplyURL(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header = cred.ApplyHeaders(http.Header{"Accept": []string{"application/json"}})

	resp, err := a.recorder.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", a.recorder.Redactor().RedactURL(url), resp.StatusCode)
	}

	// Some SUTs send JSON with a text content-type; decode regardless.
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}

	return payload, nil
}
