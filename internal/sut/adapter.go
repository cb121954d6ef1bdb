// Package sut provides adapters for querying metrics from a System Under Test,
// either from a preloaded mapping or from a remote HTTP API.
package sut

import (
	"context"
	"fmt"
)

// Adapter resolves a dotted metric name (e.g. "device.model") to its current
// value. Implementations are selected once at construction.
type Adapter interface {
	GetMetric(ctx context.Context, name string) (any, error)
}

// MetricNotFoundError reports a lookup miss, distinguishable from a stored
// value of false, 0 or "".
type MetricNotFoundError struct {
	Metric string
}

func (e *MetricNotFoundError) Error() string {
	return fmt.Sprintf("metric not found: %q", e.Metric)
}

// DictAdapter serves metrics from a preloaded mapping. Useful for validating
// the harness itself without a live SUT.
type DictAdapter struct {
	metrics map[string]any
}

// NewDictAdapter creates an adapter over the given mapping.
func NewDictAdapter(metrics map[string]any) *DictAdapter {
	return &DictAdapter{metrics: metrics}
}

// GetMetric looks the name up in the backing map.
func (d *DictAdapter) GetMetric(_ context.Context, name string) (any, error) {
	if name == "" {
		return nil, &MetricNotFoundError{Metric: name}
	}

	v, ok := d.metrics[name]
	if !ok {
		return nil, &MetricNotFoundError{Metric: name}
	}

	return v, nil
}
