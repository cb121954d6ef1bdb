package telemetry

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// LabelRule maps URLs matching a pattern to a human-meaningful endpoint label.
type LabelRule struct {
	Label   string
	Pattern *regexp.Regexp
}

// ParseLabelRules parses "Label=regex;Other=regex2" rule lists. Malformed
// entries are dropped rather than failing the run; labeling is best-effort.
func ParseLabelRules(raw string) []LabelRule {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var rules []LabelRule
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(part, "=") {
			continue
		}

		label, expr, _ := strings.Cut(part, "=")
		label = strings.TrimSpace(label)
		expr = strings.TrimSpace(expr)
		if label == "" || expr == "" {
			continue
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}

		rules = append(rules, LabelRule{Label: label, Pattern: re})
	}

	return rules
}

const unlabeled = "(unlabeled)"

func labelFor(rules []LabelRule, url string) string {
	for _, r := range rules {
		if r.Pattern.MatchString(url) {
			return r.Label
		}
	}
	return unlabeled
}

// EndpointStats aggregates calls that share a redacted URL.
type EndpointStats struct {
	Label       string         `json:"label"`
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	Count       int            `json:"count"`
	OKCount     int            `json:"ok_count"`
	ErrorCount  int            `json:"error_count"`
	StatusCodes map[string]int `json:"status_codes"`
	P50MS       float64        `json:"p50_ms"`
	P95MS       float64        `json:"p95_ms"`
	MaxMS       float64        `json:"max_ms"`

	latencies []float64
}

// LabelStats aggregates calls that share a label.
type LabelStats struct {
	Label       string         `json:"label"`
	Count       int            `json:"count"`
	OKCount     int            `json:"ok_count"`
	ErrorCount  int            `json:"error_count"`
	StatusCodes map[string]int `json:"status_codes"`
}

// Summary is the aggregate view over a run's call log.
type Summary struct {
	TotalCalls  int              `json:"total_calls"`
	TotalErrors int              `json:"total_errors"`
	Labels      []*LabelStats    `json:"labels"`
	Endpoints   []*EndpointStats `json:"endpoints"`
}

// Summarize aggregates per-endpoint and per-label stats from the call log.
// Records are assumed to already carry redacted URLs.
func Summarize(calls []CallRecord, rules []LabelRule) *Summary {
	var (
		byURL   = make(map[string]*EndpointStats)
		byLabel = make(map[string]*LabelStats)
	)

	summary := &Summary{TotalCalls: len(calls)}

	for _, c := range calls {
		label := labelFor(rules, c.URL)

		entry, ok := byURL[c.URL]
		if !ok {
			entry = &EndpointStats{
				Label:       label,
				Method:      c.Method,
				URL:         c.URL,
				StatusCodes: make(map[string]int),
			}
			byURL[c.URL] = entry
		}

		lentry, ok := byLabel[label]
		if !ok {
			lentry = &LabelStats{Label: label, StatusCodes: make(map[string]int)}
			byLabel[label] = lentry
		}

		entry.Count++
		lentry.Count++

		if c.Error == nil && c.OK {
			entry.OKCount++
			lentry.OKCount++
		} else {
			entry.ErrorCount++
			lentry.ErrorCount++
			summary.TotalErrors++
		}

		sc := "none"
		if c.StatusCode != nil {
			sc = strconv.Itoa(*c.StatusCode)
		}
		entry.StatusCodes[sc]++
		lentry.StatusCodes[sc]++

		entry.latencies = append(entry.latencies, c.ElapsedMS)
	}

	for _, entry := range byURL {
		sort.Float64s(entry.latencies)
		if len(entry.latencies) > 0 {
			entry.P50MS = percentile(entry.latencies, 50)
			entry.P95MS = percentile(entry.latencies, 95)
			entry.MaxMS = entry.latencies[len(entry.latencies)-1]
		}
		entry.latencies = nil
		summary.Endpoints = append(summary.Endpoints, entry)
	}

	for _, lentry := range byLabel {
		summary.Labels = append(summary.Labels, lentry)
	}

	// Busiest and most broken first, stable across runs.
	sort.Slice(summary.Endpoints, func(i, j int) bool {
		a, b := summary.Endpoints[i], summary.Endpoints[j]
		if a.ErrorCount != b.ErrorCount {
			return a.ErrorCount > b.ErrorCount
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.URL < b.URL
	})
	sort.Slice(summary.Labels, func(i, j int) bool {
		a, b := summary.Labels[i], summary.Labels[j]
		if a.ErrorCount != b.ErrorCount {
			return a.ErrorCount > b.ErrorCount
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})

	return summary
}

// percentile uses nearest-rank on a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	i := int(p/100.0*float64(len(sorted)-1) + 0.5)
	if i < 0 {
		i = 0
	}
	if i >= len(sorted) {
		i = len(sorted) - 1
	}

	return sorted[i]
}
