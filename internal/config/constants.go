package config

const (
	// DefaultAPIKeyHeader is the header used for api_key auth unless overridden.
	DefaultAPIKeyHeader = "X-API-Key"
	// DefaultMetricsEndpoint is the bulk metrics path in API mode.
	DefaultMetricsEndpoint = "/metrics"
	// DefaultTimeoutSeconds bounds every outbound request.
	DefaultTimeoutSeconds = 10
	// APIReportFilename is the default call-log artifact name under REPORT_DIR.
	APIReportFilename = "api_report.json"
	// EvidenceFilename is the default evidence manifest name under REPORT_DIR.
	EvidenceFilename = "evidence.json"
	// RunReportFilename is the default run report name under REPORT_DIR.
	RunReportFilename = "run_report.json"
)
