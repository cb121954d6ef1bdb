package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyesight-qa/apiverify/internal/auth"
)

// Load reads the process environment, so these tests cannot run in parallel.

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"SUT_MODE", "SUT_BASE_URL", "SUT_TOKEN", "SUT_AUTH_MODE",
		"SUT_API_KEY", "SUT_API_KEY_HEADER", "SUT_API_KEY_QUERY_PARAM",
		"SUT_OAUTH_TOKEN", "SUT_OAUTH_TOKEN_URL", "SUT_OAUTH_CLIENT_ID",
		"SUT_OAUTH_CLIENT_SECRET", "SUT_OAUTH_SCOPE", "SUT_PREFER_LEGACY_TOKEN",
		"SUT_TIMEOUT_S", "SUT_VERIFY_TLS", "SUT_METRICS_ENDPOINT",
		"SUT_METRIC_URL_TEMPLATE", "SUT_METRIC_VALUE_PATH", "SUT_METRICS_JSON",
		"SENSITIVE_QUERY_PARAMS", "API_LABEL_RULES", "REPORT_DIR",
		"API_REPORT_PATH", "EVIDENCE_PATH", "RUN_REPORT_PATH",
		"ARTIFACT_ENCRYPTION_KEY", "DB_MODE", "DB_DSN", "DB_SQLITE_PATH",
		"DB_CHECKS_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Empty(t, cfg.SUTMode)
	require.Equal(t, auth.ModeNone, cfg.Auth.Mode)
	require.True(t, cfg.VerifyTLS)
	require.False(t, cfg.DBEnabled)
	require.EqualValues(t, DefaultTimeoutSeconds, cfg.Timeout.Seconds())
}

func TestLoad_DictMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_MODE", "dict")
	t.Setenv("SUT_METRICS_JSON", `{"uptime_s": 120, "model": "eyeSight-DEMO"}`)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeDict, cfg.SUTMode)
	require.Equal(t, "eyeSight-DEMO", cfg.Metrics["model"])
}

func TestLoad_DictModeKeepsBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_MODE", "dict")
	t.Setenv("SUT_METRICS_JSON", `{"uptime_s": 120}`)
	t.Setenv("SUT_BASE_URL", "https://sut.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeDict, cfg.SUTMode)
	require.Equal(t, "https://sut.example.com", cfg.API.BaseURL)
}

func TestLoad_DictModeBadJSON(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_MODE", "dict")
	t.Setenv("SUT_METRICS_JSON", `[1, 2, 3]`)

	_, err := Load()

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "SUT_METRICS_JSON", cfgErr.Setting)
}

func TestLoad_APIModeRequiresBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_MODE", "api")

	_, err := Load()

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "SUT_BASE_URL", cfgErr.Setting)
}

func TestLoad_APIMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_MODE", "api")
	t.Setenv("SUT_BASE_URL", "https://sut.example.com")
	t.Setenv("SUT_METRIC_URL_TEMPLATE", "{base_url}/api/v1/metrics/{metric}")
	t.Setenv("SUT_TIMEOUT_S", "2.5")
	t.Setenv("SUT_VERIFY_TLS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeAPI, cfg.SUTMode)
	require.Equal(t, "https://sut.example.com", cfg.API.BaseURL)
	require.Equal(t, DefaultMetricsEndpoint, cfg.API.MetricsEndpoint)
	require.Equal(t, "{base_url}/api/v1/metrics/{metric}", cfg.API.MetricURLTemplate)
	require.InDelta(t, 2.5, cfg.Timeout.Seconds(), 0.001)
	require.False(t, cfg.VerifyTLS)

	client := cfg.HTTPClient()
	require.NotNil(t, client.Transport)
}

func TestLoad_BaseURLExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_HOST", "sut.internal")
	t.Setenv("SUT_MODE", "api")
	t.Setenv("SUT_BASE_URL", "https://${SUT_HOST}/v1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://sut.internal/v1", cfg.API.BaseURL)
}

func TestLoad_APIKeyModeRequiresKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_AUTH_MODE", "api_key")

	_, err := Load()

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "SUT_API_KEY", cfgErr.Setting)
}

func TestLoad_APIKeyQueryParamIsSensitive(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_AUTH_MODE", "api_key")
	t.Setenv("SUT_API_KEY", "k-123")
	t.Setenv("SUT_API_KEY_QUERY_PARAM", "apiKey")
	t.Setenv("SENSITIVE_QUERY_PARAMS", "session, trace_id")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"session", "trace_id", "apiKey"}, cfg.SensitiveParams)
}

func TestLoad_OAuthNeedsTokenOrExchange(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_AUTH_MODE", "oauth2")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SUT_OAUTH_TOKEN_URL", "https://idp/token")
	_, err = Load()

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "SUT_OAUTH_CLIENT_ID", cfgErr.Setting)

	t.Setenv("SUT_OAUTH_CLIENT_ID", "cid")
	t.Setenv("SUT_OAUTH_CLIENT_SECRET", "shh")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, auth.ModeOAuth2, cfg.Auth.Mode)
}

func TestLoad_ReportDirDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REPORT_DIR", "out")
	t.Setenv("EVIDENCE_PATH", "custom/evidence.json")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "out/api_report.json", cfg.Reports.APIReport)
	require.Equal(t, "custom/evidence.json", cfg.Reports.Evidence)
	require.Equal(t, "out/run_report.json", cfg.Reports.RunReport)
}

func TestLoad_DBConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_MODE", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "sut.db")
	t.Setenv("DB_CHECKS_FILE", "db_checks.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.DBEnabled)
	require.Equal(t, "sqlite3", cfg.DB.Driver)
	require.Equal(t, "sut.db", cfg.DB.DSN)
}

func TestLoad_DBConfigIncomplete(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_MODE", "sqlite")

	_, err := Load()

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "DB_MODE", cfgErr.Setting)
}

func TestString_MasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUT_AUTH_MODE", "api_key")
	t.Setenv("SUT_API_KEY", "k-very-secret")

	cfg, err := Load()
	require.NoError(t, err)

	out := cfg.String()
	require.NotContains(t, out, "k-very-secret")
	require.True(t, strings.Contains(out, "api_key"))
}
