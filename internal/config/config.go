// Package config is the single environment-reading boundary. It loads and
// validates run configuration and hands explicit structures to the core
// packages, which never touch ambient process state themselves.
package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eyesight-qa/apiverify/internal/auth"
	"github.com/eyesight-qa/apiverify/internal/dbcheck"
	"github.com/eyesight-qa/apiverify/internal/sut"
)

// Error is a configuration problem. It is fatal: the run aborts before any
// check executes.
type Error struct {
	Setting string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Setting, e.Reason)
}

// SUTMode selects the metric adapter implementation.
type SUTMode string

const (
	// ModeDict serves metrics from SUT_METRICS_JSON.
	ModeDict SUTMode = "dict"
	// ModeAPI queries a remote HTTP API.
	ModeAPI SUTMode = "api"
)

// ReportPaths are the artifact destinations for a run.
type ReportPaths struct {
	Dir       string
	APIReport string
	Evidence  string
	RunReport string
}

// Config is the validated view of the environment.
type Config struct {
	SUTMode SUTMode

	// Dict mode
	Metrics map[string]any

	// API mode
	API sut.APIConfig

	Auth      auth.Config
	Timeout   time.Duration
	VerifyTLS bool

	SensitiveParams []string
	LabelRules      string

	Reports       ReportPaths
	EncryptionKey string

	DB        dbcheck.Config
	DBEnabled bool
}

// Load reads the environment (and .env, if present) into a validated Config.
func Load() (*Config, error) {
	// Missing .env is fine; only a malformed one is an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Timeout:   DefaultTimeoutSeconds * time.Second,
		VerifyTLS: true,
	}

	if raw := getEnv("SUT_TIMEOUT_S", ""); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs <= 0 {
			return nil, &Error{Setting: "SUT_TIMEOUT_S", Reason: fmt.Sprintf("invalid timeout %q", raw)}
		}
		cfg.Timeout = time.Duration(secs * float64(time.Second))
	}

	cfg.VerifyTLS = parseBool(getEnv("SUT_VERIFY_TLS", "true"))

	if err := loadSUT(cfg); err != nil {
		return nil, err
	}
	if err := loadAuth(cfg); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(os.Getenv("SENSITIVE_QUERY_PARAMS")); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.SensitiveParams = append(cfg.SensitiveParams, p)
			}
		}
	}
	// The configured API-key query parameter is sensitive by definition.
	if cfg.Auth.APIKeyQueryParam != "" {
		cfg.SensitiveParams = append(cfg.SensitiveParams, cfg.Auth.APIKeyQueryParam)
	}

	cfg.LabelRules = os.Getenv("API_LABEL_RULES")
	cfg.EncryptionKey = os.Getenv("ARTIFACT_ENCRYPTION_KEY")

	loadReports(cfg)

	if err := loadDB(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadSUT(cfg *Config) error {
	mode := strings.ToLower(getEnv("SUT_MODE", ""))

	// Contract runs need SUT_BASE_URL regardless of the metric adapter mode.
	base := strings.TrimSpace(os.ExpandEnv(os.Getenv("SUT_BASE_URL")))
	cfg.API.BaseURL = base

	switch mode {
	case "", "none":
		// Adapter selection stays empty until a metric lookup asks for it.
		return nil

	case "dict":
		raw := getEnv("SUT_METRICS_JSON", "{}")

		var metrics map[string]any
		if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
			return &Error{Setting: "SUT_METRICS_JSON", Reason: "must be a valid JSON object"}
		}

		cfg.SUTMode = ModeDict
		cfg.Metrics = metrics
		return nil

	case "api":
		if base == "" {
			return &Error{Setting: "SUT_BASE_URL", Reason: "required when SUT_MODE=api"}
		}

		cfg.SUTMode = ModeAPI
		cfg.API = sut.APIConfig{
			BaseURL:           base,
			MetricsEndpoint:   getEnv("SUT_METRICS_ENDPOINT", DefaultMetricsEndpoint),
			MetricURLTemplate: getEnv("SUT_METRIC_URL_TEMPLATE", ""),
			MetricValuePath:   getEnv("SUT_METRIC_VALUE_PATH", ""),
		}
		return nil

	default:
		return &Error{Setting: "SUT_MODE", Reason: fmt.Sprintf("unsupported mode %q", mode)}
	}
}

func loadAuth(cfg *Config) error {
	mode, err := auth.ParseMode(os.Getenv("SUT_AUTH_MODE"))
	if err != nil {
		return &Error{Setting: "SUT_AUTH_MODE", Reason: err.Error()}
	}

	cfg.Auth = auth.Config{
		Mode:              mode,
		APIKey:            strings.TrimSpace(os.Getenv("SUT_API_KEY")),
		APIKeyHeader:      getEnv("SUT_API_KEY_HEADER", DefaultAPIKeyHeader),
		APIKeyQueryParam:  strings.TrimSpace(os.Getenv("SUT_API_KEY_QUERY_PARAM")),
		StaticToken:       strings.TrimSpace(os.Getenv("SUT_OAUTH_TOKEN")),
		TokenURL:          strings.TrimSpace(os.Getenv("SUT_OAUTH_TOKEN_URL")),
		ClientID:          strings.TrimSpace(os.Getenv("SUT_OAUTH_CLIENT_ID")),
		ClientSecret:      strings.TrimSpace(os.Getenv("SUT_OAUTH_CLIENT_SECRET")),
		Scope:             strings.TrimSpace(os.Getenv("SUT_OAUTH_SCOPE")),
		LegacyToken:       strings.TrimSpace(os.ExpandEnv(os.Getenv("SUT_TOKEN"))),
		PreferLegacyToken: parseBool(getEnv("SUT_PREFER_LEGACY_TOKEN", "false")),
		Timeout:           cfg.Timeout,
		VerifyTLS:         cfg.VerifyTLS,
	}

	// Fail fast on incoherent auth settings instead of erroring every check.
	if mode == auth.ModeAPIKey && cfg.Auth.APIKey == "" {
		return &Error{Setting: "SUT_API_KEY", Reason: "required when SUT_AUTH_MODE=api_key"}
	}
	if mode == auth.ModeOAuth2 && cfg.Auth.StaticToken == "" && cfg.Auth.LegacyToken == "" {
		if cfg.Auth.TokenURL == "" {
			return &Error{Setting: "SUT_OAUTH_TOKEN_URL", Reason: "oauth2 mode needs a static token or a token URL"}
		}
		if cfg.Auth.ClientID == "" || cfg.Auth.ClientSecret == "" {
			return &Error{Setting: "SUT_OAUTH_CLIENT_ID", Reason: "client credentials required for token exchange"}
		}
	}

	return nil
}

func loadReports(cfg *Config) {
	cfg.Reports = ReportPaths{
		Dir:       strings.TrimSpace(os.Getenv("REPORT_DIR")),
		APIReport: strings.TrimSpace(os.Getenv("API_REPORT_PATH")),
		Evidence:  strings.TrimSpace(os.Getenv("EVIDENCE_PATH")),
		RunReport: strings.TrimSpace(os.Getenv("RUN_REPORT_PATH")),
	}

	if cfg.Reports.Dir == "" {
		return
	}

	if cfg.Reports.APIReport == "" {
		cfg.Reports.APIReport = filepath.Join(cfg.Reports.Dir, APIReportFilename)
	}
	if cfg.Reports.Evidence == "" {
		cfg.Reports.Evidence = filepath.Join(cfg.Reports.Dir, EvidenceFilename)
	}
	if cfg.Reports.RunReport == "" {
		cfg.Reports.RunReport = filepath.Join(cfg.Reports.Dir, RunReportFilename)
	}
}

func loadDB(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("DB_MODE")))
	if mode == "" || mode == "none" {
		return nil
	}

	driver := mode
	if mode == "sqlite" {
		driver = "sqlite3"
	}

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		// Back-compat with the sqlite-only configuration shape.
		dsn = strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
	}

	cfg.DB = dbcheck.Config{
		Driver:     driver,
		DSN:        dsn,
		ChecksFile: strings.TrimSpace(os.Getenv("DB_CHECKS_FILE")),
		Timeout:    cfg.Timeout,
	}

	if err := cfg.DB.Validate(); err != nil {
		return &Error{Setting: "DB_MODE", Reason: err.Error()}
	}

	cfg.DBEnabled = true

	return nil
}

// HTTPClient builds the run's HTTP client. TLS verification stays on unless
// the operator explicitly disabled it.
func (c *Config) HTTPClient() *http.Client {
	client := &http.Client{Timeout: c.Timeout}

	if !c.VerifyTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // operator opt-out
		}
	}

	return client
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "false", "no":
		return false
	default:
		return true
	}
}
