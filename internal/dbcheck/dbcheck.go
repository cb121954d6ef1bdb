// Package dbcheck runs optional, read-only SQL validation checks against the
// SUT's backing store. Not configuring it is a no-op; it never mutates data.
package dbcheck

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	// Drivers for the supported backends.
	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const defaultTimeout = 30 * time.Second

// Check is one declared validation: a query whose first row, first column is
// compared against an expected value, or just required to exist.
type Check struct {
	Name     string `yaml:"name"`
	Query    string `yaml:"query"`
	Expected any    `yaml:"expected"`
}

// Result is one executed check.
type Result struct {
	Name   string
	Passed bool
	Reason string
}

// Config selects the backend and the checks file.
type Config struct {
	Driver     string // "sqlite3" or "clickhouse"
	DSN        string
	ChecksFile string
	Timeout    time.Duration
}

// Validate rejects unsupported drivers and missing settings.
func (c Config) Validate() error {
	switch c.Driver {
	case "sqlite3", "clickhouse":
	default:
		return fmt.Errorf("unsupported db driver: %q (sqlite3 or clickhouse)", c.Driver)
	}

	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("db DSN is required")
	}
	if strings.TrimSpace(c.ChecksFile) == "" {
		return fmt.Errorf("db checks file is required")
	}

	return nil
}

// LoadChecks reads the YAML checks file.
func LoadChecks(path string) ([]Check, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading db checks: %w", err)
	}

	var doc struct {
		Checks []Check `yaml:"checks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing db checks: %w", err)
	}

	for i := range doc.Checks {
		if strings.TrimSpace(doc.Checks[i].Query) == "" {
			return nil, fmt.Errorf("db check[%d]: query is required", i)
		}
		if doc.Checks[i].Name == "" {
			doc.Checks[i].Name = doc.Checks[i].Query
		}
	}

	return doc.Checks, nil
}

// Run opens the database, executes every check in order and aggregates
// results. A failing check does not stop the rest.
func Run(ctx context.Context, log logrus.FieldLogger, cfg Config) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	checks, err := LoadChecks(cfg.ChecksFile)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log = log.WithField("component", "dbcheck")

	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, runOne(ctx, db, timeout, c))

		log.WithFields(logrus.Fields{
			"check":  c.Name,
			"passed": results[len(results)-1].Passed,
		}).Debug("db check executed")
	}

	return results, nil
}

func runOne(ctx context.Context, db *sql.DB, timeout time.Duration, c Check) Result {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	row := db.QueryRowContext(queryCtx, c.Query)

	var value any
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return Result{Name: c.Name, Reason: "query returned no rows"}
		}
		return Result{Name: c.Name, Reason: fmt.Sprintf("executing query: %v", err)}
	}

	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	if c.Expected == nil {
		if value == nil {
			return Result{Name: c.Name, Reason: "query returned NULL"}
		}
		return Result{Name: c.Name, Passed: true, Reason: fmt.Sprintf("value %v present", value)}
	}

	if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", c.Expected) {
		return Result{Name: c.Name, Reason: fmt.Sprintf("expected %v, got %v", c.Expected, value)}
	}

	return Result{Name: c.Name, Passed: true, Reason: fmt.Sprintf("value %v as expected", value)}
}
