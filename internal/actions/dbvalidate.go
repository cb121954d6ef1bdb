package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/config"
	"github.com/eyesight-qa/apiverify/internal/dbcheck"
	"github.com/eyesight-qa/apiverify/internal/output"
)

// ErrDBChecksFailed reports that at least one database check did not pass.
var ErrDBChecksFailed = errors.New("database checks failed")

// ValidateDB runs the configured database checks standalone and prints the
// results table.
func ValidateDB(ctx context.Context, log logrus.FieldLogger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.DBEnabled {
		return &config.Error{Setting: "DB_MODE", Reason: "set DB_MODE, DB_DSN and DB_CHECKS_FILE to run database checks"}
	}

	results, err := dbcheck.Run(ctx, log, cfg.DB)
	if err != nil {
		return err
	}

	fmt.Println(output.FormatDBResults(output.NewTableRenderer(log), results))

	for _, r := range results {
		if !r.Passed {
			return ErrDBChecksFailed
		}
	}

	return nil
}
