// Package actions contains the core business logic behind the CLI commands.
package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/config"
	"github.com/eyesight-qa/apiverify/internal/contract"
	"github.com/eyesight-qa/apiverify/internal/dbcheck"
	"github.com/eyesight-qa/apiverify/internal/evidence"
	"github.com/eyesight-qa/apiverify/internal/output"
	"github.com/eyesight-qa/apiverify/internal/report"
	"github.com/eyesight-qa/apiverify/internal/seal"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

// RunContract executes a contract file against the configured SUT, prints
// result tables and writes the configured artifacts. The returned bool says
// whether everything passed; an error means the run itself could not execute.
func RunContract(ctx context.Context, log logrus.FieldLogger, contractPath string) (bool, error) {
	cfg, err := config.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.API.BaseURL == "" {
		return false, &config.Error{Setting: "SUT_BASE_URL", Reason: "required to run a contract"}
	}

	spec, err := contract.Load(contractPath)
	if err != nil {
		return false, err
	}

	sealer, err := seal.New(cfg.EncryptionKey)
	if err != nil {
		return false, &config.Error{Setting: "ARTIFACT_ENCRYPTION_KEY", Reason: err.Error()}
	}

	redactor := telemetry.NewRedactor(cfg.SensitiveParams...)
	recorder := telemetry.NewRecorder(log, cfg.HTTPClient(), redactor)
	runner := contract.NewRunner(log, contract.Config{BaseURL: cfg.API.BaseURL}, cfg.Auth, recorder)

	result, err := runner.Run(ctx, spec)
	if err != nil {
		return false, err
	}

	rules := telemetry.ParseLabelRules(cfg.LabelRules)
	calls := recorder.Calls()
	summary := telemetry.Summarize(calls, rules)

	renderer := output.NewTableRenderer(log)
	fmt.Println(output.FormatCheckResults(renderer, result))
	fmt.Println(output.FormatEndpointSummary(renderer, summary))

	ok := result.OK()

	if cfg.DBEnabled {
		dbResults, dbErr := dbcheck.Run(ctx, log, cfg.DB)
		if dbErr != nil {
			return false, dbErr
		}

		fmt.Println(output.FormatDBResults(renderer, dbResults))

		for _, r := range dbResults {
			if !r.Passed {
				ok = false
			}
		}
	}

	fmt.Println(output.FormatRunSummary(renderer, result, summary))

	if err := writeArtifacts(ctx, log, cfg, contractPath, result, calls, rules, sealer); err != nil {
		return false, err
	}

	return ok, nil
}

// writeArtifacts persists the call log, evidence manifest and run report, then
// the optional encrypted copies. Artifact order matters: evidence hashes the
// api report, the run report links both.
func writeArtifacts(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.Config,
	contractPath string,
	result *contract.RunResult,
	calls []telemetry.CallRecord,
	rules []telemetry.LabelRule,
	sealer *seal.Sealer,
) error {
	paths := cfg.Reports
	if paths.APIReport == "" && paths.Evidence == "" && paths.RunReport == "" {
		return nil
	}

	if paths.APIReport != "" {
		if err := report.WriteAPIReport(log, paths.APIReport, calls, rules); err != nil {
			return err
		}
	}

	var manifest *evidence.Manifest

	if paths.Evidence != "" {
		builder := evidence.NewBuilder(log, repoRoot(), evidence.ConfigSnapshot{
			BaseURL:   cfg.API.BaseURL,
			AuthMode:  string(cfg.Auth.Mode),
			VerifyTLS: cfg.VerifyTLS,
		})

		m, err := builder.Build(ctx, []string{contractPath, paths.APIReport})
		if err != nil {
			return err
		}

		if err := builder.Write(m, paths.Evidence); err != nil {
			return err
		}

		manifest = m
	}

	if paths.RunReport != "" {
		if err := report.WriteRunReport(log, paths.RunReport, report.RunReportInput{
			ContractPath:  contractPath,
			Result:        result,
			Calls:         calls,
			LabelRules:    rules,
			APIReportPath: paths.APIReport,
			Manifest:      manifest,
			EvidencePath:  paths.Evidence,
		}); err != nil {
			return err
		}
	}

	for _, p := range []string{paths.APIReport, paths.Evidence, paths.RunReport} {
		if p == "" {
			continue
		}
		if _, err := sealer.WriteEncryptedCopy(p); err != nil {
			return err
		}
	}

	return nil
}

func repoRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
