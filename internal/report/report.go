// Package report writes the JSON artifacts a run hands to stakeholders:
// the API call telemetry report and the consolidated run report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/contract"
	"github.com/eyesight-qa/apiverify/internal/evidence"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

// APIReport is the call-telemetry artifact. Calls are already redacted by the
// recorder; error strings get one more text pass before serialization.
type APIReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	PID         int                    `json:"pid"`
	Summary     *telemetry.Summary     `json:"summary"`
	Calls       []telemetry.CallRecord `json:"calls"`
}

// WriteAPIReport builds and writes the API report for a run's call log.
func WriteAPIReport(log logrus.FieldLogger, path string, calls []telemetry.CallRecord, rules []telemetry.LabelRule) error {
	safe := make([]telemetry.CallRecord, len(calls))
	copy(safe, calls)

	for i := range safe {
		if safe[i].Error != nil {
			msg := telemetry.RedactText(*safe[i].Error)
			safe[i].Error = &msg
		}
	}

	r := APIReport{
		GeneratedAt: time.Now().UTC(),
		PID:         os.Getpid(),
		Summary:     telemetry.Summarize(safe, rules),
		Calls:       safe,
	}

	if err := writeJSON(path, r); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"path":  path,
		"calls": len(safe),
	}).Info("api report written")

	return nil
}

// RunReport is the single file handed to a stakeholder: what ran, what
// happened, what was produced.
type RunReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Contract    string                 `json:"contract"`
	Result      *contract.RunResult    `json:"result"`
	FailedIDs   []string               `json:"failed_check_ids"`
	Artifacts   map[string]ArtifactRef `json:"artifacts"`
	APISummary  *telemetry.Summary     `json:"api_summary,omitempty"`
	Evidence    *evidence.Manifest     `json:"evidence,omitempty"`
}

// ArtifactRef points at a companion artifact by content hash.
type ArtifactRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// RunReportInput collects everything the run report aggregates.
type RunReportInput struct {
	ContractPath  string
	Result        *contract.RunResult
	Calls         []telemetry.CallRecord
	LabelRules    []telemetry.LabelRule
	APIReportPath string
	Manifest      *evidence.Manifest
	EvidencePath  string
}

// WriteRunReport writes the consolidated run report.
func WriteRunReport(log logrus.FieldLogger, path string, in RunReportInput) error {
	r := RunReport{
		GeneratedAt: time.Now().UTC(),
		Contract:    in.ContractPath,
		Result:      in.Result,
		FailedIDs:   []string{},
		Artifacts:   make(map[string]ArtifactRef),
		Evidence:    in.Manifest,
	}

	if in.Result != nil {
		for _, c := range in.Result.Checks {
			if c.Status != contract.StatusPassed {
				r.FailedIDs = append(r.FailedIDs, c.ID)
			}
		}
	}

	if len(in.Calls) > 0 {
		r.APISummary = telemetry.Summarize(in.Calls, in.LabelRules)
	}

	addRef(r.Artifacts, "api_report", in.APIReportPath)
	addRef(r.Artifacts, "evidence", in.EvidencePath)

	if err := writeJSON(path, r); err != nil {
		return err
	}

	log.WithField("path", path).Info("run report written")

	return nil
}

func addRef(refs map[string]ArtifactRef, name, path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	sum, err := evidence.HashFile(path)
	if err != nil {
		return
	}

	refs[name] = ArtifactRef{
		Path:   filepath.ToSlash(path),
		SHA256: sum,
		Bytes:  info.Size(),
	}
}

// writeJSON serializes with a final redaction pass over the document text, so
// no artifact ever carries bearer or basic credentials.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	text := telemetry.RedactText(string(data))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}
