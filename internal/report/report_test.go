package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/eyesight-qa/apiverify/internal/contract"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func intp(v int) *int       { return &v }
func strp(s string) *string { return &s }

func TestWriteAPIReport(t *testing.T) {
	t.Parallel()

	calls := []telemetry.CallRecord{
		{Method: "GET", URL: "https://sut/metrics", StatusCode: intp(200), OK: true, ElapsedMS: 12, Timestamp: time.Now()},
		{Method: "GET", URL: "https://sut/secure", Error: strp("auth failed: Bearer eyJzZWNyZXQ"), ElapsedMS: 5, Timestamp: time.Now()},
	}

	path := filepath.Join(t.TempDir(), "reports", "api_report.json")
	require.NoError(t, WriteAPIReport(testLogger(), path, calls, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "eyJzZWNyZXQ")

	var r APIReport
	require.NoError(t, json.Unmarshal(data, &r))
	require.Equal(t, 2, r.Summary.TotalCalls)
	require.Equal(t, 1, r.Summary.TotalErrors)
	require.Len(t, r.Calls, 2)
}

func TestWriteRunReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	apiPath := filepath.Join(dir, "api_report.json")
	require.NoError(t, os.WriteFile(apiPath, []byte(`{"calls":[]}`), 0o600))

	result := &contract.RunResult{
		Checks: []contract.CheckResult{
			{ID: "a", Status: contract.StatusPassed, Passed: true},
			{ID: "b", Status: contract.StatusFailed, Reason: "expected status 200, got 404"},
			{ID: "c", Status: contract.StatusErrored, Reason: "transport error"},
		},
		Passed:  1,
		Failed:  1,
		Errored: 1,
	}

	out := filepath.Join(dir, "run_report.json")
	require.NoError(t, WriteRunReport(testLogger(), out, RunReportInput{
		ContractPath:  "contracts/device.yaml",
		Result:        result,
		APIReportPath: apiPath,
	}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var r RunReport
	require.NoError(t, json.Unmarshal(data, &r))
	require.Equal(t, []string{"b", "c"}, r.FailedIDs)
	require.Equal(t, 1, r.Result.Passed)

	ref, ok := r.Artifacts["api_report"]
	require.True(t, ok)
	require.Len(t, ref.SHA256, 64)
	require.Equal(t, int64(12), ref.Bytes)
}

func TestWriteRunReport_MissingArtifactSkipped(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "run_report.json")
	require.NoError(t, WriteRunReport(testLogger(), out, RunReportInput{
		Result:        &contract.RunResult{},
		APIReportPath: "/does/not/exist.json",
	}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var r RunReport
	require.NoError(t, json.Unmarshal(data, &r))
	require.Empty(t, r.Artifacts)
}
