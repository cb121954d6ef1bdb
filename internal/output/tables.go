// Package output renders human-friendly run results: colored status tables
// for checks, endpoint latency summaries and failure details.
package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/contract"
	"github.com/eyesight-qa/apiverify/internal/dbcheck"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

// TableRenderer provides table rendering utilities using tablewriter.
type TableRenderer struct {
	log logrus.FieldLogger
}

// NewTableRenderer creates a new table renderer.
func NewTableRenderer(log logrus.FieldLogger) *TableRenderer {
	return &TableRenderer{
		log: log.WithField("component", "table_renderer"),
	}
}

// RenderToString renders a table to a string with the given headers and rows.
func (r *TableRenderer) RenderToString(headers []string, rows [][]string) string {
	buf := &bytes.Buffer{}
	r.RenderToWriter(buf, headers, rows)
	return buf.String()
}

// RenderToWriter renders a table to the given writer with headers and rows.
func (r *TableRenderer) RenderToWriter(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)

	// Apply consistent styling
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(false)

	table.AppendBulk(rows)
	table.Render()
}

var colorEnabled = !color.NoColor

func colorSuccess(text string) string {
	if !colorEnabled {
		return text
	}
	return color.GreenString(text)
}

func colorFailure(text string) string {
	if !colorEnabled {
		return text
	}
	return color.RedString(text)
}

func colorWarning(text string) string {
	if !colorEnabled {
		return text
	}
	return color.YellowString(text)
}

func colorMuted(text string) string {
	if !colorEnabled {
		return text
	}
	return color.New(color.FgHiBlack).Sprint(text)
}

func colorBold(text string) string {
	if !colorEnabled {
		return text
	}
	return color.New(color.Bold).Sprint(text)
}

func colorHeader(text string) string {
	if !colorEnabled {
		return text
	}
	return color.New(color.FgCyan, color.Bold).Sprint(text)
}

func formatStatus(status contract.Status) string {
	switch status {
	case contract.StatusPassed:
		return colorSuccess("✓ PASS")
	case contract.StatusFailed:
		return colorFailure("✗ FAIL")
	case contract.StatusErrored:
		return colorWarning("! ERROR")
	default:
		return colorMuted(string(status))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// FormatCheckResults formats contract check results as a table, followed by
// per-check reasons for everything that did not pass.
func FormatCheckResults(renderer *TableRenderer, result *contract.RunResult) string {
	if result == nil || len(result.Checks) == 0 {
		return "No checks executed"
	}

	headers := []string{"Check", "Status", "HTTP", "Latency", "Details"}
	rows := make([][]string, 0, len(result.Checks))
	failed := make([]contract.CheckResult, 0)

	for _, check := range result.Checks {
		httpStatus := ""
		latency := ""
		if check.Record != nil {
			if check.Record.StatusCode != nil {
				httpStatus = fmt.Sprintf("%d", *check.Record.StatusCode)
			}
			latency = fmt.Sprintf("%.0fms", check.Record.ElapsedMS)
		}

		details := ""
		if !check.Passed {
			failed = append(failed, check)
			details = colorMuted(truncate(check.Reason, 50))
		}

		rows = append(rows, []string{
			check.ID,
			formatStatus(check.Status),
			httpStatus,
			latency,
			details,
		})
	}

	output := "\n" + colorHeader("▸ Check Results") + "\n\n" + renderer.RenderToString(headers, rows)

	if len(failed) > 0 {
		output += formatFailureDetails(failed)
	}

	return output
}

func formatFailureDetails(failed []contract.CheckResult) string {
	var builder strings.Builder

	builder.WriteString("\n\n" + colorHeader("▸ Failed Check Details") + "\n\n")

	for i, check := range failed {
		if i > 0 {
			builder.WriteString("\n")
		}

		marker := colorFailure("✗")
		if check.Status == contract.StatusErrored {
			marker = colorWarning("!")
		}

		fmt.Fprintf(&builder, "%s %s\n", marker, colorBold(check.ID))

		reason := check.Reason
		if reason == "" {
			reason = "check failed (no details available)"
		}
		for _, line := range strings.Split(reason, "; ") {
			fmt.Fprintf(&builder, "    %s\n", line)
		}
	}

	return builder.String()
}

// FormatEndpointSummary formats per-endpoint latency statistics as a table.
func FormatEndpointSummary(renderer *TableRenderer, summary *telemetry.Summary) string {
	if summary == nil || len(summary.Endpoints) == 0 {
		return "No API calls recorded"
	}

	headers := []string{"Label", "Endpoint", "Calls", "Errors", "P50", "P95", "Max"}
	rows := make([][]string, 0, len(summary.Endpoints))

	for _, ep := range summary.Endpoints {
		errors := fmt.Sprintf("%d", ep.ErrorCount)
		if ep.ErrorCount > 0 {
			errors = colorFailure(errors)
		}

		rows = append(rows, []string{
			ep.Label,
			fmt.Sprintf("%s %s", ep.Method, truncate(ep.URL, 60)),
			fmt.Sprintf("%d", ep.Count),
			errors,
			fmt.Sprintf("%.0fms", ep.P50MS),
			fmt.Sprintf("%.0fms", ep.P95MS),
			fmt.Sprintf("%.0fms", ep.MaxMS),
		})
	}

	return "\n" + colorHeader("▸ API Calls") + "\n\n" + renderer.RenderToString(headers, rows)
}

// FormatDBResults formats database validation results as a table.
func FormatDBResults(renderer *TableRenderer, results []dbcheck.Result) string {
	if len(results) == 0 {
		return "No database checks executed"
	}

	headers := []string{"Check", "Status", "Details"}
	rows := make([][]string, 0, len(results))

	for _, r := range results {
		status := colorSuccess("✓ PASS")
		details := ""
		if !r.Passed {
			status = colorFailure("✗ FAIL")
			details = colorMuted(truncate(r.Reason, 60))
		}
		rows = append(rows, []string{r.Name, status, details})
	}

	return "\n" + colorHeader("▸ Database Checks") + "\n\n" + renderer.RenderToString(headers, rows)
}

// FormatRunSummary formats aggregate run statistics as a table.
func FormatRunSummary(renderer *TableRenderer, result *contract.RunResult, summary *telemetry.Summary) string {
	if result == nil {
		return ""
	}

	total := len(result.Checks)

	var passRate float64
	if total > 0 {
		passRate = float64(result.Passed) / float64(total) * 100.0
	}

	passedValue := fmt.Sprintf("%d (%.1f%%)", result.Passed, passRate)
	if result.Passed == total && total > 0 {
		passedValue = colorSuccess(passedValue)
	}

	failedValue := fmt.Sprintf("%d", result.Failed)
	if result.Failed > 0 {
		failedValue = colorFailure(failedValue)
	} else {
		failedValue = colorSuccess(failedValue)
	}

	erroredValue := fmt.Sprintf("%d", result.Errored)
	if result.Errored > 0 {
		erroredValue = colorWarning(erroredValue)
	}

	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Total Checks", colorBold(fmt.Sprintf("%d", total))},
		{"Passed", passedValue},
		{"Failed", failedValue},
		{"Errored", erroredValue},
		{"Duration", result.Duration.Round(time.Millisecond).String()},
	}

	if summary != nil {
		apiValue := fmt.Sprintf("%d", summary.TotalCalls)
		if summary.TotalErrors > 0 {
			apiValue = fmt.Sprintf("%d (%s errors)", summary.TotalCalls, colorFailure(fmt.Sprintf("%d", summary.TotalErrors)))
		}
		rows = append(rows, []string{"API Calls", apiValue})
	}

	return "\n" + colorHeader("▸ Summary") + "\n\n" + renderer.RenderToString(headers, rows)
}
