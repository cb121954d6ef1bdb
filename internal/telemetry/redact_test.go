package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactURL_SensitiveParams(t *testing.T) {
	t.Parallel()

	r := NewRedactor()

	out := r.RedactURL("https://sut.example/metrics?api_key=s3cret&name=device.model")
	require.Contains(t, out, "api_key=REDACTED")
	require.Contains(t, out, "name=device.model")
}

func TestRedactURL_Idempotent(t *testing.T) {
	t.Parallel()

	r := NewRedactor()

	once := r.RedactURL("https://sut.example/q?token=abc&x=1")
	twice := r.RedactURL(once)
	require.Equal(t, once, twice)
}

func TestRedactURL_ConfiguredExtraParam(t *testing.T) {
	t.Parallel()

	r := NewRedactor("session_id")

	out := r.RedactURL("https://sut.example/q?session_id=deadbeef&page=2")
	require.Contains(t, out, "session_id=REDACTED")
	require.Contains(t, out, "page=2")
}

func TestRedactURL_HeuristicNames(t *testing.T) {
	t.Parallel()

	r := NewRedactor()

	out := r.RedactURL("https://sut.example/q?refresh_token=zzz&license_key=abc&plain=ok")
	require.Contains(t, out, "refresh_token=REDACTED")
	require.Contains(t, out, "license_key=REDACTED")
	require.Contains(t, out, "plain=ok")
}

func TestRedactURL_NoQueryUnchanged(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	require.Equal(t, "https://sut.example/metrics", r.RedactURL("https://sut.example/metrics"))
}

func TestRedactText_BearerAndBasic(t *testing.T) {
	t.Parallel()

	out := RedactText("failed: Authorization: Bearer eyJhbGci and Basic dXNlcjpwdw==")
	require.NotContains(t, out, "eyJhbGci")
	require.NotContains(t, out, "dXNlcjpwdw==")
	require.Contains(t, out, "Bearer REDACTED")
	require.Contains(t, out, "Basic REDACTED")
}
