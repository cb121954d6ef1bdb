package contract

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eyesight-qa/apiverify/internal/auth"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_ValidSpec(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "contract.yaml", `
checks:
  - id: device-info
    path: /api/v1/device
    expected_status: 200
    assert:
      - type: equals
        path: model
        expected: eyeSight-DEMO
      - type: range
        path: uptime_s
        min: 0
  - method: post
    path: /api/v1/echo
    body: '{"ping": true}'
    auth: none
`)

	spec, err := Load(path)
	require.NoError(t, err)
	require.Len(t, spec.Checks, 2)

	first := spec.Checks[0]
	require.Equal(t, "device-info", first.ID)
	require.Equal(t, http.MethodGet, first.Method)
	require.Len(t, first.Assertions, 2)
	require.Nil(t, first.AuthOverride)

	second := spec.Checks[1]
	require.Equal(t, http.MethodPost, second.Method)
	require.Equal(t, http.StatusOK, second.ExpectedStatus)
	require.NotNil(t, second.AuthOverride)
	require.Equal(t, auth.ModeNone, *second.AuthOverride)
	// Auto-generated id keeps ordering readable.
	require.Contains(t, second.ID, "POST /api/v1/echo")
}

func TestLoad_MalformedAssertionIsLoadError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "contract.yaml", `
checks:
  - path: /api/v1/device
    assert:
      - type: one_of
        path: model
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "one_of")
}

func TestLoad_UnknownAuthOverrideIsLoadError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "contract.yaml", `
checks:
  - path: /x
    auth: kerberos
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingPathIsLoadError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "contract.yaml", `
checks:
  - method: GET
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "path is required")
}

func TestLoad_SchemaCompiledAtLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "device.schema.json", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["model"],
  "properties": {"model": {"type": "string"}}
}`)

	specPath := writeFile(t, dir, "contract.yaml", `
checks:
  - path: /api/v1/device
    schema: `+schemaPath+`
`)

	spec, err := Load(specPath)
	require.NoError(t, err)
	require.NotNil(t, spec.Checks[0].Schema)
}

func TestLoad_SchemaRelativeToSpecDir(t *testing.T) {
	t.Parallel()

	// The schema is referenced by bare filename; only resolution against the
	// contract file's directory can find it.
	dir := t.TempDir()
	writeFile(t, dir, "device.schema.json", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object"
}`)

	specPath := writeFile(t, dir, "contract.yaml", `
checks:
  - path: /api/v1/device
    schema: device.schema.json
`)

	spec, err := Load(specPath)
	require.NoError(t, err)
	require.NotNil(t, spec.Checks[0].Schema)
	require.Equal(t, filepath.Join(dir, "device.schema.json"), spec.Checks[0].SchemaPath)
}

func TestLoad_BadSchemaFileIsLoadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "broken.schema.json", `{"type": 42}`)

	specPath := writeFile(t, dir, "contract.yaml", `
checks:
  - path: /x
    schema: `+schemaPath+`
`)

	_, err := Load(specPath)
	require.Error(t, err)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("DEVICE_ID", "dev-42")
	t.Setenv("TRACE_HEADER", "trace-abc")

	spec, err := Parse([]byte(`
checks:
  - path: /api/v1/devices/${DEVICE_ID}
    headers:
      X-Trace: ${TRACE_HEADER}
    assert:
      - type: regex
        path: firmware
        pattern: '^\d+\.\d+\.\d+$'
`), "inline")
	require.NoError(t, err)

	check := spec.Checks[0]
	require.Equal(t, "/api/v1/devices/dev-42", check.Path)
	require.Equal(t, "trace-abc", check.Headers["X-Trace"])
}

func TestParse_HeaderRuleShapes(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]byte(`
checks:
  - path: /x
    expected_headers:
      Content-Type: application/json
      X-Request-Id: true
      Cache-Control:
        contains: no-store
      X-Version:
        regex: '^\d+\.\d+'
`), "inline")
	require.NoError(t, err)

	rules := spec.Checks[0].HeaderRules
	require.Len(t, rules, 4)

	byName := map[string]HeaderRule{}
	for _, r := range rules {
		byName[r.Name] = r
	}

	require.Equal(t, "application/json", *byName["Content-Type"].Equals)
	require.True(t, byName["X-Request-Id"].Exists)
	require.Equal(t, "no-store", *byName["Cache-Control"].Contains)
	require.NotNil(t, byName["X-Version"].Pattern)

	ok, _ := byName["Content-Type"].Eval("application/json", true)
	require.True(t, ok)

	ok, reason := byName["Content-Type"].Eval("text/html", true)
	require.False(t, ok)
	require.Contains(t, reason, "text/html")

	ok, reason = byName["X-Request-Id"].Eval("", false)
	require.False(t, ok)
	require.Contains(t, reason, "exist")
}
