// Package contract loads declarative API contract specs and runs their checks
// against a live SUT.
package contract

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/eyesight-qa/apiverify/internal/assertion"
	"github.com/eyesight-qa/apiverify/internal/auth"
)

// rawSpec mirrors the YAML document shape before validation.
type rawSpec struct {
	Checks []rawCheck `yaml:"checks"`
}

type rawCheck struct {
	ID              string               `yaml:"id"`
	Method          string               `yaml:"method"`
	Path            string               `yaml:"path"`
	Body            string               `yaml:"body"`
	Headers         map[string]string    `yaml:"headers"`
	Auth            string               `yaml:"auth"`
	ExpectedStatus  int                  `yaml:"expected_status"`
	ExpectedHeaders map[string]yaml.Node `yaml:"expected_headers"`
	Schema          string               `yaml:"schema"`
	Assert          []assertion.Spec     `yaml:"assert"`
}

// Check is one validated contract check. Everything dynamic in the YAML has
// been resolved: assertions parsed, schema compiled, header rules built.
// Malformed declarations fail at load, never at execution.
type Check struct {
	ID             string
	Method         string
	Path           string
	Body           string
	Headers        map[string]string
	AuthOverride   *auth.Mode
	ExpectedStatus int
	HeaderRules    []HeaderRule
	Schema         *jsonschema.Schema
	SchemaPath     string
	Assertions     []*assertion.Assertion
}

// Spec is an ordered sequence of validated checks.
type Spec struct {
	Checks []*Check
}

// HeaderRule is one expectation on a response header. Zero or more of the
// optional expectations apply; Exists is implied by all of them.
type HeaderRule struct {
	Name     string
	Exists   bool
	Equals   *string
	Contains *string
	Pattern  *regexp.Regexp
}

// Load reads and validates a contract spec file. Any structural problem is a
// configuration error that fails the whole run before any check executes.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading contract spec: %w", err)
	}

	return Parse(data, path)
}

// Parse validates an already-read contract document. Relative schema
// references resolve against the spec file's directory.
func Parse(data []byte, specPath string) (*Spec, error) {
	var raw rawSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing contract spec %s: %w", specPath, err)
	}

	baseDir := filepath.Dir(specPath)
	spec := &Spec{Checks: make([]*Check, 0, len(raw.Checks))}

	for i, rc := range raw.Checks {
		check, err := buildCheck(rc, i, baseDir)
		if err != nil {
			return nil, fmt.Errorf("contract spec %s: check[%d]: %w", specPath, i, err)
		}
		spec.Checks = append(spec.Checks, check)
	}

	return spec, nil
}

func buildCheck(rc rawCheck, index int, baseDir string) (*Check, error) {
	path := strings.TrimSpace(expandEnv(rc.Path))
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	method := strings.ToUpper(strings.TrimSpace(rc.Method))
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(rc.Headers))
	for name, value := range rc.Headers {
		headers[name] = expandEnv(value)
	}

	check := &Check{
		ID:             strings.TrimSpace(rc.ID),
		Method:         method,
		Path:           path,
		Body:           rc.Body,
		Headers:        headers,
		ExpectedStatus: rc.ExpectedStatus,
	}

	if check.ID == "" {
		check.ID = fmt.Sprintf("check-%02d %s %s", index+1, method, path)
	}

	if check.ExpectedStatus == 0 {
		check.ExpectedStatus = http.StatusOK
	}

	if override := strings.TrimSpace(rc.Auth); override != "" && !strings.EqualFold(override, "default") {
		mode, err := auth.ParseMode(override)
		if err != nil {
			return nil, fmt.Errorf("auth override: %w", err)
		}
		check.AuthOverride = &mode
	}

	if rc.Schema != "" {
		schemaPath := rc.Schema
		if !filepath.IsAbs(schemaPath) && baseDir != "" {
			schemaPath = filepath.Join(baseDir, schemaPath)
		}

		schema, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", rc.Schema, err)
		}
		check.Schema = schema
		check.SchemaPath = schemaPath
	}

	for name, node := range rc.ExpectedHeaders {
		rule, err := parseHeaderRule(name, node)
		if err != nil {
			return nil, fmt.Errorf("expected_headers[%s]: %w", name, err)
		}
		check.HeaderRules = append(check.HeaderRules, rule)
	}
	sortHeaderRules(check.HeaderRules)

	for j, as := range rc.Assert {
		a, err := assertion.Parse(as)
		if err != nil {
			return nil, fmt.Errorf("assert[%d]: %w", j, err)
		}
		check.Assertions = append(check.Assertions, a)
	}

	return check, nil
}

// parseHeaderRule accepts the three declared shapes: a bare string (equals),
// a bare true (exists), or a mapping with exists/equals/contains/regex.
func parseHeaderRule(name string, node yaml.Node) (HeaderRule, error) {
	rule := HeaderRule{Name: name, Exists: true}

	switch node.Kind {
	case yaml.ScalarNode:
		var b bool
		if err := node.Decode(&b); err == nil {
			if !b {
				return HeaderRule{}, fmt.Errorf("rule 'false' is not supported")
			}
			return rule, nil
		}

		var s string
		if err := node.Decode(&s); err != nil {
			return HeaderRule{}, fmt.Errorf("unsupported scalar rule: %w", err)
		}
		rule.Equals = &s
		return rule, nil

	case yaml.MappingNode:
		var m struct {
			Exists   *bool   `yaml:"exists"`
			Equals   *string `yaml:"equals"`
			Contains *string `yaml:"contains"`
			Regex    *string `yaml:"regex"`
		}
		if err := node.Decode(&m); err != nil {
			return HeaderRule{}, fmt.Errorf("unsupported mapping rule: %w", err)
		}

		rule.Equals = m.Equals
		rule.Contains = m.Contains
		if m.Regex != nil {
			re, err := regexp.Compile(*m.Regex)
			if err != nil {
				return HeaderRule{}, fmt.Errorf("invalid regex: %w", err)
			}
			rule.Pattern = re
		}

		if m.Exists == nil && m.Equals == nil && m.Contains == nil && m.Regex == nil {
			return HeaderRule{}, fmt.Errorf("empty rule")
		}
		return rule, nil

	default:
		return HeaderRule{}, fmt.Errorf("unsupported rule shape")
	}
}

// expandEnv substitutes ${VAR} references. Only the braced form is honored so
// bare dollars in regex patterns and bodies survive untouched.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			if j := strings.IndexByte(s[i:], '}'); j > 0 {
				b.WriteString(os.Getenv(s[i+2 : i+j]))
				i += j + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}

	return b.String()
}

func sortHeaderRules(rules []HeaderRule) {
	// Map iteration order is random; keep rule evaluation (and reasons) stable.
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j].Name < rules[j-1].Name; j-- {
			rules[j], rules[j-1] = rules[j-1], rules[j]
		}
	}
}

// Eval checks the rule against an actual header value ("" means absent).
func (r HeaderRule) Eval(actual string, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("expected header %q to exist", r.Name)
	}

	if r.Equals != nil && actual != *r.Equals {
		return false, fmt.Sprintf("expected header %q == %q, got %q", r.Name, *r.Equals, actual)
	}
	if r.Contains != nil && !strings.Contains(actual, *r.Contains) {
		return false, fmt.Sprintf("expected header %q to contain %q, got %q", r.Name, *r.Contains, actual)
	}
	if r.Pattern != nil && !r.Pattern.MatchString(actual) {
		return false, fmt.Sprintf("expected header %q to match /%s/, got %q", r.Name, r.Pattern, actual)
	}

	return true, fmt.Sprintf("header %q ok (%q)", r.Name, actual)
}
