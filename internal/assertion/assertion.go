// Package assertion defines the closed set of declarative value assertions and
// their evaluation against observed SUT values.
package assertion

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Kind is the closed set of assertion variants.
type Kind string

const (
	// KindPresence asserts the value exists and is non-empty.
	KindPresence Kind = "presence"
	// KindEquals asserts exact, type-aware equality.
	KindEquals Kind = "equals"
	// KindOneOf asserts membership in a declared set.
	KindOneOf Kind = "one_of"
	// KindRange asserts a numeric value within inclusive bounds.
	KindRange Kind = "range"
	// KindRegex asserts an unanchored pattern match on the string form.
	KindRegex Kind = "regex"
)

// Spec is the raw declared shape of one assertion, as parsed from YAML by the
// contract loader. Parse validates it into an Assertion at spec-load time.
type Spec struct {
	Type     string   `yaml:"type"`
	Path     string   `yaml:"path"`
	Expected any      `yaml:"expected"`
	AnyOf    []any    `yaml:"any_of"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	Pattern  string   `yaml:"pattern"`
}

// Assertion is a validated, immutable assertion bound to a response JSON path.
type Assertion struct {
	Kind Kind
	Path string

	expected any
	oneOf    []any
	min, max *float64
	pattern  *regexp.Regexp
}

var errPathRequired = errors.New("assertion requires a non-empty path")

// Parse validates a declared assertion. The expected payload shape is
// determined solely by the type; an inconsistent payload is a configuration
// error here, never a check failure later.
func Parse(s Spec) (*Assertion, error) {
	kind, err := parseKind(s.Type)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(s.Path) == "" {
		return nil, fmt.Errorf("%s: %w", kind, errPathRequired)
	}

	a := &Assertion{Kind: kind, Path: s.Path}

	switch kind {
	case KindPresence:

	case KindEquals:
		if s.Expected == nil {
			return nil, fmt.Errorf("equals assertion on %q requires 'expected'", s.Path)
		}
		a.expected = s.Expected

	case KindOneOf:
		if len(s.AnyOf) == 0 {
			return nil, fmt.Errorf("one_of assertion on %q requires non-empty 'any_of'", s.Path)
		}
		a.oneOf = s.AnyOf

	case KindRange:
		if s.Min == nil && s.Max == nil {
			return nil, fmt.Errorf("range assertion on %q requires 'min' or 'max'", s.Path)
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return nil, fmt.Errorf("range assertion on %q: min %v > max %v", s.Path, *s.Min, *s.Max)
		}
		a.min, a.max = s.Min, s.Max

	case KindRegex:
		if s.Pattern == "" {
			return nil, fmt.Errorf("regex assertion on %q requires 'pattern'", s.Path)
		}
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("regex assertion on %q: invalid pattern: %w", s.Path, err)
		}
		a.pattern = re
	}

	return a, nil
}

// parseKind accepts both the short names and the historical json_path_* names.
func parseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "presence", "exists", "json_path_exists":
		return KindPresence, nil
	case "equals", "json_path_equals":
		return KindEquals, nil
	case "one_of", "json_path_one_of":
		return KindOneOf, nil
	case "range", "json_path_range":
		return KindRange, nil
	case "regex", "json_path_regex":
		return KindRegex, nil
	default:
		return "", fmt.Errorf("unknown assertion type: %q", raw)
	}
}

// Evaluate checks the observed value and returns pass/fail with a reason that
// cites the concrete observed and expected values, even on success.
func (a *Assertion) Evaluate(observed any) (bool, string) {
	switch a.Kind {
	case KindPresence:
		return evalPresence(a.Path, observed)
	case KindEquals:
		if valuesEqual(observed, a.expected) {
			return true, fmt.Sprintf("%s == %v", a.Path, a.expected)
		}
		return false, fmt.Sprintf("expected %s == %v, got %v", a.Path, a.expected, observed)
	case KindOneOf:
		for _, opt := range a.oneOf {
			if valuesEqual(observed, opt) {
				return true, fmt.Sprintf("%s value %v in %v", a.Path, observed, a.oneOf)
			}
		}
		return false, fmt.Sprintf("expected %s in %v, got %v", a.Path, a.oneOf, observed)
	case KindRange:
		return a.evalRange(observed)
	case KindRegex:
		s := fmt.Sprint(observed)
		if a.pattern.MatchString(s) {
			return true, fmt.Sprintf("%s value %q matches /%s/", a.Path, s, a.pattern)
		}
		return false, fmt.Sprintf("expected %s to match /%s/, got %q", a.Path, a.pattern, s)
	default:
		return false, fmt.Sprintf("unknown assertion kind %q", a.Kind)
	}
}

func evalPresence(path string, observed any) (bool, string) {
	if observed == nil {
		return false, fmt.Sprintf("expected %s to be present, got nothing", path)
	}

	switch v := observed.(type) {
	case string:
		if v == "" {
			return false, fmt.Sprintf("expected %s to be non-empty, got empty string", path)
		}
	default:
		rv := reflect.ValueOf(observed)
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 0 {
			return false, fmt.Sprintf("expected %s to be non-empty, got empty %s", path, rv.Kind())
		}
	}

	// The zero number and false are real values, not absence.
	return true, fmt.Sprintf("%s present with value %v", path, observed)
}

func (a *Assertion) evalRange(observed any) (bool, string) {
	n, ok := toFloat64(observed)
	if !ok {
		return false, fmt.Sprintf("expected %s to be numeric, got %T (%v)", a.Path, observed, observed)
	}

	if a.min != nil && n < *a.min {
		return false, fmt.Sprintf("expected %s >= %v, got %v", a.Path, *a.min, n)
	}
	if a.max != nil && n > *a.max {
		return false, fmt.Sprintf("expected %s <= %v, got %v", a.Path, *a.max, n)
	}

	return true, fmt.Sprintf("%s value %v within [%s, %s]", a.Path, n, boundString(a.min), boundString(a.max))
}

func boundString(b *float64) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%v", *b)
}

// valuesEqual is exact and type-aware: numeric kinds compare numerically, but
// there is no numeric-string coercion ("250" never equals 250).
func valuesEqual(a, b any) bool {
	an, aNum := toFloat64(a)
	bn, bNum := toFloat64(b)

	if aNum && bNum {
		return an == bn
	}
	if aNum != bNum {
		return false
	}

	return reflect.DeepEqual(a, b)
}

func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
