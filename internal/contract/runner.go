package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eyesight-qa/apiverify/internal/auth"
	"github.com/eyesight-qa/apiverify/internal/jsonpath"
	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

// Status is the per-check state machine. A check moves
// Pending -> Executing -> one of {Passed, Failed, Errored}.
type Status string

const (
	// StatusPending means the check has not started.
	StatusPending Status = "pending"
	// StatusExecuting means the request is in flight or being validated.
	StatusExecuting Status = "executing"
	// StatusPassed means the SUT satisfied the contract.
	StatusPassed Status = "passed"
	// StatusFailed means the SUT responded but violated the contract.
	StatusFailed Status = "failed"
	// StatusErrored means the check could not be completed (transport, TLS, auth).
	StatusErrored Status = "errored"
)

// CheckResult is the immutable outcome of one check.
type CheckResult struct {
	ID       string                `json:"id"`
	Status   Status                `json:"status"`
	Passed   bool                  `json:"passed"`
	Reason   string                `json:"reason"`
	Observed map[string]any        `json:"observed,omitempty"`
	Record   *telemetry.CallRecord `json:"call_record,omitempty"`
}

// RunResult aggregates an ordered run of checks.
type RunResult struct {
	Checks   []CheckResult `json:"checks"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Errored  int           `json:"errored"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether every check passed.
func (r *RunResult) OK() bool { return r.Failed == 0 && r.Errored == 0 }

// Config holds the runner's request-building settings.
type Config struct {
	BaseURL string
}

// Runner executes contract checks sequentially, in declared order, with a
// continue-on-failure policy. One check's failure never aborts the rest.
type Runner struct {
	cfg      Config
	authCfg  auth.Config
	recorder *telemetry.Recorder
	log      logrus.FieldLogger

	resolvers map[string]*auth.Resolver
}

// NewRunner creates a contract runner. The recorder supplies the HTTP client,
// timeout and TLS behavior, and observes every call.
func NewRunner(log logrus.FieldLogger, cfg Config, authCfg auth.Config, recorder *telemetry.Recorder) *Runner {
	return &Runner{
		cfg:       cfg,
		authCfg:   authCfg,
		recorder:  recorder,
		log:       log.WithField("component", "contract_runner"),
		resolvers: make(map[string]*auth.Resolver),
	}
}

// Run executes all checks in the spec. It returns an error only for
// runner-level misconfiguration; individual check failures and errors are
// aggregated into the result.
func (r *Runner) Run(ctx context.Context, spec *Spec) (*RunResult, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil contract spec")
	}
	if strings.TrimSpace(r.cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	start := time.Now()
	result := &RunResult{Checks: make([]CheckResult, 0, len(spec.Checks))}

	for _, check := range spec.Checks {
		res := r.runCheck(ctx, check)

		switch res.Status {
		case StatusPassed:
			result.Passed++
		case StatusFailed:
			result.Failed++
		case StatusErrored:
			result.Errored++
		}

		r.log.WithFields(logrus.Fields{
			"check":  res.ID,
			"status": res.Status,
		}).Info("check finished")

		result.Checks = append(result.Checks, res)
	}

	result.Duration = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"total":    len(result.Checks),
		"passed":   result.Passed,
		"failed":   result.Failed,
		"errored":  result.Errored,
		"duration": result.Duration,
	}).Info("contract run complete")

	return result, nil
}

func (r *Runner) runCheck(ctx context.Context, check *Check) CheckResult {
	res := CheckResult{ID: check.ID, Status: StatusPending}

	res.Status = StatusExecuting
	r.log.WithField("check", check.ID).Debug("executing check")

	cred, err := r.resolverFor(check.AuthOverride).Resolve(ctx)
	if err != nil {
		return errored(res, fmt.Sprintf("auth resolution failed: %v", telemetry.RedactText(err.Error())))
	}

	req, err := r.buildRequest(ctx, check, cred)
	if err != nil {
		return errored(res, fmt.Sprintf("building request: %v", err))
	}

	before := len(r.recorder.Calls())

	resp, err := r.recorder.Do(req)

	if calls := r.recorder.Calls(); len(calls) > before {
		record := calls[len(calls)-1]
		res.Record = &record
	}

	if err != nil {
		return errored(res, telemetry.RedactText(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errored(res, fmt.Sprintf("reading response body: %v", err))
	}

	return r.validate(check, resp, body, res)
}

// validate applies status, header, schema and logic validation in order.
// Any violation marks the check Failed; only transport-level problems are
// Errored, and those never reach here.
func (r *Runner) validate(check *Check, resp *http.Response, body []byte, res CheckResult) CheckResult {
	if resp.StatusCode != check.ExpectedStatus {
		return failed(res, fmt.Sprintf("%s %s: expected status %d, got %d",
			check.Method, check.Path, check.ExpectedStatus, resp.StatusCode))
	}

	for _, rule := range check.HeaderRules {
		actual := resp.Header.Get(rule.Name)
		present := len(resp.Header.Values(rule.Name)) > 0
		if ok, reason := rule.Eval(actual, present); !ok {
			return failed(res, reason)
		}
	}

	var payload any
	if check.Schema != nil || len(check.Assertions) > 0 {
		if len(body) == 0 {
			return failed(res, fmt.Sprintf("%s %s: expected a JSON body, got an empty response", check.Method, check.Path))
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return failed(res, fmt.Sprintf("%s %s: response is not valid JSON: %v", check.Method, check.Path, err))
		}
	}

	if check.Schema != nil {
		if err := check.Schema.Validate(payload); err != nil {
			return failed(res, fmt.Sprintf("schema %s violated: %v", check.SchemaPath, err))
		}
	}

	if len(check.Assertions) > 0 {
		return r.applyAssertions(check, payload, res)
	}

	res.Status = StatusPassed
	res.Passed = true
	res.Reason = fmt.Sprintf("%s %s: status %d as expected", check.Method, check.Path, resp.StatusCode)

	return res
}

// applyAssertions evaluates every logic assertion and aggregates all reasons;
// a single sub-assertion failure fails the check but evaluation continues so
// the reason is complete.
func (r *Runner) applyAssertions(check *Check, payload any, res CheckResult) CheckResult {
	var (
		reasons  = make([]string, 0, len(check.Assertions))
		observed = make(map[string]any, len(check.Assertions))
		allPass  = true
	)

	for _, a := range check.Assertions {
		value, err := jsonpath.Get(payload, a.Path)
		if err != nil {
			value = nil
			observed[a.Path] = nil
		} else {
			observed[a.Path] = value
		}

		passed, reason := a.Evaluate(value)
		if !passed {
			allPass = false
		}
		reasons = append(reasons, reason)
	}

	res.Observed = observed
	res.Reason = strings.Join(reasons, "; ")

	if allPass {
		res.Status = StatusPassed
		res.Passed = true
	} else {
		res.Status = StatusFailed
	}

	return res
}

func (r *Runner) buildRequest(ctx context.Context, check *Check, cred auth.Credential) (*http.Request, error) {
	url := check.Path
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = strings.TrimRight(r.cfg.BaseURL, "/") + "/" + strings.TrimLeft(check.Path, "/")
	}
	url = cred.ApplyURL(url)

	var body io.Reader
	if check.Body != "" {
		body = strings.NewReader(check.Body)
	}

	req, err := http.NewRequestWithContext(ctx, check.Method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header = cred.ApplyHeaders(http.Header{"Accept": []string{"application/json"}})
	if check.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range check.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// resolverFor returns the resolver for a check's auth override, or the
// adapter-level default. Resolvers are cached per mode so an oauth2 token is
// acquired at most once per run, overrides included.
func (r *Runner) resolverFor(override *auth.Mode) *auth.Resolver {
	mode := r.authCfg.Mode
	key := "default"
	if override != nil && (*override != r.authCfg.Mode || *override == auth.ModeNone) {
		mode = *override
		key = "override:" + string(mode)
	}

	if resolver, ok := r.resolvers[key]; ok {
		return resolver
	}

	cfg := r.authCfg.WithMode(mode)
	if override != nil && mode == auth.ModeNone {
		// An explicit "none" override really means no credentials, including
		// the legacy flat token.
		cfg.LegacyToken = ""
	}

	resolver := auth.NewResolver(r.log, cfg)
	r.resolvers[key] = resolver

	return resolver
}

func failed(res CheckResult, reason string) CheckResult {
	res.Status = StatusFailed
	res.Reason = reason
	return res
}

func errored(res CheckResult, reason string) CheckResult {
	res.Status = StatusErrored
	res.Reason = reason
	return res
}
