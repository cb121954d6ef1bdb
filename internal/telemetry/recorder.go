// Package telemetry observes every outbound HTTP call made against the SUT and
// keeps a run-scoped, append-only log of redacted call records.
package telemetry

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CallRecord captures one outbound HTTP call, success or failure.
// URLs are redacted before the record is appended; records are never mutated
// after append.
type CallRecord struct {
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode *int      `json:"status_code"`
	OK         bool      `json:"ok"`
	ElapsedMS  float64   `json:"elapsed_ms"`
	Error      *string   `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// TLSError reports a certificate verification failure. It is never folded into
// a generic transport error so callers cannot silently downgrade it.
type TLSError struct {
	URL string
	Err error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("tls verification failed for %s: %v", e.URL, e.Err)
}

func (e *TLSError) Unwrap() error { return e.Err }

// TransportError reports a network-level failure (connect, timeout, reset)
// where no usable response was received.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Recorder wraps an http.Client so that every call is measured, classified and
// appended to the run log. A single run is strictly sequential, but the mutex
// keeps append order and record integrity if a caller ever parallelizes.
type Recorder struct {
	client   *http.Client
	redactor *Redactor
	log      logrus.FieldLogger

	mu    sync.Mutex
	calls []CallRecord
}

// NewRecorder creates a recorder around the given client and redactor.
func NewRecorder(log logrus.FieldLogger, client *http.Client, redactor *Redactor) *Recorder {
	if client == nil {
		client = http.DefaultClient
	}
	if redactor == nil {
		redactor = NewRedactor()
	}

	return &Recorder{
		client:   client,
		redactor: redactor,
		log:      log.WithField("component", "call_recorder"),
	}
}

// Do executes the request, records it, and returns the response or a
// classified error. The record is appended even when the call fails; partial
// failures must stay observable.
func (r *Recorder) Do(req *http.Request) (*http.Response, error) {
	var (
		start   = time.Now()
		safeURL = r.redactor.RedactURL(req.URL.String())
	)

	resp, err := r.client.Do(req)

	record := CallRecord{
		Method:    req.Method,
		URL:       safeURL,
		ElapsedMS: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp: start.UTC(),
	}

	if err != nil {
		err = classify(req.URL.String(), err)
		msg := RedactText(err.Error())
		record.Error = &msg
	} else {
		sc := resp.StatusCode
		record.StatusCode = &sc
		record.OK = sc >= 200 && sc < 400
	}

	r.append(record)

	r.log.WithFields(logrus.Fields{
		"method":     record.Method,
		"url":        record.URL,
		"status":     statusForLog(record.StatusCode),
		"elapsed_ms": record.ElapsedMS,
	}).Debug("recorded call")

	return resp, err
}

func (r *Recorder) append(record CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, record)
}

// Calls returns a snapshot of the run log in append order.
func (r *Recorder) Calls() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallRecord, len(r.calls))
	copy(out, r.calls)

	return out
}

// Redactor exposes the redactor so report writers reuse the same key set.
func (r *Recorder) Redactor() *Redactor { return r.redactor }

func statusForLog(sc *int) any {
	if sc == nil {
		return "none"
	}
	return *sc
}

// classify distinguishes certificate verification failures from other
// transport errors. TLS failures must always surface as TLSError.
func classify(url string, err error) error {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		certInvalid      x509.CertificateInvalidError
		verifyErr        *tls.CertificateVerificationError
	)

	if errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) {
		return &TLSError{URL: url, Err: err}
	}

	return &TransportError{URL: url, Err: err}
}
