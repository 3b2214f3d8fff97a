package types

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies why a relay request did not end in a dispatched transaction.
type ErrorKind string

const (
	InvalidRequest          ErrorKind = "InvalidRequest"
	MalformedTransaction    ErrorKind = "MalformedTransaction"
	UnprofitableClaim       ErrorKind = "UnprofitableClaim"
	SimulationFailed        ErrorKind = "SimulationFailed"
	SimulationUnavailable   ErrorKind = "SimulationUnavailable"
	FeeEstimateUnavailable  ErrorKind = "FeeEstimateUnavailable"
	TamperedOrAlreadySigned ErrorKind = "TamperedOrAlreadySigned"
	SubmissionFailed        ErrorKind = "SubmissionFailed"
	RateLimited             ErrorKind = "RateLimited"
)

// CallerFault reports whether the kind is attributable to the submitted request
// rather than to the relayer or its upstreams.
func (k ErrorKind) CallerFault() bool {
	switch k {
	case InvalidRequest, MalformedTransaction, UnprofitableClaim, SimulationFailed, RateLimited:
		return true
	}
	return false
}

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case InvalidRequest, MalformedTransaction, UnprofitableClaim, SimulationFailed:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case SimulationUnavailable, FeeEstimateUnavailable:
		return http.StatusServiceUnavailable
	case SubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ResponseStatus is "rejected" for caller-attributable kinds and "error" otherwise.
func (k ErrorKind) ResponseStatus() string {
	if k.CallerFault() {
		return StatusRejected
	}
	return StatusError
}

// Verdict is the outcome of an admission stage: the zero value accepts,
// Reject carries the kind and a human-readable reason.
type Verdict struct {
	Kind   ErrorKind
	Reason string
}

func Accept() Verdict {
	return Verdict{}
}

func Reject(kind ErrorKind, format string, args ...any) Verdict {
	return Verdict{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (v Verdict) Accepted() bool {
	return v.Kind == ""
}

// RelayError is returned by the admission core for every non-success outcome.
type RelayError struct {
	Kind   ErrorKind
	Reason string
	Err    error // underlying infrastructure fault, nil for business rejections

	// SignedTransaction is set only for SubmissionFailed, so the caller can
	// resubmit the already signed artifact through another channel.
	SignedTransaction []byte
}

func NewRelayError(kind ErrorKind, reason string, err error) *RelayError {
	return &RelayError{Kind: kind, Reason: reason, Err: err}
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}
