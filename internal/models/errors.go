package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the failure taxonomy shared by every stage of a scrape.
type ErrorKind string

const (
	ErrKindCaptcha    ErrorKind = "CAPTCHA"
	ErrKindAuthFailed ErrorKind = "AUTH_FAILED"
	ErrKindParse      ErrorKind = "PARSE_ERROR"
	ErrKindRateLimit  ErrorKind = "RATE_LIMIT"
	ErrKindTimeout    ErrorKind = "TIMEOUT"
)

// ScrapeError classifies a failure surfaced during authentication or
// extraction. Every error leaving the core is one of these.
type ScrapeError struct {
	Kind        ErrorKind
	Message     string
	Recoverable bool
	OrderID     string
	cause       error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.cause
}

// NewScrapeError builds a classified error. CAPTCHA and AUTH_FAILED are
// never recoverable; PARSE_ERROR always is.
func NewScrapeError(kind ErrorKind, msg string, cause error) *ScrapeError {
	return &ScrapeError{
		Kind:        kind,
		Message:     msg,
		Recoverable: kind == ErrKindParse,
		cause:       cause,
	}
}

// Stage names the phase of a request an unclassified failure came from.
type Stage int

const (
	StageAuth Stage = iota
	StageExtract
)

// Classify wraps err into a ScrapeError if it is not one already. An
// already-classified error passes through unchanged. Messages mentioning
// a captcha condition fold into CAPTCHA regardless of stage; context
// deadline errors fold into TIMEOUT.
func Classify(stage Stage, err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "captcha"):
		return NewScrapeError(ErrKindCaptcha, msg, err)
	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "context canceled"):
		return NewScrapeError(ErrKindTimeout, msg, err)
	}

	if stage == StageAuth {
		return NewScrapeError(ErrKindAuthFailed, msg, err)
	}
	return NewScrapeError(ErrKindParse, msg, err)
}

// HTTPStatus maps an error kind to the boundary-layer status code.
func (e *ScrapeError) HTTPStatus() int {
	switch e.Kind {
	case ErrKindAuthFailed:
		return 401
	case ErrKindCaptcha:
		return 422
	default:
		return 500
	}
}
