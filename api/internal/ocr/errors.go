package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// Kind is the closed set of extraction failures.
type Kind int

const (
	KindNone Kind = iota
	KindHTTPStatus
	KindConnection
	KindTimeout
	KindRequest
	KindMalformed
	KindEmpty
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindHTTPStatus:
		return "http_status"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRequest:
		return "request"
	case KindMalformed:
		return "malformed_response"
	case KindEmpty:
		return "empty_response"
	default:
		return "unexpected"
	}
}

// Error is returned by engines for every failed extraction.
type Error struct {
	Kind       Kind
	StatusCode int    // KindHTTPStatus only
	Body       string // response body when one was read
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP error occurred: %d %s - Response: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	case KindConnection:
		return fmt.Sprintf("Connection error occurred: %v", e.Err)
	case KindTimeout:
		return fmt.Sprintf("Timeout error occurred: %v", e.Err)
	case KindRequest:
		return fmt.Sprintf("An error occurred during the API request: %v", e.Err)
	case KindMalformed:
		return fmt.Sprintf("Malformed API response: %v - Response: %s", e.Err, e.Body)
	case KindEmpty:
		return fmt.Sprintf("No text found or unexpected API response structure: %s", e.Body)
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the failure kind of err; KindNone for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnexpected
}

// Classify maps a transport-level error to an *Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &Error{Kind: KindConnection, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindRequest, Err: err}
	}
	return &Error{Kind: KindUnexpected, Err: err}
}

// Render turns an extraction outcome into display text: the model's text on
// success, the formatted diagnostic otherwise.
func Render(res Result, err error) string {
	if err == nil {
		return res.Text
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Error()
	}
	return (&Error{Kind: KindUnexpected, Err: err}).Error()
}

// ExtractText runs one extraction and always returns a string. Failures,
// including panics inside the engine, come back as diagnostic text.
func ExtractText(ctx context.Context, eng Engine, imageB64, prompt string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = (&Error{Kind: KindUnexpected, Err: fmt.Errorf("%v", r)}).Error()
		}
	}()
	if eng == nil {
		return (&Error{Kind: KindUnexpected, Err: errors.New("no engine configured")}).Error()
	}
	res, err := eng.Extract(ctx, Request{ImageB64: imageB64, Prompt: prompt})
	return Render(res, err)
}
