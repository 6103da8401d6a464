package executor

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"syscall"

	"github.com/waftester/greenapi/pkg/httpclient"
)

// Cause codes attached to RequestError.
const (
	CodeConnRefused = "ECONNREFUSED"
	CodeConnReset   = "ECONNRESET"
	CodeNotFound    = "ENOTFOUND"
	CodeTimeout     = "ETIMEDOUT"
	CodeCanceled    = "ECANCELED"
	CodeCertInvalid = "CERT_INVALID"
	CodeTLS         = "TLS_HANDSHAKE"
	CodeProxy       = "EPROXY"
	CodeInvalid     = "EINVALID"
)

// RequestError is a failed execution: the request could not be built, sent,
// or its response read.
type RequestError struct {
	Method string
	URL    string
	Reason string
	Code   string
	Err    error
}

func (e *RequestError) Error() string {
	msg := "executor: " + e.Method + " " + e.URL + ": " + e.Reason
	if e.Code != "" {
		msg += " (cause: " + e.Code + ")"
	}
	return msg
}

// Unwrap exposes the transport error and, when one applies, the matching
// httpclient sentinel.
func (e *RequestError) Unwrap() []error {
	errs := []error{}
	if e.Err != nil {
		errs = append(errs, e.Err)
		if s := httpclient.Classify(e.Err); s != nil {
			errs = append(errs, s)
		}
	}
	return errs
}

// Details is the human readable failure description used by the API.
func (e *RequestError) Details() string {
	code := e.Code
	if code == "" {
		code = "N/A"
	}
	return "Failed to fetch. Reason: " + e.Reason + ". (Underlying cause: " + code + ")"
}

// StatusText is the statusText recorded on a synthesized error response.
func (e *RequestError) StatusText() string {
	code := e.Code
	if code == "" {
		code = "N/A"
	}
	return "Fetch Error: " + e.Reason + " (Cause: " + code + ")"
}

// AsRequestError reports whether err carries a RequestError.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func newRequestError(method, target string, err error) *RequestError {
	return &RequestError{
		Method: method,
		URL:    target,
		Reason: reason(err),
		Code:   causeCode(err),
		Err:    err,
	}
}

// reason strips the url.Error prefix, which repeats method and URL.
func reason(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return err.Error()
}

func causeCode(err error) string {
	switch httpclient.Classify(err) {
	case httpclient.ErrDNS:
		return CodeNotFound
	case httpclient.ErrProxyConnect:
		return CodeProxy
	case httpclient.ErrTLS:
		var (
			unknownAuth x509.UnknownAuthorityError
			hostErr     x509.HostnameError
			invalidErr  x509.CertificateInvalidError
		)
		if errors.As(err, &unknownAuth) || errors.As(err, &hostErr) || errors.As(err, &invalidErr) {
			return CodeCertInvalid
		}
		return CodeTLS
	}

	var ne net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnReset
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	}
	return ""
}
