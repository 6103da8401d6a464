package curl

import "errors"

// ErrParse is the sentinel wrapped by every ParseError.
var ErrParse = errors.New("curl: parse failed")

const msgNoURL = "could not parse a valid HTTP/HTTPS URL from the cURL command"

// ParseError reports a command that cannot be turned into a request.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return "curl: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}
