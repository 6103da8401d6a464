package executor

import (
	"strconv"
	"strings"

	"github.com/waftester/greenapi/pkg/jsonutil"
)

// Status is an HTTP status code, or StatusError when no response exists.
// It encodes as a JSON number, except StatusError which encodes as "Error".
type Status int

// StatusError marks a response synthesized from a transport failure.
const StatusError Status = -1

// IsError reports whether s is the error sentinel.
func (s Status) IsError() bool {
	return s == StatusError
}

func (s Status) String() string {
	if s.IsError() {
		return "Error"
	}
	return strconv.Itoa(int(s))
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	if s.IsError() {
		return []byte(`"Error"`), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON accepts a number or the string "Error".
func (s *Status) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := jsonutil.Unmarshal(data, &v); err != nil {
			return err
		}
		if !strings.EqualFold(v, "Error") {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*s = Status(n)
			return nil
		}
		*s = StatusError
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*s = Status(n)
	return nil
}

// Response is a normalized HTTP response. Header names are lower-case;
// repeated headers are joined with ", ".
type Response struct {
	Status     Status            `json:"status"`
	StatusText string            `json:"statusText"`
	Duration   int64             `json:"duration"` // milliseconds
	Size       int               `json:"size"`     // body bytes
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Header returns the value of the named header, case-insensitively.
func (r *Response) Header(name string) string {
	v, _ := r.LookupHeader(name)
	return v
}

// LookupHeader is like Header but also reports whether the header exists.
func (r *Response) LookupHeader(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	if v, ok := r.Headers[strings.ToLower(name)]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ContentType returns the content-type header.
func (r *Response) ContentType() string {
	return r.Header("content-type")
}

// ErrorResponse synthesizes the response recorded for a failed execution.
func ErrorResponse(err error) *Response {
	text := "Fetch Error: " + err.Error()
	if re, ok := AsRequestError(err); ok {
		text = re.StatusText()
	}
	return &Response{
		Status:     StatusError,
		StatusText: text,
		Headers:    map[string]string{},
	}
}
