package curl

import (
	"maps"
	"sort"
	"strings"
)

// Marker is the placeholder replaced by each payload.
const Marker = "$PAYLOAD$"

// Request is a structured HTTP request description.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// NewRequest returns a GET request with an empty header set.
func NewRequest() *Request {
	return &Request{Method: "GET", Headers: map[string]string{}}
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = maps.Clone(r.Headers)
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	return &c
}

// HeaderNames returns header names in sorted order.
func (r *Request) HeaderNames() []string {
	names := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// InjectionPoint records where the marker was found in a template.
type InjectionPoint string

const (
	// NoInjectionPoint means the template carries no marker.
	NoInjectionPoint InjectionPoint = ""

	InjectionURL  InjectionPoint = "URL"
	InjectionBody InjectionPoint = "Request Body"
)

// InjectionHeader returns the injection point for the named header.
func InjectionHeader(name string) InjectionPoint {
	return InjectionPoint("Header: " + name)
}

// Found reports whether a marker location was recorded.
func (p InjectionPoint) Found() bool {
	return p != NoInjectionPoint
}

func (p InjectionPoint) String() string {
	return string(p)
}

// locateMarker checks header values in name order, then the body, then
// the URL.
func locateMarker(r *Request) InjectionPoint {
	for _, name := range r.HeaderNames() {
		if strings.Contains(r.Headers[name], Marker) {
			return InjectionHeader(name)
		}
	}
	if strings.Contains(r.Body, Marker) {
		return InjectionBody
	}
	if strings.Contains(r.URL, Marker) {
		return InjectionURL
	}
	return NoInjectionPoint
}

// Substitute replaces every marker occurrence in template with payload.
func Substitute(template, payload string) string {
	return strings.ReplaceAll(template, Marker, payload)
}

// StripMarker removes every marker occurrence from template.
func StripMarker(template string) string {
	return Substitute(template, "")
}

// HasMarker reports whether s contains the marker.
func HasMarker(s string) bool {
	return strings.Contains(s, Marker)
}
