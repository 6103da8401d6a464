package curl

import "strings"

// Build renders r as a curl command that ParseCommand maps back to r.
// Headers are emitted in name order. See quote for the values that cannot
// round-trip.
func Build(r *Request) string {
	if r == nil || r.URL == "" {
		return ""
	}
	method := r.Method
	if method == "" {
		method = "GET"
	}

	var b strings.Builder
	b.WriteString("curl")
	// -d promotes GET to POST, so a GET with a body must set -X last.
	bodyFirst := r.Body != "" && method == "GET"
	if bodyFirst {
		b.WriteString(" -d ")
		b.WriteString(quote(r.Body))
	}
	b.WriteString(" -X ")
	b.WriteString(quote(method))
	b.WriteString(" ")
	b.WriteString(quote(r.URL))
	for _, name := range r.HeaderNames() {
		b.WriteString(" -H ")
		b.WriteString(quote(name + ": " + r.Headers[name]))
	}
	if r.Body != "" && !bodyFirst {
		b.WriteString(" -d ")
		b.WriteString(quote(r.Body))
	}
	return b.String()
}

// quote wraps s in single quotes, or in double quotes when only those keep
// s in one word. A value mixing both quote characters with whitespace may
// have no quoting that survives, in which case single quotes are used.
func quote(s string) string {
	for _, q := range []string{"'", `"`} {
		quoted := q + s + q
		if words := tokenize(quoted); len(words) == 1 && unquote(words[0]) == s {
			return quoted
		}
	}
	return "'" + s + "'"
}
