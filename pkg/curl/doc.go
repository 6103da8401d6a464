// Package curl turns a cURL-style command line into a structured request and
// back.
//
// Only the subset of curl that request templates use is understood:
//
//	-X, --request            method (upper-cased)
//	-H, --header             "Name: value" header
//	-d, --data, --data-raw   request body; promotes GET to POST
//
// The first remaining argument starting with "http" is the URL. Everything
// else is ignored. Arguments are split on whitespace; single- and
// double-quoted spans group text and lose their quotes, and adjacent spans
// concatenate the way a shell would join them. A quote with no closing
// partner is kept as a literal character, so payloads that carry stray
// quotes survive substitution into a quoted template.
package curl
