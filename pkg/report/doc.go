// Package report renders suite results as standalone documents.
//
// # Report model (report.go)
//
// Report and Entry hold a result set prepared for presentation: the
// analysis mode, verdict counts by severity, the number of distinct
// response bodies, and each exchange formatted as raw HTTP messages.
//
// # HTML (html.go)
//
// WriteHTML renders a single self-contained page with inline styles from
// an embedded html/template, extended with the sprig function map.
//
// # PDF (pdf.go)
//
// WritePDF lays the same content out with go-pdf/fpdf using the core fonts.
package report
