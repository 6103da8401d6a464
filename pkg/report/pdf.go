package report

import (
	"fmt"
	"io"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waftester/greenapi/pkg/finding"
)

// pdfSeverityColors maps severities to badge RGB values.
var pdfSeverityColors = map[finding.Severity][]int{
	finding.Critical: {198, 40, 40},
	finding.High:     {198, 40, 40},
	finding.Medium:   {245, 127, 23},
	finding.Low:      {30, 136, 229},
	finding.Info:     {67, 160, 71},
}

// pdfMaxBodyChars bounds HTTP messages in the PDF, which has no scrolling.
const pdfMaxBodyChars = 4000

type pdfWriter struct {
	pdf   *gofpdf.Fpdf
	tr    func(string) string
	title cases.Caser
}

// WritePDF renders r as an A4 PDF document.
func WritePDF(w io.Writer, r *Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Title, true)
	pdf.SetCreator(r.ToolName+" "+r.ToolVersion, true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	pw := &pdfWriter{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		title: cases.Title(language.English),
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s - page %d/{nb}", pw.tr(r.Title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pw.addCover(r)
	pw.addSummary(r)
	for _, e := range r.Entries {
		pw.addEntry(e)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf report: %w", err)
	}
	return nil
}

func (pw *pdfWriter) addCover(r *Report) {
	pdf := pw.pdf
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 12, pw.tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetDrawColor(255, 102, 51)
	pdf.SetLineWidth(0.6)
	x, y := pdf.GetXY()
	pageW, _ := pdf.GetPageSize()
	pdf.Line(x, y, pageW-15, y)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, pw.tr("Analysis Mode: "+r.AnalysisMode), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, pw.tr(fmt.Sprintf("Generated %s by %s %s",
		r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), r.ToolName, r.ToolVersion)), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (pw *pdfWriter) addSummary(r *Report) {
	pdf := pw.pdf
	pw.addSectionHeader("Summary")

	rows := [][2]string{
		{"Payloads", fmt.Sprint(r.Summary.Total)},
		{"Findings", fmt.Sprint(r.Summary.Detected)},
		{"Execution errors", fmt.Sprint(r.Summary.Errors)},
		{"Distinct responses", fmt.Sprint(r.DistinctResponses)},
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		pdf.CellFormat(50, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, row[1], "1", 1, "R", false, 0, "")
	}
	for _, sc := range r.Severities {
		c := severityRGB(sc.Severity)
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 7, pw.title.String(string(sc.Severity)), "1", 0, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(25, 7, fmt.Sprint(sc.Count), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func (pw *pdfWriter) addSectionHeader(text string) {
	pdf := pw.pdf
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 9, pw.tr(text), "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func (pw *pdfWriter) addEntry(e Entry) {
	pdf := pw.pdf
	_, pageH := pdf.GetPageSize()
	if pdf.GetY() > pageH-60 {
		pdf.AddPage()
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, 8, fmt.Sprintf("Finding #%d", e.Index), "", 1, "L", false, 0, "")

	if e.Detected() {
		v := e.Vulnerability
		c := severityRGB(v.Severity)
		label := pw.tr(fmt.Sprintf("%s (Confidence: %s)", v.Name, v.Confidence))
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(pdf.GetStringWidth(label)+6, 6, label, "", 1, "L", true, 0, "")
	} else {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 6, "None Detected", "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(85, 85, 85)
	mode := e.AnalysisMode
	if mode == "" {
		mode = finding.ModeHeuristic
	}
	pdf.CellFormat(0, 5, pw.tr(fmt.Sprintf("Status %s | %d B | %d ms | %s", e.Status, e.Size, e.DurationMs, mode)), "", 1, "L", false, 0, "")

	if e.Detected() && e.Vulnerability.Explanation != "" {
		pw.addBox("Analysis Details", e.Vulnerability.Explanation, []int{230, 247, 255}, "Helvetica", "I")
	}
	if e.Detected() && e.Vulnerability.Remediation != "" && e.Vulnerability.Remediation != "N/A" {
		pw.addBox("Remediation Advice", e.Vulnerability.Remediation, []int{232, 245, 233}, "Helvetica", "")
	}
	pw.addBox("Injected Payload", e.Payload, []int{243, 232, 255}, "Courier", "")
	pw.addBox("Request", truncate(pdfMaxBodyChars, e.Request), []int{247, 247, 247}, "Courier", "")
	if e.Replay != "" {
		pw.addBox("Replay", truncate(pdfMaxBodyChars, e.Replay), []int{247, 247, 247}, "Courier", "")
	}
	pw.addBox("Response", truncate(pdfMaxBodyChars, e.Response), []int{247, 247, 247}, "Courier", "")

	pdf.Ln(3)
	x, y := pdf.GetXY()
	pageW, _ := pdf.GetPageSize()
	pdf.SetDrawColor(204, 204, 204)
	pdf.SetLineWidth(0.2)
	pdf.Line(x, y, pageW-15, y)
	pdf.Ln(4)
}

func (pw *pdfWriter) addBox(heading, text string, fill []int, family, style string) {
	pdf := pw.pdf
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, 6, pw.tr(heading), "", 1, "L", false, 0, "")

	pdf.SetFont(family, style, 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(fill[0], fill[1], fill[2])
	pdf.MultiCell(0, 4, pw.tr(printable(text)), "", "L", true)
	pdf.Ln(1)
}

func severityRGB(s finding.Severity) []int {
	if c, ok := pdfSeverityColors[s]; ok {
		return c
	}
	return []int{128, 128, 128}
}

// printable replaces tabs and control characters the core fonts cannot draw.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}
