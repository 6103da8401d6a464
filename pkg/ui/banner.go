package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/waftester/greenapi/pkg/defaults"
)

const bannerArt = `
  __ _ _ __ ___  ___ _ __   __ _ _ __ (_)
 / _' | '__/ _ \/ _ \ '_ \ / _' | '_ \| |
| (_| | | |  __/  __/ | | | (_| | |_) | |
 \__, |_|  \___|\___|_| |_|\__,_| .__/|_|
 |___/                          |_|
`

const divider = "________________________________________________"

// PrintBanner writes the application banner with version info.
func PrintBanner(w io.Writer) {
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                 v%s\n\n", VersionStyle.Render(defaults.Version))
}

// Manifest is the ordered list of run parameters shown before a run.
type Manifest struct {
	items [][2]string
}

// Add appends a label and value. Empty values are skipped.
func (m *Manifest) Add(label, value string) *Manifest {
	if value != "" {
		m.items = append(m.items, [2]string{label, value})
	}
	return m
}

// Print writes the manifest in " :: Label : Value" form.
func (m *Manifest) Print(w io.Writer) {
	width := 0
	for _, it := range m.items {
		width = max(width, len(it[0]))
	}
	for _, it := range m.items {
		pad := strings.Repeat(" ", width-len(it[0]))
		fmt.Fprintf(w, " :: %s%s : %s\n", LabelStyle.Render(it[0]), pad, ValueStyle.Render(it[1]))
	}
	fmt.Fprintf(w, "%s\n\n", DividerStyle.Render(divider))
}

// PrintSection writes a section header.
func PrintSection(w io.Writer, title string) {
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
	fmt.Fprintln(w, DividerStyle.Render(strings.Repeat("-", 75)))
}

// PrintError writes an error line.
func PrintError(w io.Writer, message string) {
	fmt.Fprintln(w, DetectedStyle.Render("[ERR]")+" "+message)
}

// PrintWarning writes a warning line.
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintln(w, ErrorStyle.Render("[WRN]")+" "+message)
}

// PrintSuccess writes a success line.
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintln(w, CleanStyle.Render("[OK]")+" "+message)
}
