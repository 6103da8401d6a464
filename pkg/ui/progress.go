package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/finding"
)

// Progress renders run progress. On a terminal it redraws one status line;
// otherwise it writes one line per payload. It implements core.Observer and
// is safe for concurrent use.
type Progress struct {
	w           io.Writer
	interactive bool
	unicode     bool
	width       int

	mu       sync.Mutex
	start    time.Time
	done     int
	total    int
	detected int
	errored  int
	drawn    bool
}

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{
		w:           w,
		interactive: IsTerminal(w),
		unicode:     UnicodeTerminal(w),
		width:       30,
		start:       time.Now(),
	}
}

// OnState implements core.Observer.
func (p *Progress) OnState(_ string, state core.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch state {
	case core.StateBaselineExecuting:
		p.start = time.Now()
		if !p.interactive {
			fmt.Fprintln(p.w, LabelStyle.Render("sending baseline request"))
		}
	case core.StateBaselineFailed:
		p.finishLine()
	case core.StateDone:
		p.finishLine()
	}
}

// OnResult implements core.Observer.
func (p *Progress) OnResult(_ string, index, total int, r *core.TestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = index + 1
	p.total = total
	switch {
	case r.Vulnerability.Name == finding.NameExecutionError:
		p.errored++
	case r.Vulnerability.Detected():
		p.detected++
	}

	if p.interactive {
		fmt.Fprint(p.w, "\r\033[K"+p.line())
		p.drawn = true
		return
	}
	fmt.Fprintf(p.w, "[%d/%d] %s %s\n", p.done, p.total,
		VerdictStyle(r.Vulnerability).Render(r.Vulnerability.Name),
		Truncate(Printable(r.Payload), 60))
}

// Counts returns completed, detected and errored payload counts.
func (p *Progress) Counts() (done, detected, errored int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.detected, p.errored
}

func (p *Progress) finishLine() {
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func (p *Progress) line() string {
	percent := 0.0
	if p.total > 0 {
		percent = float64(p.done) / float64(p.total)
	}
	return fmt.Sprintf("%s %3.0f%% %d/%d %s %s %s",
		p.bar(percent),
		percent*100,
		p.done, p.total,
		DetectedStyle.Render(fmt.Sprintf("x %d", p.detected)),
		ErrorStyle.Render(fmt.Sprintf("! %d", p.errored)),
		LabelStyle.Render(formatElapsed(time.Since(p.start))),
	)
}

func (p *Progress) bar(percent float64) string {
	full, empty := "#", "-"
	if p.unicode {
		full, empty = "█", "░"
	}
	filled := int(percent * float64(p.width))
	filled = min(max(filled, 0), p.width)
	return ProgressFullStyle.Render(strings.Repeat(full, filled)) +
		ProgressEmptyStyle.Render(strings.Repeat(empty, p.width-filled))
}

// formatElapsed renders a duration as MM:SS or HH:MM:SS.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
