package evidence

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Op says whether a diff segment was added to or removed from the baseline.
type Op string

const (
	OpAdded   Op = "added"
	OpRemoved Op = "removed"
)

// Segment is a run of consecutive lines with the same Op.
type Segment struct {
	Op    Op       `json:"op"`
	Lines []string `json:"lines"`
}

// LineDiffer computes line-level differences between two texts.
// Unchanged lines are not reported.
type LineDiffer interface {
	Diff(a, b string) []Segment
}

// DifflibDiffer is a LineDiffer backed by go-difflib's sequence matcher.
type DifflibDiffer struct{}

// Diff implements LineDiffer.
func (DifflibDiffer) Diff(a, b string) []Segment {
	al, bl := splitLines(a), splitLines(b)
	segs := []Segment{}
	for _, op := range difflib.NewMatcher(al, bl).GetOpCodes() {
		switch op.Tag {
		case 'd':
			segs = append(segs, Segment{Op: OpRemoved, Lines: trim(al[op.I1:op.I2])})
		case 'i':
			segs = append(segs, Segment{Op: OpAdded, Lines: trim(bl[op.J1:op.J2])})
		case 'r':
			segs = append(segs,
				Segment{Op: OpRemoved, Lines: trim(al[op.I1:op.I2])},
				Segment{Op: OpAdded, Lines: trim(bl[op.J1:op.J2])},
			)
		}
	}
	return segs
}

// splitLines keeps line terminators so "a" and "a\n" differ. An empty text
// has no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func trim(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSuffix(l, "\n")
	}
	return out
}

// Unified renders the baseline and test bodies as a unified diff with
// three lines of context. Output longer than maxLines is cut and marked.
// maxLines <= 0 means no limit.
func Unified(ev *Evidence, maxLines int) string {
	if sameBody(ev.BaselineBody, ev.TestBody) {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ev.BaselineBody),
		B:        difflib.SplitLines(ev.TestBody),
		FromFile: "baseline",
		ToFile:   "test",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	if maxLines <= 0 {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	return strings.Join(lines[:maxLines], "") + "... (diff truncated)\n"
}
