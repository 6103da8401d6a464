// Package evidence compares a test response with the baseline response of
// the same run and condenses the difference into an Evidence record.
package evidence

import (
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/executor"
)

// Context identifies the payload an Evidence record belongs to.
type Context struct {
	Suite          string
	Payload        string
	InjectionPoint curl.InjectionPoint
}

// Evidence is the comparison between one test response and the baseline.
type Evidence struct {
	TestSuite          string              `json:"testSuite"`
	Payload            string              `json:"payload"`
	InjectionPoint     curl.InjectionPoint `json:"injectionPoint"`
	BaselineBody       string              `json:"baselineBody"`
	TestBody           string              `json:"testBody"`
	TestStatus         executor.Status     `json:"testStatus"`
	StatusChanged      bool                `json:"statusChanged"`
	ContentTypeChanged bool                `json:"contentTypeChanged"`
	SizeDifference     int                 `json:"sizeDifference"`
	ResponseDiff       []Segment           `json:"responseDiff"`
}

// Trivial reports whether the test response looks like the baseline:
// same status, same content type, less than 10 bytes of size change and
// no line differences.
func (ev *Evidence) Trivial() bool {
	d := ev.SizeDifference
	if d < 0 {
		d = -d
	}
	return !ev.StatusChanged &&
		!ev.ContentTypeChanged &&
		d < defaults.TrivialSizeDelta &&
		len(ev.ResponseDiff) == 0
}

// Builder builds Evidence records. The zero value is not usable; call
// NewBuilder.
type Builder struct {
	differ LineDiffer
}

// Option configures a Builder.
type Option func(*Builder)

// WithDiffer replaces the default line differ.
func WithDiffer(d LineDiffer) Option {
	return func(b *Builder) {
		if d != nil {
			b.differ = d
		}
	}
}

// NewBuilder returns a Builder using the difflib line differ by default.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{differ: DifflibDiffer{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compares test against baseline.
func (b *Builder) Build(baseline, test *executor.Response, ctx Context) *Evidence {
	ev := &Evidence{
		TestSuite:      ctx.Suite,
		Payload:        ctx.Payload,
		InjectionPoint: ctx.InjectionPoint,
		BaselineBody:   baseline.Body,
		TestBody:       test.Body,
		TestStatus:     test.Status,
		StatusChanged:  baseline.Status != test.Status,
		SizeDifference: test.Size - baseline.Size,
		ResponseDiff:   []Segment{},
	}

	bct, bok := baseline.LookupHeader("content-type")
	tct, tok := test.LookupHeader("content-type")
	ev.ContentTypeChanged = bok != tok || !strings.EqualFold(bct, tct)

	if !sameBody(baseline.Body, test.Body) {
		ev.ResponseDiff = b.differ.Diff(baseline.Body, test.Body)
	}
	return ev
}

var defaultBuilder = NewBuilder()

// Build compares test against baseline with the default Builder.
func Build(baseline, test *executor.Response, ctx Context) *Evidence {
	return defaultBuilder.Build(baseline, test, ctx)
}

// sameBody reports whether two bodies match by length and fingerprint.
func sameBody(a, b string) bool {
	return len(a) == len(b) && Fingerprint(a) == Fingerprint(b)
}

// Fingerprint returns a fast non-cryptographic hash of body, used to
// label and group responses.
func Fingerprint(body string) uint64 {
	return murmur3.Sum64([]byte(body))
}
