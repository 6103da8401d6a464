package classify

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/waftester/greenapi/pkg/evidence"
)

const promptText = `You are a web application security analyst. A payload from the {{ .Suite | quote }} test suite was injected into an HTTP request. The response was compared with a baseline response to the same request sent without any payload.

Payload: {{ .Payload | quote }}
Injection point: {{ .InjectionPoint | default "unknown" }}
Test response status: {{ .Status }}
Status changed from baseline: {{ .StatusChanged }}
Content-Type changed from baseline: {{ .ContentTypeChanged }}
Size difference in bytes: {{ .SizeDifference }}

Unified diff of the baseline (-) and test (+) response bodies:
{{ .Diff | default "(bodies are identical)" }}

Decide whether the test response shows evidence of a vulnerability caused by the payload.
Reply with exactly one JSON object and nothing else, using these fields:
{"name": string, "severity": "info"|"low"|"medium"|"high"|"critical", "confidence": "low"|"medium"|"high", "explanation": string, "remediation": string}
Use the name "None Detected" with severity "info" when there is no evidence.
`

var promptTmpl = template.Must(template.New("prompt").Funcs(sprig.TxtFuncMap()).Parse(promptText))

type promptData struct {
	Suite              string
	Payload            string
	InjectionPoint     string
	Status             string
	StatusChanged      bool
	ContentTypeChanged bool
	SizeDifference     int
	Diff               string
}

// BuildPrompt renders the classification prompt for ev. The diff is cut
// after diffLines lines.
func BuildPrompt(ev *evidence.Evidence, diffLines int) (string, error) {
	var b strings.Builder
	err := promptTmpl.Execute(&b, promptData{
		Suite:              ev.TestSuite,
		Payload:            ev.Payload,
		InjectionPoint:     ev.InjectionPoint.String(),
		Status:             ev.TestStatus.String(),
		StatusChanged:      ev.StatusChanged,
		ContentTypeChanged: ev.ContentTypeChanged,
		SizeDifference:     ev.SizeDifference,
		Diff:               strings.TrimRight(evidence.Unified(ev, diffLines), "\n"),
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
