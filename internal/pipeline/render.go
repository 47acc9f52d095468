package pipeline

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"docplain/internal/fault"
)

// RenderTemplate substitutes the named placeholders of a step's prompt
// template from the document state. Placeholders use text/template syntax,
// e.g. "Simplify this report for a patient:\n{{.text}}". A placeholder with
// no corresponding state value is a configuration error: the pipeline
// definition references data no earlier step produced, and retrying cannot
// fix that.
func RenderTemplate(name, tmpl string, state DocState) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fault.Config("pipeline.render", fmt.Errorf("step %q: parse template: %w", name, err))
	}

	var buf strings.Builder
	if err := t.Execute(&buf, map[string]string(state)); err != nil {
		return "", fault.Config("pipeline.render", fmt.Errorf("step %q: %w", name, err))
	}
	return buf.String(), nil
}

// Excerpt truncates s for audit records. Step inputs and outputs can be
// whole documents; the execution log only needs enough to diagnose. The cut
// lands on a rune boundary so the stored excerpt stays valid UTF-8.
func Excerpt(s string) string {
	const max = 500
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
