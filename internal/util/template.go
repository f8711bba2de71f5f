package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// templateFuncs are the helpers available inside instruction templates.
// The map is read-only after init; Funcs copies it per template.
var templateFuncs = template.FuncMap{
	"default": func(fallback, value any) any {
		if value == nil || value == "" {
			return fallback
		}
		return value
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	},
	"join": func(sep string, items []any) string {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, sep)
	},
}

// RenderTemplate substitutes session state into an instruction template using
// Go's text/template syntax. Plain text templates avoid the HTML escaping of
// html/template, which would mangle quotes in prompts. Text without template
// markers is returned as is without parsing.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instruction").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, state); err != nil {
		return "", err
	}

	return buf.String(), nil
}
