package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"join":         strings.Join,
	"placeholders": placeholders,
}

// ExecuteSqlTemplate renders a SQL statement. Referencing a parameter that is
// not in params is an error.
func ExecuteSqlTemplate(sqlTemplate string, params map[string]any) (string, error) {
	tmpl, err := template.New("sql").Funcs(funcs).Option("missingkey=error").Parse(sqlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse SQL template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to render SQL template: %w", err)
	}

	return buf.String(), nil
}

// placeholders returns n comma-separated positional parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
