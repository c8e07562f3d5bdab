package workflow

import (
	"bytes"
	"embed"
	"text/template"

	"github.com/pkg/errors"
)

// Template files
//
//go:embed templates/*
var templateFS embed.FS

const canonicalTemplate = "templates/ci.yaml.tmpl"

// canonicalData holds the data for canonical pipeline rendering
type canonicalData struct {
	Repo string
}

// Canonical renders the standard notebook-project pipeline for a repository:
// pylint and precommit jobs feeding a matrix selftest job, triggered by
// pushes and pull requests to main, a weekly schedule and published
// releases.
func Canonical(repo string) ([]byte, error) {
	tmplContent, err := templateFS.ReadFile(canonicalTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read template file")
	}

	tmpl, err := template.New("workflow").Parse(string(tmplContent))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, canonicalData{Repo: repo}); err != nil {
		return nil, errors.Wrap(err, "failed to execute template")
	}

	return buf.Bytes(), nil
}
