// Package prompt renders the evaluation prompt sent to the model.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/internal/sanitize"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

const (
	DefaultMaxFiles     = 30
	DefaultMaxFileChars = 5000
)

//go:embed evaluation.tmpl
var evaluationTemplate string

var tmpl = template.Must(template.New("evaluation").Funcs(template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}).Parse(evaluationTemplate))

// Builder renders prompts. The output depends only on its inputs.
type Builder struct {
	MaxFiles     int
	MaxFileChars int
}

// NewBuilder returns a Builder; non-positive limits select the defaults.
func NewBuilder(maxFiles, maxFileChars int) *Builder {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxFileChars <= 0 {
		maxFileChars = DefaultMaxFileChars
	}
	return &Builder{MaxFiles: maxFiles, MaxFileChars: maxFileChars}
}

type templateData struct {
	Project      *models.Project
	Git          sanitize.GitStats
	Files        []repo.File
	MaxFiles     int
	MaxFileChars int
}

// Build renders the prompt for a project and a sanitized payload. Only the
// first MaxFiles files are embedded, each cut to MaxFileChars characters.
func (b *Builder) Build(project *models.Project, payload *sanitize.Payload) (string, error) {
	files := payload.Files
	if len(files) > b.MaxFiles {
		files = files[:b.MaxFiles]
	}
	capped := make([]repo.File, len(files))
	for i, f := range files {
		capped[i] = repo.File{Path: f.Path, Content: truncateChars(f.Content, b.MaxFileChars)}
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, templateData{
		Project:      project,
		Git:          payload.GitStats,
		Files:        capped,
		MaxFiles:     b.MaxFiles,
		MaxFileChars: b.MaxFileChars,
	})
	if err != nil {
		return "", fmt.Errorf("rendering evaluation prompt: %w", err)
	}
	return buf.String(), nil
}

// truncateChars cuts s to at most n characters without splitting a rune.
func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
