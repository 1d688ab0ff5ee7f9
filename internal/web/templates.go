package web

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
)

// Templates holds one parsed template set per page.
type Templates struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates parses every page under pages/ together with the shared
// layouts and partials.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}
	if err := t.load(templatesFS); err != nil {
		return nil, err
	}
	return t, nil
}

// Render executes the "base" layout of page.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

func (t *Templates) load(templatesFS fs.FS) error {
	var shared []string
	for _, pattern := range []string{"layouts/*.html", "partials/*.html"} {
		matches, err := fs.Glob(templatesFS, pattern)
		if err != nil {
			return fmt.Errorf("finding %s: %w", pattern, err)
		}
		shared = append(shared, matches...)
	}
	if len(shared) == 0 {
		return errors.New("no layouts or partials found")
	}

	common, err := template.New("common").Funcs(t.funcs).ParseFS(templatesFS, shared...)
	if err != nil {
		return fmt.Errorf("parsing layouts: %w", err)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		tmpl, err := template.Must(common.Clone()).ParseFS(templatesFS, page)
		if err != nil {
			return fmt.Errorf("parsing page %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}
	return nil
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"pct": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v*100)
		},
		"score": func(v float64) string {
			return fmt.Sprintf("%.3f", v)
		},
		// n/a for empty clusters
		"purity": func(v *float64) string {
			if v == nil {
				return "n/a"
			}
			return fmt.Sprintf("%.1f%%", *v*100)
		},
		"moods": domain.Moods,
		"formatTime": func(t time.Time) string {
			return t.UTC().Format("Jan 2, 2006 15:04 UTC")
		},
	}
}

// PageData is embedded in the data of every page.
type PageData struct {
	Title       string
	Flash       *FlashMessage
	CurrentPath string
}

type FlashMessage struct {
	Type    string // "info" or "error"
	Message string
}

// ReportPageData is rendered by pages/report.html. Report is nil until the
// evaluate stage has run.
type ReportPageData struct {
	PageData
	Report *evaluate.Report
}
