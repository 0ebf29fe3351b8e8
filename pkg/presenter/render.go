package presenter

import (
	"embed"
	"html/template"
	"io"

	"github.com/harunnryd/advocate/pkg/intake"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	// Data URIs are not in html/template's safe URL set; the audio bytes
	// are base64 produced here, never user input.
	"audioSrc": func(v *View) template.URL { return template.URL(v.AudioDataURI()) },
}).ParseFS(templateFS, "templates/page.html"))

// Page is the data behind the form page.
type Page struct {
	Title       string
	Form        intake.FormValues
	Result      *View
	PainOptions []string
	Durations   []string
	Impacts     []string
	Goals       []string
}

// NewPage fills the option lists from the intake labels.
func NewPage(title string, form intake.FormValues, result *View) Page {
	if title == "" {
		title = "Medical Advocate"
	}
	return Page{
		Title:       title,
		Form:        form,
		Result:      result,
		PainOptions: withUnset(intake.PainOptions()),
		Durations:   withUnset(intake.DurationOptions()),
		Impacts:     intake.ImpactOptions(),
		Goals:       withUnset(intake.GoalOptions()),
	}
}

// Selected reports whether label is among the submitted impacts.
func (p Page) Selected(label string) bool {
	for _, v := range p.Form.FunctionalImpact {
		if v == label {
			return true
		}
	}
	return false
}

// RenderHTML writes the form page and, when set, the result panel.
func RenderHTML(w io.Writer, page Page) error {
	return pageTemplate.Execute(w, page)
}

func withUnset(opts []string) []string {
	return append([]string{intake.UnsetLabel}, opts...)
}
