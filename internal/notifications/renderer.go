package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"trackdesk/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// RenderedEmail holds pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

// templateData is the struct passed into the warning templates.
type templateData struct {
	TaskID         string
	Title          string
	Priority       string
	Breached       bool
	PercentElapsed int
	ThresholdPct   int
	Deadline       string
	RemainingHuman string
	OverdueHuman   string
}

// Renderer produces the subject, plain-text, and HTML bodies for SLA
// threshold warnings from embedded Go templates. Templates are parsed once
// at construction; a parse failure is a startup error, never a per-send one.
type Renderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates and returns a Renderer.
func NewRenderer() (*Renderer, error) {
	htmlTpl, err := template.ParseFS(templateFS, "templates/sla_warning.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: parsing html template: %w", err)
	}
	textTpl, err := texttemplate.ParseFS(templateFS, "templates/sla_warning.txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: parsing text template: %w", err)
	}
	return &Renderer{html: htmlTpl, text: textTpl}, nil
}

// Render builds the email for one crossed threshold. Breached tasks (past
// their deadline) get distinct wording from approaching-deadline warnings.
func (r *Renderer) Render(c types.BreachCandidate, threshold float64) (RenderedEmail, error) {
	data := templateData{
		TaskID:         c.Task.ID,
		Title:          c.Task.Title,
		Priority:       string(c.Task.Priority),
		Breached:       c.Breached(),
		PercentElapsed: int(c.PercentElapsed * 100),
		ThresholdPct:   int(threshold * 100),
	}
	if c.Task.SLADeadline != nil {
		data.Deadline = c.Task.SLADeadline.Format(time.RFC1123)
	}
	if c.Remaining >= 0 {
		data.RemainingHuman = humanDuration(c.Remaining)
	} else {
		data.OverdueHuman = humanDuration(-c.Remaining)
	}

	var subject string
	if data.Breached {
		subject = fmt.Sprintf("[SLA BREACH] %s (%s overdue)", c.Task.Title, data.OverdueHuman)
	} else {
		subject = fmt.Sprintf("[SLA %d%%] %s (%s remaining)", data.ThresholdPct, c.Task.Title, data.RemainingHuman)
	}

	var textBuf bytes.Buffer
	if err := r.text.Execute(&textBuf, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("renderer: executing text template: %w", err)
	}

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("renderer: executing html template: %w", err)
	}

	return RenderedEmail{
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

// humanDuration formats a duration as "2h10m" style without seconds noise.
func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}
