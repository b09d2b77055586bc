package app

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Template names used by the evaluators.
const (
	TemplateReminder           = "reminder"
	TemplateDeadlineD3         = "deadline_d3"
	TemplateDeadlineDDayOpen   = "deadline_dday_open"
	TemplateDeadlineDDayClosed = "deadline_dday_closed"
)

// TemplateData is what every email template is rendered with.
type TemplateData struct {
	RecipientName string
	BoxID         int64
	BoxTitle      string
	Deadline      string // already formatted in the service location
}

type emailTemplate struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// Renderer turns TemplateData into an email subject and HTML body.
type Renderer struct {
	templates map[string]emailTemplate
}

var builtinTemplates = map[string][2]string{
	TemplateReminder: {
		`[Reminder] Please submit your documents for "{{.BoxTitle}}"`,
		`<p>Hello {{.RecipientName}},</p>
<p>This is a reminder that documents for <strong>{{.BoxTitle}}</strong> are due by <strong>{{.Deadline}}</strong>.</p>
<p>You have not submitted yet. Please upload your documents before the deadline.</p>`,
	},
	TemplateDeadlineD3: {
		`"{{.BoxTitle}}" closes in 3 days`,
		`<p>Hello {{.RecipientName}},</p>
<p>Your document box <strong>{{.BoxTitle}}</strong> reaches its deadline on <strong>{{.Deadline}}</strong>.</p>`,
	},
	TemplateDeadlineDDayOpen: {
		`"{{.BoxTitle}}" closes today`,
		`<p>Hello {{.RecipientName}},</p>
<p>Your document box <strong>{{.BoxTitle}}</strong> closes today at <strong>{{.Deadline}}</strong>.</p>`,
	},
	TemplateDeadlineDDayClosed: {
		`"{{.BoxTitle}}" has closed`,
		`<p>Hello {{.RecipientName}},</p>
<p>Your document box <strong>{{.BoxTitle}}</strong> reached its deadline ({{.Deadline}}) and is now closed.</p>`,
	},
}

// NewRenderer parses the built-in templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]emailTemplate, len(builtinTemplates))}
	for name, src := range builtinTemplates {
		subject, err := texttemplate.New(name + "_subject").Option("missingkey=error").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", name, err)
		}
		body, err := htmltemplate.New(name + "_body").Option("missingkey=error").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse body template %s: %w", name, err)
		}
		r.templates[name] = emailTemplate{subject: subject, body: body}
	}
	return r, nil
}

// Render executes the named template.
func (r *Renderer) Render(name string, data TemplateData) (subject, body string, err error) {
	t, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject %s: %w", name, err)
	}
	subject = buf.String()
	buf.Reset()
	if err := t.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render body %s: %w", name, err)
	}
	return subject, buf.String(), nil
}
