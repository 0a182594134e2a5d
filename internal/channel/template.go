package channel

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

type Template string

const (
	TemplateReminderGentle   Template = "reminder_gentle"
	TemplateReminderStandard Template = "reminder_standard"
	TemplateReminderUrgent   Template = "reminder_urgent"
	TemplateReminderFinal    Template = "reminder_final"
	TemplatePaymentReceipt   Template = "payment_receipt"
)

// Rendered is the channel-neutral text of a message.
type Rendered struct {
	Subject string
	Body    string
}

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	parseOnce sync.Once
	parsed    map[Template]*template.Template
	parseErr  error
)

// ReminderTemplate returns the template for a reminder stage name.
func ReminderTemplate(stage string) Template {
	return Template("reminder_" + strings.ToLower(strings.TrimSpace(stage)))
}

// Render executes the subject and body blocks of the named template.
// Missing variables render as empty strings.
func Render(name Template, vars map[string]string) (Rendered, error) {
	parseOnce.Do(loadTemplates)
	if parseErr != nil {
		return Rendered{}, parseErr
	}

	tmpl, ok := parsed[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if vars == nil {
		vars = map[string]string{}
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", vars); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", vars); err != nil {
		return Rendered{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		Body:    strings.TrimSpace(body.String()),
	}, nil
}

func loadTemplates() {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		parseErr = err
		return
	}
	parsed = make(map[Template]*template.Template, len(entries))
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := template.New(name).Option("missingkey=zero").ParseFS(templateFS, "templates/"+entry.Name())
		if err != nil {
			parseErr = fmt.Errorf("parse template %s: %w", name, err)
			return
		}
		parsed[Template(name)] = tmpl
	}
}
