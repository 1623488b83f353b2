// Package notify delivers new-reading notifications to Telegram chats.
package notify

import (
	"bytes"
	"errors"
	"html/template"
)

// DefaultTemplate is the Telegram HTML message sent for a new reading
const DefaultTemplate = `⚡️ <b>Новые показания счётчика</b>

📊 Счётчик: <code>{{.MeterNumber}}</code>
🔢 Показания: <b>{{.Reading}}</b> кВт·ч`

// TemplateData provides fields for rendering notification content
type TemplateData struct {
	MeterNumber string
	Reading     string
}

// Template renders notification content. Values are HTML-escaped.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("reading-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notification template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
