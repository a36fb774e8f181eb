package notifier

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// TemplateShiftReminder overdue-shift reminder
//
// vars:
//   - name: owner display name
//   - kind: "full-day" | "half-day"
//   - requiredHours: "9.5" | "4.5"
//   - elapsed: time since punch-in, "Xh Ym"
const TemplateShiftReminder = "shift_reminder"

// Message rendered notification
type Message struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

type messageTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[string]messageTemplate{
	TemplateShiftReminder: {
		subject: "Shift Ended - Please Punch Out",
		text: texttemplate.Must(texttemplate.New("text").Parse(
			"Hello {{.name}},\n\n" +
				"Your shift of {{.requiredHours}} hours has ended. Please remember to punch out.\n\n" +
				"Ignore this message if you are doing overtime.",
		)),
		html: htmltemplate.Must(htmltemplate.New("html").Parse(
			`<h2>Shift Ended Reminder</h2>` +
				`<p>Hello <b>{{.name}}</b>,</p>` +
				`<p>Your shift of {{.requiredHours}} hours has ended. Please remember to punch out.</p>` +
				`<br>` +
				`<p><i>Ignore this message if you are doing overtime.</i></p>`,
		)),
	},
}

// Render fills templateID with vars.
func Render(templateID string, vars map[string]any) (Message, error) {
	tpl, ok := templates[templateID]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}

	var text, html bytes.Buffer
	if err := tpl.text.Execute(&text, vars); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", templateID, err)
	}
	if err := tpl.html.Execute(&html, vars); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", templateID, err)
	}
	return Message{Subject: tpl.subject, Text: text.String(), HTML: html.String()}, nil
}
