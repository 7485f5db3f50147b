package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"
)

const (
	TypeWelcome              = "welcome"
	TypeAdminNotification    = "admin_notification"
	TypeApprovalConfirmation = "approval_confirmation"
)

// Content is what gets stored on an outbox record.
type Content struct {
	Subject string
	HTML    string
	Text    string
}

type templateSet struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// Renderer turns a notification type and its data into Content. Rendering
// happens before the outbox record is written, never at send time.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]templateSet
}

// NewRenderer returns a renderer preloaded with the built-in notification types.
func NewRenderer() *Renderer {
	r := &Renderer{templates: make(map[string]templateSet)}
	for name, t := range defaultTemplates {
		if err := r.Register(name, t.subject, t.html, t.text); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces the templates for a notification type.
func (r *Renderer) Register(notificationType, subject, html, text string) error {
	set := templateSet{}
	var err error
	if set.subject, err = texttemplate.New(notificationType + ".subject").Option("missingkey=error").Parse(subject); err != nil {
		return fmt.Errorf("failed to parse %s subject template: %w", notificationType, err)
	}
	if set.html, err = htmltemplate.New(notificationType + ".html").Option("missingkey=error").Parse(html); err != nil {
		return fmt.Errorf("failed to parse %s html template: %w", notificationType, err)
	}
	if set.text, err = texttemplate.New(notificationType + ".text").Option("missingkey=error").Parse(text); err != nil {
		return fmt.Errorf("failed to parse %s text template: %w", notificationType, err)
	}

	r.mu.Lock()
	r.templates[notificationType] = set
	r.mu.Unlock()
	return nil
}

func (r *Renderer) Render(notificationType string, data map[string]any) (Content, error) {
	r.mu.RLock()
	set, ok := r.templates[notificationType]
	r.mu.RUnlock()
	if !ok {
		return Content{}, fmt.Errorf("no templates for notification type %q", notificationType)
	}

	var subject, html, text bytes.Buffer
	if err := set.subject.Execute(&subject, data); err != nil {
		return Content{}, fmt.Errorf("failed to render %s subject: %w", notificationType, err)
	}
	if err := set.html.Execute(&html, data); err != nil {
		return Content{}, fmt.Errorf("failed to render %s html body: %w", notificationType, err)
	}
	if err := set.text.Execute(&text, data); err != nil {
		return Content{}, fmt.Errorf("failed to render %s text body: %w", notificationType, err)
	}

	return Content{
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

var defaultTemplates = map[string]struct{ subject, html, text string }{
	TypeWelcome: {
		subject: `Welcome, {{.FullName}}`,
		html:    `<p>Hello {{.FullName}},</p><p>Your account {{.Email}} has been created and is waiting for approval.</p>`,
		text:    "Hello {{.FullName}},\n\nYour account {{.Email}} has been created and is waiting for approval.\n",
	},
	TypeAdminNotification: {
		subject: `New registration: {{.Email}}`,
		html:    `<p>{{.FullName}} ({{.Email}}) registered and needs approval.</p><p>User id: {{.UserID}}</p>`,
		text:    "{{.FullName}} ({{.Email}}) registered and needs approval.\nUser id: {{.UserID}}\n",
	},
	TypeApprovalConfirmation: {
		subject: `Your account has been approved`,
		html:    `<p>Hello {{.FullName}},</p><p>Your account was approved by {{.ApprovedBy}}.</p>`,
		text:    "Hello {{.FullName}},\n\nYour account was approved by {{.ApprovedBy}}.\n",
	},
}
