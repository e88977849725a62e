package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-gateway/internal/models"
)

// Mailer delivers a "new results" notification to a workspace owner.
type Mailer interface {
	SendWorkspaceNotification(ctx context.Context, ws *models.Workspace, resultCount int) error
}

// Templates renders subject and body from {{placeholder}} templates.
// Known placeholders: id, title, owner, count, link.
type Templates struct {
	Subject string
	Body    string
	BaseURL string
}

type Message struct {
	To      string
	Subject string
	Body    string
}

func (t Templates) Compose(ws *models.Workspace, resultCount int) Message {
	data := map[string]interface{}{
		"id":    ws.ID,
		"title": ws.Title,
		"owner": ws.Owner,
		"count": resultCount,
		"link":  t.link(ws),
	}
	return Message{
		To:      ws.Owner,
		Subject: renderTemplate(t.Subject, data),
		Body:    renderTemplate(t.Body, data),
	}
}

func (t Templates) link(ws *models.Workspace) string {
	if t.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(t.BaseURL, "/") + "/workspaces/" + ws.ID
}

// renderTemplate substitutes {{key}} placeholders in a single pass and
// removes unknown ones. Substituted values are never rescanned.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		pairs = append(pairs, "{{"+k+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(stripUnknown(tmpl, data)))
}

// stripUnknown drops {{key}} placeholders whose key is not in data.
// Unterminated placeholders are kept as written.
func stripUnknown(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			break
		}
		placeholder := rest[start : start+end+2]
		b.WriteString(rest[:start])
		if _, ok := data[placeholder[2:len(placeholder)-2]]; ok {
			b.WriteString(placeholder)
		}
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

// Multi sends through every mailer in order. All mailers are attempted;
// failures are joined.
type Multi []Mailer

func (m Multi) SendWorkspaceNotification(ctx context.Context, ws *models.Workspace, resultCount int) error {
	var errs []error
	for _, mailer := range m {
		if err := mailer.SendWorkspaceNotification(ctx, ws, resultCount); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
