package mail

import (
	"context"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"
)

// LogMailer writes the rendered notification to the log. Development only.
type LogMailer struct {
	templates Templates
	logger    logger.Logger
}

func NewLogMailer(templates Templates, log logger.Logger) *LogMailer {
	return &LogMailer{templates: templates, logger: log}
}

func (m *LogMailer) SendWorkspaceNotification(_ context.Context, ws *models.Workspace, resultCount int) error {
	msg := m.templates.Compose(ws, resultCount)
	m.logger.Info("workspace notification", map[string]interface{}{
		"workspaceId": ws.ID,
		"to":          msg.To,
		"subject":     msg.Subject,
		"body":        msg.Body,
	})
	return nil
}
