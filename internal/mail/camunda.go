package mail

import (
	"context"

	"catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/models"

	"github.com/google/uuid"
)

// MessagePublisher is satisfied by *camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey, messageID string, vars interface{}) error
}

// CamundaMailer hands the rendered notification to a BPMN process by
// publishing a message correlated on the workspace id. The process owns delivery.
type CamundaMailer struct {
	publisher   MessagePublisher
	messageName string
	templates   Templates
}

func NewCamundaMailer(publisher MessagePublisher, messageName string, templates Templates) *CamundaMailer {
	return &CamundaMailer{publisher: publisher, messageName: messageName, templates: templates}
}

type notificationVariables struct {
	NotificationID string `json:"notificationId"`
	WorkspaceID    string `json:"workspaceId"`
	RecipientEmail string `json:"recipientEmail"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	ResultCount    int    `json:"resultCount"`
}

func (m *CamundaMailer) SendWorkspaceNotification(ctx context.Context, ws *models.Workspace, resultCount int) error {
	msg := m.templates.Compose(ws, resultCount)
	vars := notificationVariables{
		NotificationID: uuid.New().String(),
		WorkspaceID:    ws.ID,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
		Body:           msg.Body,
		ResultCount:    resultCount,
	}
	if err := m.publisher.PublishMessage(ctx, m.messageName, ws.ID, vars.NotificationID, vars); err != nil {
		return errors.NewNotificationSendFailedError("camunda", err)
	}
	return nil
}
