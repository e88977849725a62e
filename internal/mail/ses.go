package mail

import (
	"context"
	"fmt"

	awsclients "catalog-gateway/internal/common/aws"
	"catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESMailer sends the notification to the workspace owner through Amazon SES.
type SESMailer struct {
	client    awsclients.SESService
	from      string
	templates Templates
	logger    logger.Logger
}

func NewSESMailer(client awsclients.SESService, from string, templates Templates, log logger.Logger) *SESMailer {
	return &SESMailer{
		client:    client,
		from:      from,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"mailer": "ses"}),
	}
}

func (m *SESMailer) SendWorkspaceNotification(ctx context.Context, ws *models.Workspace, resultCount int) error {
	msg := m.templates.Compose(ws, resultCount)
	if msg.To == "" {
		return errors.NewNotificationSendFailedError("ses", fmt.Errorf("workspace %s has no owner", ws.ID))
	}

	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("ses", err)
	}

	m.logger.Debug("notification email sent", map[string]interface{}{
		"workspaceId": ws.ID,
		"messageId":   aws.ToString(out.MessageId),
	})
	return nil
}
