package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsclients "catalog-gateway/internal/common/aws"
	"catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

const EventWorkspaceResults = "workspace.results.available"

// WorkspaceEvent is published to the SNS topic for downstream consumers.
type WorkspaceEvent struct {
	EventID     string    `json:"eventId"`
	Type        string    `json:"type"`
	WorkspaceID string    `json:"workspaceId"`
	Title       string    `json:"title"`
	Owner       string    `json:"owner"`
	ResultCount int       `json:"resultCount"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// SNSPublisher fans the notification out as a JSON event on a topic.
type SNSPublisher struct {
	client   awsclients.SNSService
	topicARN string
	now      func() time.Time
}

func NewSNSPublisher(client awsclients.SNSService, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, now: time.Now}
}

func (p *SNSPublisher) SendWorkspaceNotification(ctx context.Context, ws *models.Workspace, resultCount int) error {
	event := WorkspaceEvent{
		EventID:     uuid.New().String(),
		Type:        EventWorkspaceResults,
		WorkspaceID: ws.ID,
		Title:       ws.Title,
		Owner:       ws.Owner,
		ResultCount: resultCount,
		OccurredAt:  p.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", fmt.Errorf("encode event: %w", err))
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(EventWorkspaceResults)},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}
	return nil
}
