package mail

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type MockPublisher struct {
	Name, Key, MessageID string
	Vars                 interface{}
	Err                  error
}

func (m *MockPublisher) PublishMessage(_ context.Context, name, key, messageID string, vars interface{}) error {
	m.Name, m.Key, m.MessageID, m.Vars = name, key, messageID, vars
	return m.Err
}

type failingMailer struct{ err error }

func (f failingMailer) SendWorkspaceNotification(context.Context, *models.Workspace, int) error {
	return f.err
}

func testWorkspace() *models.Workspace {
	return &models.Workspace{
		ID:                 "ws-1",
		Title:              "Harbour imagery",
		Owner:              "alice@example.com",
		Tags:               []string{models.WorkspaceTag},
		SubscribedQueryIDs: []string{"q-42"},
	}
}

func testTemplates() Templates {
	return Templates{
		Subject: "New results for workspace {{title}}",
		Body:    "Your workspace {{title}} has {{count}} new result(s). {{link}}",
		BaseURL: "https://catalog.example.com/",
	}
}

// ==========================
// Tests
// ==========================

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		expected string
	}{
		{
			name:     "string and int values",
			template: "{{title}} has {{count}} results",
			data:     map[string]interface{}{"title": "Ports", "count": 3},
			expected: "Ports has 3 results",
		},
		{
			name:     "missing placeholder removed",
			template: "Hello {{owner}}, see {{link}}",
			data:     map[string]interface{}{"owner": "alice"},
			expected: "Hello alice, see",
		},
		{
			name:     "unterminated placeholder kept",
			template: "Broken {{title",
			data:     map[string]interface{}{"title": "x"},
			expected: "Broken {{title",
		},
		{
			name:     "placeholder inside a value is not expanded",
			template: "Your workspace {{title}} has {{count}} new result(s).",
			data:     map[string]interface{}{"title": "Top {{count}} ports", "count": 3},
			expected: "Your workspace Top {{count}} ports has 3 new result(s).",
		},
		{
			name:     "unknown placeholder inside a value is kept",
			template: "{{title}} by {{owner}}",
			data:     map[string]interface{}{"title": "Ports {{ draft", "owner": "alice"},
			expected: "Ports {{ draft by alice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderTemplate(tt.template, tt.data))
		})
	}
}

func TestTemplates_Compose(t *testing.T) {
	msg := testTemplates().Compose(testWorkspace(), 3)

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "New results for workspace Harbour imagery", msg.Subject)
	assert.Equal(t, "Your workspace Harbour imagery has 3 new result(s). https://catalog.example.com/workspaces/ws-1", msg.Body)
}

func TestTemplates_ComposeIsStableForPlaceholderTitles(t *testing.T) {
	ws := testWorkspace()
	ws.Title = "Top {{count}} ports {{unknown}}"
	want := testTemplates().Compose(ws, 3)

	assert.Equal(t, "Your workspace Top {{count}} ports {{unknown}} has 3 new result(s). https://catalog.example.com/workspaces/ws-1", want.Body)
	for i := 0; i < 100; i++ {
		require.Equal(t, want, testTemplates().Compose(ws, 3))
	}
}

func TestSESMailer_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	m := NewSESMailer(mock, "noreply@catalog.example.com", testTemplates(), logger.NewTestLogger(t))

	err := m.SendWorkspaceNotification(context.Background(), testWorkspace(), 3)

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, []string{"alice@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "noreply@catalog.example.com", aws.ToString(captured.Source))
	assert.Equal(t, "New results for workspace Harbour imagery", aws.ToString(captured.Message.Subject.Data))
}

func TestSESMailer_Errors(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	m := NewSESMailer(mock, "noreply@catalog.example.com", testTemplates(), logger.NewNoOpLogger())

	err := m.SendWorkspaceNotification(context.Background(), testWorkspace(), 1)
	se, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, se.Code)

	ownerless := testWorkspace()
	ownerless.Owner = ""
	err = m.SendWorkspaceNotification(context.Background(), ownerless, 1)
	assert.Error(t, err)
}

func TestSNSPublisher_Send(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	p := NewSNSPublisher(mock, "arn:aws:sns:us-east-1:123:workspace-events")
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, p.SendWorkspaceNotification(context.Background(), testWorkspace(), 3))

	assert.Equal(t, "arn:aws:sns:us-east-1:123:workspace-events", aws.ToString(captured.TopicArn))
	var event WorkspaceEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(captured.Message)), &event))
	assert.Equal(t, EventWorkspaceResults, event.Type)
	assert.Equal(t, "ws-1", event.WorkspaceID)
	assert.Equal(t, 3, event.ResultCount)
	assert.NotEmpty(t, event.EventID)
}

func TestCamundaMailer_Send(t *testing.T) {
	pub := &MockPublisher{}
	m := NewCamundaMailer(pub, "workspace-notification", testTemplates())

	require.NoError(t, m.SendWorkspaceNotification(context.Background(), testWorkspace(), 3))

	assert.Equal(t, "workspace-notification", pub.Name)
	assert.Equal(t, "ws-1", pub.Key)
	vars, ok := pub.Vars.(notificationVariables)
	require.True(t, ok)
	assert.Equal(t, pub.MessageID, vars.NotificationID)
	assert.Equal(t, "alice@example.com", vars.RecipientEmail)
	assert.Equal(t, 3, vars.ResultCount)

	pub.Err = errors.New("broker unavailable")
	assert.Error(t, m.SendWorkspaceNotification(context.Background(), testWorkspace(), 3))
}

func TestMulti_AttemptsAll(t *testing.T) {
	sent := 0
	mock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			sent++
			return &ses.SendEmailOutput{}, nil
		},
	}
	m := Multi{
		failingMailer{err: errors.New("sns down")},
		NewSESMailer(mock, "noreply@catalog.example.com", testTemplates(), logger.NewNoOpLogger()),
	}

	err := m.SendWorkspaceNotification(context.Background(), testWorkspace(), 2)

	assert.ErrorContains(t, err, "sns down")
	assert.Equal(t, 1, sent)
}
