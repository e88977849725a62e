package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"catalog-gateway/internal/catalog"
	"catalog-gateway/internal/common/auth"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/identity"
	"catalog-gateway/internal/models"
	"catalog-gateway/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

// stubCatalog serves workspace records keyed by the query id being looked up.
type stubCatalog struct {
	mu         sync.Mutex
	workspaces map[string]models.Result
	err        error
	calls      int
}

func (s *stubCatalog) Execute(_ context.Context, q catalog.Query) (*models.QueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	resp := &models.QueryResponse{ID: q.ID}
	if r, ok := s.workspaces[q.ID]; ok {
		resp.Results = append(resp.Results, r)
		resp.Hits = 1
	}
	return resp, nil
}

func (s *stubCatalog) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func harbourCatalog() *stubCatalog {
	return &stubCatalog{workspaces: map[string]models.Result{
		"workspace-lookup:q-42": {
			ID:     "ws-1",
			Source: "workspaces",
			Properties: map[string]interface{}{
				"id":                 "ws-1",
				"title":              "Harbour",
				"owner":              "alice",
				"tags":               []interface{}{"workspace"},
				"subscribedQueryIds": []interface{}{"q-42"},
			},
		},
	}}
}

type countingResolver struct {
	identity.Static
	calls int
}

func (c *countingResolver) CurrentCallerIdentity(ctx context.Context) (*models.CallerIdentity, error) {
	c.calls++
	return c.Static.CurrentCallerIdentity(ctx)
}

// tokenEcho treats the bearer token as the username.
type tokenEcho struct{}

func (tokenEcho) ValidateToken(_ context.Context, token string) (*auth.TokenInfo, error) {
	return &auth.TokenInfo{Active: true, Username: token}, nil
}

type MockAuditor struct {
	mu      sync.Mutex
	Records []AuditRecord
	Err     error
}

func (m *MockAuditor) Record(_ context.Context, rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return m.Err
}

func caller(id string) identity.Resolver {
	return identity.Static{Identity: &models.CallerIdentity{Identity: id}}
}

func newTestPipeline(t *testing.T, engine catalog.Engine, resolver identity.Resolver, mailer *MockMailer, opts ...PipelineOption) *Pipeline {
	t.Helper()
	log := logger.NewTestLogger(t)
	lookup := workspace.NewLookup(engine, "workspaces", time.Second, log)
	return NewPipeline(lookup, resolver, NewDispatcher(mailer, time.Second, log), 5*time.Second, log, opts...)
}

// ==========================
// Scenarios
// ==========================

func TestPipeline_OwnerIsNotifiedOnce(t *testing.T) {
	mailer := &MockMailer{}
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), mailer)

	out := p.Run(context.Background(), responseWith(3))

	assert.Equal(t, models.DecisionNotify, out.Decision)
	assert.True(t, out.Dispatched)
	require.Equal(t, 1, mailer.Count())
	assert.Equal(t, "ws-1", mailer.Sent[0].Workspace.ID)
	assert.Equal(t, 3, mailer.Sent[0].ResultCount)
}

func TestPipeline_OtherCallerIsNotOwner(t *testing.T) {
	mailer := &MockMailer{}
	p := newTestPipeline(t, harbourCatalog(), caller("bob"), mailer)

	out := p.Run(context.Background(), responseWith(3))

	assert.Equal(t, models.DecisionSuppressedNotOwner, out.Decision)
	assert.False(t, out.Dispatched)
	assert.Zero(t, mailer.Count())
}

func TestPipeline_UnknownQueryHasNoWorkspace(t *testing.T) {
	mailer := &MockMailer{}
	resolver := &countingResolver{Static: identity.Static{Identity: &models.CallerIdentity{Identity: "alice"}}}
	p := newTestPipeline(t, harbourCatalog(), resolver, mailer)

	resp := responseWith(2)
	resp.ID = "q-99"
	out := p.Run(context.Background(), resp)

	assert.Equal(t, models.DecisionSuppressedNoWorkspace, out.Decision)
	assert.Equal(t, workspace.StatusNotFound, out.Lookup)
	assert.Zero(t, resolver.calls, "caller is only resolved once a workspace is found")
	assert.Zero(t, mailer.Count())
}

func TestPipeline_EmptyResponseSkipsLookup(t *testing.T) {
	engine := harbourCatalog()
	mailer := &MockMailer{}
	p := newTestPipeline(t, engine, caller("alice"), mailer)

	out := p.Run(context.Background(), responseWith(0))

	assert.Equal(t, models.DecisionSuppressedEmpty, out.Decision)
	assert.Zero(t, engine.Calls())
	assert.Zero(t, mailer.Count())
}

func TestPipeline_AdHocQuerySkipsCatalog(t *testing.T) {
	engine := harbourCatalog()
	p := newTestPipeline(t, engine, caller("alice"), &MockMailer{})

	resp := responseWith(4)
	resp.ID = ""
	out := p.Run(context.Background(), resp)

	assert.Equal(t, models.DecisionSuppressedNoWorkspace, out.Decision)
	assert.Zero(t, engine.Calls())
}

func TestPipeline_RunNilResponse(t *testing.T) {
	engine := harbourCatalog()
	mailer := &MockMailer{}
	p := newTestPipeline(t, engine, caller("alice"), mailer)

	var out Outcome
	require.NotPanics(t, func() { out = p.Run(context.Background(), nil) })

	assert.Equal(t, Outcome{}, out)
	assert.Zero(t, engine.Calls())
	assert.Zero(t, mailer.Count())
}

func TestPipeline_LookupFailureIsContained(t *testing.T) {
	engine := &stubCatalog{err: catalog.ErrSourceUnavailable}
	mailer := &MockMailer{}
	p := newTestPipeline(t, engine, caller("alice"), mailer)

	var out Outcome
	assert.NotPanics(t, func() { out = p.Run(context.Background(), responseWith(3)) })

	assert.Equal(t, models.DecisionSuppressedNoWorkspace, out.Decision)
	assert.Equal(t, workspace.StatusLookupFailed, out.Lookup)
	assert.Zero(t, mailer.Count())
}

func TestPipeline_IdentityFailureMeansNotOwner(t *testing.T) {
	mailer := &MockMailer{}
	resolver := identity.Static{Err: errors.New("introspection unavailable")}
	p := newTestPipeline(t, harbourCatalog(), resolver, mailer)

	out := p.Run(context.Background(), responseWith(1))

	assert.Equal(t, models.DecisionSuppressedNotOwner, out.Decision)
	assert.Zero(t, mailer.Count())
}

func TestPipeline_DispatchFailureIsContained(t *testing.T) {
	mailer := &MockMailer{SendFunc: func(context.Context, *models.Workspace, int) error {
		return errors.New("ses throttled")
	}}
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), mailer)

	out := p.Run(context.Background(), responseWith(3))

	assert.Equal(t, models.DecisionNotify, out.Decision)
	assert.Equal(t, 1, mailer.Count())
}

func TestPipeline_DoesNotModifyResponse(t *testing.T) {
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), &MockMailer{})
	resp := responseWith(3)
	resp.Hits = 3
	before := *resp

	p.Run(context.Background(), resp)

	assert.Equal(t, before.ID, resp.ID)
	assert.Equal(t, before.Hits, resp.Hits)
	assert.Len(t, resp.Results, 3)
}

func TestPipeline_AuditsEveryDecision(t *testing.T) {
	auditor := &MockAuditor{Err: errors.New("db down")}
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), &MockMailer{}, WithAuditor(auditor))

	p.Run(context.Background(), responseWith(3))
	p.Run(context.Background(), responseWith(0))

	require.Len(t, auditor.Records, 2)
	assert.Equal(t, AuditRecord{
		QueryID:      "q-42",
		WorkspaceID:  "ws-1",
		Caller:       "alice",
		Decision:     models.DecisionNotify,
		LookupStatus: "found",
		ResultCount:  3,
	}, auditor.Records[0])
	assert.Equal(t, models.DecisionSuppressedEmpty, auditor.Records[1].Decision)
}

// ==========================
// Async mode
// ==========================

func TestPipeline_AsyncDetachesFromRequestContext(t *testing.T) {
	mailer := &MockMailer{}
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), mailer, WithAsync(1, 4))

	ctx, cancel := context.WithCancel(context.Background())
	p.Observe(ctx, responseWith(3))
	cancel()

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, 1, mailer.Count())
}

func TestPipeline_AsyncDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	mailer := &MockMailer{SendFunc: func(context.Context, *models.Workspace, int) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}}
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), mailer, WithAsync(1, 1))

	p.Observe(context.Background(), responseWith(1))
	<-started // worker busy
	p.Observe(context.Background(), responseWith(1)) // fills the queue

	done := make(chan struct{})
	go func() {
		p.Observe(context.Background(), responseWith(1)) // dropped
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a full queue")
	}

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, 2, mailer.Count())
}

func TestPipeline_ObserveAfterCloseIsIgnored(t *testing.T) {
	mailer := &MockMailer{}
	p := newTestPipeline(t, harbourCatalog(), caller("alice"), mailer, WithAsync(2, 4))
	require.NoError(t, p.Close(context.Background()))

	assert.NotPanics(t, func() { p.Observe(context.Background(), responseWith(3)) })
	assert.Zero(t, mailer.Count())
	assert.NoError(t, p.Close(context.Background()))
}

func TestPipeline_InlineObserveKeepsCallerToken(t *testing.T) {
	mailer := &MockMailer{}
	resolver := identity.NewKeycloakResolver(tokenEcho{}, identity.ClaimUsername, time.Minute)
	p := newTestPipeline(t, harbourCatalog(), resolver, mailer)

	ctx, cancel := context.WithCancel(identity.WithToken(context.Background(), "alice"))
	cancel()
	p.Observe(ctx, responseWith(2))

	assert.Equal(t, 1, mailer.Count())
}
