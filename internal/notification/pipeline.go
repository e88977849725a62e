package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/common/metrics"
	"catalog-gateway/internal/common/observability"
	"catalog-gateway/internal/identity"
	"catalog-gateway/internal/models"
	"catalog-gateway/internal/workspace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome describes one pipeline run.
type Outcome struct {
	QueryID     string
	Decision    models.Decision
	Lookup      workspace.Status
	Workspace   *models.Workspace
	Caller      *models.CallerIdentity
	ResultCount int
	Dispatched  bool
}

// Pipeline correlates a query response with the workspace that subscribes
// to it, applies the policy and dispatches at most one notification.
// Nothing it does is visible to the query path.
type Pipeline struct {
	finder   workspace.Finder
	resolver identity.Resolver
	notifier Notifier
	auditor  Auditor
	obs      *observability.Observability
	logger   logger.Logger
	timeout  time.Duration

	workers   int
	queueSize int
	jobs      chan job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

type job struct {
	ctx  context.Context
	resp *models.QueryResponse
}

type PipelineOption func(*Pipeline)

// WithAsync runs the pipeline on workers draining a queue of queueSize.
// When the queue is full new responses are dropped.
func WithAsync(workers, queueSize int) PipelineOption {
	return func(p *Pipeline) {
		p.workers = workers
		p.queueSize = queueSize
	}
}

func WithAuditor(a Auditor) PipelineOption {
	return func(p *Pipeline) { p.auditor = a }
}

func WithObservability(o *observability.Observability) PipelineOption {
	return func(p *Pipeline) { p.obs = o }
}

func NewPipeline(
	finder workspace.Finder,
	resolver identity.Resolver,
	notifier Notifier,
	timeout time.Duration,
	log logger.Logger,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		finder:   finder,
		resolver: resolver,
		notifier: notifier,
		timeout:  timeout,
		logger:   log.WithFields(map[string]interface{}{"component": "notification-pipeline"}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.workers > 0 {
		if p.queueSize < 1 {
			p.queueSize = 1
		}
		p.jobs = make(chan job, p.queueSize)
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	}
	return p
}

// Observe hands a response to the pipeline. Inline pipelines run before
// returning; async ones enqueue and return immediately. The context's
// cancellation is not inherited, only its values.
func (p *Pipeline) Observe(ctx context.Context, resp *models.QueryResponse) {
	if resp == nil {
		return
	}
	detached := context.WithoutCancel(ctx)

	if p.jobs == nil {
		p.Run(detached, resp)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.jobs <- job{ctx: detached, resp: resp}:
		metrics.NotificationQueueDepth.Set(float64(len(p.jobs)))
	default:
		metrics.NotificationQueueDropped.Inc()
		p.logger.Warn("notification queue full, dropping response", map[string]interface{}{
			"queryId":   resp.ID,
			"queueSize": p.queueSize,
		})
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		metrics.NotificationQueueDepth.Set(float64(len(p.jobs)))
		p.Run(j.ctx, j.resp)
	}
}

// Run executes lookup, policy and dispatch for one response and returns the
// outcome. It never panics into the caller. A nil response yields an empty
// Outcome.
func (p *Pipeline) Run(ctx context.Context, resp *models.QueryResponse) (out Outcome) {
	if resp == nil {
		return Outcome{}
	}
	start := time.Now()
	out = Outcome{QueryID: resp.ID, ResultCount: resp.ResultCount()}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := p.obs.StartSpan(ctx, "notification.pipeline", attribute.String("query.id", resp.ID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("notification pipeline panicked", map[string]interface{}{
				"queryId": resp.ID,
				"error":   fmt.Sprintf("%v", r),
			})
		}
		if out.Decision != "" {
			p.finish(ctx, out, time.Since(start))
		}
	}()

	out.Decision = p.evaluate(ctx, resp, &out)
	if out.Decision == models.DecisionNotify {
		out.Dispatched = true
		p.notifier.Notify(ctx, out.Workspace, out.ResultCount)
	}
	return out
}

// evaluate gathers the policy inputs lazily: the lookup only runs for
// non-empty responses and the caller is only resolved once a workspace is known.
func (p *Pipeline) evaluate(ctx context.Context, resp *models.QueryResponse, out *Outcome) models.Decision {
	if out.ResultCount == 0 {
		return Decide(resp, nil, nil)
	}

	lr := p.finder.FindOwningWorkspace(ctx, resp.ID)
	out.Lookup = lr.Status
	out.Workspace = lr.Workspace
	if out.Workspace == nil {
		return Decide(resp, nil, nil)
	}

	caller, err := p.resolver.CurrentCallerIdentity(ctx)
	if err != nil {
		p.logger.Debug("caller identity unresolved", map[string]interface{}{
			"queryId": resp.ID,
			"error":   err,
		})
		caller = nil
	}
	out.Caller = caller
	return Decide(resp, out.Workspace, caller)
}

func (p *Pipeline) finish(ctx context.Context, out Outcome, elapsed time.Duration) {
	metrics.NotificationDecisions.WithLabelValues(string(out.Decision)).Inc()
	p.obs.RecordPipeline(ctx, string(out.Decision), elapsed)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("notification.decision", string(out.Decision)))

	fields := map[string]interface{}{
		"queryId":  out.QueryID,
		"decision": string(out.Decision),
	}
	if out.Workspace != nil {
		fields["workspaceId"] = out.Workspace.ID
	}
	p.logger.Debug("notification decision", fields)

	if p.auditor == nil {
		return
	}
	rec := AuditRecord{
		QueryID:      out.QueryID,
		Decision:     out.Decision,
		LookupStatus: string(out.Lookup),
		ResultCount:  out.ResultCount,
	}
	if out.Workspace != nil {
		rec.WorkspaceID = out.Workspace.ID
	}
	if out.Caller != nil {
		rec.Caller = out.Caller.Identity
	}
	if err := p.auditor.Record(ctx, rec); err != nil {
		p.logger.Warn("notification decision audit failed", map[string]interface{}{
			"queryId": out.QueryID,
			"error":   err,
		})
	}
}

// Close stops accepting responses and waits for queued runs to finish or
// for ctx to expire, whichever comes first.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.jobs == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification pipeline did not drain: %w", ctx.Err())
	}
}
