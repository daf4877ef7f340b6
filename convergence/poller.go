package convergence

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/migrationflow/internal/ctxkeys"
	"github.com/BaSui01/migrationflow/types"
)

const instrumentationName = "github.com/BaSui01/migrationflow/convergence"

// Target is one tracked record. Status holds the last persisted display string.
type Target struct {
	ID         string
	ProviderID string
	Status     string
}

// Group is the set of targets living in one account and region.
type Group struct {
	AccountID string
	Region    string
	Targets   []Target
}

// Credentials are short-lived provider credentials for one group.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiry          time.Time
}

// CredentialSource hands out credentials for an account and region.
type CredentialSource interface {
	Acquire(ctx context.Context, accountID, region string) (Credentials, error)
}

// Fetcher loads the raw state of a group's targets, keyed by Target.ProviderID.
type Fetcher[R any] interface {
	Fetch(ctx context.Context, creds Credentials, group Group) (map[string]R, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc[R any] func(ctx context.Context, creds Credentials, group Group) (map[string]R, error)

func (f FetchFunc[R]) Fetch(ctx context.Context, creds Credentials, group Group) (map[string]R, error) {
	return f(ctx, creds, group)
}

// Classifier maps a raw payload to a Classification. ok is false when the fetch had no payload for the target.
type Classifier[R any] func(raw R, ok bool, now time.Time) Classification

// StatusWriter persists a target's status and returns an HTTP-style status code.
type StatusWriter interface {
	WriteStatus(ctx context.Context, targetID, status string) (int, error)
}

// Config controls the polling loop.
type Config struct {
	// Name labels logs and metrics, e.g. "replication".
	Name     string
	Delay    time.Duration
	Timeout  time.Duration
	Parallel bool
	// MaxParallelGroups bounds concurrent groups in parallel mode; <= 0 means unbounded.
	MaxParallelGroups int
	// Writer names the persistence collaborator in AccessDenied errors.
	Writer string
}

type options struct {
	clock    Clock
	logger   *zap.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// Option configures a Poller.
type Option func(*options)

// WithClock injects the clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithTracer overrides the tracer used for round spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// Poller drives targets toward a terminal state by repeated fetch, classify and persist rounds.
type Poller[R any] struct {
	cfg      Config
	creds    CredentialSource
	fetch    Fetcher[R]
	classify Classifier[R]
	writer   StatusWriter
	opts     options
}

// NewPoller creates a poller.
func NewPoller[R any](cfg Config, creds CredentialSource, fetch Fetcher[R], classify Classifier[R], writer StatusWriter, opts ...Option) *Poller[R] {
	o := options{
		clock:    RealClock{},
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Name == "" {
		cfg.Name = "convergence"
	}
	o.logger = o.logger.With(zap.String("component", "poller"), zap.String("poller", cfg.Name))
	return &Poller[R]{cfg: cfg, creds: creds, fetch: fetch, classify: classify, writer: writer, opts: o}
}

// groupResult 单个分组一轮的结果
type groupResult struct {
	converging int
	failed     map[string]bool
	writes     int
}

// Run polls until no target is converging, the timeout elapses, a fatal write outcome
// occurs or ctx is done. It blocks the caller.
func (p *Poller[R]) Run(ctx context.Context, groups []Group) (Outcome, error) {
	logger := p.opts.logger.With(ctxkeys.LogFields(ctx)...)
	active := cloneGroups(groups)
	start := p.opts.clock.Now()
	out := Outcome{}

	for {
		out.Rounds++
		roundStart := p.opts.clock.Now()

		results, err := p.round(ctx, active, out.Rounds)
		if err != nil {
			out.Elapsed = p.opts.clock.Now().Sub(start)
			p.opts.recorder.RecordPollOutcome(p.cfg.Name, "error")
			logger.Error("polling aborted", zap.Int("round", out.Rounds), zap.Error(err))
			return out, err
		}

		converging, failed, writes := 0, 0, 0
		for i, r := range results {
			converging += r.converging
			writes += r.writes
			failed += len(r.failed)
			active[i].Targets = dropFailed(active[i].Targets, r.failed)
		}
		out.Failed += failed
		active = dropEmpty(active)

		elapsed := p.opts.clock.Now().Sub(start)
		p.opts.recorder.RecordPollRound(p.cfg.Name, p.opts.clock.Now().Sub(roundStart), converging)
		logger.Info("round completed",
			zap.Int("round", out.Rounds),
			zap.Int("converging", converging),
			zap.Int("failed", failed),
			zap.Int("writes", writes),
			zap.Duration("elapsed", elapsed))

		if converging == 0 {
			out.Kind = OutcomeConverged
			out.Elapsed = elapsed
			p.opts.recorder.RecordPollOutcome(p.cfg.Name, string(OutcomeConverged))
			return out, nil
		}
		if elapsed > p.cfg.Timeout {
			out.Kind = OutcomeTimeout
			out.Elapsed = elapsed
			p.opts.recorder.RecordPollOutcome(p.cfg.Name, string(OutcomeTimeout))
			logger.Warn("polling timed out", zap.Duration("timeout", p.cfg.Timeout), zap.Int("converging", converging))
			return out, nil
		}

		if err := p.opts.clock.Sleep(ctx, p.cfg.Delay); err != nil {
			out.Elapsed = p.opts.clock.Now().Sub(start)
			return out, err
		}
	}
}

func (p *Poller[R]) round(ctx context.Context, groups []Group, n int) ([]groupResult, error) {
	ctx, span := p.opts.tracer.Start(ctx, "convergence.round", trace.WithAttributes(
		attribute.String("poller", p.cfg.Name),
		attribute.Int("round", n),
		attribute.Int("groups", len(groups)),
	))
	defer span.End()

	results := make([]groupResult, len(groups))

	if !p.cfg.Parallel {
		for i := range groups {
			r, err := p.processGroup(ctx, &groups[i])
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.cfg.MaxParallelGroups > 0 {
		g.SetLimit(p.cfg.MaxParallelGroups)
	}
	for i := range groups {
		g.Go(func() error {
			r, err := p.processGroup(gctx, &groups[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}

// processGroup 处理单个分组；凭证或拉取失败视为暂时错误，分组内目标计为仍在收敛
func (p *Poller[R]) processGroup(ctx context.Context, g *Group) (groupResult, error) {
	res := groupResult{failed: make(map[string]bool)}
	logger := p.opts.logger.With(zap.String("account_id", g.AccountID), zap.String("region", g.Region))

	creds, err := p.creds.Acquire(ctx, g.AccountID, g.Region)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		logger.Warn("credential acquisition failed, retrying next round", zap.Error(err))
		res.converging = len(g.Targets)
		return res, nil
	}

	raw, err := p.fetch.Fetch(ctx, creds, *g)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		logger.Warn("status fetch failed, retrying next round", zap.Error(err))
		res.converging = len(g.Targets)
		return res, nil
	}

	now := p.opts.clock.Now()
	for i := range g.Targets {
		t := &g.Targets[i]
		payload, ok := raw[t.ProviderID]
		c := p.classify(payload, ok, now)

		if display := c.Display(); display != t.Status {
			if err := p.persist(ctx, t.ID, display); err != nil {
				return res, err
			}
			logger.Debug("status changed",
				zap.String("target_id", t.ID),
				zap.String("from", t.Status),
				zap.String("to", display))
			t.Status = display
			res.writes++
		}

		switch {
		case c.Status.IsPermanentFailure():
			res.failed[t.ID] = true
		case !c.Status.IsTerminalSuccess():
			res.converging++
		}
	}
	return res, nil
}

func (p *Poller[R]) persist(ctx context.Context, targetID, status string) error {
	code, err := p.writer.WriteStatus(ctx, targetID, status)
	switch {
	case err != nil:
		p.opts.recorder.RecordStatusWrite(p.cfg.Name, "error")
		return types.WrapError(err, types.ErrUpstreamError, fmt.Sprintf("write status for %s", targetID))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		p.opts.recorder.RecordStatusWrite(p.cfg.Name, "denied")
		return types.NewAccessDeniedError(p.cfg.Writer, code)
	case code < 200 || code > 299:
		p.opts.recorder.RecordStatusWrite(p.cfg.Name, "rejected")
		return types.NewError(types.ErrWriteRejected, fmt.Sprintf("status write for %s returned %d", targetID, code)).
			WithHTTPStatus(code).
			WithProvider(p.cfg.Writer)
	}
	p.opts.recorder.RecordStatusWrite(p.cfg.Name, "ok")
	return nil
}

func cloneGroups(groups []Group) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		if len(g.Targets) == 0 {
			continue
		}
		g.Targets = append([]Target(nil), g.Targets...)
		out = append(out, g)
	}
	return out
}

func dropFailed(targets []Target, failed map[string]bool) []Target {
	if len(failed) == 0 {
		return targets
	}
	kept := targets[:0]
	for _, t := range targets {
		if !failed[t.ID] {
			kept = append(kept, t)
		}
	}
	return kept
}

func dropEmpty(groups []Group) []Group {
	kept := groups[:0]
	for _, g := range groups {
		if len(g.Targets) > 0 {
			kept = append(kept, g)
		}
	}
	return kept
}
