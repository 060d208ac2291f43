// Package dispatch runs pipeline invocations in the background. Triggers get
// a run ID back at once; runs are capped in number and serialized per project.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tomehq/tome/internal/delivery"
	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/models"
	"github.com/tomehq/tome/internal/pipeline"
	"github.com/tomehq/tome/internal/runlock"
)

// Runner executes pipelines. *pipeline.Pipeline implements it.
type Runner interface {
	RunPush(ctx context.Context, projectID, before, after string) (*pipeline.PushResult, error)
	RunScan(ctx context.Context, projectID string) (*models.ScanSummary, error)
}

// Deliveries deduplicates push triggers. *delivery.Tracker implements it.
type Deliveries interface {
	Claim(key, runID string) (bool, error)
	Release(key string) error
}

// ActivityLog receives the run_skipped entries the dispatcher writes itself.
type ActivityLog interface {
	LogActivity(ctx context.Context, projectID string, event models.EventType, summary string, details map[string]any) error
}

// Kind names the pipeline a run executes.
type Kind string

const (
	KindPush Kind = "push"
	KindScan Kind = "scan"
)

// Outcome is reported once per submitted run.
type Outcome struct {
	RunID     string
	Kind      Kind
	ProjectID string
	Skipped   bool
	Push      *pipeline.PushResult
	Scan      *models.ScanSummary
	Err       error
	Duration  time.Duration
}

// Options tunes a Dispatcher.
type Options struct {
	MaxConcurrentRuns int
	RunTimeout        time.Duration
	// Deliveries may be nil, which disables redelivery tracking.
	Deliveries Deliveries
	// OnComplete, if set, is called from the run's goroutine.
	OnComplete func(Outcome)
}

// Dispatcher starts runs asynchronously.
type Dispatcher struct {
	ctx      context.Context
	runner   Runner
	locker   runlock.Locker
	activity ActivityLog
	opts     Options
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New creates a Dispatcher. Runs inherit ctx; cancelling it abandons queued
// runs and cancels running ones.
func New(ctx context.Context, runner Runner, locker runlock.Locker, activity ActivityLog, opts Options) *Dispatcher {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 4
	}
	return &Dispatcher{
		ctx:      ctx,
		runner:   runner,
		locker:   locker,
		activity: activity,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		logger:   slog.Default().With("component", "dispatch"),
	}
}

// PushOption adjusts a single push submission.
type PushOption func(*pushOptions)

type pushOptions struct {
	force bool
}

// Force runs the push even when the same range was already processed. The
// delivery tracker is neither consulted nor updated.
func Force() PushOption {
	return func(o *pushOptions) { o.force = true }
}

// SubmitPush schedules a push run and returns its run ID.
func (d *Dispatcher) SubmitPush(projectID, before, after string, opts ...PushOption) string {
	var po pushOptions
	for _, opt := range opts {
		opt(&po)
	}
	deliveries := d.opts.Deliveries
	if po.force {
		deliveries = nil
	}
	return d.submit(KindPush, projectID, func(ctx context.Context, out *Outcome) {
		key := delivery.Key(projectID, before, after)
		if deliveries != nil {
			claimed, err := deliveries.Claim(key, out.RunID)
			if err != nil {
				d.logger.Warn("delivery tracker unavailable, running anyway", "run_id", out.RunID, "error", err)
			} else if !claimed {
				out.Skipped = true
				d.skip(ctx, projectID, fmt.Sprintf("Push %s..%s already processed", short(before), short(after)), out.RunID)
				return
			}
		}

		out.Push, out.Err = d.runner.RunPush(ctx, projectID, before, after)
		if out.Err != nil && deliveries != nil {
			if err := deliveries.Release(key); err != nil {
				d.logger.Warn("failed to release delivery claim", "run_id", out.RunID, "error", err)
			}
		}
	})
}

// SubmitScan schedules a scan run and returns its run ID.
func (d *Dispatcher) SubmitScan(projectID string) string {
	return d.submit(KindScan, projectID, func(ctx context.Context, out *Outcome) {
		out.Scan, out.Err = d.runner.RunScan(ctx, projectID)
	})
}

// Wait blocks until every submitted run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) submit(kind Kind, projectID string, body func(context.Context, *Outcome)) string {
	runID := uuid.NewString()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		start := time.Now()
		out := Outcome{RunID: runID, Kind: kind, ProjectID: projectID}
		logger := d.logger.With("run_id", runID, "kind", kind, "project", projectID)

		d.execute(&out, body)

		out.Duration = time.Since(start)
		switch {
		case out.Err != nil:
			if errType, severity, ok := errors.Classify(out.Err); ok {
				logger = logger.With("error_type", errType.String(), "severity", severity.String())
			}
			logger.Error("run failed", "error", out.Err, "duration", out.Duration)
		case out.Skipped:
			logger.Info("run skipped", "duration", out.Duration)
		default:
			logger.Info("run finished", "duration", out.Duration)
		}
		if d.opts.OnComplete != nil {
			d.opts.OnComplete(out)
		}
	}()
	return runID
}

func (d *Dispatcher) execute(out *Outcome, body func(context.Context, *Outcome)) {
	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		out.Err = fmt.Errorf("waiting for a run slot: %w", err)
		return
	}
	defer d.sem.Release(1)
	if err := d.ctx.Err(); err != nil {
		out.Err = fmt.Errorf("dispatcher stopped: %w", err)
		return
	}

	ctx := d.ctx
	if d.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.RunTimeout)
		defer cancel()
	}

	release, err := d.locker.Acquire(ctx, out.ProjectID)
	if err != nil {
		out.Err = err
		return
	}
	defer release()

	body(ctx, out)
}

func (d *Dispatcher) skip(ctx context.Context, projectID, summary, runID string) {
	if d.activity == nil {
		return
	}
	if err := d.activity.LogActivity(ctx, projectID, models.EventRunSkipped, summary, map[string]any{"run_id": runID}); err != nil {
		d.logger.Error("failed to record activity", "project", projectID, "error", err)
	}
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
