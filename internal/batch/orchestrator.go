// Package batch runs lists of URLs sequentially in the background under a
// single progress id.
package batch

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/internal/progress"
	"streamrelay/observability/types"
)

// Unit processes one item of a batch.
type Unit interface {
	Process(ctx context.Context, item Item) error
}

// UnitFunc adapts a function to Unit.
type UnitFunc func(ctx context.Context, item Item) error

// Process implements Unit
func (f UnitFunc) Process(ctx context.Context, item Item) error { return f(ctx, item) }

// Item is one URL of a batch.
type Item struct {
	BatchID string
	Index   int
	Total   int
	URL     string
}

// Result is delivered on Task.Done once the batch stops.
type Result struct {
	BatchID   string
	Total     int
	Processed int
	Status    progress.Status
	Err       error
}

// Task is a running batch.
type Task struct {
	id     string
	total  int
	cancel context.CancelFunc
	done   chan Result
}

// ID returns the batch id, which is also its progress id.
func (t *Task) ID() string { return t.id }

// Total returns the number of items.
func (t *Task) Total() int { return t.total }

// Cancel stops the batch before its next item. The item in flight sees
// its context cancelled.
func (t *Task) Cancel() { t.cancel() }

// Done yields the final Result exactly once.
func (t *Task) Done() <-chan Result { return t.done }

// Orchestrator starts and tracks batches.
type Orchestrator struct {
	tracker progress.Tracker
	unit    Unit
	cfg     config.BatchConfig
	logger  types.Logger
	metrics types.Metrics

	base context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*Task
	wg    sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator. Batches outlive the request
// that started them and end on Shutdown.
func NewOrchestrator(tracker progress.Tracker, unit Unit, cfg config.BatchConfig, logger types.Logger, metrics types.Metrics) *Orchestrator {
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		tracker: tracker,
		unit:    unit,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		base:    base,
		stop:    stop,
		tasks:   make(map[string]*Task),
	}
}

// Start validates urls, registers a new batch id and returns at once.
// Items run one after another; the first failure stops the batch.
func (o *Orchestrator) Start(urls []string, l domain.Localizer) (*Task, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if len(cleaned) == 0 {
		return nil, domain.Validation(domain.MsgMissingParams, "no urls given")
	}
	if o.cfg.MaxItems > 0 && len(cleaned) > o.cfg.MaxItems {
		return nil, domain.Validation(domain.MsgTooManyItems, "batch exceeds the item limit")
	}
	for i, u := range cleaned {
		valid, err := media.ValidateURL(u)
		if err != nil {
			return nil, err
		}
		cleaned[i] = valid
	}
	if o.base.Err() != nil {
		return nil, domain.Internal(errors.New("orchestrator is shut down"))
	}

	id := uuid.NewString()
	if err := o.tracker.Claim(id, l.Message(domain.MsgStatusStarting)); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.WithValue(o.base, types.DownloadIDKey, id))
	task := &Task{
		id:     id,
		total:  len(cleaned),
		cancel: cancel,
		done:   make(chan Result, 1),
	}

	o.mu.Lock()
	o.tasks[id] = task
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		result := o.run(ctx, task, cleaned, l)

		o.mu.Lock()
		delete(o.tasks, id)
		o.mu.Unlock()

		task.done <- result
		close(task.done)
	}()

	o.logger.Info(ctx, "batch started", types.Fields{"total": task.total})
	return task, nil
}

func (o *Orchestrator) run(ctx context.Context, task *Task, urls []string, l domain.Localizer) Result {
	o.metrics.StartOperation("batch")
	defer o.metrics.EndOperation("batch")

	result := Result{BatchID: task.id, Total: task.total}

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return o.cancelled(ctx, result, l)
		}

		percent := i * 100 / task.total
		o.tracker.Update(task.id, progress.StatusDownloading, percent,
			l.Format(domain.MsgStatusBatchItem, map[string]int{"n": i + 1, "total": task.total}))

		err := o.unit.Process(ctx, Item{BatchID: task.id, Index: i, Total: task.total, URL: u})
		if err != nil {
			if ctx.Err() != nil {
				return o.cancelled(ctx, result, l)
			}
			o.tracker.Update(task.id, progress.StatusError, percent, l.ErrorMessage(err))
			o.metrics.RecordError("batch", string(domain.KindOf(err)))
			o.logger.Error(ctx, "batch item failed", err, types.Fields{
				"index": i,
				"url":   u,
			})
			result.Status = progress.StatusError
			result.Err = err
			return result
		}
		result.Processed++
	}

	o.tracker.Update(task.id, progress.StatusCompleted, 100, l.Message(domain.MsgStatusCompleted))
	o.metrics.RecordSuccess("batch")
	o.logger.Info(ctx, "batch completed", types.Fields{"total": task.total})
	result.Status = progress.StatusCompleted
	return result
}

func (o *Orchestrator) cancelled(ctx context.Context, result Result, l domain.Localizer) Result {
	o.tracker.Update(result.BatchID, progress.StatusError, 0, l.Message(domain.MsgStatusCancelled))
	o.logger.Warn(ctx, "batch cancelled", types.Fields{"processed": result.Processed})
	result.Status = progress.StatusError
	result.Err = context.Canceled
	return result
}

// Task returns the running batch with id.
func (o *Orchestrator) Task(id string) (*Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	return t, ok
}

// Running returns the number of batches still in flight.
func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tasks)
}

// Shutdown cancels every batch and waits for them to stop or ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
