package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/id"
	"github.com/queryclip/queryclip-server/internal/ratelimit"
	"github.com/queryclip/queryclip-server/internal/sse"
)

// Mode selects how a batch run commits its results.
type Mode string

const (
	// ModeSingle is a one-off capture, committed immediately.
	ModeSingle Mode = "single"
	// ModeBurst captures a sequence and commits each item as it lands, so
	// the panel fills in while the run is still going.
	ModeBurst Mode = "burst"
	// ModeMarked captures a set of pre-marked timestamps and commits them
	// all at once when the run finishes, so a half-failed run never leaves
	// a partial set in the collection.
	ModeMarked Mode = "marked"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateQueuing    State = "queuing"
	StateProcessing State = "processing"
)

// Status describes the current batch run.
type Status struct {
	State     State  `json:"state"`
	BatchID   string `json:"batchId,omitempty"`
	Mode      Mode   `json:"mode,omitempty"`
	Total     int    `json:"total,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Failed    int    `json:"failed,omitempty"`
}

// Orchestrator runs batch captures strictly sequentially: one capture in
// flight at a time, paced so the capture service is never hammered. Only
// one batch may run at a time.
type Orchestrator struct {
	capturer Capturer
	store    *collection.Store
	emitter  collection.EventEmitter
	logger   *slog.Logger

	pacer   *ratelimit.KeyedRateLimiter
	timeout time.Duration

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pacerKey is the single key used for capture pacing; the limiter is keyed
// so the same limiter type serves inbound protection elsewhere.
const pacerKey = "capture-service"

// NewOrchestrator creates an orchestrator pacing captures at least `pacing`
// apart, with a per-capture timeout.
func NewOrchestrator(capturer Capturer, store *collection.Store, pacing, timeout time.Duration, logger *slog.Logger, emitter collection.EventEmitter) *Orchestrator {
	return &Orchestrator{
		capturer: capturer,
		store:    store,
		emitter:  emitter,
		logger:   logger,
		pacer:    ratelimit.New(1/pacing.Seconds(), 1),
		timeout:  timeout,
		status:   Status{State: StateIdle},
	}
}

// Status returns the current run status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Run starts a batch capture. Returns the batch id, or a busy error when a
// run is already in progress.
func (o *Orchestrator) Run(mode Mode, requests []Request) (string, error) {
	if len(requests) == 0 {
		return "", qerrors.Validation("batch has no capture requests")
	}
	if mode == ModeSingle && len(requests) != 1 {
		return "", qerrors.Validation("single mode takes exactly one request")
	}

	o.mu.Lock()
	if o.status.State != StateIdle {
		o.mu.Unlock()
		return "", qerrors.BatchBusy("a capture batch is already running")
	}

	batchID := id.MustGenerate(id.PrefixBatch)
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.status = Status{
		State:   StateQueuing,
		BatchID: batchID,
		Mode:    mode,
		Total:   len(requests),
	}
	o.wg.Add(1)
	o.mu.Unlock()

	o.emitter.Emit(sse.NewBatchStartedEvent(batchID, string(mode), len(requests)))
	go o.run(ctx, batchID, mode, requests)

	return batchID, nil
}

// Cancel stops the current run. The capture in flight finishes; remaining
// requests are skipped. Cancelling an idle orchestrator is a no-op.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close cancels any running batch and waits for it to wind down.
func (o *Orchestrator) Close() error {
	o.Cancel()
	o.wg.Wait()
	o.pacer.Stop()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, batchID string, mode Mode, requests []Request) {
	defer o.wg.Done()

	o.setState(StateProcessing)

	var captured []domain.Item
	var succeeded, failed int
	cancelled := false

	for i, req := range requests {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		// Pace: the first capture goes immediately (burst of one), every
		// subsequent one waits out the pacing interval.
		if err := o.pacer.Wait(ctx, pacerKey); err != nil {
			cancelled = true
			break
		}

		item, err := o.captureOne(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			failed++
			o.logger.Warn("capture failed, continuing batch",
				"batch_id", batchID, "index", i, "error", err)
			o.emitter.Emit(sse.NewBatchItemFailedEvent(batchID, i, err.Error()))
			o.bumpProgress(batchID, i+1, len(requests)-i-1, failed)
			continue
		}

		succeeded++
		switch mode {
		case ModeMarked:
			captured = append(captured, *item)
		default:
			if _, err := o.store.Append(*item); err != nil {
				o.logger.Error("failed to commit captured item",
					"batch_id", batchID, "item_id", item.ID, "error", err)
				succeeded--
				failed++
			}
		}
		o.bumpProgress(batchID, i+1, len(requests)-i-1, failed)
	}

	// Marked runs land as one batch so the panel sees them together.
	if mode == ModeMarked && len(captured) > 0 {
		if _, err := o.store.Append(captured...); err != nil {
			o.logger.Error("failed to commit marked batch",
				"batch_id", batchID, "items", len(captured), "error", err)
			failed += len(captured)
			succeeded -= len(captured)
		}
	}

	o.mu.Lock()
	o.cancel = nil
	o.status = Status{State: StateIdle}
	o.mu.Unlock()

	if cancelled {
		o.logger.Info("batch cancelled", "batch_id", batchID, "succeeded", succeeded, "failed", failed)
		o.emitter.Emit(sse.NewBatchCancelledEvent(batchID, succeeded, failed))
		return
	}
	o.logger.Info("batch completed", "batch_id", batchID, "succeeded", succeeded, "failed", failed)
	o.emitter.Emit(sse.NewBatchCompletedEvent(batchID, succeeded, failed))
}

func (o *Orchestrator) captureOne(ctx context.Context, req Request) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.capturer.Capture(ctx, req)
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.State = state
}

func (o *Orchestrator) bumpProgress(batchID string, completed, remaining, failed int) {
	o.mu.Lock()
	o.status.Completed = completed
	o.status.Failed = failed
	o.mu.Unlock()
	o.emitter.Emit(sse.NewBatchProgressEvent(batchID, completed, remaining))
}
