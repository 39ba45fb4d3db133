// Package fusion forwards enabled fusion options to the backend's
// processing endpoint. Jobs run in the background, bounded by a semaphore;
// their outcome never affects the client-side paint state.
package fusion

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/composite"
	"satfusion-desktop/internal/logging"
)

// Job states.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateSuccess = "success"
	StateError   = "error"
)

// Processor runs a named fusion action.
type Processor interface {
	ProcessFusion(ctx context.Context, action string) (backend.FusionResponse, error)
}

// Status describes a fusion job transition.
type Status struct {
	OptionID string            `json:"optionId"`
	Action   string            `json:"action"`
	State    string            `json:"state"`
	Message  string            `json:"message,omitempty"`
	Metrics  map[string]string `json:"metrics,omitempty"`
}

// Runner executes fusion jobs with at most N in flight.
type Runner struct {
	proc     Processor
	sem      *semaphore.Weighted
	onStatus func(Status)
	log      logging.Logger
	wg       sync.WaitGroup
}

// NewRunner creates a runner allowing maxConcurrent simultaneous jobs.
func NewRunner(proc Processor, maxConcurrent int64, onStatus func(Status), log logging.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Runner{
		proc:     proc,
		sem:      semaphore.NewWeighted(maxConcurrent),
		onStatus: onStatus,
		log:      log,
	}
}

// Submit queues a job for an option that was just enabled. Disabled
// options and options without a backend action are ignored.
func (r *Runner) Submit(ctx context.Context, opt composite.FusionOption) bool {
	if !opt.Enabled || opt.Action == "" {
		return false
	}
	r.emit(Status{OptionID: opt.ID, Action: opt.Action, State: StateQueued})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.emit(Status{OptionID: opt.ID, Action: opt.Action, State: StateError, Message: err.Error()})
			return
		}
		defer r.sem.Release(1)

		r.emit(Status{OptionID: opt.ID, Action: opt.Action, State: StateRunning})
		resp, err := r.proc.ProcessFusion(ctx, opt.Action)
		if err != nil {
			r.log.Info(ctx, "fusion.action_failed",
				logging.String("option", opt.ID),
				logging.String("action", opt.Action),
				logging.Err(err))
			r.emit(Status{OptionID: opt.ID, Action: opt.Action, State: StateError, Message: resp.Message})
			return
		}
		r.log.Debug(ctx, "fusion.action_done",
			logging.String("option", opt.ID),
			logging.String("message", resp.Message))
		r.emit(Status{OptionID: opt.ID, Action: opt.Action, State: StateSuccess, Message: resp.Message, Metrics: resp.Metrics})
	}()
	return true
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) emit(s Status) {
	if r.onStatus != nil {
		r.onStatus(s)
	}
}
