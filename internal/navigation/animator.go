package navigation

import (
	"sync"
	"time"
)

// Animator runs the visual flight to a target and calls done exactly once
// when the animation has finished.
type Animator interface {
	Animate(target Target, duration time.Duration, done func())
}

// AnimatorFunc adapts a function to Animator.
type AnimatorFunc func(target Target, duration time.Duration, done func())

func (f AnimatorFunc) Animate(target Target, duration time.Duration, done func()) {
	f(target, duration, done)
}

// TimerAnimator completes every flight after its configured duration. It is
// used when no renderer reports completion, e.g. headless runs.
type TimerAnimator struct{}

func (TimerAnimator) Animate(_ Target, duration time.Duration, done func()) {
	time.AfterFunc(duration, done)
}

// CallbackAnimator hands flights to a renderer and waits for it to report
// completion through Complete. If the renderer never reports, the flight
// completes after its duration plus Grace.
type CallbackAnimator struct {
	start func(target Target, duration time.Duration)
	grace time.Duration

	mu      sync.Mutex
	pending map[string]*pendingFlight
}

type pendingFlight struct {
	done     func()
	fallback *time.Timer
}

// NewCallbackAnimator creates an animator that calls start to begin the
// visual transition.
func NewCallbackAnimator(start func(Target, time.Duration), grace time.Duration) *CallbackAnimator {
	return &CallbackAnimator{start: start, grace: grace, pending: make(map[string]*pendingFlight)}
}

func (a *CallbackAnimator) Animate(target Target, duration time.Duration, done func()) {
	a.mu.Lock()
	a.pending[target.ID] = &pendingFlight{
		done:     done,
		fallback: time.AfterFunc(duration+a.grace, func() { a.Complete(target.ID) }),
	}
	a.mu.Unlock()

	if a.start != nil {
		a.start(target, duration)
	}
}

// Complete reports that the flight with the given target ID has finished.
// It returns false for unknown or already completed flights.
func (a *CallbackAnimator) Complete(targetID string) bool {
	a.mu.Lock()
	p, ok := a.pending[targetID]
	delete(a.pending, targetID)
	a.mu.Unlock()
	if !ok {
		return false
	}
	p.fallback.Stop()
	p.done()
	return true
}
