package fusion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/composite"
)

type slowProcessor struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     map[string]bool
}

func (p *slowProcessor) ProcessFusion(_ context.Context, action string) (backend.FusionResponse, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	if p.fail[action] {
		return backend.FusionResponse{Status: "error", Message: "Unknown action"}, errors.New("rejected")
	}
	return backend.FusionResponse{Status: "success", Message: action + " done"}, nil
}

type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) add(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, s)
}

func (l *statusLog) final() map[string]Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]Status{}
	for _, s := range l.all {
		out[s.OptionID] = s
	}
	return out
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	proc := &slowProcessor{}
	log := &statusLog{}
	r := NewRunner(proc, 2, log.add, nil)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assert.True(t, r.Submit(context.Background(), composite.FusionOption{ID: id, Action: id, Enabled: true}))
	}
	r.Wait()

	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
	final := log.final()
	require.Len(t, final, 5)
	for _, s := range final {
		assert.Equal(t, StateSuccess, s.State)
	}
}

func TestRunnerIgnoresDisabledAndActionless(t *testing.T) {
	r := NewRunner(&slowProcessor{}, 1, nil, nil)
	assert.False(t, r.Submit(context.Background(), composite.FusionOption{ID: "x", Action: "x"}))
	assert.False(t, r.Submit(context.Background(), composite.FusionOption{ID: "y", Enabled: true}))
	r.Wait()
}

func TestRunnerReportsFailure(t *testing.T) {
	proc := &slowProcessor{fail: map[string]bool{"sar-optical": true}}
	log := &statusLog{}
	r := NewRunner(proc, 1, log.add, nil)

	r.Submit(context.Background(), composite.FusionOption{ID: "sar-optical", Action: "sar-optical", Enabled: true})
	r.Wait()

	s := log.final()["sar-optical"]
	assert.Equal(t, StateError, s.State)
	assert.Equal(t, "Unknown action", s.Message)
}
