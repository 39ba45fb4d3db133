// Package analytics sends anonymous usage events to PostHog when a project
// key was linked into the build and the user has opted in.
package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"

	"satfusion-desktop/internal/logging"
)

// Tracker records usage events.
type Tracker interface {
	Track(event string, props map[string]interface{})
	Close() error
}

type noop struct{}

func (noop) Track(string, map[string]interface{}) {}
func (noop) Close() error                         { return nil }

// Noop returns a tracker that drops every event.
func Noop() Tracker { return noop{} }

type client struct {
	ph         posthog.Client
	distinctID string
}

// New returns a PostHog tracker, or a no-op tracker when key is empty or
// analytics are disabled. installID identifies this installation.
func New(key, host, installID string, enabled bool, log logging.Logger) Tracker {
	if key == "" || !enabled {
		return Noop()
	}
	if log == nil {
		log = logging.Noop()
	}
	ph, err := posthog.NewWithConfig(key, posthog.Config{Endpoint: host})
	if err != nil {
		log.Warn(context.Background(), "analytics.init_failed", logging.Err(err))
		return Noop()
	}
	if installID == "" {
		installID = NewInstallID()
	}
	return &client{ph: ph, distinctID: installID}
}

// NewInstallID generates a random installation identifier.
func NewInstallID() string { return uuid.NewString() }

func (c *client) Track(event string, props map[string]interface{}) {
	_ = c.ph.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: props,
	})
}

func (c *client) Close() error { return c.ph.Close() }
