// Package cli is the headless front end: it drives the viewer core from
// the command line and prints results and events as JSON.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/navigation"
	"satfusion-desktop/internal/viewer"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	settingsPath string
	backendURL   string
	geocoderURL  string
	debug        bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "satfusion",
		Short:        "Headless SatFusion imagery viewer",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "Settings file (defaults to the desktop app's settings)")
	cmd.PersistentFlags().StringVar(&opts.backendURL, "backend", "", "Backend base URL (overrides settings)")
	cmd.PersistentFlags().StringVar(&opts.geocoderURL, "geocoder", "", "Geocoder base URL (overrides settings)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging on stderr")

	cmd.AddCommand(
		paintCmd(opts),
		navigateCmd(opts),
		inspectCmd(opts),
		whereCmd(opts),
		healthCmd(opts),
		askCmd(opts),
		passesCmd(opts),
	)
	return cmd
}

func (o *globalOptions) loadSettings() (*config.UserSettings, error) {
	var (
		s   *config.UserSettings
		err error
	)
	if o.settingsPath != "" {
		s, err = config.LoadSettingsFrom(o.settingsPath)
	} else {
		s, err = config.LoadSettings()
	}
	if err != nil {
		return nil, err
	}
	if o.backendURL != "" {
		s.BackendURL = o.backendURL
	}
	if o.geocoderURL != "" {
		s.GeocoderURL = o.geocoderURL
	}
	return s, nil
}

// open builds a viewer whose flights land on a timer.
func (o *globalOptions) open(cmd *cobra.Command, emitter viewer.Emitter, tweak func(*config.UserSettings)) (*viewer.Viewer, error) {
	s, err := o.loadSettings()
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(s)
	}

	level := os.Getenv("LOG_LEVEL")
	if o.debug {
		level = "debug"
	}
	return viewer.New(viewer.Config{
		Settings: s,
		Emitter:  emitter,
		Animator: navigation.TimerAnimator{},
		Logger: logging.New(logging.Config{
			Level:  level,
			Format: os.Getenv("LOG_FORMAT"),
			Output: cmd.ErrOrStderr(),
		}),
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// eventStream writes each viewer event as one JSON line and notifies
// waiters of its name.
type eventStream struct {
	mu   sync.Mutex
	enc  *json.Encoder
	seen chan string
}

func newEventStream(w io.Writer) *eventStream {
	return &eventStream{enc: json.NewEncoder(w), seen: make(chan string, 64)}
}

type streamedEvent struct {
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

func (e *eventStream) Emit(name string, payload any) {
	e.mu.Lock()
	_ = e.enc.Encode(streamedEvent{Event: name, At: time.Now().UTC(), Payload: payload})
	e.mu.Unlock()
	select {
	case e.seen <- name:
	default:
	}
}
