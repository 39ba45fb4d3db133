// Package livepass propagates tracked imaging satellites with SGP4 and
// reports their sub-satellite points on a fixed interval.
package livepass

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/logging"
)

// Position is a satellite's ground track point at a moment.
type Position struct {
	Name       string    `json:"name"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AltitudeKm float64   `json:"altitudeKm"`
	VelocityKm float64   `json:"velocityKmS"`
	At         time.Time `json:"at"`
}

type orbit struct {
	name string
	sat  satellite.Satellite
}

// Tracker holds the parsed orbits of every tracked satellite.
type Tracker struct {
	orbits   []orbit
	interval time.Duration
	now      func() time.Time
	log      logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker parses the TLEs. Malformed entries are reported and skipped.
func NewTracker(sats []config.TrackedSatellite, interval time.Duration, log logging.Logger) (*Tracker, error) {
	if log == nil {
		log = logging.Noop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := &Tracker{interval: interval, now: time.Now, log: log}

	var invalid []string
	for _, s := range sats {
		if err := ValidateTLE(s.Line1, s.Line2); err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}
		t.orbits = append(t.orbits, orbit{
			name: s.Name,
			sat:  satellite.TLEToSat(s.Line1, s.Line2, satellite.GravityWGS72),
		})
	}
	if len(invalid) > 0 {
		return t, fmt.Errorf("skipped invalid TLEs: %s", strings.Join(invalid, "; "))
	}
	return t, nil
}

// ValidateTLE checks the two-line structure before it reaches the SGP4
// parser.
func ValidateTLE(line1, line2 string) error {
	line1, line2 = strings.TrimRight(line1, " \r\n"), strings.TrimRight(line2, " \r\n")
	if len(line1) != 69 || len(line2) != 69 {
		return fmt.Errorf("TLE lines must be 69 characters, got %d and %d", len(line1), len(line2))
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("TLE lines must start with \"1 \" and \"2 \"")
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("TLE catalog numbers differ: %s vs %s", line1[2:7], line2[2:7])
	}
	return nil
}

// Len returns the number of usable orbits.
func (t *Tracker) Len() int { return len(t.orbits) }

// PositionsAt propagates every orbit to at.
func (t *Tracker) PositionsAt(at time.Time) []Position {
	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	out := make([]Position, 0, len(t.orbits))
	for _, o := range t.orbits {
		posECI, _ := satellite.Propagate(o.sat, year, int(month), day, hour, min, sec)
		alt, vel, ll := satellite.ECIToLLA(posECI, gmst)
		deg := satellite.LatLongDeg(ll)
		if math.IsNaN(deg.Latitude) || math.IsNaN(deg.Longitude) {
			continue
		}
		out = append(out, Position{
			Name:       o.name,
			Lat:        deg.Latitude,
			Lon:        normalizeLon(deg.Longitude),
			AltitudeKm: alt,
			VelocityKm: vel,
			At:         at,
		})
	}
	return out
}

func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Start reports positions to emit on every tick until Stop. Ticks never
// wait for a slow emit.
func (t *Tracker) Start(ctx context.Context, emit func([]Position)) {
	t.mu.Lock()
	if t.cancel != nil || len(t.orbits) == 0 {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				positions := t.PositionsAt(t.now())
				t.wg.Add(1)
				go func() {
					defer t.wg.Done()
					emit(positions)
				}()
			}
		}
	}()
	t.log.Debug(ctx, "livepass.started", logging.Int("satellites", len(t.orbits)))
}

// Stop halts the ticker.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}
