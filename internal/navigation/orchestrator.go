// Package navigation sequences a navigation request: resolve the place,
// fly to it, search the catalog around it, and reveal the results once the
// flight has landed.
package navigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"

	"satfusion-desktop/internal/apperr"
	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/common"
	"satfusion-desktop/internal/footprint"
	"satfusion-desktop/internal/geo"
	"satfusion-desktop/internal/geocode"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/observability"
	"satfusion-desktop/internal/utils/naming"
)

// Geocoder resolves place names.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Searcher queries the imagery catalog.
type Searcher interface {
	Search(ctx context.Context, req backend.SearchRequest) ([]backend.SearchResult, error)
}

// Sink receives the orchestrator's UI-facing events. Calls are made without
// holding the orchestrator's lock and may come from any goroutine.
type Sink interface {
	FlightStarted(target Target, duration time.Duration)
	Landed(target Target)
	FootprintsPublished(target Target, fc *geojson.FeatureCollection, results []backend.SearchResult)
	NavigationFailed(req Request, err error)
}

// Config tunes the orchestrator.
type Config struct {
	FlightDuration   time.Duration
	TargetZoom       float64
	SearchWindowDays int
	// SourceID picks the catalog source to search at dispatch time.
	SourceID func() string
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.FlightDuration <= 0 {
		c.FlightDuration = 3 * time.Second
	}
	if c.TargetZoom <= 0 {
		c.TargetZoom = 12
	}
	if c.SearchWindowDays <= 0 {
		c.SearchWindowDays = 30
	}
	if c.SourceID == nil {
		c.SourceID = func() string { return common.SourceSentinel2 }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// flight is one accepted navigation. Its fields are guarded by the
// orchestrator's mutex.
type flight struct {
	gen       uint64
	target    Target
	landed    bool
	searched  bool
	results   []backend.SearchResult
	published bool
}

// Orchestrator owns the single FlightState. At most one flight animates at
// a time; requests arriving meanwhile are dropped.
type Orchestrator struct {
	geocoder Geocoder
	searcher Searcher
	animator Animator
	sink     Sink
	log      logging.Logger
	metrics  *observability.Collector
	cfg      Config

	mu        sync.Mutex
	phase     Phase
	resolving int
	current   *flight
	gen       uint64
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option            { return func(o *Orchestrator) { o.log = l } }
func WithMetrics(m *observability.Collector) Option { return func(o *Orchestrator) { o.metrics = m } }
func WithAnimator(a Animator) Option                { return func(o *Orchestrator) { o.animator = a } }

// New creates an orchestrator in the Idle phase.
func New(geocoder Geocoder, searcher Searcher, sink Sink, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		geocoder: geocoder,
		searcher: searcher,
		sink:     sink,
		animator: TimerAnimator{},
		log:      logging.Noop(),
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a snapshot of the flight state.
func (o *Orchestrator) State() FlightState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := FlightState{Phase: o.phase}
	if o.current != nil && (o.phase == Animating || o.phase == Landed) {
		t := o.current.target
		st.Target = &t
	}
	return st
}

// NavigateTo runs one navigation. It returns once the flight has started;
// landing and result publication happen asynchronously. A request made
// while a flight is animating returns ErrConflictingRequest and has no
// effect. An unresolvable place returns ErrNotFound.
func (o *Orchestrator) NavigateTo(ctx context.Context, req Request) error {
	ctx, span := observability.Tracer().Start(ctx, "navigation.navigate")
	defer span.End()
	span.SetAttributes(attribute.String("navigation.place", req.PlaceName))

	if o.isAnimating() {
		return o.drop(ctx, req)
	}

	o.beginResolving()
	target, err := o.resolve(ctx, req)
	if err != nil {
		o.endResolving()
		o.metrics.ObserveNavigation("not_found")
		o.log.Info(ctx, "navigation.not_found",
			logging.String("place", req.PlaceName),
			logging.Err(err))
		o.sink.NavigationFailed(req, err)
		return err
	}

	f, ok := o.startFlight(target)
	if !ok {
		return o.drop(ctx, req)
	}
	span.SetAttributes(attribute.String("navigation.target_id", target.ID))

	o.log.Info(ctx, "navigation.flight_started",
		logging.String("target_id", target.ID),
		logging.String("display_name", target.DisplayName),
		logging.Float("lat", target.Lat),
		logging.Float("lon", target.Lon))
	o.sink.FlightStarted(target, o.cfg.FlightDuration)

	detached := context.WithoutCancel(ctx)
	o.dispatchSearch(detached, f)
	o.animator.Animate(target, o.cfg.FlightDuration, func() { o.land(detached, f) })
	return nil
}

func (o *Orchestrator) isAnimating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase == Animating
}

func (o *Orchestrator) drop(ctx context.Context, req Request) error {
	o.metrics.ObserveNavigation("dropped")
	o.log.Info(ctx, "navigation.dropped",
		logging.String("place", req.PlaceName),
		logging.Float("lat", req.Lat),
		logging.Float("lon", req.Lon))
	return apperr.New("navigation.navigate", apperr.KindConflictingRequest, nil)
}

func (o *Orchestrator) beginResolving() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolving++
	if o.phase == Idle {
		o.phase = Resolving
	}
}

func (o *Orchestrator) endResolving() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolving--
	if o.phase == Resolving && o.resolving == 0 {
		o.phase = Idle
	}
}

// startFlight is the atomic check-and-set from Resolving to Animating.
func (o *Orchestrator) startFlight(target Target) (*flight, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolving--
	if o.phase == Animating {
		return nil, false
	}
	o.gen++
	f := &flight{gen: o.gen, target: target}
	o.current = f
	o.phase = Animating
	return f, true
}

func (o *Orchestrator) resolve(ctx context.Context, req Request) (Target, error) {
	t := Target{
		ID:         uuid.NewString(),
		Lat:        req.Lat,
		Lon:        req.Lon,
		Zoom:       req.Zoom,
		OriginRect: req.OriginRect,
	}
	if t.Zoom <= 0 {
		t.Zoom = o.cfg.TargetZoom
	}
	box := req.BBox
	t.DisplayName = req.DisplayName

	if req.PlaceName != "" {
		if lat, lon, ok := geo.ParseCoordinateLiteral(req.PlaceName); ok {
			t.Lat, t.Lon = lat, lon
		} else {
			results, err := o.geocoder.Search(ctx, req.PlaceName)
			if err != nil {
				return Target{}, apperr.New("navigation.resolve", apperr.KindNotFound, fmt.Errorf("geocoding %q: %w", req.PlaceName, err))
			}
			if len(results) == 0 {
				return Target{}, apperr.New("navigation.resolve", apperr.KindNotFound, fmt.Errorf("no place matches %q", req.PlaceName))
			}
			best := results[0]
			t.Lat, t.Lon = best.Lat, best.Lon
			if len(box) == 0 {
				box = best.BBox
			}
			if t.DisplayName == "" {
				t.DisplayName = best.DisplayName
			}
		}
	}
	if t.DisplayName == "" {
		t.DisplayName = naming.CoordinateLabel(t.Lat, t.Lon)
	}

	var converted bool
	t.BBox, converted = geo.SearchBox(box, t.Lat, t.Lon)
	t.BBoxGenerated = !converted
	if !converted && len(box) > 0 {
		o.log.Info(ctx, "navigation.bbox_malformed",
			logging.Any("bbox", []string(box)))
	}
	return t, nil
}

func (o *Orchestrator) dispatchSearch(ctx context.Context, f *flight) {
	start, end := common.SearchWindow(o.cfg.Now(), o.cfg.SearchWindowDays)
	req := backend.SearchRequest{
		SourceID:  o.cfg.SourceID(),
		BBox:      f.target.BBox.Slice(),
		StartDate: start,
		EndDate:   end,
	}
	go func() {
		results, err := o.searcher.Search(ctx, req)
		o.completeSearch(ctx, f, results, err)
	}()
}

func (o *Orchestrator) completeSearch(ctx context.Context, f *flight, results []backend.SearchResult, err error) {
	if err != nil {
		o.log.Info(ctx, "navigation.search_failed",
			logging.String("target_id", f.target.ID),
			logging.Err(err))
		results = []backend.SearchResult{}
	}

	o.mu.Lock()
	f.searched = true
	f.results = results
	o.mu.Unlock()

	o.publishIfReady(ctx, f)
}

// land is the animator's completion callback.
func (o *Orchestrator) land(ctx context.Context, f *flight) {
	o.mu.Lock()
	if f.landed {
		o.mu.Unlock()
		return
	}
	f.landed = true
	if o.current == f {
		o.phase = Landed
	}
	o.mu.Unlock()

	o.metrics.ObserveNavigation("landed")
	o.log.Info(ctx, "navigation.landed", logging.String("target_id", f.target.ID))
	o.sink.Landed(f.target)
	o.publishIfReady(ctx, f)

	o.mu.Lock()
	if o.current == f && o.phase == Landed {
		o.phase = Idle
		if o.resolving > 0 {
			o.phase = Resolving
		}
	}
	o.mu.Unlock()
}

// publishIfReady publishes a flight's results exactly once, after it has
// landed and its search has returned, unless a newer flight has started. A
// failed search publishes an empty collection so the previous footprints
// are cleared.
func (o *Orchestrator) publishIfReady(ctx context.Context, f *flight) {
	o.mu.Lock()
	ready := f.landed && f.searched && !f.published && f.gen == o.gen
	if ready {
		f.published = true
	}
	results := f.results
	o.mu.Unlock()
	if !ready {
		return
	}

	fc := footprint.ToOverlayGeometry(results)
	o.metrics.SetFootprints(len(fc.Features))
	o.log.Info(ctx, "navigation.footprints_published",
		logging.String("target_id", f.target.ID),
		logging.Int("count", len(fc.Features)))
	o.sink.FootprintsPublished(f.target, fc, results)
}
