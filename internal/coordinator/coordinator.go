package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// ErrStopped is returned by Dispatch once the event loop has exited.
var ErrStopped = errors.New("coordinator stopped")

// MapView is the map widget the coordinator drives.
type MapView interface {
	SetCenter(p domain.Point)
	SetZoom(level int)
	FitToBounds(b domain.BoundingBox)
	ViewportBounds() domain.BoundingBox
	AddMarker(m domain.Marker) domain.MarkerHandle
	RemoveMarker(h domain.MarkerHandle)
}

// TableRenderer replaces the rows of a result table.
type TableRenderer interface {
	RenderRows(table domain.Table, quakes []domain.Quake)
}

// Notifier shows errors to the user.
type Notifier interface {
	Notify(err error)
}

// DisplaySink receives every completed display cycle.
type DisplaySink interface {
	Publish(ctx context.Context, d domain.Display) error
}

// Map positions used by the coordinator.
const (
	PlaceZoom = 17
	WorldZoom = 2
)

// Options tunes the coordinator.
type Options struct {
	InitialCenter domain.Point
	InitialZoom   int
	TopTenMaxRows int
	TopTenSize    int
	TopTenOrder   domain.TopTenOrder
	RevealStep    time.Duration
	FetchTimeout  time.Duration

	// Backoff before refetching a failed world top ten, doubling up to
	// TopTenRetryMax. Zero disables automatic retries.
	TopTenRetry    time.Duration
	TopTenRetryMax time.Duration
}

// DefaultOptions returns the Monterrey starting view and production timings.
func DefaultOptions() Options {
	return Options{
		InitialCenter: domain.Point{Lat: 25.6866, Lng: -100.3161},
		InitialZoom:   8,
		TopTenMaxRows: 500,
		TopTenSize:    10,
		TopTenOrder:   domain.OrderFilterTruncateSort,
		RevealStep:    200 * time.Millisecond,
		FetchTimeout:  30 * time.Second,

		TopTenRetry:    2 * time.Second,
		TopTenRetryMax: 2 * time.Minute,
	}
}

type fetchResult struct {
	kind   string
	seq    uint64
	bounds domain.BoundingBox
	quakes []domain.Quake
	err    error
}

// Coordinator owns the interaction state machine. All state below the
// channels is touched only by the Run goroutine; fetches run concurrently
// and report back through results.
type Coordinator struct {
	source   domain.EarthquakeSource
	mapView  MapView
	tables   TableRenderer
	notifier Notifier
	sink     DisplaySink
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options

	events  chan Event
	results chan fetchResult
	done    chan struct{}
	state   atomic.Int32
	ready   atomic.Bool
	wg      sync.WaitGroup

	markers        []domain.MarkerHandle
	topTen         []domain.Quake
	topTenLoaded   bool
	topTenInFlight bool
	topTenBackoff  time.Duration
	searchSeq      uint64
	cancelSearch   context.CancelFunc
}

// New creates a Coordinator. sink may be nil.
func New(source domain.EarthquakeSource, mapView MapView, tables TableRenderer, notifier Notifier, sink DisplaySink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Coordinator {
	return &Coordinator{
		source:   source,
		mapView:  mapView,
		tables:   tables,
		notifier: notifier,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
		events:   make(chan Event, 16),
		results:  make(chan fetchResult, 4),
		done:     make(chan struct{}),
	}
}

// State returns the current interaction state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// CheckReadiness returns nil once the world top ten has been retrieved.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("coordinator not ready: %w", domain.ErrTopTenNotReady)
	}
	return nil
}

// Dispatch queues ev for the event loop. It may be called before Run starts.
func (c *Coordinator) Dispatch(ctx context.Context, ev Event) error {
	// A stopped loop takes priority over a free queue slot.
	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run initializes the map, starts the world top-ten fetch, and handles events
// until ctx is cancelled. It can only run once per Coordinator.
func (c *Coordinator) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	if err := c.initialize(loopCtx); err != nil {
		cancel()
		return err
	}
	defer close(c.done)
	defer func() {
		cancel()
		c.wg.Wait()
	}()

	c.metrics.CoordinatorRunning.Set(1)
	defer c.metrics.CoordinatorRunning.Set(0)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping", "reason", ctx.Err())
			return nil
		case ev := <-c.events:
			c.metrics.Events.WithLabelValues(ev.eventName()).Inc()
			c.handleEvent(loopCtx, ev)
		case res := <-c.results:
			c.handleResult(loopCtx, res)
		}
	}
}

// initialize positions the map and starts the world top-ten fetch.
func (c *Coordinator) initialize(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(Uninitialized), int32(MapReady)) {
		return domain.ErrAlreadyInitialized
	}
	c.logger.Info("coordinator started", "center_lat", c.opts.InitialCenter.Lat, "center_lng", c.opts.InitialCenter.Lng, "zoom", c.opts.InitialZoom)

	c.mapView.SetCenter(c.opts.InitialCenter)
	c.mapView.SetZoom(c.opts.InitialZoom)
	c.startTopTenFetch(ctx)
	return nil
}

func (c *Coordinator) handleEvent(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case PlaceSelected:
		c.onPlaceSelected(ctx, ev.Place)
	case TopTenRequested:
		c.onTopTenRequested(ctx)
	default:
		c.logger.Warn("unknown event", "event", ev.eventName())
	}
}

func (c *Coordinator) onPlaceSelected(ctx context.Context, place domain.Place) {
	c.setState(AwaitingQuery)

	if !place.HasGeometry() {
		c.present(&domain.NoGeometryError{Place: place.Name})
		c.setState(MapReady)
		return
	}

	if place.Viewport != nil {
		c.mapView.FitToBounds(*place.Viewport)
	} else {
		c.mapView.SetCenter(*place.Location)
		c.mapView.SetZoom(PlaceZoom)
	}
	bbox := c.mapView.ViewportBounds()

	searchCtx := c.supersedeSearch(ctx)
	c.logger.Info("place selected", "place", place.Name, "bounds", bbox.String(), "seq", c.searchSeq)
	c.startFetch(ctx, searchCtx, domain.DisplaySearch, c.searchSeq, bbox, 0, 0)
}

// supersedeSearch cancels any in-flight search and returns the context for
// the next one. Results carrying an older sequence number are dropped.
func (c *Coordinator) supersedeSearch(ctx context.Context) context.Context {
	if c.cancelSearch != nil {
		c.cancelSearch()
	}
	c.searchSeq++
	searchCtx, cancel := context.WithCancel(ctx)
	c.cancelSearch = cancel
	return searchCtx
}

func (c *Coordinator) onTopTenRequested(ctx context.Context) {
	if !c.topTenLoaded {
		c.present(domain.ErrTopTenNotReady)
		if !c.topTenInFlight {
			c.startTopTenFetch(ctx)
		}
		return
	}

	// The world view replaces whatever search is still pending.
	if c.cancelSearch != nil {
		c.supersedeSearch(ctx)
		c.cancelSearch()
		c.cancelSearch = nil
	}
	if c.State() == AwaitingQuery {
		c.setState(MapReady)
	}

	c.mapView.SetCenter(domain.Point{Lat: 0, Lng: 0})
	c.mapView.SetZoom(WorldZoom)
	c.plotMarkers(c.topTen)
}

func (c *Coordinator) startTopTenFetch(ctx context.Context) {
	c.topTenInFlight = true
	c.startFetch(ctx, ctx, domain.DisplayTopTen, 0, domain.WorldBounds, c.opts.TopTenMaxRows, 0)
}

func (c *Coordinator) scheduleTopTenRetry(ctx context.Context) {
	if c.opts.TopTenRetry <= 0 {
		return
	}
	if c.topTenBackoff == 0 {
		c.topTenBackoff = c.opts.TopTenRetry
	} else {
		c.topTenBackoff = retry.NextBackoff(c.topTenBackoff, c.opts.TopTenRetryMax)
	}
	c.logger.Info("retrying top ten fetch", "backoff", c.topTenBackoff)
	c.topTenInFlight = true
	c.startFetch(ctx, ctx, domain.DisplayTopTen, 0, domain.WorldBounds, c.opts.TopTenMaxRows, c.topTenBackoff)
}

// startFetch runs one request in the background after delay. fetchCtx bounds
// the request; loopCtx bounds delivery of the result.
func (c *Coordinator) startFetch(loopCtx, fetchCtx context.Context, kind string, seq uint64, bbox domain.BoundingBox, maxRows int, delay time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if !retry.SleepWithContext(fetchCtx, delay) {
			return
		}

		if c.opts.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.opts.FetchTimeout)
			defer cancel()
		}

		quakes, err := c.source.FetchEarthquakes(fetchCtx, bbox, maxRows)
		select {
		case c.results <- fetchResult{kind: kind, seq: seq, bounds: bbox, quakes: quakes, err: err}:
		case <-loopCtx.Done():
		}
	}()
}

func (c *Coordinator) handleResult(ctx context.Context, res fetchResult) {
	switch res.kind {
	case domain.DisplayTopTen:
		c.topTenInFlight = false
		c.onTopTenFetched(ctx, res)
	case domain.DisplaySearch:
		if res.seq != c.searchSeq {
			c.metrics.StaleResults.Inc()
			c.logger.Debug("dropping stale search result", "seq", res.seq, "current", c.searchSeq)
			return
		}
		c.cancelSearch()
		c.cancelSearch = nil
		c.onSearchFetched(ctx, res)
	}
}

func (c *Coordinator) onSearchFetched(ctx context.Context, res fetchResult) {
	if res.err != nil {
		c.metrics.Fetches.WithLabelValues(res.kind, "error").Inc()
		c.present(res.err)
		c.setState(MapReady)
		return
	}

	if len(res.quakes) == 0 {
		c.metrics.Fetches.WithLabelValues(res.kind, "empty").Inc()
		c.present(&domain.EmptyResultError{Bounds: res.bounds})
		c.tables.RenderRows(domain.TableResults, nil)
		c.setState(MapReady)
		return
	}

	sorted := domain.SortByMagnitudeThenRecency(res.quakes)
	c.plotMarkers(sorted)
	c.tables.RenderRows(domain.TableResults, sorted)
	c.setState(ResultsDisplayed)

	c.metrics.Fetches.WithLabelValues(res.kind, "success").Inc()
	c.metrics.QuakesDisplayed.WithLabelValues(res.kind).Observe(float64(len(sorted)))
	c.publish(ctx, domain.Display{Kind: res.kind, Bounds: res.bounds, Quakes: sorted, DisplayedAt: domain.Now()})
}

func (c *Coordinator) onTopTenFetched(ctx context.Context, res fetchResult) {
	if res.err != nil {
		c.metrics.Fetches.WithLabelValues(res.kind, "error").Inc()
		c.present(res.err)
		c.scheduleTopTenRetry(ctx)
		return
	}

	c.topTenBackoff = 0
	top := domain.TopTen(res.quakes, domain.Now(), c.opts.TopTenSize, c.opts.TopTenOrder)
	c.topTen = top
	c.topTenLoaded = true
	c.tables.RenderRows(domain.TableTopTen, top)

	c.ready.Store(true)
	c.metrics.TopTenLoaded.Set(1)
	c.metrics.Fetches.WithLabelValues(res.kind, "success").Inc()
	c.metrics.QuakesDisplayed.WithLabelValues(res.kind).Observe(float64(len(top)))
	c.logger.Info("top ten loaded", "fetched", len(res.quakes), "kept", len(top), "order", c.opts.TopTenOrder.String())
	c.publish(ctx, domain.Display{Kind: res.kind, Bounds: res.bounds, Quakes: top, DisplayedAt: domain.Now()})
}

// plotMarkers replaces the marker set. Labels follow list position, so a
// record without coordinates leaves a gap in the numbering.
func (c *Coordinator) plotMarkers(quakes []domain.Quake) {
	for _, h := range c.markers {
		c.mapView.RemoveMarker(h)
	}
	c.markers = c.markers[:0]

	for i, q := range quakes {
		pos, ok := q.Position()
		if !ok {
			continue
		}
		h := c.mapView.AddMarker(domain.Marker{
			Position:    pos,
			Label:       strconv.Itoa(i + 1),
			RevealAfter: time.Duration(i) * c.opts.RevealStep,
		})
		c.markers = append(c.markers, h)
	}
}

// present is the single place errors reach the user.
func (c *Coordinator) present(err error) {
	kind := domain.ErrorKind(err)
	c.metrics.Notices.WithLabelValues(kind).Inc()
	c.logger.Warn("user notice", "kind", kind, "error", err)
	c.notifier.Notify(err)
}

func (c *Coordinator) publish(ctx context.Context, d domain.Display) {
	if c.sink == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.sink.Publish(ctx, d); err != nil {
			c.metrics.DisplaysPublished.WithLabelValues("error").Inc()
			c.logger.Error("publish display failed", "kind", d.Kind, "error", err)
			return
		}
		c.metrics.DisplaysPublished.WithLabelValues("success").Inc()
	}()
}

func (c *Coordinator) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logger.Debug("state changed", "from", prev.String(), "to", s.String())
	}
}
