// Package session owns the currently loaded playback. It serialises every
// mutation of the simulation, swaps in a fresh simulation on reload and
// keeps the event bus stable across reloads so subscribers survive them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/events"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/maptile"
	"github.com/signalsfoundry/airspace-playback/internal/observability"
	"github.com/signalsfoundry/airspace-playback/internal/store"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")
	// ErrNoStore is returned by LoadFromStore when no store is attached.
	ErrNoStore = errors.New("session has no store")
)

// Metrics is what the session reports into.
type Metrics interface {
	core.MetricsRecorder
	ObserveSnapshotLoad(d time.Duration)
}

// Option customises a Session.
type Option func(*Session)

func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.base = l
		}
	}
}

func WithStore(st *store.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithTileLoader makes Load fetch building tiles named in the config blob
// before the session reports ready.
func WithTileLoader(l *maptile.Loader) Option {
	return func(s *Session) { s.tiles = l }
}

func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSelectAll selects every agent right after each load.
func WithSelectAll() Option {
	return func(s *Session) { s.selectAll = true }
}

// WithActiveOnlyFocus is passed through to every simulation built.
func WithActiveOnlyFocus() Option {
	return func(s *Session) { s.activeOnlyFocus = true }
}

// WithDebounce sets the quiet period Watch waits for before reloading.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// Session is safe for concurrent use. Event handlers run while the session
// lock is held and must not call back into the session.
type Session struct {
	id       string
	base     logging.Logger
	log      logging.Logger
	store    *store.Store
	tiles    *maptile.Loader
	metrics  Metrics
	bus      *events.Bus[core.Event]
	debounce time.Duration

	selectAll       bool
	activeOnlyFocus bool

	loadMu sync.Mutex

	mu        sync.RWMutex
	sim       *core.Simulation
	buildings []maptile.TileBuildings
	source    string
	loadedAt  time.Time
	closed    bool
}

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		base:     logging.Noop(),
		bus:      events.NewBus[core.Event](),
		debounce: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	_, s.log = logging.WithSessionLogger(context.Background(), s.base, s.id)
	return s
}

func (s *Session) ID() string { return s.id }

// Bus returns the event bus shared by every simulation this session loads.
func (s *Session) Bus() *events.Bus[core.Event] { return s.bus }

// Context tags ctx with the session ID and logger.
func (s *Session) Context(ctx context.Context) context.Context {
	ctx, _ = logging.WithSessionLogger(ctx, s.base, s.id)
	return ctx
}

// Load builds a simulation from b, awaits its map tiles and makes it
// current. The bundle is persisted when a store is attached.
func (s *Session) Load(ctx context.Context, b store.Bundle) error {
	return s.load(ctx, b, true)
}

// LoadFile reads a bundle from path and loads it. Reload re-reads the same
// path afterwards.
func (s *Session) LoadFile(ctx context.Context, path string) error {
	b, err := store.ReadDir(path)
	if err != nil {
		return err
	}
	if err := s.load(ctx, b, true); err != nil {
		return err
	}
	s.mu.Lock()
	s.source = path
	s.mu.Unlock()
	return nil
}

// LoadFromStore loads the bundle persisted by an earlier Load.
func (s *Session) LoadFromStore(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	b, err := s.store.LoadBundle(ctx)
	if err != nil {
		return err
	}
	return s.load(ctx, b, false)
}

// Reload re-reads the last loaded file, falling back to the store.
func (s *Session) Reload(ctx context.Context) error {
	if source := s.Source(); source != "" {
		return s.LoadFile(ctx, source)
	}
	return s.LoadFromStore(ctx)
}

func (s *Session) load(ctx context.Context, b store.Bundle, persist bool) (err error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}

	start := time.Now()
	ctx = s.Context(ctx)
	ctx, span := observability.StartSpan(ctx, "session.load",
		attribute.String("session_id", s.id),
	)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	snap, err := core.DecodeSnapshot(b.SnapshotInput())
	if err != nil {
		return err
	}
	opts := []core.Option{core.WithLogger(s.log)}
	if s.metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(s.metrics))
	}
	if s.activeOnlyFocus {
		opts = append(opts, core.WithActiveOnlyFocus())
	}
	sim, err := core.NewSimulation(snap, s.bus, opts...)
	if err != nil {
		return err
	}

	buildings, err := s.loadTiles(ctx, b.Config)
	if err != nil {
		return err
	}

	if persist && s.store != nil {
		if err := s.store.Persist(ctx, b); err != nil {
			s.log.Warn(ctx, "snapshot not persisted", logging.Err(err))
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	// Subscribers share the bus across loads and must drop the old focus.
	if s.sim != nil {
		if err := s.sim.FocusOff(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("release focus: %w", err)
		}
	}
	s.sim = sim
	s.buildings = buildings
	s.loadedAt = time.Now()
	if s.selectAll {
		ids := make([]string, 0, len(sim.Agents()))
		for _, a := range sim.Agents() {
			ids = append(ids, a.ID)
		}
		err = sim.SetSelectedAgentIDs(ids)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("select agents: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveSnapshotLoad(time.Since(start))
	}
	span.SetAttributes(
		attribute.Int("agents", len(sim.Agents())),
		attribute.Int("tiles", len(buildings)),
	)
	s.log.Info(ctx, "snapshot loaded",
		logging.String("name", sim.Name),
		logging.Int("agents", len(sim.Agents())),
		logging.Int("tiles", len(buildings)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (s *Session) loadTiles(ctx context.Context, config []byte) ([]maptile.TileBuildings, error) {
	if s.tiles == nil {
		return nil, nil
	}
	area, ok, err := maptile.ParseArea(config)
	if err != nil {
		s.log.Warn(ctx, "ignoring map section", logging.Err(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return s.tiles.Load(ctx, area)
}

// With runs fn with exclusive access to the current simulation. Every
// mutation goes through here.
func (s *Session) With(fn func(*core.Simulation) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.sim == nil {
		return core.ErrNotLoaded
	}
	return fn(s.sim)
}

// Read runs fn with shared access to the current simulation. fn must only
// call accessors.
func (s *Session) Read(fn func(*core.Simulation) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.sim == nil {
		return core.ErrNotLoaded
	}
	return fn(s.sim)
}

// View returns the current view.
func (s *Session) View() (View, error) {
	var v View
	err := s.Read(func(sim *core.Simulation) error {
		v = NewView(sim)
		return nil
	})
	return v, err
}

// Buildings returns the building tiles fetched for the current simulation.
func (s *Session) Buildings() []maptile.TileBuildings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]maptile.TileBuildings(nil), s.buildings...)
}

// Loaded reports whether a simulation is current.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim != nil && !s.closed
}

// LoadedAt returns when the current simulation was made current.
func (s *Session) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Source returns the path of the last LoadFile, "" otherwise.
func (s *Session) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close drops the current simulation. The attached store is left open.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.sim = nil
	s.buildings = nil
	s.log.Info(context.Background(), "session closed")
	return nil
}
