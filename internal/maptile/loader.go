package maptile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/observability"
)

// DefaultBaseURL serves OSM building tiles as GeoJSON.
const DefaultBaseURL = "https://data.osmbuildings.org/0.2/anonymous/tile"

// maxTileBytes caps a single tile response.
const maxTileBytes = 32 << 20

// MetricsRecorder receives one call per tile fetch.
type MetricsRecorder interface {
	IncTileFetch(ok bool)
}

// Config controls fetch pacing.
type Config struct {
	BaseURL     string
	Rate        float64 // requests per second, 0 disables pacing
	Burst       int
	Concurrency int
	Timeout     time.Duration
}

// Loader fetches building tiles.
type Loader struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     logging.Logger
	metrics MetricsRecorder
}

// Option customises a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(log logging.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetricsRecorder attaches a fetch counter.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// NewLoader builds a Loader, filling unset fields of cfg with defaults.
func NewLoader(cfg Config, opts ...Option) *Loader {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	l := &Loader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TileURL returns the GeoJSON URL for t.
func (l *Loader) TileURL(t maptile.Tile) string {
	return fmt.Sprintf("%s/%d/%d/%d.json", l.cfg.BaseURL, t.Z, t.X, t.Y)
}

// Load fetches every tile of area concurrently. The result is in tile order.
// A tile that fails to load contributes an empty building list; only a
// cancelled context fails the whole load.
func (l *Loader) Load(ctx context.Context, area Area) ([]TileBuildings, error) {
	out := make([]TileBuildings, len(area.Tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, t := range area.Tiles {
		g.Go(func() error {
			out[i] = TileBuildings{Z: uint32(t.Z), X: t.X, Y: t.Y, Buildings: []Building{}}
			buildings, err := l.fetch(gctx, t, area)
			if l.metrics != nil {
				l.metrics.IncTileFetch(err == nil)
			}
			if err != nil {
				out[i].Failed = true
				l.log.Warn(gctx, "tile fetch failed",
					logging.String("tile", tileName(t)),
					logging.Err(err),
				)
				return nil
			}
			out[i].Buildings = buildings
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, tb := range out {
		total += len(tb.Buildings)
	}
	l.log.Info(ctx, "map tiles loaded",
		logging.Int("tiles", len(out)),
		logging.Int("buildings", total),
	)
	return out, nil
}

func (l *Loader) fetch(ctx context.Context, t maptile.Tile, area Area) (buildings []Building, err error) {
	ctx, span := observability.StartSpan(ctx, "maptile.fetch",
		attribute.String("tile", tileName(t)),
	)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.TileURL(t), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	buildings = ExtractBuildings(fc, area)
	span.SetAttributes(attribute.Int("buildings", len(buildings)))
	return buildings, nil
}

func tileName(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}
