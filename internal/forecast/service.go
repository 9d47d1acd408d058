package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/forecal/forecal/internal/cache"
	"github.com/forecal/forecal/internal/observability"
)

// Source provides raw forecast data. Implemented by the NWS client.
type Source interface {
	Points(ctx context.Context, lat, lon float64) (Gridpoint, error)
	HourlyForecast(ctx context.Context, gp Gridpoint) (Snapshot, error)
	ActiveAlerts(ctx context.Context, zone string) ([]Alert, error)
}

// Grid cells for a coordinate effectively never move, so they can be cached
// far longer than the forecasts themselves.
const pointsTTL = 24 * time.Hour

// Service answers calendar queries, funnelling every source access through
// refresh-ahead caches so repeated subscriptions and simplification probes
// stay cheap.
type Service struct {
	source     Source
	thresholds Thresholds
	tz         *time.Location
	ttl        time.Duration

	points    *cache.Cache[Gridpoint]
	forecasts *cache.Cache[Snapshot]
	alerts    *cache.Cache[[]Alert]
}

// NewService creates a Service. ttl governs the forecast and alert caches;
// a nil clock means real time.
func NewService(source Source, thresholds Thresholds, tz *time.Location, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{
		source:     source,
		thresholds: thresholds,
		tz:         tz,
		ttl:        ttl,
		points:     cache.New[Gridpoint]("points", clock, ttl, metrics),
		forecasts:  cache.New[Snapshot]("forecasts", clock, ttl, metrics),
		alerts:     cache.New[[]Alert]("alerts", clock, ttl, metrics),
	}
}

// Gridpoint resolves and caches the forecast grid cell for a coordinate.
func (s *Service) Gridpoint(ctx context.Context, lat, lon float64) (Gridpoint, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	return s.points.Get(ctx, key, pointsTTL, func(ctx context.Context) (Gridpoint, error) {
		return s.source.Points(ctx, lat, lon)
	})
}

// Hourly returns the cached hourly forecast snapshot for a grid cell.
func (s *Service) Hourly(ctx context.Context, gp Gridpoint) (Snapshot, error) {
	return s.forecasts.Get(ctx, gp.String(), s.ttl, func(ctx context.Context) (Snapshot, error) {
		return s.source.HourlyForecast(ctx, gp)
	})
}

// Intervals builds the event intervals for one of the interval calendar
// kinds (rain, warm, cool, comfort).
func (s *Service) Intervals(ctx context.Context, gp Gridpoint, kind Kind) ([]EventInterval, Snapshot, error) {
	classifier, ok := ClassifierForKind(kind, s.thresholds)
	if !ok {
		return nil, Snapshot{}, fmt.Errorf("no interval classifier for kind %q", kind)
	}
	snap, err := s.Hourly(ctx, gp)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return snap.Intervals(classifier), snap, nil
}

// Best returns the best-of-day records for a grid cell.
func (s *Service) Best(ctx context.Context, gp Gridpoint) ([]BestOfDayRecord, Snapshot, error) {
	snap, err := s.Hourly(ctx, gp)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return SelectBest(snap.Periods, s.tz, s.thresholds), snap, nil
}

// Alerts returns the cached active alerts for an NWS zone.
func (s *Service) Alerts(ctx context.Context, zone string) ([]Alert, error) {
	return s.alerts.Get(ctx, zone, s.ttl, func(ctx context.Context) ([]Alert, error) {
		return s.source.ActiveAlerts(ctx, zone)
	})
}

// SimplifyCoordinate returns the lowest-precision coordinate that maps to the
// same grid cell; probes go through the gridpoint cache.
func (s *Service) SimplifyCoordinate(ctx context.Context, lat, lon float64) Coordinate {
	return Simplify(ctx, lat, lon, s.Gridpoint)
}
