// Package soloize fetches third-party calendar feeds, strips past events and
// attendee lists, and serves the sanitized result from a refresh-ahead cache.
package soloize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"

	"github.com/forecal/forecal/internal/cache"
	"github.com/forecal/forecal/internal/ical"
	"github.com/forecal/forecal/internal/observability"
)

// ErrFetchFailed is returned when the target calendar feed is unreachable or
// answers with a non-success status.
var ErrFetchFailed = errors.New("calendar feed fetch failed")

// maxFeedBytes bounds how much of a feed we will read; anything larger is not
// a plausible calendar.
const maxFeedBytes = 10 << 20

// Gate validates a user-supplied URL and returns its canonical form.
// Implemented by safeurl.Gate.
type Gate interface {
	Validate(ctx context.Context, raw string) (string, error)
}

// Service ties the URL gate, the raw feed fetch, and the cleaner together
// behind a cache keyed by canonical URL. Tracked feeds are proactively
// re-fetched on a fixed schedule so subscribers keep getting warm responses
// long after the first request.
type Service struct {
	gate    Gate
	client  *http.Client
	clock   clockwork.Clock
	cache   *cache.Cache[[]byte]
	ttl     time.Duration
	metrics *observability.Metrics

	scheduler *gocron.Scheduler
}

// New creates a Service. client must carry the outbound fetch timeout; ttl is
// both the cache TTL and the proactive refresh interval.
func New(gate Gate, client *http.Client, clock clockwork.Clock, ttl time.Duration, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		gate:      gate,
		client:    client,
		clock:     clock,
		cache:     cache.New[[]byte]("soloize", clock, ttl, metrics),
		ttl:       ttl,
		metrics:   metrics,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Soloize validates rawURL, then returns the sanitized feed, served from
// cache when warm. Validation runs on every request, before any outbound
// call; a rejected URL never reaches the network.
func (s *Service) Soloize(ctx context.Context, rawURL string) ([]byte, error) {
	canonical, err := s.gate.Validate(ctx, rawURL)
	if err != nil {
		s.metrics.SoloizeRequest("rejected")
		return nil, err
	}

	doc, err := s.cache.Get(ctx, canonical, s.ttl, func(ctx context.Context) ([]byte, error) {
		return s.fetchAndClean(ctx, canonical)
	})
	if err != nil {
		s.metrics.SoloizeRequest("error")
		return nil, err
	}
	s.metrics.SoloizeRequest("success")
	return doc, nil
}

// StartRefresh schedules the proactive refresh of all tracked feeds, one run
// per TTL interval.
func (s *Service) StartRefresh() error {
	_, err := s.scheduler.Every(s.ttl).Do(func() {
		keys := s.cache.Keys()
		if len(keys) == 0 {
			return
		}
		log.Printf("soloize: refreshing %d tracked feeds", len(keys))
		for _, url := range keys {
			url := url
			ctx, cancel := context.WithTimeout(context.Background(), s.clientTimeout())
			s.cache.Refresh(ctx, url, func(ctx context.Context) ([]byte, error) {
				// Re-validate on every refresh; a feed that was safe at
				// subscription time may resolve somewhere else now.
				canonical, err := s.gate.Validate(ctx, url)
				if err != nil {
					return nil, err
				}
				return s.fetchAndClean(ctx, canonical)
			})
			cancel()
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts the background refresh schedule.
func (s *Service) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Service) fetchAndClean(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetchFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	return ical.Clean(body, s.clock.Now().UTC())
}

func (s *Service) clientTimeout() time.Duration {
	if s.client != nil && s.client.Timeout > 0 {
		return s.client.Timeout + 5*time.Second
	}
	return 35 * time.Second
}
