package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/forecal/forecal/internal/forecast"
	"github.com/forecal/forecal/internal/observability"
)

// Client fetches forecasts and alerts from the National Weather Service API
// (api.weather.gov). It implements forecast.Source.
type Client struct {
	baseURL   string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	metrics   *observability.Metrics
}

// New creates an NWS client. The NWS API requires an identifying User-Agent.
func New(client *http.Client, baseURL, userAgent string, metrics *observability.Metrics) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nws",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		metrics: metrics,
	}
}

// Points resolves a coordinate to its forecast grid cell.
// Coordinates outside NWS coverage yield forecast.ErrInvalidLocation.
func (c *Client) Points(ctx context.Context, lat, lon float64) (forecast.Gridpoint, error) {
	u := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)

	resp, err := c.get(ctx, u)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return forecast.Gridpoint{}, fmt.Errorf("%w: %.4f,%.4f", forecast.ErrInvalidLocation, lat, lon)
		}
		return forecast.Gridpoint{}, fmt.Errorf("%w: points: %v", forecast.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Properties struct {
			GridID string `json:"gridId"`
			GridX  int    `json:"gridX"`
			GridY  int    `json:"gridY"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return forecast.Gridpoint{}, fmt.Errorf("%w: decode points: %v", forecast.ErrSourceUnavailable, err)
	}
	if payload.Properties.GridID == "" {
		return forecast.Gridpoint{}, fmt.Errorf("%w: %.4f,%.4f", forecast.ErrInvalidLocation, lat, lon)
	}

	return forecast.Gridpoint{
		Office: payload.Properties.GridID,
		GridX:  payload.Properties.GridX,
		GridY:  payload.Properties.GridY,
	}, nil
}

// HourlyForecast fetches the hourly forecast periods for a grid cell.
func (c *Client) HourlyForecast(ctx context.Context, gp forecast.Gridpoint) (forecast.Snapshot, error) {
	u := fmt.Sprintf("%s/gridpoints/%s/forecast/hourly", c.baseURL, gp)

	resp, err := c.get(ctx, u)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return forecast.Snapshot{}, fmt.Errorf("%w: gridpoint %s", forecast.ErrInvalidLocation, gp)
		}
		return forecast.Snapshot{}, fmt.Errorf("%w: hourly forecast: %v", forecast.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Properties struct {
			UpdateTime string `json:"updateTime"`
			Periods    []struct {
				StartTime     string  `json:"startTime"`
				EndTime       string  `json:"endTime"`
				Temperature   float64 `json:"temperature"`
				IsDaytime     bool    `json:"isDaytime"`
				WindSpeed     string  `json:"windSpeed"`
				ShortForecast string  `json:"shortForecast"`

				ProbabilityOfPrecipitation struct {
					Value *float64 `json:"value"`
				} `json:"probabilityOfPrecipitation"`
				Dewpoint struct {
					Value *float64 `json:"value"`
				} `json:"dewpoint"`
			} `json:"periods"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return forecast.Snapshot{}, fmt.Errorf("%w: decode hourly forecast: %v", forecast.ErrSourceUnavailable, err)
	}

	updated, err := time.Parse(time.RFC3339, payload.Properties.UpdateTime)
	if err != nil {
		updated = time.Now().UTC()
	}

	snap := forecast.Snapshot{
		Updated:     updated,
		RetrievedAt: time.Now().UTC(),
		Periods:     make([]forecast.Period, 0, len(payload.Properties.Periods)),
	}
	for _, p := range payload.Properties.Periods {
		start, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, p.EndTime)
		if err != nil {
			continue
		}
		snap.Periods = append(snap.Periods, forecast.Period{
			Start:         start,
			End:           end,
			TemperatureF:  p.Temperature,
			PoP:           p.ProbabilityOfPrecipitation.Value,
			DewpointC:     p.Dewpoint.Value,
			WindSpeed:     p.WindSpeed,
			ShortForecast: p.ShortForecast,
			IsDaytime:     p.IsDaytime,
			Updated:       updated,
		})
	}
	return snap, nil
}

// ActiveAlerts fetches active alerts for an NWS zone (e.g. "CAZ508").
func (c *Client) ActiveAlerts(ctx context.Context, zone string) ([]forecast.Alert, error) {
	u := fmt.Sprintf("%s/alerts/active/zone/%s", c.baseURL, zone)

	resp, err := c.get(ctx, u)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: zone %s", forecast.ErrInvalidLocation, zone)
		}
		return nil, fmt.Errorf("%w: alerts: %v", forecast.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Features []struct {
			Properties struct {
				Event       string `json:"event"`
				Onset       string `json:"onset"`
				Ends        string `json:"ends"`
				Expires     string `json:"expires"`
				Description string `json:"description"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode alerts: %v", forecast.ErrSourceUnavailable, err)
	}

	alerts := make([]forecast.Alert, 0, len(payload.Features))
	for _, f := range payload.Features {
		props := f.Properties
		onset, err := time.Parse(time.RFC3339, props.Onset)
		if err != nil {
			continue
		}
		endsStr := props.Ends
		if endsStr == "" {
			endsStr = props.Expires
		}
		ends, err := time.Parse(time.RFC3339, endsStr)
		if err != nil {
			continue
		}
		alerts = append(alerts, forecast.Alert{
			Event:       props.Event,
			Onset:       onset,
			Ends:        ends,
			Description: unwrapLines(props.Description),
		})
	}
	return alerts, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/geo+json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		c.metrics.UpstreamRequest("nws", "error")
		return nil, err
	}
	c.metrics.UpstreamRequest("nws", "success")
	return resp, nil
}

// unwrapLines joins hard-wrapped lines in NWS alert prose. Single newlines
// are wrapping; blank lines are real paragraph breaks and are kept.
func unwrapLines(s string) string {
	const para = "\x00"
	s = strings.ReplaceAll(s, "\n\n", para)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, para, "\n\n")
}
