package nws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecal/forecal/internal/forecast"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.Client(), server.URL, "forecal-test", nil)
}

func TestPoints(t *testing.T) {
	var gotPath, gotAgent, gotAccept string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"properties":{"gridId":"MTR","gridX":93,"gridY":86}}`))
	}))

	gp, err := c.Points(context.Background(), 37.3861, -122.0839)
	require.NoError(t, err)

	assert.Equal(t, forecast.Gridpoint{Office: "MTR", GridX: 93, GridY: 86}, gp)
	assert.Equal(t, "/points/37.3861,-122.0839", gotPath)
	assert.Equal(t, "forecal-test", gotAgent)
	assert.Equal(t, "application/geo+json", gotAccept)
}

func TestPointsNotFound(t *testing.T) {
	var requests atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := c.Points(context.Background(), 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrInvalidLocation)
	assert.Equal(t, int64(1), requests.Load(), "404 must not be retried")
}

func TestPointsEmptyGrid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{}}`))
	}))

	_, err := c.Points(context.Background(), 37.3861, -122.0839)
	assert.ErrorIs(t, err, forecast.ErrInvalidLocation)
}

func TestPointsBadJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties"`))
	}))

	_, err := c.Points(context.Background(), 37.3861, -122.0839)
	assert.ErrorIs(t, err, forecast.ErrSourceUnavailable)
}

func TestHourlyForecast(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"properties":{
			"updateTime":"2024-04-26T05:00:00Z",
			"periods":[
				{"startTime":"2024-04-26T09:00:00Z","endTime":"2024-04-26T10:00:00Z",
				 "temperature":62,"isDaytime":true,"windSpeed":"10 mph",
				 "shortForecast":"Rain Showers",
				 "probabilityOfPrecipitation":{"value":40},
				 "dewpoint":{"value":12.5}},
				{"startTime":"2024-04-26T10:00:00Z","endTime":"2024-04-26T11:00:00Z",
				 "temperature":64,"isDaytime":true,"windSpeed":"5 to 10 mph",
				 "shortForecast":"Sunny",
				 "probabilityOfPrecipitation":{"value":null},
				 "dewpoint":{"value":null}},
				{"startTime":"garbage","endTime":"2024-04-26T12:00:00Z",
				 "temperature":60,"isDaytime":true,"windSpeed":"0 mph",
				 "shortForecast":"Skipped"}
			]}}`))
	}))

	snap, err := c.HourlyForecast(context.Background(), forecast.Gridpoint{Office: "MTR", GridX: 93, GridY: 86})
	require.NoError(t, err)

	assert.Equal(t, "/gridpoints/MTR/93,86/forecast/hourly", gotPath)
	assert.Equal(t, time.Date(2024, 4, 26, 5, 0, 0, 0, time.UTC), snap.Updated)
	assert.False(t, snap.RetrievedAt.IsZero())

	require.Len(t, snap.Periods, 2, "the unparsable period is dropped")
	first := snap.Periods[0]
	require.NotNil(t, first.PoP)
	assert.Equal(t, 40.0, *first.PoP)
	require.NotNil(t, first.DewpointC)
	assert.Equal(t, 12.5, *first.DewpointC)
	assert.Equal(t, 62.0, first.TemperatureF)
	assert.Equal(t, snap.Updated, first.Updated)

	second := snap.Periods[1]
	assert.Nil(t, second.PoP, "null probability stays absent")
	assert.Nil(t, second.DewpointC)
}

func TestActiveAlerts(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"features":[
			{"properties":{
				"event":"Wind Advisory",
				"onset":"2024-04-26T12:00:00Z",
				"ends":null,
				"expires":"2024-04-27T00:00:00Z",
				"description":"Gusty winds will\ndevelop this afternoon.\n\nSecure loose objects."}}
		]}`))
	}))

	alerts, err := c.ActiveAlerts(context.Background(), "CAZ508")
	require.NoError(t, err)

	assert.Equal(t, "/alerts/active/zone/CAZ508", gotPath)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "Wind Advisory", a.Event)
	assert.Equal(t, time.Date(2024, 4, 27, 0, 0, 0, 0, time.UTC), a.Ends, "missing ends falls back to expires")
	assert.Equal(t, "Gusty winds will develop this afternoon.\n\nSecure loose objects.", a.Description)
}

func TestUnwrapLines(t *testing.T) {
	in := "First line\nwraps here.\n\nNew paragraph\ncontinues."
	assert.Equal(t, "First line wraps here.\n\nNew paragraph continues.", unwrapLines(in))
}

func testBackoffCfg(client *http.Client, retries int) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      retries,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

func testBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"})
}

func buildGet(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestResilienceRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	_, err := doRequestWithResilience(context.Background(),
		testBackoffCfg(server.Client(), 2), testBreaker(), buildGet(t, server.URL))

	require.Error(t, err)
	assert.Equal(t, int64(3), requests.Load(), "initial attempt plus two retries")
}

func TestResilienceRecoversMidway(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	resp, err := doRequestWithResilience(context.Background(),
		testBackoffCfg(server.Client(), 3), testBreaker(), buildGet(t, server.URL))

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int64(3), requests.Load())
}

func TestResilienceDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	_, err := doRequestWithResilience(context.Background(),
		testBackoffCfg(server.Client(), 3), testBreaker(), buildGet(t, server.URL))

	require.Error(t, err)
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int64(1), requests.Load())
}

func TestResilienceOpenCircuitFailsFast(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	_, err := doRequestWithResilience(context.Background(),
		testBackoffCfg(server.Client(), 0), cb, buildGet(t, server.URL))
	require.Error(t, err)

	before := requests.Load()
	_, err = doRequestWithResilience(context.Background(),
		testBackoffCfg(server.Client(), 0), cb, buildGet(t, server.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, before, requests.Load(), "open circuit must not touch the network")
}

func TestResilienceRequiresClient(t *testing.T) {
	_, err := doRequestWithResilience(context.Background(),
		HTTPClientConfig{Backoff: BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond}},
		testBreaker(), buildGet(t, "http://example.com"))
	assert.ErrorIs(t, err, errNoHTTPClient)
}
