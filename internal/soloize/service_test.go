package soloize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecal/forecal/internal/ical"
	"github.com/forecal/forecal/internal/safeurl"
)

// allowGate passes every URL through unchanged, so tests can fetch from
// loopback httptest servers the real gate would reject.
type allowGate struct{}

func (allowGate) Validate(_ context.Context, raw string) (string, error) { return raw, nil }

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

const testFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:past@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240101T100000Z\r\n" +
	"DTEND:20240101T110000Z\r\n" +
	"SUMMARY:Past event\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:future@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20990101T100000Z\r\n" +
	"DTEND:20990101T110000Z\r\n" +
	"SUMMARY:Future event\r\n" +
	"ATTENDEE;CN=Alice:mailto:alice@example.com\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestService(t *testing.T, handler http.Handler) (*Service, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := New(allowGate{}, server.Client(), clockwork.NewFakeClockAt(testNow), time.Hour, nil)
	t.Cleanup(svc.Stop)
	return svc, server.URL + "/feed.ics"
}

func TestSoloizeCleansFeed(t *testing.T) {
	svc, url := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeed))
	}))

	doc, err := svc.Soloize(context.Background(), url)
	require.NoError(t, err)

	s := string(doc)
	assert.Contains(t, s, "future@example.com")
	assert.NotContains(t, s, "past@example.com")
	assert.NotContains(t, s, "ATTENDEE")
}

func TestSoloizeServesFromCache(t *testing.T) {
	var fetches atomic.Int64
	svc, url := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(testFeed))
	}))
	ctx := context.Background()

	_, err := svc.Soloize(ctx, url)
	require.NoError(t, err)
	_, err = svc.Soloize(ctx, url)
	require.NoError(t, err)

	assert.Equal(t, int64(1), fetches.Load())
}

func TestSoloizeRejectsUnsafeURL(t *testing.T) {
	svc := New(safeurl.New(), &http.Client{Timeout: time.Second}, nil, time.Hour, nil)
	t.Cleanup(svc.Stop)

	_, err := svc.Soloize(context.Background(), "http://127.0.0.1/feed.ics")
	require.Error(t, err)
	assert.ErrorIs(t, err, safeurl.ErrUnsafeTarget)
}

func TestSoloizeRejectionSkipsCache(t *testing.T) {
	gateErr := errors.New("rejected")
	svc := New(failGate{err: gateErr}, &http.Client{Timeout: time.Second}, nil, time.Hour, nil)
	t.Cleanup(svc.Stop)

	_, err := svc.Soloize(context.Background(), "https://calendar.example.com/feed.ics")
	assert.ErrorIs(t, err, gateErr)
	assert.Empty(t, svc.cache.Keys())
}

type failGate struct{ err error }

func (f failGate) Validate(context.Context, string) (string, error) { return "", f.err }

func TestSoloizeUpstreamFailure(t *testing.T) {
	svc, url := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := svc.Soloize(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestSoloizeMalformedFeed(t *testing.T) {
	svc, url := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a calendar"))
	}))

	_, err := svc.Soloize(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, ical.ErrMalformedFeed)
}

func TestSoloizeTracksFeedForRefresh(t *testing.T) {
	svc, url := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeed))
	}))

	_, err := svc.Soloize(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, []string{url}, svc.cache.Keys(), "a served feed becomes a tracked feed")
}

func TestSoloizeHugeFeedRejected(t *testing.T) {
	svc, url := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("X", maxFeedBytes)))
		w.Write([]byte(testFeed))
	}))

	// The read is truncated at the limit, so the document cannot parse.
	_, err := svc.Soloize(context.Background(), url)
	require.Error(t, err)
}
