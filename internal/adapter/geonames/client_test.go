package geonames

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testUsername      = "test-user"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const tohokuBody = `{"earthquakes":[
	{"datetime":"2011-03-11 04:46:23","depth":24.4,"lng":142.369,"src":"us","eqid":"c0001xgp","magnitude":8.8,"lat":38.322},
	{"datetime":"2012-04-11 06:38:37","depth":22.9,"lng":93.0632,"src":"us","eqid":"c000905e","magnitude":8.6,"lat":2.311},
	{"datetime":"2007-09-12 09:10:26","depth":30,"src":"us","eqid":"2007hear","magnitude":8.4}
]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return &Client{
		username:   testUsername,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     discardLogger(),
	}
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, err := w.Write([]byte(body))
		assert.NoError(t, err)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildURL(t *testing.T) {
	bbox := domain.BoundingBox{North: 44.1, South: -9.9, East: -22.4, West: 55.2}

	t.Run("with max rows", func(t *testing.T) {
		u, err := url.Parse(BuildURL(DefaultBaseURL, "adriancg", bbox, 500))
		require.NoError(t, err)

		assert.Equal(t, "api.geonames.org", u.Host)
		assert.Equal(t, "/earthquakesJSON", u.Path)
		q := u.Query()
		assert.Equal(t, "44.1", q.Get("north"))
		assert.Equal(t, "-9.9", q.Get("south"))
		assert.Equal(t, "-22.4", q.Get("east"))
		assert.Equal(t, "55.2", q.Get("west"))
		assert.Equal(t, "500", q.Get("maxRows"))
		assert.Equal(t, "adriancg", q.Get("username"))
	})

	t.Run("without max rows", func(t *testing.T) {
		u, err := url.Parse(BuildURL(DefaultBaseURL, "adriancg", bbox, 0))
		require.NoError(t, err)
		assert.False(t, u.Query().Has("maxRows"))
	})

	t.Run("world bounds", func(t *testing.T) {
		u, err := url.Parse(BuildURL(DefaultBaseURL, "adriancg", domain.WorldBounds, 500))
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "90", q.Get("north"))
		assert.Equal(t, "-90", q.Get("south"))
		assert.Equal(t, "180", q.Get("east"))
		assert.Equal(t, "-180", q.Get("west"))
	})
}

func TestClient_FetchEarthquakes_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, testUsername, r.URL.Query().Get("username"))
		assert.Equal(t, "10", r.URL.Query().Get("maxRows"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(tohokuBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	quakes, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 10)
	require.NoError(t, err)
	require.Len(t, quakes, 3)

	first := quakes[0]
	assert.Equal(t, time.Date(2011, time.March, 11, 4, 46, 23, 0, time.UTC), first.DateTime)
	assert.Equal(t, 8.8, first.Magnitude)
	assert.Equal(t, "c0001xgp", first.EQID)
	assert.Equal(t, "us", first.Source)
	assert.Equal(t, 24.4, first.Depth)
	pos, ok := first.Position()
	require.True(t, ok)
	assert.Equal(t, domain.Point{Lat: 38.322, Lng: 142.369}, pos)

	_, ok = quakes[2].Position()
	assert.False(t, ok, "record without coordinates keeps no position")

	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeoNamesRequests.WithLabelValues("success")), 0)
}

func TestClient_FetchEarthquakes_EmptyAndMissingField(t *testing.T) {
	for name, body := range map[string]string{
		"empty array":   `{"earthquakes":[]}`,
		"missing field": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := testClient(jsonServer(t, body).URL)
			quakes, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
			require.NoError(t, err)
			assert.Empty(t, quakes)
		})
	}
}

func TestClient_FetchEarthquakes_SkipsMalformedRecords(t *testing.T) {
	body := `{"earthquakes":[{"datetime":"yesterday","magnitude":5},{"magnitude":4},{"datetime":"2020-01-01 00:00:00","magnitude":6}]}`
	c := testClient(jsonServer(t, body).URL)

	quakes, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
	require.NoError(t, err)
	require.Len(t, quakes, 1)
	assert.Equal(t, 6.0, quakes[0].Magnitude)
}

func TestClient_FetchEarthquakes_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
	require.Error(t, err)

	var serviceErr *domain.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusServiceUnavailable, serviceErr.StatusCode)
	assert.Equal(t, "Service Unavailable", serviceErr.StatusText)
}

func TestClient_FetchEarthquakes_StatusObject(t *testing.T) {
	body := `{"status":{"message":"the hourly limit of 1000 credits for demo has been exceeded.","value":19}}`
	c := testClient(jsonServer(t, body).URL)

	_, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)

	var serviceErr *domain.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Contains(t, serviceErr.StatusText, "hourly limit")
}

func TestClient_FetchEarthquakes_DecodeError(t *testing.T) {
	c := testClient(jsonServer(t, `{not json`).URL)

	_, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode earthquakes response")
}

func TestClient_FetchEarthquakes_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens any more

	c := testClient(srv.URL)
	_, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "transport", domain.ErrorKind(err))
}

func TestClient_FetchEarthquakes_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestClient_FetchEarthquakes_ContextCancelled(t *testing.T) {
	c := testClient(jsonServer(t, tohokuBody).URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchEarthquakes(ctx, domain.WorldBounds, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{Username: "u", Timeout: time.Second}, observability.NewMetricsForTesting(), discardLogger())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, rate.Inf, c.limiter.Limit())
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestClient_FetchEarthquakes_RateLimitPacesRequests(t *testing.T) {
	c := testClient(jsonServer(t, `{"earthquakes":[]}`).URL)
	c.limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 1)

	start := time.Now()
	_, err := c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
	require.NoError(t, err)
	_, err = c.FetchEarthquakes(context.Background(), domain.WorldBounds, 0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "second request waits for a token")
}

func TestClient_FetchEarthquakes_RateLimitHonorsDeadline(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"earthquakes":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, c.limiter.Allow(), "spend the only token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchEarthquakes(ctx, domain.WorldBounds, 0)
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "transport", domain.ErrorKind(err))
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeoNamesRequests.WithLabelValues("transport_error")), 1e-9)
	assert.Zero(t, hits.Load(), "no request is sent without a token")
}

func TestNewClient_RateLimit(t *testing.T) {
	c := NewClient(Options{Username: "u", RateLimit: 2, Burst: 3}, observability.NewMetricsForTesting(), discardLogger())
	assert.Equal(t, rate.Limit(2), c.limiter.Limit())
	assert.Equal(t, 3, c.limiter.Burst())
}
