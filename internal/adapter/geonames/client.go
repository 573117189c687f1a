package geonames

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public GeoNames earthquakes endpoint.
const DefaultBaseURL = "http://api.geonames.org/earthquakesJSON"

// datetimeLayout is the GeoNames datetime format, always UTC.
const datetimeLayout = "2006-01-02 15:04:05"

// Client fetches earthquakes from the GeoNames earthquakesJSON service.
// It implements domain.EarthquakeSource.
type Client struct {
	username   string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Username  string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
}

// NewClient creates a GeoNames client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Client{
		username: opts.Username,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, max(opts.Burst, 1)),
		metrics: metrics,
		logger:  logger,
	}
}

// BuildURL encodes the request for bbox. maxRows <= 0 leaves the service default.
func BuildURL(baseURL, username string, bbox domain.BoundingBox, maxRows int) string {
	params := url.Values{
		"north":    {formatDegrees(bbox.North)},
		"south":    {formatDegrees(bbox.South)},
		"east":     {formatDegrees(bbox.East)},
		"west":     {formatDegrees(bbox.West)},
		"username": {username},
	}
	if maxRows > 0 {
		params.Set("maxRows", strconv.Itoa(maxRows))
	}
	return baseURL + "?" + params.Encode()
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FetchEarthquakes returns the earthquakes inside bbox in service order.
func (c *Client) FetchEarthquakes(ctx context.Context, bbox domain.BoundingBox, maxRows int) ([]domain.Quake, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.GeoNamesRequests.WithLabelValues("transport_error").Inc()
		return nil, &domain.TransportError{Err: err}
	}

	fullURL := BuildURL(c.baseURL, c.username, bbox, maxRows)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeoNamesDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeoNamesRequests.WithLabelValues("transport_error").Inc()
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeoNamesRequests.WithLabelValues("service_error").Inc()
		return nil, &domain.ServiceError{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.GeoNamesRequests.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("decode earthquakes response: %w", err)
	}

	// GeoNames reports account and quota problems with a 200 and a status object.
	if body.Status != nil {
		c.metrics.GeoNamesRequests.WithLabelValues("service_error").Inc()
		c.logger.Warn("geonames rejected request",
			"code", body.Status.Value,
			"message", body.Status.Message,
		)
		return nil, &domain.ServiceError{StatusCode: resp.StatusCode, StatusText: body.Status.Message}
	}

	quakes := make([]domain.Quake, 0, len(body.Earthquakes))
	for i, r := range body.Earthquakes {
		q, err := r.toDomain()
		if err != nil {
			c.logger.Warn("skipping malformed earthquake", "index", i, "eqid", r.EQID, "error", err)
			continue
		}
		quakes = append(quakes, q)
	}

	c.metrics.GeoNamesRequests.WithLabelValues("success").Inc()
	c.logger.Debug("fetched earthquakes", "bounds", bbox.String(), "max_rows", maxRows, "count", len(quakes))
	return quakes, nil
}

// GeoNames API response types.

type response struct {
	Earthquakes []record `json:"earthquakes"`
	Status      *status  `json:"status,omitempty"`
}

type status struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

type record struct {
	DateTime  string   `json:"datetime"`
	Magnitude float64  `json:"magnitude"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Depth     float64  `json:"depth"`
	EQID      string   `json:"eqid"`
	Src       string   `json:"src"`
}

var errMissingDatetime = errors.New("missing datetime")

func (r record) toDomain() (domain.Quake, error) {
	if r.DateTime == "" {
		return domain.Quake{}, errMissingDatetime
	}
	at, err := time.Parse(datetimeLayout, r.DateTime)
	if err != nil {
		return domain.Quake{}, fmt.Errorf("parse datetime %q: %w", r.DateTime, err)
	}
	return domain.Quake{
		DateTime:  at,
		Magnitude: r.Magnitude,
		Lat:       r.Lat,
		Lng:       r.Lng,
		Depth:     r.Depth,
		EQID:      r.EQID,
		Source:    r.Src,
	}, nil
}
