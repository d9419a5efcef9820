// Package analysis provides a client for the area analysis backend: geocoding,
// neighbourhood polygons, isochrones and per-point accessibility metrics.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/resilience"
)

// Client defines the analysis backend operations.
type Client interface {
	// SearchPlaces geocodes free text into candidate places.
	SearchPlaces(ctx context.Context, text string) ([]model.Place, error)
	// ListNeighbourhoods returns the neighbourhood polygons of a city.
	ListNeighbourhoods(ctx context.Context, city string) ([]Neighbourhood, error)
	// ComputePointMetrics returns the five accessibility scores for one point.
	ComputePointMetrics(ctx context.Context, coords model.Coordinates, profile model.Profile) (*model.PointMetrics, error)
	// FetchIsochrone returns the area reachable from a point.
	FetchIsochrone(ctx context.Context, coords model.Coordinates, profile model.Profile) (*Isochrone, error)
	// PoisInIsochrone returns the points of interest reachable from a point.
	PoisInIsochrone(ctx context.Context, coords model.Coordinates, profile model.Profile) ([]POI, error)
}

const (
	pathSearch         = "/api/reverse_geocoding"
	pathNeighbourhoods = "/api/neighbourhoods"
	pathParameters     = "/api/get_isochrone_parameters"
	pathIsochrone      = "/api/get_isochrone"
	pathPois           = "/api/get_pois_isochrone"
)

// ErrNotFound is returned when the backend has no data for the request (HTTP 404).
var ErrNotFound = eris.New("analysis: not found")

// Option configures the analysis client.
type Option func(*httpClient)

// WithBaseURL sets the backend base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithPolicy sets the retry and circuit-breaker policy. A nil policy disables both.
func WithPolicy(p *resilience.Policy) Option {
	return func(c *httpClient) {
		c.policy = p
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  *resilience.Policy
}

// NewClient creates a new analysis backend client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "http://localhost:8000",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		policy:  resilience.NewPolicy("analysis", 0, 0, 0, 0, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchPlaces(ctx context.Context, text string) ([]model.Place, error) {
	var out []model.Place
	if err := c.do(ctx, http.MethodPost, pathSearch, nil, searchRequest{Text: text}, &out); err != nil {
		return nil, eris.Wrapf(err, "analysis: search %q", text)
	}
	return out, nil
}

func (c *httpClient) ListNeighbourhoods(ctx context.Context, city string) ([]Neighbourhood, error) {
	q := url.Values{"city": {city}}
	var out []Neighbourhood
	if err := c.do(ctx, http.MethodGet, pathNeighbourhoods, q, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "analysis: neighbourhoods for %q", city)
	}
	return out, nil
}

func (c *httpClient) ComputePointMetrics(ctx context.Context, coords model.Coordinates, profile model.Profile) (*model.PointMetrics, error) {
	var out model.PointMetrics
	if err := c.do(ctx, http.MethodPost, pathParameters, nil, newPointRequest(coords, profile), &out); err != nil {
		return nil, eris.Wrap(err, "analysis: point metrics")
	}
	return &out, nil
}

func (c *httpClient) FetchIsochrone(ctx context.Context, coords model.Coordinates, profile model.Profile) (*Isochrone, error) {
	var out Isochrone
	if err := c.do(ctx, http.MethodPost, pathIsochrone, nil, newPointRequest(coords, profile), &out); err != nil {
		return nil, eris.Wrap(err, "analysis: isochrone")
	}
	return &out, nil
}

func (c *httpClient) PoisInIsochrone(ctx context.Context, coords model.Coordinates, profile model.Profile) ([]POI, error) {
	var out []POI
	if err := c.do(ctx, http.MethodPost, pathPois, nil, newPointRequest(coords, profile), &out); err != nil {
		return nil, eris.Wrap(err, "analysis: pois")
	}
	return out, nil
}

// do sends one JSON request through the limiter and resilience policy and decodes into out.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	respBody, err := resilience.Call(ctx, c.policy, path, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}

		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, resilience.NewTransientError(eris.Wrap(err, "send request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "read response body"), resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, eris.Wrapf(ErrNotFound, "%s %s", method, path)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, resilience.StatusError("analysis", resp.StatusCode, string(data))
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
