package grvl

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	DefaultElevationURL = "https://api.open-elevation.com/api/v1/lookup"
)

// HTTPElevationProvider queries open-elevation compatible lookup API
type HTTPElevationProvider struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ElevationOption configures HTTPElevationProvider
type ElevationOption func(*HTTPElevationProvider)

// WithElevationHTTPClient sets custom HTTP client
func WithElevationHTTPClient(client *http.Client) ElevationOption {
	return func(provider *HTTPElevationProvider) {
		provider.httpClient = client
	}
}

// WithElevationTimeouts sets connect and read timeouts
func WithElevationTimeouts(connect, read time.Duration) ElevationOption {
	return func(provider *HTTPElevationProvider) {
		provider.httpClient = newHTTPClient(connect, read)
	}
}

// WithElevationRateLimit sets requests-per-second limit. Non-positive value disables limiting
func WithElevationRateLimit(rps float64) ElevationOption {
	return func(provider *HTTPElevationProvider) {
		if rps <= 0 {
			provider.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		provider.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewHTTPElevationProvider creates provider for given lookup endpoint. Empty URL means DefaultElevationURL
func NewHTTPElevationProvider(url string, options ...ElevationOption) *HTTPElevationProvider {
	if url == "" {
		url = DefaultElevationURL
	}
	provider := &HTTPElevationProvider{
		url:        url,
		httpClient: newHTTPClient(defaultConnectTimeout, defaultReadTimeout),
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	for _, option := range options {
		option(provider)
	}
	return provider
}

type elevationLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type elevationRequest struct {
	Locations []elevationLocation `json:"locations"`
}

type elevationResponse struct {
	Results []struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// Elevations implements ElevationProvider
func (provider *HTTPElevationProvider) Elevations(ctx context.Context, points []GeoPoint) ([]float64, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if err := provider.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "Can't wait for elevation rate limiter")
	}
	payload := elevationRequest{Locations: make([]elevationLocation, len(points))}
	for i, pt := range points {
		payload.Locations[i] = elevationLocation{Latitude: pt.Lat, Longitude: pt.Lon}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "Can't encode elevation request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "Can't build elevation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := provider.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do elevation request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("Elevation provider returned status %d", resp.StatusCode)
	}

	var decoded elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "Can't decode elevation response")
	}
	if len(decoded.Results) != len(points) {
		return nil, errElevationMismatch
	}
	result := make([]float64, len(points))
	for i, r := range decoded.Results {
		if r.Elevation == nil {
			result[i] = math.NaN()
			continue
		}
		result[i] = *r.Elevation
	}
	return result, nil
}
