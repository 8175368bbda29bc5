package grvl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

	defaultOverpassQueryTimeout = 25
	maxOverpassResponseSize     = 64 << 20
)

// OverpassProvider fetches roads from Overpass API
type OverpassProvider struct {
	url          string
	httpClient   *http.Client
	limiter      *rate.Limiter
	queryTimeout int
	logger       *zap.Logger
}

// OverpassOption configures OverpassProvider
type OverpassOption func(*OverpassProvider)

// WithOverpassHTTPClient sets custom HTTP client
func WithOverpassHTTPClient(client *http.Client) OverpassOption {
	return func(provider *OverpassProvider) {
		provider.httpClient = client
	}
}

// WithOverpassTimeouts sets connect and read timeouts
func WithOverpassTimeouts(connect, read time.Duration) OverpassOption {
	return func(provider *OverpassProvider) {
		provider.httpClient = newHTTPClient(connect, read)
		provider.queryTimeout = max(1, int(read.Seconds()))
	}
}

// WithOverpassRateLimit sets requests-per-second limit. Non-positive value disables limiting
func WithOverpassRateLimit(rps float64) OverpassOption {
	return func(provider *OverpassProvider) {
		if rps <= 0 {
			provider.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		provider.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithOverpassLogger sets logger
func WithOverpassLogger(logger *zap.Logger) OverpassOption {
	return func(provider *OverpassProvider) {
		provider.logger = logger
	}
}

// NewOverpassProvider creates provider for given interpreter endpoint. Empty URL means DefaultOverpassURL
func NewOverpassProvider(url string, options ...OverpassOption) *OverpassProvider {
	if url == "" {
		url = DefaultOverpassURL
	}
	provider := &OverpassProvider{
		url:          url,
		httpClient:   newHTTPClient(defaultConnectTimeout, defaultReadTimeout),
		limiter:      rate.NewLimiter(rate.Inf, 1),
		queryTimeout: defaultOverpassQueryTimeout,
		logger:       zap.L(),
	}
	for _, option := range options {
		option(provider)
	}
	return provider
}

// overpassQuery returns Overpass QL query for ways inside bound with their nodes
func overpassQuery(bound orb.Bound, filter *RoadFilter, timeout int) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  way%s(%f,%f,%f,%f);
);
out body;
>;
out skel qt;`,
		timeout,
		filter.overpassSelector(),
		bound.Min.Lat(), bound.Min.Lon(), bound.Max.Lat(), bound.Max.Lon(),
	)
}

// FetchRoads implements RoadProvider
func (provider *OverpassProvider) FetchRoads(ctx context.Context, bound orb.Bound, filter *RoadFilter) ([]*Road, error) {
	if err := provider.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "Can't wait for overpass rate limiter")
	}
	query := overpassQuery(bound, filter, provider.queryTimeout)
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "Can't build overpass request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	st := time.Now()
	resp, err := provider.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do overpass request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("Overpass returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOverpassResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "Can't read overpass response")
	}
	data := osm.OSM{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrap(err, "Can't decode overpass response")
	}
	roads := roadsFromOSM(&data, filter)
	provider.logger.Debug("overpass roads fetched",
		zap.Int("ways", len(data.Ways)),
		zap.Int("nodes", len(data.Nodes)),
		zap.Int("roads", len(roads)),
		zap.Duration("took", time.Since(st)),
	)
	return roads, nil
}

// roadsFromOSM joins ways with their nodes. Ways with less than two known nodes are skipped
func roadsFromOSM(data *osm.OSM, filter *RoadFilter) []*Road {
	nodes := make(map[osm.NodeID]GeoPoint, len(data.Nodes))
	for _, node := range data.Nodes {
		nodes[node.ID] = GeoPoint{Lat: node.Lat, Lon: node.Lon}
	}
	roads := make([]*Road, 0, len(data.Ways))
	for _, way := range data.Ways {
		tags := tagsFromOSM(way.Tags)
		if !filter.Accept(tags) {
			continue
		}
		points := make([]GeoPoint, 0, len(way.Nodes))
		for _, wayNode := range way.Nodes {
			if pt, ok := nodes[wayNode.ID]; ok {
				points = append(points, pt)
				continue
			}
			// Some responses carry coordinates on way nodes directly
			if wayNode.Lat != 0 || wayNode.Lon != 0 {
				points = append(points, GeoPoint{Lat: wayNode.Lat, Lon: wayNode.Lon})
			}
		}
		if len(points) < 2 {
			continue
		}
		roads = append(roads, NewRoad(way.ID, points, tags))
	}
	return roads
}
