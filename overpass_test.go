package grvl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overpassResponse = `{
  "elements": [
    {"type": "way", "id": 100, "nodes": [1, 2, 3], "tags": {"highway": "track", "surface": "Gravel", "tracktype": "grade2"}},
    {"type": "way", "id": 101, "nodes": [4, 5], "tags": {"highway": "motorway"}},
    {"type": "way", "id": 102, "nodes": [1, 9], "tags": {"highway": "path"}},
    {"type": "way", "id": 103, "nodes": [2, 4], "tags": {"highway": "path", "access": "private"}},
    {"type": "node", "id": 1, "lat": 45.0, "lon": 10.0},
    {"type": "node", "id": 2, "lat": 45.001, "lon": 10.0},
    {"type": "node", "id": 3, "lat": 45.002, "lon": 10.001},
    {"type": "node", "id": 4, "lat": 45.0, "lon": 10.01},
    {"type": "node", "id": 5, "lat": 45.001, "lon": 10.01}
  ]
}`

func TestOverpassProviderFetchRoads(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query = r.PostForm.Get("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, overpassResponse)
	}))
	defer srv.Close()

	provider := NewOverpassProvider(srv.URL)
	bound := orb.Bound{Min: orb.Point{9.99, 44.99}, Max: orb.Point{10.02, 45.01}}
	roads, err := provider.FetchRoads(context.Background(), bound, DefaultRoadFilter())
	require.NoError(t, err)

	assert.Contains(t, query, "[out:json]")
	assert.Contains(t, query, `way["highway"~"^(track|path|`)
	assert.Contains(t, query, "(44.990000,9.990000,45.010000,10.020000)")

	// motorway is filtered, way 102 misses a node, way 103 is private
	require.Len(t, roads, 1)
	road := roads[0]
	assert.Equal(t, osm.WayID(100), road.ID)
	assert.Len(t, road.Points, 3)
	assert.Equal(t, "gravel", road.Surface())
	assert.Equal(t, SlopeUnknown, road.MaxSlope)
	assert.Greater(t, road.Length(), 200.0)
}

func TestOverpassProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	_, err := NewOverpassProvider(srv.URL).FetchRoads(context.Background(), orb.Bound{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "504")
}

func TestRoadsFromOSM(t *testing.T) {
	data := &osm.OSM{
		Nodes: osm.Nodes{
			{ID: 1, Lat: 45, Lon: 10},
			{ID: 2, Lat: 45.001, Lon: 10},
		},
		Ways: osm.Ways{
			{ID: 7, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}, Tags: osm.Tags{{Key: "highway", Value: "cycleway"}, {Key: "Surface", Value: "asphalt"}}},
			{ID: 8, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}, Tags: osm.Tags{{Key: "building", Value: "yes"}}},
		},
	}
	roads := roadsFromOSM(data, DefaultRoadFilter())
	require.Len(t, roads, 1)
	assert.Equal(t, "asphalt", roads[0].Tag("surface"))

	// no filter accepts everything with geometry
	assert.Len(t, roadsFromOSM(data, nil), 2)
}

func TestRoadFilter(t *testing.T) {
	filter := DefaultRoadFilter()
	assert.True(t, filter.CheckTag("track"))
	assert.False(t, filter.CheckTag("motorway"))
	assert.True(t, filter.Accept(map[string]string{"highway": "track"}))
	assert.False(t, filter.Accept(map[string]string{"highway": "track", "access": "no"}))
	assert.False(t, filter.Accept(map[string]string{"surface": "gravel"}))
	assert.Equal(t, `["highway"]`, (&RoadFilter{}).overpassSelector())
}
