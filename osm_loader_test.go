package grvl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOSMXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="45.0000" lon="10.0000"/>
  <node id="2" lat="45.0010" lon="10.0000"/>
  <node id="3" lat="45.0020" lon="10.0010"/>
  <node id="4" lat="46.0000" lon="11.0000"/>
  <node id="5" lat="46.0010" lon="11.0000"/>
  <node id="6" lat="45.0005" lon="10.0005"/>
  <way id="10">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="track"/>
    <tag k="surface" v="compacted"/>
  </way>
  <way id="11">
    <nd ref="4"/>
    <nd ref="5"/>
    <tag k="highway" v="path"/>
  </way>
  <way id="12">
    <nd ref="1"/>
    <nd ref="6"/>
    <tag k="building" v="yes"/>
  </way>
  <way id="13">
    <nd ref="2"/>
    <nd ref="6"/>
    <tag k="highway" v="motorway"/>
  </way>
</osm>`

func writeTestOSM(t *testing.T, name string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(testOSMXML), 0o644))
	return filename
}

func TestFileRoadProvider(t *testing.T) {
	provider := NewFileRoadProvider(writeTestOSM(t, "roads.osm"), nil)
	bound := orb.Bound{Min: orb.Point{9.99, 44.99}, Max: orb.Point{10.01, 45.01}}

	roads, err := provider.FetchRoads(context.Background(), bound, DefaultRoadFilter())
	require.NoError(t, err)
	require.Len(t, roads, 1)
	assert.Equal(t, osm.WayID(10), roads[0].ID)
	assert.Len(t, roads[0].Points, 3)
	assert.Equal(t, "compacted", roads[0].Surface())

	// without filter motorway is returned too, building never is
	all, err := provider.FetchRoads(context.Background(), bound, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// fetched roads are copies
	roads[0].Score = 99
	again, err := provider.FetchRoads(context.Background(), bound, DefaultRoadFilter())
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Score)

	far, err := provider.FetchRoads(context.Background(), orb.Bound{Min: orb.Point{10.99, 45.99}, Max: orb.Point{11.01, 46.01}}, DefaultRoadFilter())
	require.NoError(t, err)
	require.Len(t, far, 1)
	assert.Equal(t, osm.WayID(11), far[0].ID)
}

func TestFileRoadProviderErrors(t *testing.T) {
	_, err := NewFileRoadProvider(filepath.Join(t.TempDir(), "missing.osm"), nil).FetchRoads(context.Background(), orb.Bound{}, nil)
	require.Error(t, err)

	_, err = NewFileRoadProvider(writeTestOSM(t, "roads.geojson"), nil).FetchRoads(context.Background(), orb.Bound{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not handled")
}
