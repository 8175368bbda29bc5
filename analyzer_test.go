package grvl

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoadProvider serves copies of prepared roads. Filter is ignored
type fakeRoadProvider struct {
	mu      sync.Mutex
	roads   []*Road
	calls   int
	failOn  map[int]error
	panicOn map[int]bool
}

func (provider *fakeRoadProvider) FetchRoads(ctx context.Context, bound orb.Bound, filter *RoadFilter) ([]*Road, error) {
	provider.mu.Lock()
	call := provider.calls
	provider.calls++
	provider.mu.Unlock()
	if err, ok := provider.failOn[call]; ok {
		return nil, err
	}
	if provider.panicOn[call] {
		panic("out of memory")
	}
	result := make([]*Road, 0)
	for _, road := range provider.roads {
		if boundOfLine(road.Points).Intersects(bound) {
			result = append(result, NewRoad(road.ID, road.Points, road.Tags))
		}
	}
	return result, nil
}

var gravelTags = map[string]string{"highway": "track", "surface": "gravel", "tracktype": "grade1", "smoothness": "good"}

func testTrace() []TracePoint {
	return traceFromLine(straightLine(GeoPoint{Lat: 45, Lon: 10}, 3000, 31))
}

func testPipelineConfig() PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.ChunkDelay = 0
	return cfg
}

func newTestAnalyzer(t *testing.T, provider RoadProvider, options ...AnalyzerOption) *Analyzer {
	t.Helper()
	options = append([]AnalyzerOption{WithPipelineConfig(testPipelineConfig())}, options...)
	analyzer := NewAnalyzer(provider, options...)
	t.Cleanup(analyzer.Close)
	return analyzer
}

func alongTraceProvider() *fakeRoadProvider {
	road := NewRoad(osm.WayID(1), straightLine(GeoPoint{Lat: 45, Lon: 10}, 3000, 61), gravelTags)
	return &fakeRoadProvider{roads: []*Road{road}}
}

func TestAnalyzeWithoutRoads(t *testing.T) {
	analyzer := newTestAnalyzer(t, &fakeRoadProvider{})
	analysis, err := analyzer.Analyze(context.Background(), testTrace())
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.ID.String())
	assert.Empty(t, analysis.FailedChunks)
	assert.Equal(t, 0.0, analysis.Classification.Coverage())
	assert.InDelta(t, 100.0, analysis.Classification.Percent(BIN_UNKNOWN), 1e-9)
	assert.InDelta(t, analysis.Classification.TotalDistance, analysis.Classification.Surfaces[SurfaceUnmatched], 1e-9)
}

func TestAnalyzeMatchesRoads(t *testing.T) {
	provider := alongTraceProvider()
	analyzer := newTestAnalyzer(t, provider)
	analysis, err := analyzer.Analyze(context.Background(), testTrace())
	require.NoError(t, err)
	assert.Greater(t, analysis.Chunks, 1)
	assert.Equal(t, analysis.Chunks, provider.calls)
	assert.Equal(t, 1, analysis.Roads)

	c := analysis.Classification
	assert.InDelta(t, 100.0, c.Coverage(), 1e-9)
	sum := 0.0
	for bin := QualityBin(0); bin < binsCount; bin++ {
		sum += c.Distance(bin)
	}
	assert.InEpsilon(t, c.TotalDistance, sum, 1e-9)

	expected := BinForScore(NewScoreCalculator(DefaultScoreWeights()).ScoreRoad(provider.roads[0]))
	assert.InDelta(t, c.TotalDistance, c.Distance(expected), 1e-6)
	assert.InDelta(t, c.TotalDistance, c.Surfaces["gravel"], 1e-6)
	for _, seg := range analysis.Segments {
		require.True(t, seg.IsMatched())
		assert.Equal(t, osm.WayID(1), seg.Road.ID)
	}
	// roads shared between chunks are the same object
	assert.Same(t, analysis.Segments[0].Road, analysis.Segments[len(analysis.Segments)-1].Road)
}

func TestAnalyzeIdempotent(t *testing.T) {
	analyzer := newTestAnalyzer(t, alongTraceProvider())
	first, err := analyzer.Analyze(context.Background(), testTrace())
	require.NoError(t, err)
	second, err := analyzer.Analyze(context.Background(), testTrace())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Classification.Distances, second.Classification.Distances)
	assert.Equal(t, first.Classification.Surfaces, second.Classification.Surfaces)
}

func TestAnalyzeEmptyTrace(t *testing.T) {
	analyzer := newTestAnalyzer(t, &fakeRoadProvider{})
	_, err := analyzer.Analyze(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyTrace))
}

func TestAnalyzeFirstFetchFailureIsFatal(t *testing.T) {
	provider := alongTraceProvider()
	provider.failOn = map[int]error{0: errors.New("overpass is down")}
	analyzer := newTestAnalyzer(t, provider)
	analysis, err := analyzer.Analyze(context.Background(), testTrace())
	require.Error(t, err)
	assert.Nil(t, analysis)
	assert.Contains(t, err.Error(), "overpass is down")
}

func TestAnalyzeLaterChunkFailures(t *testing.T) {
	cases := []struct {
		name     string
		provider func() *fakeRoadProvider
		message  string
	}{
		{
			name: "fetch error",
			provider: func() *fakeRoadProvider {
				provider := alongTraceProvider()
				provider.failOn = map[int]error{1: errors.New("timeout")}
				return provider
			},
			message: "timeout",
		},
		{
			name: "panic",
			provider: func() *fakeRoadProvider {
				provider := alongTraceProvider()
				provider.panicOn = map[int]bool{1: true}
				return provider
			},
			message: "panicked",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := newTestAnalyzer(t, tc.provider())
			analysis, err := analyzer.Analyze(context.Background(), testTrace())
			require.NoError(t, err)
			require.Len(t, analysis.FailedChunks, 1)
			assert.Equal(t, 1, analysis.FailedChunks[0].Index)
			assert.Contains(t, analysis.FailedChunks[0].Err.Error(), tc.message)
			assert.True(t, analysis.Segments[0].IsMatched())
			assert.False(t, analysis.Segments[len(analysis.Segments)-1].IsMatched())

			coverage := analysis.Classification.Coverage()
			assert.Greater(t, coverage, 0.0)
			assert.Less(t, coverage, 100.0)
			require.NotEmpty(t, analysis.Warnings)
			assert.True(t, strings.Contains(strings.Join(analysis.Warnings, ";"), "chunks failed"))
		})
	}
}

func TestAnalyzeCanceled(t *testing.T) {
	analyzer := newTestAnalyzer(t, alongTraceProvider())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := analyzer.Analyze(ctx, testTrace())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAnalyzeTwoPassSlope(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	elevation := gradeProvider(origin, 5)
	analyzer := newTestAnalyzer(t, alongTraceProvider(),
		WithElevationProvider(elevation),
		WithSlopeOptions(WithElevationBatchDelay(0)),
	)
	analysis, err := analyzer.Analyze(context.Background(), testTrace())
	require.NoError(t, err)
	assert.Empty(t, analysis.Warnings)
	assert.Greater(t, elevation.calls, 0)
	road := analysis.Segments[0].Road
	assert.InDelta(t, 5.0, road.MaxSlope, 0.5)
	for _, seg := range analysis.Segments {
		assert.InDelta(t, 5.0, seg.Slope, 0.5)
	}
}

func TestAnalyzeAsync(t *testing.T) {
	analyzer := NewAnalyzer(alongTraceProvider(), WithPipelineConfig(testPipelineConfig()))
	future := analyzer.AnalyzeAsync(context.Background(), testTrace())
	analysis, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, analysis.Classification.Coverage(), 1e-9)

	analyzer.Close()
	_, err = analyzer.AnalyzeAsync(context.Background(), testTrace()).Wait(context.Background())
	assert.True(t, errors.Is(err, ErrWorkerClosed))
}

func TestPlanRoute(t *testing.T) {
	provider := &fakeRoadProvider{roads: gridRoads(5, 100)}
	elevation := gradeProvider(matcherOrigin, 5)
	analyzer := newTestAnalyzer(t, provider,
		WithElevationProvider(elevation),
		WithSlopeOptions(WithElevationBatchDelay(0)),
	)
	start := matcherOrigin
	end := offsetPoint(matcherOrigin, 400, 400)

	result, err := analyzer.PlanRoute(context.Background(), start, end)
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, start, result.Path[0])
	assert.Equal(t, end, result.Path[len(result.Path)-1])
	assert.InDelta(t, 5.0, result.SteepestSlope, 0.5)
	require.NotNil(t, result.Classification)
	assert.InDelta(t, 100.0, result.Classification.Coverage(), 1e-6)

	future := analyzer.PlanRouteAsync(context.Background(), start, offsetPoint(matcherOrigin, 5000, 5000))
	far, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NO_PATH_END_SNAP, far.Status)
}

func TestPlanRouteFetchFailure(t *testing.T) {
	provider := &fakeRoadProvider{failOn: map[int]error{0: errors.New("down")}}
	analyzer := newTestAnalyzer(t, provider)
	_, err := analyzer.PlanRoute(context.Background(), matcherOrigin, offsetPoint(matcherOrigin, 400, 400))
	require.Error(t, err)
}

func TestPipelinePresets(t *testing.T) {
	for _, name := range []string{PresetPrecise, PresetBalanced, "FAST"} {
		cfg, err := PresetConfig(name)
		require.NoError(t, err, name)
		assert.Greater(t, cfg.SegmentLength, 0.0)
		assert.Less(t, cfg.Chunker.Overlap, cfg.Chunker.MaxSegments)
	}
	_, err := PresetConfig("reckless")
	require.Error(t, err)

	precise, _ := PresetConfig(PresetPrecise)
	fast, _ := PresetConfig(PresetFast)
	assert.Less(t, precise.SegmentLength, fast.SegmentLength)
	assert.True(t, precise.TwoPass)
	assert.False(t, fast.TwoPass)
	assert.Contains(t, DefaultPipelineConfig().String(), "preset: 'balanced'")
}
