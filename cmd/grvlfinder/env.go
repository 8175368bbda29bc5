package main

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	grvl "github.com/jossmos64/GRVLFinder-sub000"
	"github.com/jossmos64/GRVLFinder-sub000/internal/config"
)

// environment holds providers and analyzer built from configuration
type environment struct {
	Analyzer *grvl.Analyzer
	Weights  grvl.ScoreWeights
	cache    *grvl.ElevationCache
}

// Close releases analyzer worker and elevation cache
func (env *environment) Close() {
	env.Analyzer.Close()
	if env.cache != nil {
		if err := env.cache.Close(); err != nil {
			zap.L().Warn("can't close elevation cache", zap.Error(err))
		}
	}
}

func initEnvironment(c *config.Config) (*environment, error) {
	logger := zap.L()
	pipeline, err := pipelineFromConfig(c.Pipeline)
	if err != nil {
		return nil, err
	}
	logger.Debug("pipeline configured", zap.String("pipeline", pipeline.String()))

	env := &environment{
		Weights: weightsFromConfig(c.Score),
	}
	options := []grvl.AnalyzerOption{
		grvl.WithPipelineConfig(pipeline),
		grvl.WithScoreWeights(env.Weights),
		grvl.WithAnalyzerLogger(logger),
		grvl.WithPlannerOptions(
			grvl.WithSnapDistance(c.Planner.SnapDistance),
			grvl.WithMaxExpansions(c.Planner.MaxExpansions),
		),
		grvl.WithSlopeOptions(
			grvl.WithElevationBatchSize(c.Elevation.BatchSize),
			grvl.WithElevationBatchDelay(c.Elevation.BatchDelay),
		),
	}
	elevation, cache, err := elevationFromConfig(c.Elevation, logger)
	if err != nil {
		return nil, err
	}
	env.cache = cache
	if elevation != nil {
		options = append(options, grvl.WithElevationProvider(elevation))
	}
	env.Analyzer = grvl.NewAnalyzer(roadsFromConfig(c.Overpass, logger), options...)
	return env, nil
}

// pipelineFromConfig applies non-zero overrides on top of preset
func pipelineFromConfig(c config.PipelineConfig) (grvl.PipelineConfig, error) {
	pipeline, err := grvl.PresetConfig(c.Preset)
	if err != nil {
		return grvl.PipelineConfig{}, err
	}
	if c.SegmentLength > 0 {
		pipeline.SegmentLength = c.SegmentLength
	}
	if c.ChunkDistance > 0 {
		pipeline.Chunker.MaxChunkDistance = c.ChunkDistance
	}
	if c.ChunkSegments > 0 {
		pipeline.Chunker.MaxSegments = c.ChunkSegments
	}
	if c.MatchDistance > 0 {
		pipeline.Matcher.MaxDistance = c.MatchDistance
	}
	if c.ChunkDelay > 0 {
		pipeline.ChunkDelay = c.ChunkDelay
	}
	if c.ElevationWait > 0 {
		pipeline.ElevationWait = c.ElevationWait
	}
	if len(c.HighwayTags) > 0 {
		filter := grvl.DefaultRoadFilter()
		filter.Tags = c.HighwayTags
		pipeline.Filter = filter
	}
	return pipeline, nil
}

func weightsFromConfig(c config.ScoreConfig) grvl.ScoreWeights {
	weights := grvl.DefaultScoreWeights()
	for attribute, weight := range c.Weights {
		weights[strings.ToLower(attribute)] = weight
	}
	return weights
}

func roadsFromConfig(c config.OverpassConfig, logger *zap.Logger) grvl.RoadProvider {
	if c.OSMFile != "" {
		return grvl.NewFileRoadProvider(c.OSMFile, logger)
	}
	return grvl.NewOverpassProvider(c.URL,
		grvl.WithOverpassTimeouts(c.ConnectTimeout, c.ReadTimeout),
		grvl.WithOverpassRateLimit(c.RateLimit),
		grvl.WithOverpassLogger(logger),
	)
}

// elevationFromConfig returns nil provider when elevation URL is empty
func elevationFromConfig(c config.ElevationConfig, logger *zap.Logger) (grvl.ElevationProvider, *grvl.ElevationCache, error) {
	if c.URL == "" {
		return nil, nil, nil
	}
	provider := grvl.NewHTTPElevationProvider(c.URL,
		grvl.WithElevationTimeouts(c.ConnectTimeout, c.ReadTimeout),
		grvl.WithElevationRateLimit(c.RateLimit),
	)
	if c.CachePath == "" {
		return provider, nil, nil
	}
	cache, err := grvl.OpenElevationCache(c.CachePath, provider, logger)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache, nil
}

// parseLatLon parses "lat,lon"
func parseLatLon(value string) (grvl.GeoPoint, error) {
	values, err := parseFloats(value, 2)
	if err != nil {
		return grvl.GeoPoint{}, err
	}
	pt := grvl.GeoPoint{Lat: values[0], Lon: values[1]}
	if pt.Lat < -90 || pt.Lat > 90 || pt.Lon < -180 || pt.Lon > 180 {
		return grvl.GeoPoint{}, errors.Errorf("Coordinates '%s' are out of range", value)
	}
	return pt, nil
}

// parseBBox parses "south,west,north,east"
func parseBBox(value string) (orb.Bound, error) {
	values, err := parseFloats(value, 4)
	if err != nil {
		return orb.Bound{}, err
	}
	south, west, north, east := values[0], values[1], values[2], values[3]
	if south >= north || west >= east {
		return orb.Bound{}, errors.Errorf("Bad bounding box '%s': expected south,west,north,east", value)
	}
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}, nil
}

func parseFloats(value string, count int) ([]float64, error) {
	parts := strings.Split(value, ",")
	if len(parts) != count {
		return nil, errors.Errorf("Expected %d comma separated numbers, got '%s'", count, value)
	}
	result := make([]float64, count)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse '%s'", part)
		}
		result[i] = f
	}
	return result, nil
}

// parseTags parses "k=v" pairs
func parseTags(pairs []string) (map[string]string, error) {
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, errors.Errorf("Bad tag '%s': expected key=value", pair)
		}
		tags[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return tags, nil
}
