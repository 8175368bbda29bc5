package grvl

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Pipeline presets
const (
	PresetPrecise  = "precise"
	PresetBalanced = "balanced"
	PresetFast     = "fast"
)

const (
	// DefaultElevationWait bounds the second classification pass
	DefaultElevationWait = 30 * time.Second
	// DefaultAreaPadding pads start/end bound when roads for planning are fetched (degrees)
	DefaultAreaPadding = 0.01
)

// PipelineConfig parameterizes chunk -> fetch -> match -> classify pipeline
type PipelineConfig struct {
	Preset        string
	SegmentLength float64
	Chunker       ChunkerConfig
	Matcher       MatcherConfig
	// ChunkDelay is the smallest pause between two road fetches
	ChunkDelay time.Duration
	// TwoPass enables slope refinement of matched roads
	TwoPass       bool
	ElevationWait time.Duration
	AreaPadding   float64
	Filter        *RoadFilter
}

func (cfg PipelineConfig) String() string {
	return fmt.Sprintf(`
Pipeline parameters:
	preset: '%s'
	segment_length: %.1f
	chunk_distance: %.1f
	chunk_segments: %d
	chunk_overlap: %d
	chunk_buffer: %f
	chunk_roads_cap: %d
	region_span: %f
	match_distance: %.1f
	chunk_delay: %v
	two_pass enabled?: %t
	elevation_wait: %v
	area_padding: %f
	highway_tags: '%s'
	`,
		cfg.Preset,
		cfg.SegmentLength,
		cfg.Chunker.MaxChunkDistance,
		cfg.Chunker.MaxSegments,
		cfg.Chunker.Overlap,
		cfg.Chunker.BufferDegrees,
		cfg.Chunker.MaxRoadsPerChunk,
		cfg.Chunker.MaxRegionSpan,
		cfg.Matcher.MaxDistance,
		cfg.ChunkDelay,
		cfg.TwoPass,
		cfg.ElevationWait,
		cfg.AreaPadding,
		strings.Join(cfg.filter().Tags, ","),
	)
}

func (cfg PipelineConfig) filter() *RoadFilter {
	if cfg.Filter == nil {
		return DefaultRoadFilter()
	}
	return cfg.Filter
}

var (
	pipelinePresets = map[string]PipelineConfig{
		PresetPrecise: {
			Preset:        PresetPrecise,
			SegmentLength: 50,
			Chunker: ChunkerConfig{
				MaxChunkDistance: 1500,
				MaxSegments:      25,
				Overlap:          3,
				BufferDegrees:    0.002,
				MaxRoadsPerChunk: 300,
				MaxRegionSpan:    0.03,
			},
			Matcher:       MatcherConfig{MaxDistance: 80},
			ChunkDelay:    time.Second,
			TwoPass:       true,
			ElevationWait: DefaultElevationWait,
			AreaPadding:   DefaultAreaPadding,
		},
		PresetBalanced: {
			Preset:        PresetBalanced,
			SegmentLength: 100,
			Chunker:       DefaultChunkerConfig(),
			Matcher:       MatcherConfig{MaxDistance: DefaultMatchDistance},
			ChunkDelay:    500 * time.Millisecond,
			TwoPass:       true,
			ElevationWait: DefaultElevationWait,
			AreaPadding:   DefaultAreaPadding,
		},
		PresetFast: {
			Preset:        PresetFast,
			SegmentLength: 200,
			Chunker: ChunkerConfig{
				MaxChunkDistance: 3000,
				MaxSegments:      15,
				Overlap:          2,
				BufferDegrees:    0.003,
				MaxRoadsPerChunk: 500,
				MaxRegionSpan:    0.08,
			},
			Matcher:       MatcherConfig{MaxDistance: 150},
			ChunkDelay:    250 * time.Millisecond,
			TwoPass:       false,
			ElevationWait: 10 * time.Second,
			AreaPadding:   DefaultAreaPadding,
		},
	}
)

// PresetConfig returns configuration of named preset
func PresetConfig(name string) (PipelineConfig, error) {
	cfg, ok := pipelinePresets[strings.ToLower(name)]
	if !ok {
		return PipelineConfig{}, errors.Errorf("Unknown pipeline preset '%s'", name)
	}
	return cfg, nil
}

// DefaultPipelineConfig returns balanced preset
func DefaultPipelineConfig() PipelineConfig {
	return pipelinePresets[PresetBalanced]
}
