package grvl

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// ChunkerConfig bounds geographic extent and size of chunks
type ChunkerConfig struct {
	// MaxChunkDistance is distance budget of a chunk (meters)
	MaxChunkDistance float64
	// MaxSegments is segment count ceiling of a chunk
	MaxSegments int
	// Overlap is number of trailing segments carried into the next chunk
	Overlap int
	// BufferDegrees pads chunk bound
	BufferDegrees float64
	// MaxRoadsPerChunk caps number of roads kept for a chunk. Non-positive means no cap
	MaxRoadsPerChunk int
	// MaxRegionSpan is the largest side (degrees) of a region tile
	MaxRegionSpan float64
}

// DefaultChunkerConfig returns balanced chunking parameters
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkDistance: 2000,
		MaxSegments:      20,
		Overlap:          2,
		BufferDegrees:    0.002,
		MaxRoadsPerChunk: 400,
		MaxRegionSpan:    0.05,
	}
}

func (cfg ChunkerConfig) String() string {
	return fmt.Sprintf("Chunker: distance %.0f m | segments %d | overlap %d | buffer %f | roads cap %d | region span %f",
		cfg.MaxChunkDistance, cfg.MaxSegments, cfg.Overlap, cfg.BufferDegrees, cfg.MaxRoadsPerChunk, cfg.MaxRegionSpan)
}

// Chunk is a bounded part of the query. It owns transient road cache
type Chunk struct {
	Index    int
	Bound    orb.Bound
	Segments []*RouteSegment
	// Overlap is number of leading segments already covered by the previous chunk
	Overlap int

	roads []*Road
}

// SetRoads stores fetched roads in chunk cache
func (chunk *Chunk) SetRoads(roads []*Road) {
	chunk.roads = roads
}

// Roads returns cached roads
func (chunk *Chunk) Roads() []*Road {
	return chunk.roads
}

// Release drops road cache
func (chunk *Chunk) Release() {
	chunk.roads = nil
}

// Chunker partitions traces and regions into chunks
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker creates chunker. Non-positive values fall back to defaults
func NewChunker(cfg ChunkerConfig) *Chunker {
	def := DefaultChunkerConfig()
	if cfg.MaxChunkDistance <= 0 {
		cfg.MaxChunkDistance = def.MaxChunkDistance
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = def.MaxSegments
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxSegments {
		cfg.Overlap = cfg.MaxSegments - 1
	}
	if cfg.BufferDegrees < 0 {
		cfg.BufferDegrees = 0
	}
	if cfg.MaxRegionSpan <= 0 {
		cfg.MaxRegionSpan = def.MaxRegionSpan
	}
	return &Chunker{cfg: cfg}
}

// Config returns effective configuration
func (chunker *Chunker) Config() ChunkerConfig {
	return chunker.cfg
}

// ChunkSegments groups consecutive segments into chunks.
// Every chunk adds at least one segment which is not covered by previous chunks
func (chunker *Chunker) ChunkSegments(segments []*RouteSegment) []*Chunk {
	chunks := make([]*Chunk, 0)
	next := 0
	for next < len(segments) {
		begin := next
		if len(chunks) > 0 {
			begin = max(next-chunker.cfg.Overlap, 0)
		}
		end := begin
		distance := 0.0
		for end < len(segments) {
			distance += segments[end].Distance
			end++
			if end > next && (end-begin >= chunker.cfg.MaxSegments || distance >= chunker.cfg.MaxChunkDistance) {
				break
			}
		}
		covered := segments[begin:end]
		chunks = append(chunks, &Chunk{
			Index:    len(chunks),
			Bound:    segmentsBound(covered).Pad(chunker.cfg.BufferDegrees),
			Segments: covered,
			Overlap:  next - begin,
		})
		next = end
	}
	return chunks
}

// ChunkRegion splits region into equal tiles not larger than MaxRegionSpan degrees
func (chunker *Chunker) ChunkRegion(bound orb.Bound) []*Chunk {
	span := chunker.cfg.MaxRegionSpan
	width := bound.Max.Lon() - bound.Min.Lon()
	height := bound.Max.Lat() - bound.Min.Lat()
	cols := max(1, int(math.Ceil(width/span)))
	rows := max(1, int(math.Ceil(height/span)))
	tileWidth := width / float64(cols)
	tileHeight := height / float64(rows)

	chunks := make([]*Chunk, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			minPt := orb.Point{bound.Min.Lon() + tileWidth*float64(col), bound.Min.Lat() + tileHeight*float64(row)}
			maxPt := orb.Point{minPt.Lon() + tileWidth, minPt.Lat() + tileHeight}
			if col == cols-1 {
				maxPt[0] = bound.Max.Lon()
			}
			if row == rows-1 {
				maxPt[1] = bound.Max.Lat()
			}
			chunks = append(chunks, &Chunk{
				Index: len(chunks),
				Bound: orb.Bound{Min: minPt, Max: maxPt},
			})
		}
	}
	return chunks
}

// CapRoads keeps the longest roads when there are more of them than allowed for a chunk
func (chunker *Chunker) CapRoads(roads []*Road) []*Road {
	return capRoads(roads, chunker.cfg.MaxRoadsPerChunk)
}

func capRoads(roads []*Road, limit int) []*Road {
	if limit <= 0 || len(roads) <= limit {
		return roads
	}
	sorted := make([]*Road, len(roads))
	copy(sorted, roads)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Length() > sorted[j].Length()
	})
	return sorted[:limit]
}
