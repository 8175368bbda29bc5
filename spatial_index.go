package grvl

import (
	"math"

	"github.com/golang/geo/s2"
)

const (
	// Level 14 cells are at least ~360 m wide: a cell with its neighbours covers snap distances up to that width
	spatialIndexLevel = 14
)

// spatialIndex buckets graph nodes by s2 cell to find nearest node quickly
type spatialIndex struct {
	level int
	cells map[s2.CellID][]*Node
	nodes []*Node
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		level: spatialIndexLevel,
		cells: make(map[s2.CellID][]*Node),
	}
}

func (index *spatialIndex) cellOf(pt GeoPoint) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(pt.Lat, pt.Lon)).Parent(index.level)
}

func (index *spatialIndex) insert(node *Node) {
	cell := index.cellOf(node.Point)
	index.cells[cell] = append(index.cells[cell], node)
	index.nodes = append(index.nodes, node)
}

// nearest returns the closest node within maxDistance (meters). Nil if there is none
func (index *spatialIndex) nearest(pt GeoPoint, maxDistance float64) (*Node, float64) {
	if len(index.nodes) == 0 {
		return nil, math.Inf(1)
	}
	var candidates []*Node
	if maxDistance <= index.cellSize() {
		cell := index.cellOf(pt)
		candidates = append(candidates, index.cells[cell]...)
		for _, neighbour := range cell.AllNeighbors(index.level) {
			candidates = append(candidates, index.cells[neighbour]...)
		}
	} else {
		candidates = index.nodes
	}
	var best *Node
	bestDistance := math.Inf(1)
	for _, node := range candidates {
		d := greatCircleDistance(pt, node.Point)
		if d < bestDistance || (d == bestDistance && best != nil && node.id < best.id) {
			best = node
			bestDistance = d
		}
	}
	if best == nil || bestDistance > maxDistance {
		return nil, bestDistance
	}
	return best, bestDistance
}

// cellSize returns lower bound of cell edge length (meters) at index level
func (index *spatialIndex) cellSize() float64 {
	return s2.MinWidthMetric.Value(index.level) * earthRadiusMeters
}
