package grvl

import (
	"math"
)

const (
	// Coordinates are rounded to 1e-6 degree (~0.1 m) to merge shared vertices of roads
	nodeKeyPrecision = 1e6
)

// nodeKey is rounded coordinate of graph node
type nodeKey struct {
	lat int64
	lon int64
}

func newNodeKey(pt GeoPoint) nodeKey {
	return nodeKey{
		lat: int64(math.Round(pt.Lat * nodeKeyPrecision)),
		lon: int64(math.Round(pt.Lon * nodeKeyPrecision)),
	}
}

// Node is a vertex of weighted graph
type Node struct {
	id    int64
	Point GeoPoint
	// useCount is number of road vertices merged into this node
	useCount int
}

// ID implements graph.Node
func (node *Node) ID() int64 {
	return node.id
}
