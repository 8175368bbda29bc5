package grvl

import (
	"math"

	"gonum.org/v1/gonum/graph"
)

const (
	scoreFactorOffset = 30.0
)

// Edge is undirected connection between two consecutive road vertices
type Edge struct {
	F, T *Node
	// Distance is physical length (meters)
	Distance float64
	// Cost is traversal weight: distance scaled down by road quality
	Cost float64
	Road *Road
}

// From implements graph.Edge
func (edge *Edge) From() graph.Node { return edge.F }

// To implements graph.Edge
func (edge *Edge) To() graph.Node { return edge.T }

// ReversedEdge implements graph.Edge
func (edge *Edge) ReversedEdge() graph.Edge {
	return &Edge{F: edge.T, T: edge.F, Distance: edge.Distance, Cost: edge.Cost, Road: edge.Road}
}

// Weight implements graph.WeightedEdge
func (edge *Edge) Weight() float64 { return edge.Cost }

// scoreFactor returns how much cheaper traversal of the road is. Never less than 1
func scoreFactor(score int) float64 {
	return math.Max(1.0, (float64(score)+scoreFactorOffset)/scoreFactorOffset)
}

// edgeCost returns traversal weight of given distance on road with given score
func edgeCost(distance float64, score int) float64 {
	return distance / scoreFactor(score)
}
