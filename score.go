package grvl

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Score attributes. Used as keys of ScoreWeights
const (
	AttributeSurface    = "surface"
	AttributeSmoothness = "smoothness"
	AttributeTrackType  = "tracktype"
	AttributeBicycle    = "bicycle"
	AttributeWidth      = "width"
	AttributeLength     = "length"
	AttributeSlope      = "slope"
)

// ScoreWeights maps score attribute to its integer weight
type ScoreWeights map[string]int

// DefaultScoreWeights returns weights of a general purpose gravel bike profile
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		AttributeSurface:    3,
		AttributeSmoothness: 2,
		AttributeTrackType:  2,
		AttributeBicycle:    1,
		AttributeWidth:      1,
		AttributeLength:     1,
		AttributeSlope:      2,
	}
}

// Weight returns weight for attribute. Missing attributes fall back to default profile
func (weights ScoreWeights) Weight(attribute string) int {
	if w, ok := weights[attribute]; ok {
		return w
	}
	return DefaultScoreWeights()[attribute]
}

var (
	widthRegExp = regexp.MustCompile(`\d+[.,]?\d*`)

	// Slope bands: upper bound of slope (%) -> contribution. Must be sorted by bound
	slopeBands = []struct {
		upTo  float64
		score int
	}{
		{3, 2},
		{6, 1},
		{10, 0},
		{12, -2},
		{15, -4},
		{20, -6},
	}
	steepSlopeScore = -8
)

// ScoreCalculator evaluates road rideability. Safe for concurrent use
type ScoreCalculator struct {
	weights ScoreWeights
}

// NewScoreCalculator creates calculator for given weights. Nil weights means default profile
func NewScoreCalculator(weights ScoreWeights) *ScoreCalculator {
	copied := make(ScoreWeights, len(weights))
	for k, v := range weights {
		copied[k] = v
	}
	return &ScoreCalculator{weights: copied}
}

// Weights returns copy of calculator weights
func (calc *ScoreCalculator) Weights() ScoreWeights {
	copied := make(ScoreWeights, len(calc.weights))
	for k, v := range calc.weights {
		copied[k] = v
	}
	return copied
}

// ScoreBreakdown is weighted contribution of every attribute
type ScoreBreakdown map[string]int

// Total returns sum of contributions
func (breakdown ScoreBreakdown) Total() int {
	total := 0
	for _, v := range breakdown {
		total += v
	}
	return total
}

func (breakdown ScoreBreakdown) String() string {
	keys := make([]string, 0, len(breakdown))
	for k := range breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, breakdown[k]))
	}
	return strings.Join(parts, " ")
}

// Score returns integer quality score for road described by tags and geometry.
// Negative maxSlopePercent means slope is unknown and does not contribute
func (calc *ScoreCalculator) Score(tags map[string]string, geometry []GeoPoint, maxSlopePercent float64) int {
	return calc.Breakdown(tags, geometry, maxSlopePercent).Total()
}

// ScoreRoad evaluates road using its own tags, geometry and max slope
func (calc *ScoreCalculator) ScoreRoad(road *Road) int {
	return calc.Score(road.Tags, road.Points, road.MaxSlope)
}

// Breakdown returns weighted contribution of every attribute
func (calc *ScoreCalculator) Breakdown(tags map[string]string, geometry []GeoPoint, maxSlopePercent float64) ScoreBreakdown {
	breakdown := ScoreBreakdown{
		AttributeSurface:    calc.weights.Weight(AttributeSurface) * lookupScore(surfaceScores, tags[TagSurface]),
		AttributeSmoothness: calc.weights.Weight(AttributeSmoothness) * lookupScore(smoothnessScores, tags[TagSmoothness]),
		AttributeTrackType:  calc.weights.Weight(AttributeTrackType) * lookupScore(trackTypeScores, tags[TagTrackType]),
		AttributeBicycle:    calc.weights.Weight(AttributeBicycle) * getBicycleAccess(tags[TagBicycle]).score(),
		AttributeWidth:      calc.weights.Weight(AttributeWidth) * widthScore(estimateWidth(tags)),
		AttributeLength:     calc.weights.Weight(AttributeLength) * lengthScore(getSphericalLength(geometry)),
		AttributeSlope:      calc.weights.Weight(AttributeSlope) * slopeScore(maxSlopePercent),
	}
	return breakdown
}

// estimateWidth returns road width (meters) from `width`/`est_width` tags or from highway type. Returns -1 if unknown
func estimateWidth(tags map[string]string) float64 {
	for _, key := range []string{TagWidth, TagEstWidth} {
		if width := parseWidth(tags[key]); width > 0 {
			return width
		}
	}
	return getHighwayType(tags[TagHighway]).estimatedWidth()
}

// parseWidth extracts number of meters from values like "3", "2.5 m", "2,5"
func parseWidth(value string) float64 {
	if value == "" {
		return -1
	}
	num := widthRegExp.FindString(value)
	if num == "" {
		return -1
	}
	width, err := strconv.ParseFloat(strings.Replace(num, ",", ".", 1), 64)
	if err != nil {
		return -1
	}
	return width
}

func widthScore(width float64) int {
	switch {
	case width < 0:
		return 0
	case width >= 4.0:
		return 2
	case width >= 2.5:
		return 1
	case width >= 1.5:
		return 0
	default:
		return -1
	}
}

func lengthScore(length float64) int {
	switch {
	case length >= 1000:
		return 2
	case length >= 300:
		return 1
	default:
		return 0
	}
}

func slopeScore(maxSlopePercent float64) int {
	if maxSlopePercent < 0 {
		return 0
	}
	for _, band := range slopeBands {
		if maxSlopePercent <= band.upTo {
			return band.score
		}
	}
	return steepSlopeScore
}
