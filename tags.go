package grvl

import (
	"strings"
)

// Tag keys read by the score calculator
const (
	TagSurface    = "surface"
	TagSmoothness = "smoothness"
	TagTrackType  = "tracktype"
	TagBicycle    = "bicycle"
	TagWidth      = "width"
	TagEstWidth   = "est_width"
	TagHighway    = "highway"
)

var (
	// Contribution of `surface` values. Compacted gravel is the best thing that can happen to a gravel bike
	surfaceScores = map[string]int{
		"compacted":          3,
		"fine_gravel":        3,
		"asphalt":            2,
		"paved":              2,
		"concrete":           2,
		"gravel":             2,
		"chipseal":           2,
		"concrete:lanes":     1,
		"concrete:plates":    1,
		"paving_stones":      1,
		"unpaved":            1,
		"wood":               0,
		"metal":              0,
		"dirt":               0,
		"earth":              0,
		"ground":             0,
		"pebblestone":        -1,
		"sett":               -1,
		"cobblestone":        -1,
		"unhewn_cobblestone": -2,
		"grass":              -2,
		"grass_paver":        -2,
		"woodchips":          -2,
		"rock":               -3,
		"sand":               -3,
		"mud":                -3,
	}

	// Contribution of `smoothness` values
	smoothnessScores = map[string]int{
		"excellent":     3,
		"good":          2,
		"intermediate":  1,
		"bad":           -1,
		"very_bad":      -2,
		"horrible":      -3,
		"very_horrible": -4,
		"impassable":    -5,
	}

	// Contribution of `tracktype` values. See ref.: https://wiki.openstreetmap.org/wiki/Key:tracktype
	trackTypeScores = map[string]int{
		"grade1": 3,
		"grade2": 2,
		"grade3": 0,
		"grade4": -2,
		"grade5": -3,
	}

	// Surfaces considered paved when path metrics are aggregated
	pavedSurfaces = map[string]struct{}{
		"asphalt":         {},
		"paved":           {},
		"concrete":        {},
		"concrete:lanes":  {},
		"concrete:plates": {},
		"chipseal":        {},
		"paving_stones":   {},
		"sett":            {},
		"metal":           {},
		"wood":            {},
	}

	// Highway values requested from road data providers by default
	defaultHighwayTags = []string{
		"track",
		"path",
		"cycleway",
		"bridleway",
		"service",
		"unclassified",
		"residential",
		"living_street",
		"tertiary",
		"tertiary_link",
		"secondary",
		"secondary_link",
	}
)

// normalizeTagValue lowercases tag value and keeps first value of `;`-separated list
func normalizeTagValue(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}

// lookupScore returns contribution for given tag value or neutral zero
func lookupScore(table map[string]int, value string) int {
	if value == "" {
		return 0
	}
	if score, ok := table[normalizeTagValue(value)]; ok {
		return score
	}
	return 0
}

// isPavedSurface checks if given surface tag value describes paved surface
func isPavedSurface(surface string) bool {
	_, ok := pavedSurfaces[normalizeTagValue(surface)]
	return ok
}
