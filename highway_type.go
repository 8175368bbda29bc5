package grvl

// HighwayType is parsed value of `highway` tag
type HighwayType uint16

const (
	HIGHWAY_SECONDARY = HighwayType(iota + 1)
	HIGHWAY_SECONDARY_LINK
	HIGHWAY_TERTIARY
	HIGHWAY_TERTIARY_LINK
	HIGHWAY_UNCLASSIFIED
	HIGHWAY_RESIDENTIAL
	HIGHWAY_LIVING_STREET
	HIGHWAY_SERVICE
	HIGHWAY_TRACK
	HIGHWAY_CYCLEWAY
	HIGHWAY_BRIDLEWAY
	HIGHWAY_PATH
	HIGHWAY_FOOTWAY
	HIGHWAY_UNDEFINED = HighwayType(0)
)

func (iotaIdx HighwayType) String() string {
	return [...]string{"undefined", "secondary", "secondary_link", "tertiary", "tertiary_link", "unclassified", "residential", "living_street", "service", "track", "cycleway", "bridleway", "path", "footway"}[iotaIdx]
}

func getHighwayType(str string) HighwayType {
	if found, ok := highwaysTypes[normalizeTagValue(str)]; ok {
		return found
	}
	return HIGHWAY_UNDEFINED
}

// estimatedWidth returns typical width (meters) for highway type or -1 when it is unknown
func (iotaIdx HighwayType) estimatedWidth() float64 {
	if width, ok := widthByHighway[iotaIdx]; ok {
		return width
	}
	return -1
}

var (
	widthByHighway = map[HighwayType]float64{
		HIGHWAY_SECONDARY:      7.0,
		HIGHWAY_SECONDARY_LINK: 6.0,
		HIGHWAY_TERTIARY:       6.0,
		HIGHWAY_TERTIARY_LINK:  5.0,
		HIGHWAY_UNCLASSIFIED:   5.0,
		HIGHWAY_RESIDENTIAL:    5.0,
		HIGHWAY_LIVING_STREET:  4.0,
		HIGHWAY_SERVICE:        3.5,
		HIGHWAY_TRACK:          3.0,
		HIGHWAY_CYCLEWAY:       2.5,
		HIGHWAY_BRIDLEWAY:      2.0,
		HIGHWAY_PATH:           1.5,
		HIGHWAY_FOOTWAY:        1.5,
	}

	highwaysTypes = map[string]HighwayType{
		"secondary":      HIGHWAY_SECONDARY,
		"secondary_link": HIGHWAY_SECONDARY_LINK,
		"tertiary":       HIGHWAY_TERTIARY,
		"tertiary_link":  HIGHWAY_TERTIARY_LINK,
		"unclassified":   HIGHWAY_UNCLASSIFIED,
		"residential":    HIGHWAY_RESIDENTIAL,
		"living_street":  HIGHWAY_LIVING_STREET,
		"service":        HIGHWAY_SERVICE,
		"track":          HIGHWAY_TRACK,
		"cycleway":       HIGHWAY_CYCLEWAY,
		"bridleway":      HIGHWAY_BRIDLEWAY,
		"path":           HIGHWAY_PATH,
		"footway":        HIGHWAY_FOOTWAY,
	}
)
