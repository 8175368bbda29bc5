package grvl

// BicycleAccess is parsed value of `bicycle` tag
type BicycleAccess uint16

const (
	BICYCLE_DESIGNATED = BicycleAccess(iota + 1)
	BICYCLE_YES
	BICYCLE_PERMISSIVE
	BICYCLE_DISMOUNT
	BICYCLE_PRIVATE
	BICYCLE_NO
	BICYCLE_UNDEFINED = BicycleAccess(0)
)

func (iotaIdx BicycleAccess) String() string {
	return [...]string{"undefined", "designated", "yes", "permissive", "dismount", "private", "no"}[iotaIdx]
}

func getBicycleAccess(str string) BicycleAccess {
	if found, ok := bicycleAccessTypes[normalizeTagValue(str)]; ok {
		return found
	}
	return BICYCLE_UNDEFINED
}

// score returns contribution of bicycle access. Undefined access is neutral
func (iotaIdx BicycleAccess) score() int {
	return bicycleAccessScores[iotaIdx]
}

var (
	bicycleAccessTypes = map[string]BicycleAccess{
		"designated": BICYCLE_DESIGNATED,
		"official":   BICYCLE_DESIGNATED,
		"yes":        BICYCLE_YES,
		"permissive": BICYCLE_PERMISSIVE,
		"dismount":   BICYCLE_DISMOUNT,
		"private":    BICYCLE_PRIVATE,
		"no":         BICYCLE_NO,
	}

	bicycleAccessScores = map[BicycleAccess]int{
		BICYCLE_UNDEFINED:  0,
		BICYCLE_DESIGNATED: 3,
		BICYCLE_YES:        2,
		BICYCLE_PERMISSIVE: 1,
		BICYCLE_DISMOUNT:   -2,
		BICYCLE_PRIVATE:    -4,
		BICYCLE_NO:         -5,
	}
)
