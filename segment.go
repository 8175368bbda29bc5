package grvl

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// DefaultSegmentLength is target length of a route segment (meters)
	DefaultSegmentLength = 50.0

	minSegmentLength = 0.01
)

// TracePoint is a single point of GPS trace
type TracePoint struct {
	Lat          float64
	Lon          float64
	Elevation    float64
	HasElevation bool
}

// GeoPoint returns horizontal position of trace point
func (tp TracePoint) GeoPoint() GeoPoint {
	return GeoPoint{Lat: tp.Lat, Lon: tp.Lon}
}

// RouteSegment is a piece of the trace matched against roads
type RouteSegment struct {
	Index    int
	Start    GeoPoint
	End      GeoPoint
	Distance float64
	// Road is matched road. Nil if segment has not been matched
	Road *Road
	// MatchScore is combined matching score of the road (lower is better)
	MatchScore float64
	// Slope is slope of the segment (percent) or SlopeUnknown
	Slope float64

	startElevation float64
	endElevation   float64
	hasElevation   bool
}

func (seg *RouteSegment) String() string {
	return fmt.Sprintf("Segment #%d: %s -> %s (%.1f m)", seg.Index, seg.Start, seg.End, seg.Distance)
}

// IsMatched checks if segment has matched road
func (seg *RouteSegment) IsMatched() bool {
	return seg.Road != nil
}

// Midpoint returns middle point of the segment
func (seg *RouteSegment) Midpoint() GeoPoint {
	return middlePointSegment(seg.Start, seg.End)
}

// Bearing returns direction of the segment in degrees [0; 360)
func (seg *RouteSegment) Bearing() float64 {
	return bearing(seg.Start, seg.End)
}

// Bin returns quality bin of the segment
func (seg *RouteSegment) Bin() QualityBin {
	if seg.Road == nil {
		return BIN_UNKNOWN
	}
	return BinForScore(seg.Road.Score)
}

// assignRoad attaches matched road and derives segment slope
func (seg *RouteSegment) assignRoad(road *Road, matchScore float64) {
	seg.Road = road
	seg.MatchScore = matchScore
	seg.updateSlope()
}

// updateSlope prefers slope measured by trace altitude, then road max slope
func (seg *RouteSegment) updateSlope() {
	seg.Slope = SlopeUnknown
	if seg.hasElevation && seg.Distance >= minSlopeSampleDistance {
		slope := math.Abs(seg.endElevation-seg.startElevation) / seg.Distance * 100.0
		if slope <= maxValidSlope {
			seg.Slope = math.Min(slope, MaxReportedSlope)
			return
		}
	}
	if seg.Road != nil && seg.Road.HasSlope() {
		seg.Slope = seg.Road.MaxSlope
	}
}

// SplitTrace splits trace into segments of approximately targetLength meters.
// Long steps between trace points are cut by interpolation, zero-length segments are skipped
func SplitTrace(points []TracePoint, targetLength float64) ([]*RouteSegment, error) {
	if len(points) == 0 {
		return nil, ErrEmptyTrace
	}
	if targetLength <= 0 {
		targetLength = DefaultSegmentLength
	}
	segments := make([]*RouteSegment, 0, len(points))
	emit := func(start, end TracePoint) {
		startPt, endPt := start.GeoPoint(), end.GeoPoint()
		distance := greatCircleDistance(startPt, endPt)
		if distance < minSegmentLength {
			return
		}
		seg := &RouteSegment{
			Index:          len(segments),
			Start:          startPt,
			End:            endPt,
			Distance:       distance,
			Slope:          SlopeUnknown,
			startElevation: start.Elevation,
			endElevation:   end.Elevation,
			hasElevation:   start.HasElevation && end.HasElevation,
		}
		seg.updateSlope()
		segments = append(segments, seg)
	}

	segStart := points[0]
	accumulated := 0.0
	for i := 1; i < len(points); i++ {
		from := points[i-1]
		to := points[i]
		stepLength := greatCircleDistance(from.GeoPoint(), to.GeoPoint())
		walked := 0.0
		for stepLength-walked >= targetLength-accumulated && stepLength > 0 {
			walked += targetLength - accumulated
			cut := interpolateTracePoint(from, to, walked/stepLength)
			emit(segStart, cut)
			segStart = cut
			accumulated = 0
		}
		accumulated += stepLength - walked
	}
	last := points[len(points)-1]
	if accumulated > 0 {
		emit(segStart, last)
	}
	return segments, nil
}

// interpolateTracePoint returns point at given fraction of [p, q] including elevation
func interpolateTracePoint(p, q TracePoint, fraction float64) TracePoint {
	pt := pointOnSegmentByFraction(p.GeoPoint(), q.GeoPoint(), fraction)
	return TracePoint{
		Lat:          pt.Lat,
		Lon:          pt.Lon,
		Elevation:    (1-fraction)*p.Elevation + fraction*q.Elevation,
		HasElevation: p.HasElevation && q.HasElevation,
	}
}

// totalDistance returns sum of segment distances
func totalDistance(segments []*RouteSegment) float64 {
	total := 0.0
	for _, seg := range segments {
		total += seg.Distance
	}
	return total
}

// segmentsBound returns bound covering every segment endpoint
func segmentsBound(segments []*RouteSegment) orb.Bound {
	if len(segments) == 0 {
		return orb.Bound{}
	}
	bound := segments[0].Start.Point().Bound()
	for _, seg := range segments {
		bound = bound.Extend(seg.Start.Point()).Extend(seg.End.Point())
	}
	return bound
}
