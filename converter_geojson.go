package grvl

import (
	"encoding/json"
	"math"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrepareGeoJSONLinestring returns GeoJSON representation of LineString
func PrepareGeoJSONLinestring(pts []GeoPoint) string {
	b, err := geojson.NewLineStringGeometry(coordinates2D(pts)).MarshalJSON()
	if err != nil {
		zap.L().Warn("can't convert geometry to geojson format", zap.Error(err))
		return ""
	}
	return string(b)
}

// PrepareGeoJSONPoint returns GeoJSON representation of Point
func PrepareGeoJSONPoint(pt GeoPoint) string {
	b, err := geojson.NewPointGeometry([]float64{pt.Lon, pt.Lat}).MarshalJSON()
	if err != nil {
		zap.L().Warn("can't convert geometry to geojson format", zap.Error(err))
		return ""
	}
	return string(b)
}

func coordinates2D(pts []GeoPoint) [][]float64 {
	pts2d := make([][]float64, len(pts))
	for i := range pts {
		pts2d[i] = []float64{pts[i].Lon, pts[i].Lat}
	}
	return pts2d
}

// coordinates3D adds elevation as third coordinate. Falls back to 2D when any elevation is unknown
func coordinates3D(pts []GeoPoint, elevations []float64) [][]float64 {
	if len(elevations) != len(pts) {
		return coordinates2D(pts)
	}
	for _, elevation := range elevations {
		if math.IsNaN(elevation) {
			return coordinates2D(pts)
		}
	}
	pts3d := make([][]float64, len(pts))
	for i := range pts {
		pts3d[i] = []float64{pts[i].Lon, pts[i].Lat, elevations[i]}
	}
	return pts3d
}

func segmentFeature(seg *RouteSegment) *geojson.Feature {
	feature := geojson.NewLineStringFeature(coordinates2D([]GeoPoint{seg.Start, seg.End}))
	feature.SetProperty("index", seg.Index)
	feature.SetProperty("distance", seg.Distance)
	feature.SetProperty("bin", seg.Bin().String())
	feature.SetProperty("surface", surfaceKey(seg))
	if seg.Slope != SlopeUnknown {
		feature.SetProperty("slope", seg.Slope)
	}
	if seg.Road != nil {
		feature.SetProperty("way_id", int64(seg.Road.ID))
		feature.SetProperty("score", seg.Road.Score)
		feature.SetProperty("match_score", seg.MatchScore)
		if highway := seg.Road.Tag(TagHighway); highway != "" {
			feature.SetProperty("highway", highway)
		}
	}
	return feature
}

// AnalysisFeatureCollection returns one LineString feature per segment of analysis
func AnalysisFeatureCollection(analysis *Analysis) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, seg := range analysis.Segments {
		feature := segmentFeature(seg)
		feature.SetProperty("analysis_id", analysis.ID.String())
		fc.AddFeature(feature)
	}
	return fc
}

// PathFeatureCollection returns path as single LineString (with elevation when it is fully known),
// steepest point and matched path segments
func PathFeatureCollection(result *PlanResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if !result.Found() {
		return fc
	}
	path := geojson.NewLineStringFeature(coordinates3D(result.Path, result.Elevations))
	path.SetProperty("kind", "path")
	path.SetProperty("distance", result.Distance)
	path.SetProperty("cost", result.Cost)
	path.SetProperty("paved_distance", result.PavedDistance)
	path.SetProperty("unpaved_distance", result.UnpavedDistance)
	path.SetProperty("unknown_surface_distance", result.UnknownSurfaceDistance)
	if result.Classification != nil {
		path.SetProperty("bins", result.Classification.Percentages())
	}
	fc.AddFeature(path)
	if result.SteepestSlope != SlopeUnknown {
		steepest := geojson.NewPointFeature([]float64{result.SteepestPoint.Lon, result.SteepestPoint.Lat})
		steepest.SetProperty("kind", "steepest_point")
		steepest.SetProperty("slope", result.SteepestSlope)
		fc.AddFeature(steepest)
	}
	for _, seg := range result.Segments {
		feature := segmentFeature(seg)
		feature.SetProperty("kind", "segment")
		fc.AddFeature(feature)
	}
	return fc
}

// ParseGeoJSONTrace extracts trace from GeoJSON LineString / MultiLineString given
// as bare geometry, Feature or FeatureCollection. Third coordinate is treated as altitude
func ParseGeoJSONTrace(data []byte) ([]TracePoint, error) {
	header := struct {
		Type string `json:"type"`
	}{}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.Wrap(err, "Can't parse geojson")
	}
	geometries := make([]*geojson.Geometry, 0, 1)
	switch header.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrap(err, "Can't parse feature collection")
		}
		for _, feature := range fc.Features {
			geometries = append(geometries, feature.Geometry)
		}
	case "Feature":
		feature, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrap(err, "Can't parse feature")
		}
		geometries = append(geometries, feature.Geometry)
	default:
		geometry, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, errors.Wrap(err, "Can't parse geometry")
		}
		geometries = append(geometries, geometry)
	}

	trace := make([]TracePoint, 0)
	for _, geometry := range geometries {
		switch {
		case geometry == nil:
			continue
		case geometry.IsLineString():
			trace = appendTracePoints(trace, geometry.LineString)
		case geometry.IsMultiLineString():
			for _, line := range geometry.MultiLineString {
				trace = appendTracePoints(trace, line)
			}
		}
	}
	if len(trace) == 0 {
		return nil, ErrEmptyTrace
	}
	return trace, nil
}

func appendTracePoints(trace []TracePoint, coordinates [][]float64) []TracePoint {
	for _, coordinate := range coordinates {
		if len(coordinate) < 2 {
			continue
		}
		pt := TracePoint{Lon: coordinate[0], Lat: coordinate[1]}
		if len(coordinate) > 2 {
			pt.Elevation = coordinate[2]
			pt.HasElevation = true
		}
		trace = append(trace, pt)
	}
	return trace
}
