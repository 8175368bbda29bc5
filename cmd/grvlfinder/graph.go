package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	grvl "github.com/jossmos64/GRVLFinder-sub000"
)

var (
	graphBBox       string
	graphOut        string
	graphGeomFormat string
	graphUnits      string
	doContraction   bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export quality weighted road graph of the area to CSV",
	Long:  "Exports edges, vertices and (optionally) contraction hierarchies shortcuts. E.g.: if file name is 'map.csv' then 3 files will be produced: 'map.csv' (edges), 'map_vertices.csv', 'map_shortcuts.csv'",
	RunE: func(cmd *cobra.Command, args []string) error {
		bound, err := parseBBox(graphBBox)
		if err != nil {
			return errors.Wrap(err, "Bad --bbox")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := initEnvironment(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		roads, err := env.Analyzer.FetchArea(ctx, bound)
		if err != nil {
			return err
		}
		wg := grvl.BuildGraph(roads)
		zap.L().Info("graph built", zap.Int("roads", len(roads)), zap.Int("vertices", wg.NodesCount()), zap.Int("edges", wg.EdgesCount()))
		return exportGraph(wg, graphOut, graphGeomFormat, graphUnits, doContraction)
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphBBox, "bbox", "", "area as south,west,north,east")
	graphCmd.Flags().StringVar(&graphOut, "out", "graph.csv", "Filename of 'Comma-Separated Values' (CSV) formatted file")
	graphCmd.Flags().StringVar(&graphGeomFormat, "geomf", "wkt", "Format of output geometry. Expected values: wkt / geojson")
	graphCmd.Flags().StringVar(&graphUnits, "units", "m", "Units of output weights. Expected values: m for meters / km for kilometers")
	graphCmd.Flags().BoolVar(&doContraction, "contract", true, "Prepare contraction hierarchies?")
	_ = graphCmd.MarkFlagRequired("bbox")
	rootCmd.AddCommand(graphCmd)
}

func prepareLinestring(pts []grvl.GeoPoint, geomFormat string) string {
	if strings.ToLower(geomFormat) == "geojson" {
		return grvl.PrepareGeoJSONLinestring(pts)
	}
	return grvl.PrepareWKTLinestring(pts)
}

func preparePoint(pt grvl.GeoPoint, geomFormat string) string {
	if strings.ToLower(geomFormat) == "geojson" {
		return grvl.PrepareGeoJSONPoint(pt)
	}
	return grvl.PrepareWKTPoint(pt)
}

// exportGraph writes edges, vertices and shortcuts files
func exportGraph(wg *grvl.WeightedGraph, out, geomFormat, units string, contract bool) error {
	unitsFactor := 1.0
	if strings.ToLower(units) == "km" {
		unitsFactor = 0.001
	}
	fnamePart := strings.Split(out, ".csv") // to guarantee proper filename and its extension
	fnameEdges := fnamePart[0] + ".csv"
	fnameVertices := fnamePart[0] + "_vertices.csv"
	fnameShortcuts := fnamePart[0] + "_shortcuts.csv"

	/* Edges file */
	fileEdges, err := os.Create(fnameEdges)
	if err != nil {
		return errors.Wrap(err, "Can't create edges file")
	}
	defer fileEdges.Close()
	writerEdges := csv.NewWriter(fileEdges)
	defer writerEdges.Flush()
	writerEdges.Comma = ';'
	// 		from_vertex_id - int64, ID of source vertex
	// 		to_vertex_id - int64, ID of target vertex
	// 		weight - float64, Quality weighted cost of an edge
	// 		distance - float64, Physical length of an edge
	//      geom - geometry (WKT or GeoJSON representation)
	// 		osm_way_id - int64, ID of OSM Way the edge belongs to
	// 		score - int, Quality score of the way
	// 		surface - string, Surface of the way
	err = writerEdges.Write([]string{"from_vertex_id", "to_vertex_id", "weight", "distance", "geom", "osm_way_id", "score", "surface"})
	if err != nil {
		return errors.Wrap(err, "Can't write edges header")
	}
	for _, edge := range wg.Edges() {
		wayID, score, surface := int64(-1), 0, ""
		if edge.Road != nil {
			wayID, score, surface = int64(edge.Road.ID), edge.Road.Score, edge.Road.Surface()
		}
		err = writerEdges.Write([]string{
			fmt.Sprintf("%d", edge.F.ID()),
			fmt.Sprintf("%d", edge.T.ID()),
			fmt.Sprintf("%f", edge.Cost*unitsFactor),
			fmt.Sprintf("%f", edge.Distance*unitsFactor),
			prepareLinestring([]grvl.GeoPoint{edge.F.Point, edge.T.Point}, geomFormat),
			fmt.Sprintf("%d", wayID),
			fmt.Sprintf("%d", score),
			surface,
		})
		if err != nil {
			return errors.Wrap(err, "Can't write edge")
		}
	}

	graph, err := wg.ContractionGraph()
	if err != nil {
		return err
	}
	if contract {
		zap.L().Info("starting contraction process")
		st := time.Now()
		graph.PrepareContractionHierarchies()
		zap.L().Info("contraction done", zap.Duration("took", time.Since(st)))
	}

	/* Vertices file */
	fileVertices, err := os.Create(fnameVertices)
	if err != nil {
		return errors.Wrap(err, "Can't create vertices file")
	}
	defer fileVertices.Close()
	writerVertices := csv.NewWriter(fileVertices)
	defer writerVertices.Flush()
	writerVertices.Comma = ';'
	// 		vertex_id - int64, ID of vertex
	// 		order_pos - int, Position of vertex in hierarchies (evaluted by library)
	// 		importance - int, Importance of vertex in graph (evaluted by library)
	//      geom - geometry (WKT or GeoJSON representation)
	err = writerVertices.Write([]string{"vertex_id", "order_pos", "importance", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write vertices header")
	}
	for i := range graph.Vertices {
		label := graph.Vertices[i].Label
		node := wg.Node(label)
		if node == nil {
			continue
		}
		err = writerVertices.Write([]string{
			fmt.Sprintf("%d", label),
			fmt.Sprintf("%d", graph.Vertices[i].OrderPos()),
			fmt.Sprintf("%d", graph.Vertices[i].Importance()),
			preparePoint(node.Point, geomFormat),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write vertex")
		}
	}

	if contract {
		/* Write shortcuts */
		// 	from_vertex_id - int64, ID of source vertex
		// 	to_vertex_id - int64, ID of arget vertex
		// 	weight - float64, Weight of an edge
		// 	via_vertex_id - int64, ID of vertex through which the shortcut exists
		err = graph.ExportShortcutsToFile(fnameShortcuts)
		if err != nil {
			return errors.Wrap(err, "Can't export shortcuts")
		}
	}
	return nil
}
