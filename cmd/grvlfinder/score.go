package main

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	grvl "github.com/jossmos64/GRVLFinder-sub000"
)

var (
	scoreTags   []string
	scoreLength float64
	scoreSlope  float64
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print quality score of a road with given tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := parseTags(scoreTags)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return errors.New("At least one --tag is required")
		}
		calc := grvl.NewScoreCalculator(weightsFromConfig(cfg.Score))
		breakdown := calc.Breakdown(tags, lineOfLength(scoreLength), scoreSlope)
		fmt.Fprintf(cmd.OutOrStdout(), "score: %d (%s)\n", breakdown.Total(), grvl.BinForScore(breakdown.Total()))
		fmt.Fprintf(cmd.OutOrStdout(), "\t%s\n", breakdown)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringArrayVar(&scoreTags, "tag", nil, "OSM tag as key=value (repeatable)")
	scoreCmd.Flags().Float64Var(&scoreLength, "length", 0, "road length in meters (0 means unknown)")
	scoreCmd.Flags().Float64Var(&scoreSlope, "slope", grvl.SlopeUnknown, "max slope in percent (negative means unknown)")
	rootCmd.AddCommand(scoreCmd)
}

// lineOfLength returns northbound line of given length. Nil for non-positive length
func lineOfLength(length float64) []grvl.GeoPoint {
	if length <= 0 {
		return nil
	}
	end := geo.PointAtBearingAndDistance(orb.Point{0, 0}, 0, length)
	return []grvl.GeoPoint{{Lat: 0, Lon: 0}, {Lat: end.Lat(), Lon: end.Lon()}}
}
