package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	grvl "github.com/jossmos64/GRVLFinder-sub000"
)

var (
	planFrom     string
	planTo       string
	planOut      string
	planSimplify float64
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan route preferring good gravel roads",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseLatLon(planFrom)
		if err != nil {
			return errors.Wrap(err, "Bad --from")
		}
		end, err := parseLatLon(planTo)
		if err != nil {
			return errors.Wrap(err, "Bad --to")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := initEnvironment(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Analyzer.PlanRouteAsync(ctx, start, end).Wait(ctx)
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), result, planSimplify)
		if !result.Found() {
			return errors.Errorf("No path: %s", result.Status)
		}
		if planOut != "" {
			if err := writeJSON(planOut, grvl.PathFeatureCollection(result)); err != nil {
				return errors.Wrapf(err, "Can't write '%s'", planOut)
			}
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planFrom, "from", "", "start point as lat,lon")
	planCmd.Flags().StringVar(&planTo, "to", "", "end point as lat,lon")
	planCmd.Flags().StringVar(&planOut, "out", "", "GeoJSON file for path, steepest point and path segments")
	planCmd.Flags().Float64Var(&planSimplify, "simplify", 0, "simplification tolerance (meters) of printed WKT path")
	_ = planCmd.MarkFlagRequired("from")
	_ = planCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(planCmd)
}

func printPlan(w io.Writer, result *grvl.PlanResult, simplify float64) {
	fmt.Fprintln(w, result)
	if !result.Found() {
		return
	}
	fmt.Fprintf(w, "\tcost: %.0f, expansions: %d\n", result.Cost, result.Expansions)
	if result.SteepestSlope != grvl.SlopeUnknown {
		fmt.Fprintf(w, "\tsteepest: %.1f%% at %s\n", result.SteepestSlope, grvl.PrepareWKTPoint(result.SteepestPoint))
	}
	if result.Classification != nil {
		fmt.Fprintf(w, "\t%s\n", result.Classification)
		for _, warning := range result.Classification.Warnings {
			fmt.Fprintf(w, "\twarning: %s\n", warning)
		}
	}
	fmt.Fprintf(w, "\t%s\n", grvl.PrepareWKTLinestring(grvl.SimplifyLine(result.Path, simplify)))
}
