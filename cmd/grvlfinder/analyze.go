package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	grvl "github.com/jossmos64/GRVLFinder-sub000"
)

var (
	analyzeOut         string
	analyzeConcurrency int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TRACE...",
	Short: "Classify GeoJSON traces by road quality",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := initEnvironment(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := analyzeConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Analyze.Concurrency
		}
		return analyzeTraces(ctx, cmd.OutOrStdout(), env.Analyzer, args, concurrency)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "GeoJSON file for classified segments (trace name is appended when several traces are given)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "number of traces analyzed at once (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeTraces(ctx context.Context, w io.Writer, analyzer *grvl.Analyzer, filenames []string, concurrency int) error {
	results := make([]*grvl.Analysis, len(filenames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	var succeeded, failed atomic.Int64
	for i, filename := range filenames {
		i, filename := i, filename
		g.Go(func() error {
			log := zap.L().With(zap.String("trace", filename))
			trace, err := readTrace(filename)
			if err != nil {
				log.Error("can't read trace", zap.Error(err))
				failed.Add(1)
				return nil
			}
			analysis, err := analyzer.Analyze(gctx, trace)
			if err != nil {
				log.Error("analysis failed", zap.Error(err))
				failed.Add(1)
				return nil
			}
			results[i] = analysis
			succeeded.Add(1)
			if analyzeOut == "" {
				return nil
			}
			out := outputName(analyzeOut, filename, len(filenames) > 1)
			if err := writeJSON(out, grvl.AnalysisFeatureCollection(analysis)); err != nil {
				return errors.Wrapf(err, "Can't write '%s'", out)
			}
			log.Info("segments written", zap.String("out", out))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, analysis := range results {
		if analysis == nil {
			continue
		}
		printAnalysis(w, filenames[i], analysis)
	}
	zap.L().Info("traces analyzed", zap.Int64("succeeded", succeeded.Load()), zap.Int64("failed", failed.Load()))
	if failed.Load() > 0 {
		return errors.Errorf("%d of %d traces failed", failed.Load(), len(filenames))
	}
	return nil
}

func readTrace(filename string) ([]grvl.TracePoint, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read trace file")
	}
	return grvl.ParseGeoJSONTrace(data)
}

func printAnalysis(w io.Writer, name string, analysis *grvl.Analysis) {
	c := analysis.Classification
	fmt.Fprintf(w, "%s (%s)\n", name, analysis.ID)
	fmt.Fprintf(w, "\tdistance: %.0f m, coverage: %.1f%%\n", c.TotalDistance, c.Coverage())
	for _, bin := range []grvl.QualityBin{grvl.BIN_EXCELLENT, grvl.BIN_DECENT, grvl.BIN_POOR, grvl.BIN_UNKNOWN} {
		fmt.Fprintf(w, "\t%-9s %5.1f%% %8.0f m\n", bin, c.Percent(bin), c.Distance(bin))
	}
	for _, surface := range c.SurfaceNames() {
		fmt.Fprintf(w, "\tsurface %-12s %8.0f m\n", surface, c.Surfaces[surface])
	}
	for _, failure := range analysis.FailedChunks {
		fmt.Fprintf(w, "\tfailed %s\n", failure)
	}
	for _, warning := range analysis.Warnings {
		fmt.Fprintf(w, "\twarning: %s\n", warning)
	}
}

// outputName appends trace base name to output file name when several traces are written
func outputName(out, trace string, several bool) string {
	if !several {
		return out
	}
	ext := filepath.Ext(out)
	base := strings.TrimSuffix(filepath.Base(trace), filepath.Ext(trace))
	return strings.TrimSuffix(out, ext) + "_" + base + ext
}

func writeJSON(filename string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
