package grvl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultWorkerQueue = 16

// ChunkFailure describes chunk which was skipped during analysis
type ChunkFailure struct {
	Index int
	Err   error
}

func (failure ChunkFailure) String() string {
	return fmt.Sprintf("chunk %d: %v", failure.Index, failure.Err)
}

// Analysis is result of trace analysis
type Analysis struct {
	ID             uuid.UUID
	Segments       []*RouteSegment
	Classification *Classification
	Chunks         int
	// Roads is number of unique roads fetched for all chunks
	Roads        int
	FailedChunks []ChunkFailure
	Warnings     []string
	Took         time.Duration
}

func (analysis *Analysis) String() string {
	return fmt.Sprintf("Analysis %s: %d segments | %d chunks (%d failed) | %d roads | %s",
		analysis.ID, len(analysis.Segments), analysis.Chunks, len(analysis.FailedChunks), analysis.Roads, analysis.Classification)
}

// fetchError marks failure of road provider, not of chunk processing itself
type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// Analyzer runs analysis and planning pipelines over road and elevation providers
type Analyzer struct {
	roads     RoadProvider
	elevation ElevationProvider
	calc      *ScoreCalculator
	cfg       PipelineConfig
	logger    *zap.Logger

	slopeOptions   []SlopeOption
	plannerOptions []PlannerOption
	worker         *Worker
}

// AnalyzerOption configures Analyzer
type AnalyzerOption func(*Analyzer)

// WithElevationProvider enables slope estimation
func WithElevationProvider(provider ElevationProvider) AnalyzerOption {
	return func(analyzer *Analyzer) {
		analyzer.elevation = provider
	}
}

// WithScoreWeights replaces default score weights
func WithScoreWeights(weights ScoreWeights) AnalyzerOption {
	return func(analyzer *Analyzer) {
		analyzer.calc = NewScoreCalculator(weights)
	}
}

// WithPipelineConfig replaces default (balanced) pipeline configuration
func WithPipelineConfig(cfg PipelineConfig) AnalyzerOption {
	return func(analyzer *Analyzer) {
		analyzer.cfg = cfg
	}
}

// WithSlopeOptions passes options to slope estimators created by analyzer
func WithSlopeOptions(options ...SlopeOption) AnalyzerOption {
	return func(analyzer *Analyzer) {
		analyzer.slopeOptions = append(analyzer.slopeOptions, options...)
	}
}

// WithPlannerOptions passes options to route planner
func WithPlannerOptions(options ...PlannerOption) AnalyzerOption {
	return func(analyzer *Analyzer) {
		analyzer.plannerOptions = append(analyzer.plannerOptions, options...)
	}
}

// WithAnalyzerLogger sets logger
func WithAnalyzerLogger(logger *zap.Logger) AnalyzerOption {
	return func(analyzer *Analyzer) {
		analyzer.logger = logger
	}
}

// NewAnalyzer creates analyzer. Call Close to stop its background worker
func NewAnalyzer(roads RoadProvider, options ...AnalyzerOption) *Analyzer {
	analyzer := &Analyzer{
		roads:  roads,
		calc:   NewScoreCalculator(DefaultScoreWeights()),
		cfg:    DefaultPipelineConfig(),
		logger: zap.L(),
	}
	for _, option := range options {
		option(analyzer)
	}
	if analyzer.cfg.SegmentLength <= 0 {
		analyzer.cfg.SegmentLength = DefaultSegmentLength
	}
	if analyzer.cfg.Matcher.MaxDistance <= 0 {
		analyzer.cfg.Matcher.MaxDistance = DefaultMatchDistance
	}
	analyzer.worker = NewWorker(defaultWorkerQueue)
	return analyzer
}

// Close stops background worker. Pending async jobs are still completed
func (analyzer *Analyzer) Close() {
	analyzer.worker.Close()
}

// Config returns pipeline configuration
func (analyzer *Analyzer) Config() PipelineConfig {
	return analyzer.cfg
}

func (analyzer *Analyzer) estimator() *SlopeEstimator {
	if analyzer.elevation == nil {
		return nil
	}
	options := append([]SlopeOption{WithSlopeLogger(analyzer.logger)}, analyzer.slopeOptions...)
	return NewSlopeEstimator(analyzer.elevation, options...)
}

// Analyze classifies trace by quality of roads it goes along.
// Only failure of the very first road fetch (or cancellation) is returned as error:
// other chunk failures leave their segments unmatched and are listed in FailedChunks
func (analyzer *Analyzer) Analyze(ctx context.Context, trace []TracePoint) (*Analysis, error) {
	st := time.Now()
	segments, err := SplitTrace(trace, analyzer.cfg.SegmentLength)
	if err != nil {
		return nil, err
	}
	analysis := &Analysis{
		ID:       uuid.New(),
		Segments: segments,
	}
	logger := analyzer.logger.With(zap.String("analysis_id", analysis.ID.String()))

	chunker := NewChunker(analyzer.cfg.Chunker)
	matcher := NewRoadMatcher(analyzer.cfg.Matcher)
	chunks := chunker.ChunkSegments(segments)
	analysis.Chunks = len(chunks)
	logger.Info("analysis started",
		zap.Int("points", len(trace)),
		zap.Int("segments", len(segments)),
		zap.Int("chunks", len(chunks)),
		zap.String("preset", analyzer.cfg.Preset),
	)

	limiter := newDelayLimiter(analyzer.cfg.ChunkDelay)
	registry := make(map[osm.WayID]*Road)
	for _, chunk := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "Analysis canceled")
		}
		err := analyzer.processChunk(ctx, chunker, matcher, chunk, registry)
		chunk.Release()
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "Analysis canceled")
		}
		var fetchErr *fetchError
		if chunk.Index == 0 && errors.As(err, &fetchErr) {
			return nil, errors.Wrap(fetchErr.err, "Can't fetch roads for the first chunk")
		}
		logger.Warn("chunk failed", zap.Int("chunk", chunk.Index), zap.Error(err))
		analysis.FailedChunks = append(analysis.FailedChunks, ChunkFailure{Index: chunk.Index, Err: err})
	}
	analysis.Roads = len(registry)

	if analyzer.cfg.TwoPass && analyzer.elevation != nil {
		warnings := refineRoads(ctx, matchedRoads(segments), analyzer.estimator(), analyzer.calc, analyzer.cfg.ElevationWait, logger)
		for _, seg := range segments {
			seg.updateSlope()
		}
		analysis.Warnings = append(analysis.Warnings, warnings...)
	}
	if len(analysis.FailedChunks) > 0 {
		analysis.Warnings = append(analysis.Warnings, fmt.Sprintf("%d of %d chunks failed", len(analysis.FailedChunks), len(chunks)))
	}
	analysis.Classification = Classify(segments)
	analysis.Classification.Warnings = analysis.Warnings
	analysis.Took = time.Since(st)
	logger.Info("analysis done",
		zap.Float64("distance", analysis.Classification.TotalDistance),
		zap.Float64("coverage", analysis.Classification.Coverage()),
		zap.Int("roads", analysis.Roads),
		zap.Int("failed_chunks", len(analysis.FailedChunks)),
		zap.Duration("took", analysis.Took),
	)
	return analysis, nil
}

// processChunk fetches roads for chunk and matches its segments.
// Segment from overlap keeps the road with lower match score
func (analyzer *Analyzer) processChunk(ctx context.Context, chunker *Chunker, matcher *RoadMatcher, chunk *Chunk, registry map[osm.WayID]*Road) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("chunk %d panicked: %v", chunk.Index, r)
		}
	}()
	roads, err := analyzer.roads.FetchRoads(ctx, chunk.Bound, analyzer.cfg.filter())
	if err != nil {
		return &fetchError{err: err}
	}
	roads = chunker.CapRoads(roads)
	// Same way fetched by several chunks is scored once and shared
	for i, road := range roads {
		if known, ok := registry[road.ID]; ok {
			roads[i] = known
			continue
		}
		road.Score = analyzer.calc.ScoreRoad(road)
		registry[road.ID] = road
	}
	chunk.SetRoads(roads)
	for _, seg := range chunk.Segments {
		match := matcher.Match(seg, chunk.Roads())
		if match == nil {
			continue
		}
		if seg.Road == nil || match.Score < seg.MatchScore {
			seg.assignRoad(match.Road, match.Score)
		}
	}
	return nil
}

// AnalyzeAsync runs Analyze on background worker
func (analyzer *Analyzer) AnalyzeAsync(ctx context.Context, trace []TracePoint) *Future[*Analysis] {
	return Submit(analyzer.worker, ctx, func(ctx context.Context) (*Analysis, error) {
		return analyzer.Analyze(ctx, trace)
	})
}

// FetchArea fetches and scores unique roads of the area splitting it into region chunks.
// Failure of the first chunk is returned as error, further failures are only logged
func (analyzer *Analyzer) FetchArea(ctx context.Context, bound orb.Bound) ([]*Road, error) {
	chunker := NewChunker(analyzer.cfg.Chunker)
	chunks := chunker.ChunkRegion(bound)
	limiter := newDelayLimiter(analyzer.cfg.ChunkDelay)
	roads := make([]*Road, 0)
	for _, chunk := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "Fetching canceled")
		}
		fetched, err := analyzer.roads.FetchRoads(ctx, chunk.Bound, analyzer.cfg.filter())
		if err != nil {
			if chunk.Index == 0 || ctx.Err() != nil {
				return nil, errors.Wrap(err, "Can't fetch roads")
			}
			analyzer.logger.Warn("region chunk failed", zap.Int("chunk", chunk.Index), zap.Error(err))
			continue
		}
		roads = append(roads, chunker.CapRoads(fetched)...)
	}
	roads = uniqueRoads(roads)
	for _, road := range roads {
		road.Score = analyzer.calc.ScoreRoad(road)
	}
	return roads, nil
}

// PlanRoute fetches roads around start and end and finds quality biased path.
// Slope is estimated afterwards only for roads on the found path
func (analyzer *Analyzer) PlanRoute(ctx context.Context, start, end GeoPoint) (*PlanResult, error) {
	bound := orb.Bound{Min: start.Point(), Max: start.Point()}.Extend(end.Point()).Pad(analyzer.cfg.AreaPadding)
	roads, err := analyzer.FetchArea(ctx, bound)
	if err != nil {
		return nil, err
	}
	options := append([]PlannerOption{
		WithPlannerLogger(analyzer.logger),
		WithPlannerMatcher(NewRoadMatcher(analyzer.cfg.Matcher)),
	}, analyzer.plannerOptions...)
	planner := NewPlanner(options...)
	result := planner.Plan(ctx, start, end, roads)
	if !result.Found() {
		return result, nil
	}
	if estimator := analyzer.estimator(); estimator != nil {
		pathRoads := make([]*Road, 0, len(result.Edges))
		for _, edge := range result.Edges {
			if edge.Road != nil {
				pathRoads = append(pathRoads, edge.Road)
			}
		}
		warnings := refineRoads(ctx, uniqueRoads(pathRoads), estimator, analyzer.calc, analyzer.cfg.ElevationWait, analyzer.logger)
		planner.Describe(result, roads)
		result.Classification.Warnings = append(result.Classification.Warnings, warnings...)
	}
	return result, nil
}

// PlanRouteAsync runs PlanRoute on background worker
func (analyzer *Analyzer) PlanRouteAsync(ctx context.Context, start, end GeoPoint) *Future[*PlanResult] {
	return Submit(analyzer.worker, ctx, func(ctx context.Context) (*PlanResult, error) {
		return analyzer.PlanRoute(ctx, start, end)
	})
}
