package grvl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OSMScanner is common interface of osmxml and osmpbf scanners
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// FileRoadProvider serves roads from local .osm / .osm.pbf file. File is read lazily on first fetch
type FileRoadProvider struct {
	filename string
	logger   *zap.Logger

	once   sync.Once
	roads  []*Road
	bounds []orb.Bound
	err    error
}

// NewFileRoadProvider creates provider for given file
func NewFileRoadProvider(filename string, logger *zap.Logger) *FileRoadProvider {
	if logger == nil {
		logger = zap.L()
	}
	return &FileRoadProvider{
		filename: filename,
		logger:   logger,
	}
}

// FetchRoads implements RoadProvider. Returned roads are fresh copies, so callers may re-score them
func (provider *FileRoadProvider) FetchRoads(ctx context.Context, bound orb.Bound, filter *RoadFilter) ([]*Road, error) {
	provider.once.Do(func() {
		provider.roads, provider.err = readOSMRoads(ctx, provider.filename, provider.logger)
		provider.bounds = make([]orb.Bound, len(provider.roads))
		for i, road := range provider.roads {
			provider.bounds[i] = boundOfLine(road.Points)
		}
	})
	if provider.err != nil {
		return nil, provider.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]*Road, 0)
	for i, road := range provider.roads {
		if !provider.bounds[i].Intersects(bound) {
			continue
		}
		if !filter.Accept(road.Tags) {
			continue
		}
		result = append(result, NewRoad(road.ID, road.Points, road.Tags))
	}
	return result, nil
}

func newOSMScanner(ctx context.Context, filename string, file io.Reader) (OSMScanner, error) {
	// Guess file extension and prepare correct scanner
	switch {
	case strings.HasSuffix(filename, ".osm.pbf"), filepath.Ext(filename) == ".pbf":
		return osmpbf.New(ctx, file, 4), nil
	case filepath.Ext(filename) == ".osm", filepath.Ext(filename) == ".xml":
		return osmxml.New(ctx, file), nil
	default:
		return nil, errors.Errorf("File extension '%s' for file '%s' is not handled yet", filepath.Ext(filename), filename)
	}
}

// readOSMRoads scans ways with `highway` tag first, then their nodes
func readOSMRoads(ctx context.Context, filename string, logger *zap.Logger) ([]*Road, error) {
	logger.Info("opening osm file", zap.String("file", filename))
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open osm file")
	}
	defer file.Close()

	/* Process ways */
	st := time.Now()
	type wayData struct {
		id    osm.WayID
		nodes []osm.NodeID
		tags  map[string]string
	}
	ways := []wayData{}
	nodesSeen := make(map[osm.NodeID]struct{})
	{
		scannerWays, err := newOSMScanner(ctx, filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerWays.Close()
		for scannerWays.Scan() {
			obj := scannerWays.Object()
			if obj.ObjectID().Type() != osm.TypeWay {
				continue
			}
			way := obj.(*osm.Way)
			if way.Tags.Find(TagHighway) == "" {
				continue
			}
			prepared := wayData{
				id:    way.ID,
				nodes: make([]osm.NodeID, 0, len(way.Nodes)),
				tags:  tagsFromOSM(way.Tags),
			}
			// Mark way's nodes as seen to skip isolated nodes further
			for _, node := range way.Nodes {
				nodesSeen[node.ID] = struct{}{}
				prepared.nodes = append(prepared.nodes, node.ID)
			}
			ways = append(ways, prepared)
		}
		if err := scannerWays.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on ways")
		}
	}
	logger.Info("ways scanned", zap.Int("ways", len(ways)), zap.Duration("took", time.Since(st)))

	// Seek file to start
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	/* Process nodes */
	st = time.Now()
	nodes := make(map[osm.NodeID]GeoPoint, len(nodesSeen))
	{
		scannerNodes, err := newOSMScanner(ctx, filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerNodes.Close()
		for scannerNodes.Scan() {
			obj := scannerNodes.Object()
			if obj.ObjectID().Type() != osm.TypeNode {
				continue
			}
			node := obj.(*osm.Node)
			if _, ok := nodesSeen[node.ID]; ok {
				delete(nodesSeen, node.ID)
				nodes[node.ID] = GeoPoint{Lat: node.Lat, Lon: node.Lon}
			}
		}
		if err := scannerNodes.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on nodes")
		}
	}
	logger.Info("nodes scanned", zap.Int("nodes", len(nodes)), zap.Duration("took", time.Since(st)))

	roads := make([]*Road, 0, len(ways))
	missing := 0
	for _, way := range ways {
		points := make([]GeoPoint, 0, len(way.nodes))
		for _, id := range way.nodes {
			pt, ok := nodes[id]
			if !ok {
				missing++
				continue
			}
			points = append(points, pt)
		}
		if len(points) < 2 {
			continue
		}
		roads = append(roads, NewRoad(way.id, points, way.tags))
	}
	if missing > 0 {
		logger.Warn("ways reference missing nodes", zap.Int("missing", missing))
	}
	return roads, nil
}
