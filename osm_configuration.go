package grvl

import (
	"context"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// RoadProvider fetches roads inside bounding box
type RoadProvider interface {
	FetchRoads(ctx context.Context, bound orb.Bound, filter *RoadFilter) ([]*Road, error)
}

// RoadFilter allows to filter ways by certain tags from OSM data
type RoadFilter struct {
	EntityName string // Currently we support 'highway' only
	Tags       []string
	// ExcludeAccess drops ways with `access` tag in this set
	ExcludeAccess []string
}

// DefaultRoadFilter returns filter for roads a bicycle can ride
func DefaultRoadFilter() *RoadFilter {
	tags := make([]string, len(defaultHighwayTags))
	copy(tags, defaultHighwayTags)
	return &RoadFilter{
		EntityName:    TagHighway,
		Tags:          tags,
		ExcludeAccess: []string{"private", "no"},
	}
}

// CheckTag checks if incoming tag is represented in configuration
func (filter *RoadFilter) CheckTag(tag string) bool {
	for i := range filter.Tags {
		if filter.Tags[i] == tag {
			return true
		}
	}
	return false
}

// Accept checks whether way with given tags passes the filter
func (filter *RoadFilter) Accept(tags map[string]string) bool {
	if filter == nil {
		return true
	}
	value, ok := tags[filter.entityName()]
	if !ok {
		return false
	}
	if len(filter.Tags) > 0 && !filter.CheckTag(value) {
		return false
	}
	access := normalizeTagValue(tags["access"])
	for _, excluded := range filter.ExcludeAccess {
		if access == excluded {
			return false
		}
	}
	return true
}

func (filter *RoadFilter) entityName() string {
	if filter.EntityName == "" {
		return TagHighway
	}
	return filter.EntityName
}

// overpassSelector returns Overpass QL tag selector, e.g. ["highway"~"^(track|path)$"]
func (filter *RoadFilter) overpassSelector() string {
	if filter == nil || len(filter.Tags) == 0 {
		return fmt.Sprintf(`["%s"]`, TagHighway)
	}
	return fmt.Sprintf(`["%s"~"^(%s)$"]`, filter.entityName(), strings.Join(filter.Tags, "|"))
}

func (filter *RoadFilter) String() string {
	if filter == nil {
		return "Road filter: none"
	}
	return fmt.Sprintf("Road filter: %s in [%s], excluded access [%s]", filter.entityName(), strings.Join(filter.Tags, ","), strings.Join(filter.ExcludeAccess, ","))
}
