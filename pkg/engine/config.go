package engine

import (
	"strings"
	"time"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/provider"
)

// DepthPolicy decides which depth the later stages use.
type DepthPolicy string

const (
	// DepthPropagate uses the task's depth for every stage.
	DepthPropagate DepthPolicy = "propagate"

	// DepthFixed plans after clarification and writes the report with the
	// standard depth regardless of the requested one. The plan built without
	// clarification still uses the requested depth.
	DepthFixed DepthPolicy = "fixed"
)

// ParseDepthPolicy maps a configuration value onto a DepthPolicy. Anything
// other than "fixed" propagates.
func ParseDepthPolicy(s string) DepthPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(DepthFixed)) {
		return DepthFixed
	}
	return DepthPropagate
}

func (p DepthPolicy) planDepth(task api.Depth, afterClarification bool) api.Depth {
	if p == DepthFixed && afterClarification {
		return api.DepthStandard
	}
	return task
}

func (p DepthPolicy) reportDepth(task api.Depth) api.Depth {
	if p == DepthFixed {
		return api.DepthStandard
	}
	return task
}

// Config holds engine settings. The zero value is usable.
type Config struct {
	DepthPolicy DepthPolicy

	// Search is passed to every Searcher call.
	Search provider.SearchOptions

	// Archive, when set, receives every task that reaches done.
	Archive Archiver

	// Now overrides the clock (tests).
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}
