// Package catalog lists the tool versions a Galaxy server currently serves.
package catalog

import (
	"context"
	"errors"

	"github.com/runlab/toolstats/core"
)

// ErrUnavailable reports that the catalog endpoint could not be reached or
// did not return a usable tool list. Fatal for the pass that hit it; callers
// do not retry.
var ErrUnavailable = errors.New("tool catalog unavailable")

// Source lists the tool versions currently installed on a server.
type Source interface {
	// Tools returns the catalog keyed by the canonical "base/version" key.
	// Duplicate listings for the same key collapse to one entry.
	Tools(ctx context.Context) (map[string]core.ToolIdentity, error)
}
