package reconcile

import (
	"sort"

	"github.com/runlab/toolstats/core"
)

// Diff partitions catalog and cache membership into the work a pass has to
// do. The two slices are sorted and disjoint: a key present on both sides
// appears in neither.
type Diff struct {
	// ToInsert holds catalog keys with no active cache record.
	ToInsert []string

	// ToDeactivate holds active cache keys no longer in the catalog.
	ToDeactivate []string
}

// IsEmpty reports whether the diff contains any membership changes.
func (d Diff) IsEmpty() bool {
	return len(d.ToInsert) == 0 && len(d.ToDeactivate) == 0
}

// ComputeDiff compares catalog membership against active cache membership.
// Staleness is a separate dimension and never feeds the diff.
func ComputeDiff(catalog map[string]core.ToolIdentity, active map[string]core.ToolStats) Diff {
	diff := Diff{}

	for key := range catalog {
		if _, ok := active[key]; !ok {
			diff.ToInsert = append(diff.ToInsert, key)
		}
	}
	for key := range active {
		if _, ok := catalog[key]; !ok {
			diff.ToDeactivate = append(diff.ToDeactivate, key)
		}
	}

	sort.Strings(diff.ToInsert)
	sort.Strings(diff.ToDeactivate)

	return diff
}
