package reconcile

import (
	"sort"
	"testing"

	"github.com/runlab/toolstats/core"
)

func TestComputeDiff(t *testing.T) {
	catalog := map[string]core.ToolIdentity{
		"a/1.0": mustIdentity(t, "a", "1.0"),
		"b/1.0": mustIdentity(t, "b", "1.0"),
		"c/2.0": mustIdentity(t, "c", "2.0"),
	}
	active := map[string]core.ToolStats{
		"b/1.0": core.NewToolStats(mustIdentity(t, "b", "1.0")),
		"c/2.0": core.NewToolStats(mustIdentity(t, "c", "2.0")),
		"d/1.0": core.NewToolStats(mustIdentity(t, "d", "1.0")),
	}

	diff := ComputeDiff(catalog, active)

	if got, want := len(diff.ToInsert), 1; got != want {
		t.Fatalf("ToInsert = %v, want 1 key", diff.ToInsert)
	}
	if diff.ToInsert[0] != "a/1.0" {
		t.Fatalf("ToInsert = %v, want [a/1.0]", diff.ToInsert)
	}
	if got, want := len(diff.ToDeactivate), 1; got != want {
		t.Fatalf("ToDeactivate = %v, want 1 key", diff.ToDeactivate)
	}
	if diff.ToDeactivate[0] != "d/1.0" {
		t.Fatalf("ToDeactivate = %v, want [d/1.0]", diff.ToDeactivate)
	}
	if diff.IsEmpty() {
		t.Fatal("IsEmpty() = true for non-empty diff")
	}
}

func TestComputeDiffDisjoint(t *testing.T) {
	catalog := map[string]core.ToolIdentity{
		"a/1.0": mustIdentity(t, "a", "1.0"),
		"b/1.0": mustIdentity(t, "b", "1.0"),
	}
	active := map[string]core.ToolStats{
		"b/1.0": core.NewToolStats(mustIdentity(t, "b", "1.0")),
		"c/1.0": core.NewToolStats(mustIdentity(t, "c", "1.0")),
	}

	diff := ComputeDiff(catalog, active)

	seen := make(map[string]struct{})
	for _, key := range diff.ToInsert {
		seen[key] = struct{}{}
	}
	for _, key := range diff.ToDeactivate {
		if _, ok := seen[key]; ok {
			t.Fatalf("key %q in both partitions", key)
		}
	}
	for _, key := range append(diff.ToInsert, diff.ToDeactivate...) {
		if key == "b/1.0" {
			t.Fatalf("unchanged key %q appears in diff", key)
		}
	}
}

func TestComputeDiffSorted(t *testing.T) {
	catalog := map[string]core.ToolIdentity{
		"z/1.0": mustIdentity(t, "z", "1.0"),
		"a/1.0": mustIdentity(t, "a", "1.0"),
		"m/1.0": mustIdentity(t, "m", "1.0"),
	}

	diff := ComputeDiff(catalog, nil)

	if !sort.StringsAreSorted(diff.ToInsert) {
		t.Fatalf("ToInsert not sorted: %v", diff.ToInsert)
	}
	if len(diff.ToInsert) != 3 {
		t.Fatalf("ToInsert = %v, want 3 keys", diff.ToInsert)
	}
}

func TestComputeDiffEmpty(t *testing.T) {
	catalog := map[string]core.ToolIdentity{
		"a/1.0": mustIdentity(t, "a", "1.0"),
	}
	active := map[string]core.ToolStats{
		"a/1.0": core.NewToolStats(mustIdentity(t, "a", "1.0")),
	}

	diff := ComputeDiff(catalog, active)
	if !diff.IsEmpty() {
		t.Fatalf("IsEmpty() = false, diff = %+v", diff)
	}
}
