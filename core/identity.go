// Package core provides the foundational types for the toolstats cache:
// tool identities, cached statistics records, and runtime summaries.
//
// A tool identity is the composite key (base id, version). Catalog entries,
// cache rows, and historical-run queries all agree on the canonical string
// form produced by Key.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// KeySeparator joins a base tool id and a version into the canonical key.
const KeySeparator = "/"

// Identity construction sentinels. Both signal an upstream data contract
// break and must abort the reconciliation pass that hit them.
var (
	// ErrInvariantViolation reports a full id that does not agree with its
	// supplied base id, or an identity constructed without a version.
	ErrInvariantViolation = errors.New("tool identity invariant violation")

	// ErrVersionMismatch reports a version-suffixed id whose suffix disagrees
	// with the supplied version.
	ErrVersionMismatch = errors.New("tool identity version mismatch")
)

// ToolIdentity identifies one versioned tool. ID is the full identifier as
// exposed by the catalog; BaseID is the derived prefix shared by all versions
// of the same tool. For ids without a separator, BaseID equals ID.
type ToolIdentity struct {
	ID      string
	Version string
	BaseID  string
}

// NewToolIdentity derives an identity from a full id and version.
//
// When the id contains a separator it is split on the last occurrence: the
// right-hand segment must equal version exactly and the left-hand segment
// becomes the base id. Ids without a separator use the full id as base id,
// with the version carried only out of band.
func NewToolIdentity(id, version string) (ToolIdentity, error) {
	return newIdentity(id, version, "")
}

// NewToolIdentityWithBase builds an identity with an explicit base id,
// asserting that the full id starts with it.
func NewToolIdentityWithBase(id, version, baseID string) (ToolIdentity, error) {
	if strings.TrimSpace(baseID) == "" {
		return ToolIdentity{}, fmt.Errorf("%w: explicit base id is empty for %q", ErrInvariantViolation, id)
	}
	return newIdentity(id, version, baseID)
}

// ParseToolID derives an identity from a version-suffixed full id such as
// "toolshed.g2.bx.psu.edu/repos/devteam/bwa/bwa_mem/0.7.17". The segment
// after the last separator is taken as the version.
func ParseToolID(fullID string) (ToolIdentity, error) {
	if !strings.Contains(fullID, KeySeparator) {
		return ToolIdentity{}, fmt.Errorf("%w: id %q has no version suffix", ErrInvariantViolation, fullID)
	}
	_, version := splitLastSeparator(fullID)
	return NewToolIdentity(fullID, version)
}

func newIdentity(id, version, baseID string) (ToolIdentity, error) {
	if version == "" {
		return ToolIdentity{}, fmt.Errorf("%w: tool %q has no version", ErrInvariantViolation, id)
	}

	switch {
	case baseID != "":
		if !strings.HasPrefix(id, baseID) {
			return ToolIdentity{}, fmt.Errorf("%w: id %q does not start with base %q", ErrInvariantViolation, id, baseID)
		}
	case strings.Contains(id, KeySeparator):
		base, suffix := splitLastSeparator(id)
		if suffix != version {
			return ToolIdentity{}, fmt.Errorf("%w: id %q carries version %q, want %q", ErrVersionMismatch, id, suffix, version)
		}
		baseID = base
	default:
		baseID = id
	}

	return ToolIdentity{ID: id, Version: version, BaseID: baseID}, nil
}

// Key returns the canonical "base/version" form used for set membership
// across the catalog and the cache. Every derivation path yields the same
// key for the same (base, version) pair.
func (t ToolIdentity) Key() string {
	return t.BaseID + KeySeparator + t.Version
}

func splitLastSeparator(id string) (string, string) {
	idx := strings.LastIndex(id, KeySeparator)
	return id[:idx], id[idx+1:]
}
