package core

import (
	"errors"
	"testing"
)

func TestNewToolIdentity_SplitsVersionSuffix(t *testing.T) {
	id, err := NewToolIdentity("toolshed.g2.bx.psu.edu/repos/devteam/bwa/bwa_mem/0.7.17", "0.7.17")
	if err != nil {
		t.Fatalf("NewToolIdentity() error = %v", err)
	}
	if id.BaseID != "toolshed.g2.bx.psu.edu/repos/devteam/bwa/bwa_mem" {
		t.Errorf("BaseID = %q", id.BaseID)
	}
	if got, want := id.Key(), "toolshed.g2.bx.psu.edu/repos/devteam/bwa/bwa_mem/0.7.17"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestNewToolIdentity_SingleSegment(t *testing.T) {
	id, err := NewToolIdentity("upload1", "1.1.0")
	if err != nil {
		t.Fatalf("NewToolIdentity() error = %v", err)
	}
	if id.BaseID != "upload1" {
		t.Errorf("BaseID = %q, want %q", id.BaseID, "upload1")
	}
	if got, want := id.Key(), "upload1/1.1.0"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestNewToolIdentity_KeyIsStableAcrossDerivations(t *testing.T) {
	fromFull, err := NewToolIdentity("devteam/bwa/0.7.17", "0.7.17")
	if err != nil {
		t.Fatalf("derive from full id: %v", err)
	}
	fromBase, err := NewToolIdentityWithBase("devteam/bwa/0.7.17", "0.7.17", "devteam/bwa")
	if err != nil {
		t.Fatalf("derive with explicit base: %v", err)
	}
	if fromFull.Key() != fromBase.Key() {
		t.Errorf("keys differ: %q vs %q", fromFull.Key(), fromBase.Key())
	}
}

func TestNewToolIdentity_VersionMismatch(t *testing.T) {
	_, err := NewToolIdentity("devteam/bwa/0.7.17", "0.7.18")
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("error = %v, want ErrVersionMismatch", err)
	}
}

func TestNewToolIdentity_MissingVersion(t *testing.T) {
	_, err := NewToolIdentity("upload1", "")
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("error = %v, want ErrInvariantViolation", err)
	}
}

func TestNewToolIdentityWithBase_RejectsForeignBase(t *testing.T) {
	_, err := NewToolIdentityWithBase("devteam/bwa/0.7.17", "0.7.17", "otherrepo/bwa")
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("error = %v, want ErrInvariantViolation", err)
	}
}

func TestParseToolID(t *testing.T) {
	id, err := ParseToolID("devteam/bwa/0.7.17")
	if err != nil {
		t.Fatalf("ParseToolID() error = %v", err)
	}
	if id.Version != "0.7.17" {
		t.Errorf("Version = %q, want %q", id.Version, "0.7.17")
	}
	if id.BaseID != "devteam/bwa" {
		t.Errorf("BaseID = %q, want %q", id.BaseID, "devteam/bwa")
	}

	if _, err := ParseToolID("upload1"); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("ParseToolID(no suffix) error = %v, want ErrInvariantViolation", err)
	}
}
