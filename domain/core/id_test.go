package core

import (
	"errors"
	"testing"
	"time"
)

// TestNewNameUniqueness tests that NewName generates unique short names
func TestNewNameUniqueness(t *testing.T) {
	const numNames = 10000

	names := make(map[string]bool, numNames)
	for i := 0; i < numNames; i++ {
		name := NewName()
		if len(name) != 8 {
			t.Fatalf("Expected 8 characters, got %q", name)
		}
		if names[name] {
			t.Errorf("Generated duplicate name: %s", name)
		}
		names[name] = true
	}
}

func TestNameOrNew(t *testing.T) {
	if got := NameOrNew("obs-1"); got != "obs-1" {
		t.Errorf("Expected explicit name to be kept, got %q", got)
	}
	if got := NameOrNew("  "); len(got) != 8 {
		t.Errorf("Expected generated name for blank input, got %q", got)
	}
}

func TestArrayHashIsOrderSensitive(t *testing.T) {
	a := ComputeArrayHash([]float64{1, 2}, []float64{3})
	b := ComputeArrayHash([]float64{1}, []float64{2, 3})
	c := ComputeArrayHash([]float64{1, 2}, []float64{3})

	if a == b {
		t.Error("Expected different hashes for different array boundaries")
	}
	if a != c {
		t.Error("Expected identical hashes for identical input")
	}
	if len(a.Short()) != 12 {
		t.Errorf("Expected 12 character short hash, got %q", a.Short())
	}
}

func TestMJDRoundTrip(t *testing.T) {
	ref := time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
	mjd := NewMJD(ref)
	if float64(mjd) != 55197 {
		t.Fatalf("Expected MJD 55197, got %f", float64(mjd))
	}
	if got := mjd.AddSeconds(86400); float64(got) != 55198 {
		t.Errorf("Expected one day offset, got %f", float64(got))
	}
	if !mjd.Time().Equal(ref) {
		t.Errorf("Expected %v, got %v", ref, mjd.Time())
	}
}

func TestErrorHelpers(t *testing.T) {
	err := NewAxisError("edges differ")
	if !IsShapeError(err) {
		t.Error("Expected axis error to be a shape error")
	}
	if !errors.Is(err, ErrIncompatibleAxis) {
		t.Error("Expected axis error to wrap ErrIncompatibleAxis")
	}
	if !IsMissingComponentError(ErrMissingCountsOff) {
		t.Error("Expected counts_off error to be a missing component error")
	}
	if !IsValidationError(NewValidationError("mask", "wrong shape")) {
		t.Error("Expected validation error")
	}
}
