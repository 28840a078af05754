package jferr

import (
	"errors"
	"testing"
)

var errBoom = NewSentinel(ModuleJiukun, 7, "boom")

func TestSentinelIsMatching(t *testing.T) {
	full := errBoom.New("alloc")
	if !errors.Is(full, errBoom) {
		t.Fatalf("errors.Is(%v, errBoom) = false, want true", full)
	}
}

func TestSentinelIsMismatch(t *testing.T) {
	other := NewSentinel(ModuleJiukun, 8, "other")
	full := errBoom.New("alloc")
	if errors.Is(full, other) {
		t.Fatal("errors.Is matched an unrelated sentinel")
	}
}

func TestWrapPreservesInner(t *testing.T) {
	inner := errors.New("disk on fire")
	wrapped := Wrap("flush", errBoom.Code(), inner)
	if !errors.Is(wrapped, inner) {
		t.Fatal("Wrap should preserve the inner error for errors.Is")
	}
}

func TestCodeModule(t *testing.T) {
	c := errBoom.Code()
	if c.Module() != ModuleJiukun {
		t.Fatalf("Module() = %v, want %v", c.Module(), ModuleJiukun)
	}
}

func TestIsCodeAcrossWrap(t *testing.T) {
	base := errBoom.New("alloc")
	wrapped := Wrap("retry", errBoom.Code(), base)
	if !IsCode(wrapped, errBoom.Code()) {
		t.Fatal("IsCode should see through Wrap")
	}
}
