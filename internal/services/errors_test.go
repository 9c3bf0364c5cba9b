package services

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrVerification, "moving", "verify copy", "Checksum mismatch after copy", base)
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected verification marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "resolving", "lookup", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{ErrTransient, true},
		{ErrVerification, true},
		{ErrUnresolvable, true},
		{ErrPermanent, false},
		{ErrConfiguration, false},
	}
	for _, tc := range cases {
		err := Wrap(tc.marker, "stage", "op", "msg", nil)
		if got := Retryable(err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
}

func TestKindLabels(t *testing.T) {
	if got := Kind(Wrap(ErrPermanent, "moving", "rename", "", nil)); got != "permanent" {
		t.Fatalf("Kind = %q, want permanent", got)
	}
	if got := Kind(errors.New("plain")); got != "transient" {
		t.Fatalf("Kind = %q, want transient", got)
	}
}
