package services_test

import (
	"errors"
	"strings"
	"testing"

	"faultscope/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrMalformedData, "loader", "decode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrMalformedData) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"loader", "decode", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "extractor", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrNotFound, "catalog", "lookup", "no such sensor", nil), "not_found"},
		{services.Wrap(services.ErrMalformedData, "loader", "decode", "bad cell", nil), "malformed_data"},
		{services.Wrap(services.ErrInsufficientData, "extractor", "stats", "too short", nil), "insufficient_data"},
		{services.Wrap(services.ErrClassDiversity, "analysis", "fit", "one class", nil), "class_diversity"},
		{services.Wrap(services.ErrUpstreamLLM, "router", "complete", "down", nil), "upstream_llm"},
		{services.Wrap(services.ErrTimeout, "turn", "execute", "deadline", nil), "timeout"},
		{services.Wrap(services.ErrTimeout, "turn", "execute", "deadline",
			services.Wrap(services.ErrUpstreamLLM, "router", "complete", "down", nil)), "timeout"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
