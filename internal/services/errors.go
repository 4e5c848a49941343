package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks requests whose parameters cannot be honoured as given.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks failures caused by unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for sensors or sessions that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrMalformedData marks recording files that cannot be decoded into an
	// aligned time series (bad cells, missing time column, non-monotonic time).
	ErrMalformedData = errors.New("malformed data")
	// ErrInsufficientData marks streams too short for feature extraction.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrClassDiversity marks analysis tables that contain a single class.
	ErrClassDiversity = errors.New("insufficient class diversity")
	// ErrUpstreamLLM marks transport or protocol failures of the language model
	// endpoint. Routing and narration degrade instead of aborting the turn.
	ErrUpstreamLLM = errors.New("language model unavailable")
	// ErrTimeout marks work cancelled by the per-turn deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures worth retrying on a later turn.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Code maps an error to the short machine-readable label used in API payloads
// and structured logs.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedData):
		return "malformed_data"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrClassDiversity):
		return "class_diversity"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamLLM):
		return "upstream_llm"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
