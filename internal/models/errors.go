package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoData is returned when a selection or derived view has nothing to show
	ErrNoData = errors.New("no data")

	// ErrWeekNotFound is returned when a week label is not among the loaded weeks
	ErrWeekNotFound = errors.New("week not found")
)

// SourceFormatError reports a source file whose name or schema is unusable.
// It only ever affects that one file.
type SourceFormatError struct {
	File   string
	Reason string
	Err    error
}

func (e *SourceFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

func (e *SourceFormatError) Unwrap() error {
	return e.Err
}

// DuplicateKey identifies a grouping key that occurs more than once
type DuplicateKey struct {
	Title   string
	Collana *string
	Week    Week
	Count   int
}

func (k DuplicateKey) String() string {
	s := k.Title
	if k.Collana != nil {
		s += " (" + *k.Collana + ")"
	}
	return fmt.Sprintf("%s @ %s ×%d", s, k.Week.Label, k.Count)
}

// DataIntegrityError reports keys that should be unique but are not
type DataIntegrityError struct {
	Keys []DuplicateKey
}

func (e *DataIntegrityError) Error() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = k.String()
	}
	return "duplicate keys: " + strings.Join(parts, ", ")
}

// Titles returns the distinct offending titles in order of first appearance
func (e *DataIntegrityError) Titles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range e.Keys {
		if !seen[k.Title] {
			seen[k.Title] = true
			out = append(out, k.Title)
		}
	}
	return out
}
