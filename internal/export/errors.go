package export

import (
	"errors"
	"fmt"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// Reason classifies an export failure.
type Reason string

const (
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonEmptySelection    Reason = "empty_selection"
	ReasonSerialization     Reason = "serialization_failure"
	ReasonInProgress        Reason = "in_progress"
)

// Sentinels for errors.Is against *Error.
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrEmptySelection    = errors.New("no sections selected")
	ErrSerialization     = errors.New("serialization failed")

	// ErrExportInProgress is returned when an export is already running.
	ErrExportInProgress = errors.New("export already in progress")
)

// Error is an export failure with its cause.
type Error struct {
	Reason  Reason
	Format  Format
	Section dashboard.Section
	Err     error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonUnsupportedFormat:
		return fmt.Sprintf("unsupported export format %q", e.Format)
	case ReasonEmptySelection:
		return "select at least one section to export"
	case ReasonInProgress:
		return ErrExportInProgress.Error()
	default:
		if e.Section != "" {
			return fmt.Sprintf("export %s: section %s: %v", e.Format, e.Section, e.Err)
		}
		return fmt.Sprintf("export %s: %v", e.Format, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnsupportedFormat:
		return e.Reason == ReasonUnsupportedFormat
	case ErrEmptySelection:
		return e.Reason == ReasonEmptySelection
	case ErrSerialization:
		return e.Reason == ReasonSerialization
	case ErrExportInProgress:
		return e.Reason == ReasonInProgress
	}
	return false
}
