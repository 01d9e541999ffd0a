package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnavailable   = errors.New("data source unavailable")
	ErrLoad          = errors.New("session load failed")
	ErrNotAvailable  = errors.New("data not available")
	ErrColumnMissing = errors.New("column missing")
	ErrNoValidPoints = errors.New("no valid data points")
)

// ColumnMissingError reports a channel that no telemetry column could be
// resolved to.
type ColumnMissingError struct {
	Channel   string
	Available []string
}

func (e *ColumnMissingError) Error() string {
	return fmt.Sprintf("column for %s not found (available: %s)", e.Channel, strings.Join(e.Available, ", "))
}

func (e *ColumnMissingError) Is(target error) bool {
	return target == ErrColumnMissing
}
