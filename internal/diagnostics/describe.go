package diagnostics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"f1telemetry/internal/compose"
	"f1telemetry/internal/model"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Operation names the request a diagnostic belongs to.
type Operation string

const (
	OpSchedule         Operation = "schedule"
	OpSession          Operation = "session"
	OpRacingLine       Operation = "racing_line"
	OpComparison       Operation = "comparison"
	OpSectorDelta      Operation = "sector_delta"
	OpQualifyingVsRace Operation = "qualifying_vs_race"
)

// Diagnostic is a user-facing explanation of why a view is missing or
// incomplete.
type Diagnostic struct {
	Timestamp time.Time         `json:"timestamp"`
	Severity  Severity          `json:"severity"`
	Operation Operation         `json:"operation"`
	Year      int               `json:"year,omitempty"`
	Session   model.SessionType `json:"session,omitempty"`
	Driver    string            `json:"driver,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Message   string            `json:"message"`
}

// Context describes the request that failed.
type Context struct {
	Operation Operation
	Year      int
	Session   model.SessionType
	Driver    string
	Channel   string
}

func (c Context) diagnostic(sev Severity, msg string) Diagnostic {
	return Diagnostic{
		Timestamp: time.Now().UTC(),
		Severity:  sev,
		Operation: c.Operation,
		Year:      c.Year,
		Session:   c.Session,
		Driver:    c.Driver,
		Channel:   c.Channel,
		Message:   msg,
	}
}

// Describe turns a pipeline failure into the message shown to the user.
func Describe(err error, c Context) Diagnostic {
	var missing *model.ColumnMissingError
	switch {
	case errors.As(err, &missing):
		msg := fmt.Sprintf("%s data not available in telemetry", missing.Channel)
		if len(missing.Available) > 0 {
			msg += ". Available columns: " + strings.Join(missing.Available, ", ")
		}
		return c.diagnostic(SeverityError, msg)
	case errors.Is(err, model.ErrNoValidPoints):
		if c.Channel == "" {
			return c.diagnostic(SeverityWarning, fmt.Sprintf("No position data available for %s", c.Driver))
		}
		return c.diagnostic(SeverityError, fmt.Sprintf("No valid data points available for %s visualization", c.Channel))
	case errors.Is(err, compose.ErrTooFewDrivers):
		return c.diagnostic(SeverityWarning, "Please enter at least 2 driver codes for comparison (comma-separated)")
	case errors.Is(err, model.ErrUnavailable) && c.Operation == OpSchedule:
		return c.diagnostic(SeverityError, fmt.Sprintf("Error fetching schedule for %d: %v", c.Year, err))
	case errors.Is(err, model.ErrUnavailable), errors.Is(err, model.ErrLoad):
		return c.diagnostic(SeverityError, fmt.Sprintf("Error loading %s session: %v", c.Session, err))
	case errors.Is(err, model.ErrNotAvailable):
		return c.diagnostic(SeverityWarning, notAvailableMessage(c))
	}
	return c.diagnostic(SeverityError, err.Error())
}

func notAvailableMessage(c Context) string {
	switch c.Operation {
	case OpSectorDelta:
		return fmt.Sprintf("Sector delta data not available for %s", c.Driver)
	case OpComparison:
		return "No valid telemetry data found for any of the selected drivers"
	case OpQualifyingVsRace:
		return fmt.Sprintf("No valid telemetry data found for %s in qualifying or race sessions", c.Driver)
	}
	if c.Driver != "" {
		return fmt.Sprintf("Could not load telemetry for %s. Check if the driver participated in this session.", c.Driver)
	}
	return "No telemetry data available"
}

// AllZero warns that a channel is present but was never populated.
func AllZero(c Context) Diagnostic {
	return c.diagnostic(SeverityWarning, fmt.Sprintf(
		"%s data appears to be all zeros. This might indicate the data source doesn't include %s telemetry for this session.",
		c.Channel, lowerName(c.Channel)))
}

// Skipped explains why one trace of an overlay was left out.
func Skipped(s compose.Skipped, c Context) Diagnostic {
	c.Driver = s.Label
	if c.Session != "" {
		kind := strings.ToLower(c.Session.String())
		if errors.Is(s.Err, model.ErrNoValidPoints) {
			return c.diagnostic(SeverityWarning, fmt.Sprintf("No position data in %s telemetry for %s", kind, s.Label))
		}
		return c.diagnostic(SeverityWarning, fmt.Sprintf("Could not load %s telemetry for %s", kind, s.Label))
	}
	if errors.Is(s.Err, model.ErrNoValidPoints) {
		return c.diagnostic(SeverityWarning, fmt.Sprintf("No position data available for %s", s.Label))
	}
	return c.diagnostic(SeverityWarning, fmt.Sprintf("Could not load telemetry for %s. Check if the driver participated in this session.", s.Label))
}

func lowerName(name string) string {
	if strings.ToUpper(name) == name {
		return name
	}
	return strings.ToLower(name)
}
