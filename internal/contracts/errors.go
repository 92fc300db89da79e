package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors
var (
	ErrNoInstruments   = errors.New("no instruments found")
	ErrInvalidFraction = errors.New("top fraction must be in (0, 1] after normalization")
)

// FormatError reports an unparseable or inconsistent date axis
type FormatError struct {
	Code   string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("format error: %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("format error [%s]: %q: %s", e.Code, e.Value, e.Reason)
}

// MissingColumnError reports that the configured price column is absent
type MissingColumnError struct {
	Code      string
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column [%s]: %q (available: %s)", e.Code, e.Column, strings.Join(e.Available, ", "))
}

// DataGapError marks an instrument without a price on a trading day where one was needed
type DataGapError struct {
	Code string
	Date time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap [%s]: no price on %s", e.Code, e.Date.Format(DateLayout))
}
