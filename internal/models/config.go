package models

import (
	"errors"
	"fmt"
)

// ThresholdMethod selects how the analysis service derives the density threshold.
type ThresholdMethod string

const (
	ThresholdMedian      ThresholdMethod = "median"
	ThresholdTrimmedMean ThresholdMethod = "trimmed_mean"
	ThresholdMean        ThresholdMethod = "mean"
)

// ParseThresholdMethod validates a threshold method name.
func ParseThresholdMethod(s string) (ThresholdMethod, error) {
	switch ThresholdMethod(s) {
	case ThresholdMedian, ThresholdTrimmedMean, ThresholdMean:
		return ThresholdMethod(s), nil
	}
	return "", fmt.Errorf("unknown threshold method %q", s)
}

// AnalysisConfig is the parameter set the analysis service runs with.
type AnalysisConfig struct {
	MinInad                int             `json:"min_inad"`
	MinPax                 int             `json:"min_pax"`
	MinDensity             float64         `json:"min_density"`
	HighPriorityMultiplier float64         `json:"high_priority_multiplier"`
	HighPriorityMinInad    *int            `json:"high_priority_min_inad,omitempty"`
	ThresholdMethod        ThresholdMethod `json:"threshold_method"`
}

// DefaultAnalysisConfig mirrors the analysis service defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MinInad:                6,
		MinPax:                 5000,
		MinDensity:             0.10,
		HighPriorityMultiplier: 1.5,
		ThresholdMethod:        ThresholdMedian,
	}
}

// Clone returns a copy that shares no memory with c.
func (c AnalysisConfig) Clone() AnalysisConfig {
	if c.HighPriorityMinInad != nil {
		v := *c.HighPriorityMinInad
		c.HighPriorityMinInad = &v
	}
	return c
}

// Validate checks ranges before the config is sent anywhere.
func (c AnalysisConfig) Validate() error {
	var errs []error
	if c.MinInad < 0 {
		errs = append(errs, fmt.Errorf("min_inad must be >= 0, got %d", c.MinInad))
	}
	if c.MinPax < 0 {
		errs = append(errs, fmt.Errorf("min_pax must be >= 0, got %d", c.MinPax))
	}
	if c.MinDensity < 0 {
		errs = append(errs, fmt.Errorf("min_density must be >= 0, got %g", c.MinDensity))
	}
	if c.HighPriorityMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("high_priority_multiplier must be > 0, got %g", c.HighPriorityMultiplier))
	}
	if _, err := ParseThresholdMethod(string(c.ThresholdMethod)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Mode selects between the live analysis service and pre-generated snapshots.
type Mode int

const (
	ModeLive Mode = iota
	ModeStatic
)

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	default:
		return "live"
	}
}

// ParseMode parses "static" or "live".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "static":
		return ModeStatic, nil
	case "live":
		return ModeLive, nil
	}
	return ModeLive, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
