package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Priority is the backend-assigned risk bucket for a route.
type Priority string

const (
	PriorityHigh       Priority = "HIGH_PRIORITY"
	PriorityWatch      Priority = "WATCH_LIST"
	PriorityClear      Priority = "CLEAR"
	PriorityUnreliable Priority = "UNRELIABLE"
)

// Priorities lists every priority class in display order.
var Priorities = []Priority{PriorityHigh, PriorityWatch, PriorityClear, PriorityUnreliable}

// ParsePriority normalizes a wire value. Anything unrecognised is UNRELIABLE.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityWatch:
		return PriorityWatch
	case PriorityClear:
		return PriorityClear
	default:
		return PriorityUnreliable
	}
}

// Valid reports whether p is one of the four priority classes.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityWatch, PriorityClear, PriorityUnreliable:
		return true
	}
	return false
}

// Severity returns a numeric severity for comparisons (higher = worse).
func (p Priority) Severity() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityWatch:
		return 2
	case PriorityClear:
		return 1
	default:
		return 0
	}
}

// Color returns the display color used on cards, charts and the globe.
func (p Priority) Color() string {
	switch p {
	case PriorityHigh:
		return "#EF4444"
	case PriorityWatch:
		return "#F59E0B"
	case PriorityClear:
		return "#10B981"
	default:
		return "#94A3B8"
	}
}

// Label returns the English display label.
func (p Priority) Label() string {
	switch p {
	case PriorityHigh:
		return "High Priority"
	case PriorityWatch:
		return "Watch List"
	case PriorityClear:
		return "Clear"
	default:
		return "Unreliable"
	}
}

// TranslationKey is the dictionary key for the priority label.
func (p Priority) TranslationKey() string {
	switch p {
	case PriorityHigh:
		return "highPriority"
	case PriorityWatch:
		return "watchList"
	case PriorityClear:
		return "clear"
	default:
		return "unreliable"
	}
}

// RouteRecord is a route as the analysis service serializes it.
type RouteRecord struct {
	Airline       string   `json:"airline"`
	LastStop      string   `json:"lastStop"`
	Inad          int      `json:"inad"`
	Pax           *int     `json:"pax"`
	Density       *float64 `json:"density"`
	Confidence    *int     `json:"confidence"`
	Priority      string   `json:"priority"`
	OriginLat     *float64 `json:"originLat"`
	OriginLng     *float64 `json:"originLng"`
	OriginCity    string   `json:"originCity"`
	OriginCountry string   `json:"originCountry"`
}

// Route is the canonical airline/last-stop pair for one semester.
// Optional numerics are nil when unknown and must never be read as zero.
type Route struct {
	Airline       string   `json:"airline"`
	LastStop      string   `json:"lastStop"`
	OriginCity    string   `json:"originCity,omitempty"`
	OriginCountry string   `json:"originCountry,omitempty"`
	CountryName   string   `json:"countryName,omitempty"`
	OriginLat     *float64 `json:"originLat,omitempty"`
	OriginLng     *float64 `json:"originLng,omitempty"`
	Inad          int      `json:"inad"`
	Pax           *int     `json:"pax,omitempty"`
	Density       *float64 `json:"density,omitempty"`
	Confidence    *int     `json:"confidence,omitempty"`
	Priority      Priority `json:"priority"`
}

// HasLocation reports whether the origin can be placed on a map.
func (r Route) HasLocation() bool {
	return r.OriginLat != nil && r.OriginLng != nil
}

// Summary holds the pre-aggregated counters supplied with an analysis.
type Summary struct {
	TotalInad    int     `json:"total_inad"`
	HighPriority int     `json:"high_priority"`
	WatchList    int     `json:"watch_list"`
	Unreliable   int     `json:"unreliable"`
	Clear        int     `json:"clear"`
	Threshold    float64 `json:"threshold"`
	Method       string  `json:"method"`
}

// Count returns the supplied counter for a priority class.
func (s Summary) Count(p Priority) int {
	switch p {
	case PriorityHigh:
		return s.HighPriority
	case PriorityWatch:
		return s.WatchList
	case PriorityClear:
		return s.Clear
	default:
		return s.Unreliable
	}
}

// AirlineCount is a step-1 row: airlines meeting the minimum INAD count.
type AirlineCount struct {
	Airline   string `json:"airline"`
	InadCount int    `json:"inadCount"`
}

// RouteCount is a step-2 row: routes meeting the minimum INAD count.
type RouteCount struct {
	Airline   string `json:"airline"`
	LastStop  string `json:"lastStop"`
	InadCount int    `json:"inadCount"`
}

// AnalysisSnapshot is the analysis payload for one semester.
type AnalysisSnapshot struct {
	Semester    string         `json:"semester"`
	Summary     Summary        `json:"summary"`
	Threshold   float64        `json:"threshold"`
	Routes      []RouteRecord  `json:"routes"`
	Airlines    []AirlineCount `json:"airlines,omitempty"`
	Step2Routes []RouteCount   `json:"step2Routes,omitempty"`
	Config      AnalysisConfig `json:"config"`
	GeneratedAt string         `json:"generated_at,omitempty"`
}

// HistoricRow aggregates one semester for trend charts.
type HistoricRow struct {
	Semester          string  `json:"semester"`
	Summary           Summary `json:"summary"`
	Threshold         float64 `json:"threshold"`
	HighPriorityCount int     `json:"highPriorityCount"`
	WatchListCount    int     `json:"watchListCount"`
	TotalInad         int     `json:"totalInad"`
}

// TrendDirection is the overall movement between the oldest and newest semester.
type TrendDirection string

const (
	TrendWorsening TrendDirection = "worsening"
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
)

// Trend compares the oldest and newest rows of a historic snapshot.
type Trend struct {
	Direction          TrendDirection `json:"direction"`
	HighPriorityChange int            `json:"highPriorityChange"`
	WatchListChange    int            `json:"watchListChange"`
	TotalChange        int            `json:"totalChange"`
}

// HistoricSnapshot is the multi-semester aggregate.
type HistoricSnapshot struct {
	Semesters   []HistoricRow `json:"semesters"`
	Trend       Trend         `json:"trend"`
	GeneratedAt string        `json:"generated_at,omitempty"`
}

// SystemicCase is a route flagged across two or more semesters.
type SystemicCase struct {
	Airline        string   `json:"airline"`
	LastStop       string   `json:"lastStop"`
	Appearances    int      `json:"appearances"`
	Consecutive    bool     `json:"consecutive"`
	Trend          string   `json:"trend"`
	LatestPriority Priority `json:"latestPriority"`
}

// SystemicCaseSet is the systemic detection result. The counters are only
// present on live responses; static snapshots carry just the cases.
type SystemicCaseSet struct {
	Cases         []SystemicCase `json:"cases"`
	TotalSystemic int            `json:"totalSystemic,omitempty"`
	Worsening     int            `json:"worsening,omitempty"`
	Consecutive   int            `json:"consecutive,omitempty"`
	GeneratedAt   string         `json:"generated_at,omitempty"`
}

// Health is the analysis service root response.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Status reports which source files the analysis service has loaded.
type Status struct {
	InadLoaded bool `json:"inad_loaded"`
	BazlLoaded bool `json:"bazl_loaded"`
	Ready      bool `json:"ready"`
}

// LoadResult is returned by upload and load-server-files.
type LoadResult struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Semesters []Semester `json:"semesters"`
}

// SnapshotIndex is the index.json written next to the static snapshot files.
type SnapshotIndex struct {
	Semesters      []string       `json:"semesters"`
	LatestSemester *string        `json:"latest_semester"`
	GeneratedAt    string         `json:"generated_at"`
	Config         AnalysisConfig `json:"config"`
}

// Timestamp formats t the way generated snapshot files carry it.
func Timestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000")
}

// UnmarshalJSON accepts case variations of the wire value.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*p = ParsePriority(s)
	return nil
}
