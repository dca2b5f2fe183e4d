package table

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// SortField names a sortable route column.
type SortField string

const (
	FieldAirline    SortField = "airline"
	FieldLastStop   SortField = "lastStop"
	FieldInad       SortField = "inad"
	FieldPax        SortField = "pax"
	FieldDensity    SortField = "density"
	FieldConfidence SortField = "confidence"
)

// SortFields lists the columns in table order.
var SortFields = []SortField{FieldAirline, FieldLastStop, FieldInad, FieldPax, FieldDensity, FieldConfidence}

// Numeric reports whether the field compares numerically.
func (f SortField) Numeric() bool {
	switch f {
	case FieldInad, FieldPax, FieldDensity, FieldConfidence:
		return true
	}
	return false
}

func ParseSortField(s string) (SortField, error) {
	for _, f := range SortFields {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// PriorityAll disables the priority filter.
const PriorityAll = "all"

// ParsePriorityFilter accepts "all" (or empty) and the four priority values.
func ParsePriorityFilter(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, PriorityAll) {
		return PriorityAll, nil
	}
	p := models.Priority(strings.ToUpper(s))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority filter %q", s)
	}
	return string(p), nil
}

// State is the interactive table state. The zero value is not usable; start
// from DefaultState.
type State struct {
	Search    string    `json:"search"`
	Priority  string    `json:"priority"`
	Field     SortField `json:"sortField"`
	Direction Direction `json:"sortDirection"`
}

// DefaultState sorts by INAD descending with no filters.
func DefaultState() State {
	return State{Priority: PriorityAll, Field: FieldInad, Direction: Desc}
}

// Toggle selects a sort column. Re-selecting the active column flips the
// direction; a new column starts descending.
func (s State) Toggle(f SortField) State {
	if s.Field == f {
		if s.Direction == Desc {
			s.Direction = Asc
		} else {
			s.Direction = Desc
		}
		return s
	}
	s.Field = f
	s.Direction = Desc
	return s
}

// Matches reports whether r passes the priority filter and the search term.
func (s State) Matches(r models.Route) bool {
	if s.Priority != "" && s.Priority != PriorityAll && string(r.Priority) != s.Priority {
		return false
	}
	term := strings.ToLower(s.Search)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Airline), term) ||
		strings.Contains(strings.ToLower(r.LastStop), term) ||
		(r.OriginCity != "" && strings.Contains(strings.ToLower(r.OriginCity), term))
}

// Apply filters and stably sorts routes. The input slice is not modified.
func Apply(routes []models.Route, s State) []models.Route {
	return applyWith(routes, s, language.English)
}

func applyWith(routes []models.Route, s State, tag language.Tag) []models.Route {
	out := make([]models.Route, 0, len(routes))
	for _, r := range routes {
		if s.Matches(r) {
			out = append(out, r)
		}
	}
	field := s.Field
	if field == "" {
		field = FieldInad
	}
	sign := 1
	if s.Direction != Asc {
		sign = -1
	}
	col := collate.New(tag)
	sort.SliceStable(out, func(i, j int) bool {
		return compare(col, field, out[i], out[j], sign) < 0
	})
	return out
}

// compare orders a before b when negative. Absent numerics go last in both
// directions.
func compare(col *collate.Collator, f SortField, a, b models.Route, sign int) int {
	switch f {
	case FieldAirline:
		return sign * col.CompareString(a.Airline, b.Airline)
	case FieldLastStop:
		return sign * col.CompareString(a.LastStop, b.LastStop)
	case FieldInad:
		return sign * cmpInt(a.Inad, b.Inad)
	case FieldPax:
		return cmpOptional(a.Pax, b.Pax, sign, cmpInt)
	case FieldDensity:
		return cmpOptional(a.Density, b.Density, sign, cmpFloat)
	case FieldConfidence:
		return cmpOptional(a.Confidence, b.Confidence, sign, cmpInt)
	}
	return 0
}

func cmpOptional[T any](a, b *T, sign int, cmp func(T, T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return sign * cmp(*a, *b)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Page is what the table renders.
type Page struct {
	Routes    []models.Route `json:"routes"`
	Count     int            `json:"count"`
	Total     int            `json:"total"`
	State     State          `json:"state"`
	NoResults bool           `json:"noResults"`
}

// View applies s and reports an explicit no-results state.
func View(routes []models.Route, s State) Page {
	out := Apply(routes, s)
	return Page{
		Routes:    out,
		Count:     len(out),
		Total:     len(routes),
		State:     s,
		NoResults: len(out) == 0,
	}
}
