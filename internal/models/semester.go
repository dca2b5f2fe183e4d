package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Semester describes one six-month reporting period.
type Semester struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

var semesterPattern = regexp.MustCompile(`^(\d{4})-H([12])$`)

// SemesterPeriod is a parsed semester token.
type SemesterPeriod struct {
	Year int
	Half int
}

// ParseSemester validates a "<year>-H<1|2>" token.
func ParseSemester(token string) (SemesterPeriod, error) {
	m := semesterPattern.FindStringSubmatch(token)
	if m == nil {
		return SemesterPeriod{}, fmt.Errorf("invalid semester %q: want <year>-H<1|2>", token)
	}
	year, _ := strconv.Atoi(m[1])
	half, _ := strconv.Atoi(m[2])
	return SemesterPeriod{Year: year, Half: half}, nil
}

// String returns the token form.
func (p SemesterPeriod) String() string {
	return fmt.Sprintf("%d-H%d", p.Year, p.Half)
}

// Range returns the first and last day covered by the period.
func (p SemesterPeriod) Range() (time.Time, time.Time) {
	if p.Half == 1 {
		return time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(p.Year, time.June, 30, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(p.Year, time.July, 1, 0, 0, 0, 0, time.UTC),
		time.Date(p.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Label returns a human label such as "2024 H2 (Jul-Dec)".
func (p SemesterPeriod) Label() string {
	if p.Half == 1 {
		return fmt.Sprintf("%d H1 (Jan-Jun)", p.Year)
	}
	return fmt.Sprintf("%d H2 (Jul-Dec)", p.Year)
}

// Descriptor builds a Semester with label and date range filled in.
func (p SemesterPeriod) Descriptor() Semester {
	start, end := p.Range()
	return Semester{
		Value: p.String(),
		Label: p.Label(),
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}
}

// LatestSemester returns the last element of a backend-ordered catalog.
func LatestSemester(semesters []Semester) (Semester, bool) {
	if len(semesters) == 0 {
		return Semester{}, false
	}
	return semesters[len(semesters)-1], true
}

// SemesterValues extracts the tokens in catalog order.
func SemesterValues(semesters []Semester) []string {
	values := make([]string, 0, len(semesters))
	for _, s := range semesters {
		values = append(values, s.Value)
	}
	return values
}

// SortSemesterTokens orders tokens chronologically. Tokens share a fixed
// width so lexical order is chronological.
func SortSemesterTokens(tokens []string) {
	sort.Strings(tokens)
}
