package models

import (
	"encoding/json"
	"testing"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"HIGH_PRIORITY", PriorityHigh},
		{"watch_list", PriorityWatch},
		{" CLEAR ", PriorityClear},
		{"UNRELIABLE", PriorityUnreliable},
		{"", PriorityUnreliable},
		{"MEDIUM", PriorityUnreliable},
	}
	for _, tt := range tests {
		if got := ParsePriority(tt.in); got != tt.want {
			t.Errorf("ParsePriority(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPriority_Severity(t *testing.T) {
	if PriorityHigh.Severity() <= PriorityWatch.Severity() {
		t.Error("High should be more severe than Watch")
	}
	if PriorityWatch.Severity() <= PriorityClear.Severity() {
		t.Error("Watch should be more severe than Clear")
	}
	if PriorityClear.Severity() <= PriorityUnreliable.Severity() {
		t.Error("Clear should rank above Unreliable")
	}
}

func TestRouteRecord_NullsStayNil(t *testing.T) {
	var r RouteRecord
	err := json.Unmarshal([]byte(`{"airline":"XX","lastStop":"IST","inad":7,"pax":null,"density":null,"priority":"CLEAR"}`), &r)
	if err != nil {
		t.Fatal(err)
	}
	if r.Pax != nil || r.Density != nil || r.Confidence != nil {
		t.Errorf("expected nil optionals, got pax=%v density=%v confidence=%v", r.Pax, r.Density, r.Confidence)
	}
}

func TestParseSemester(t *testing.T) {
	tests := []struct {
		token string
		start string
		end   string
		ok    bool
	}{
		{"2024-H1", "2024-01-01", "2024-06-30", true},
		{"2023-H2", "2023-07-01", "2023-12-31", true},
		{"2024-H3", "", "", false},
		{"24-H1", "", "", false},
		{"2024H1", "", "", false},
	}
	for _, tt := range tests {
		p, err := ParseSemester(tt.token)
		if (err == nil) != tt.ok {
			t.Errorf("ParseSemester(%q) err = %v, want ok=%v", tt.token, err, tt.ok)
			continue
		}
		if !tt.ok {
			continue
		}
		d := p.Descriptor()
		if d.Start != tt.start || d.End != tt.end {
			t.Errorf("%s range = %s..%s, want %s..%s", tt.token, d.Start, d.End, tt.start, tt.end)
		}
		if d.Value != tt.token {
			t.Errorf("Value = %q, want %q", d.Value, tt.token)
		}
	}
}

func TestLatestSemester(t *testing.T) {
	if _, ok := LatestSemester(nil); ok {
		t.Error("expected no latest semester for empty catalog")
	}
	got, ok := LatestSemester([]Semester{{Value: "2023-H2"}, {Value: "2024-H1"}})
	if !ok || got.Value != "2024-H1" {
		t.Errorf("LatestSemester = %+v, want 2024-H1", got)
	}
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name string
		rows []HistoricRow
		want Trend
	}{
		{"single row", []HistoricRow{{HighPriorityCount: 4}}, Trend{Direction: TrendStable}},
		{
			"worsening",
			[]HistoricRow{{HighPriorityCount: 2, WatchListCount: 3}, {HighPriorityCount: 1}, {HighPriorityCount: 5, WatchListCount: 1}},
			Trend{Direction: TrendWorsening, HighPriorityChange: 3, WatchListChange: -2, TotalChange: 1},
		},
		{
			"improving",
			[]HistoricRow{{HighPriorityCount: 5, WatchListCount: 5}, {HighPriorityCount: 2, WatchListCount: 4}},
			Trend{Direction: TrendImproving, HighPriorityChange: -3, WatchListChange: -1, TotalChange: -4},
		},
		{
			"stable with offsetting moves",
			[]HistoricRow{{HighPriorityCount: 1, WatchListCount: 3}, {HighPriorityCount: 3, WatchListCount: 1}},
			Trend{Direction: TrendStable, HighPriorityChange: 2, WatchListChange: -2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeTrend(tt.rows); got != tt.want {
				t.Errorf("ComputeTrend = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildHistoric_SortsBySemester(t *testing.T) {
	h := BuildHistoric([]*AnalysisSnapshot{
		{Semester: "2024-H1", Summary: Summary{HighPriority: 4}},
		nil,
		{Semester: "2023-H2", Summary: Summary{HighPriority: 1}},
	})
	if len(h.Semesters) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(h.Semesters))
	}
	if h.Semesters[0].Semester != "2023-H2" {
		t.Errorf("first row = %s, want 2023-H2", h.Semesters[0].Semester)
	}
	if h.Trend.Direction != TrendWorsening || h.Trend.HighPriorityChange != 3 {
		t.Errorf("trend = %+v", h.Trend)
	}
}

func TestAnalysisConfig_Validate(t *testing.T) {
	if err := DefaultAnalysisConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := DefaultAnalysisConfig()
	bad.MinInad = -1
	bad.ThresholdMethod = "mode"
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("static")
	if err != nil || m != ModeStatic {
		t.Errorf("ParseMode(static) = %v, %v", m, err)
	}
	if _, err := ParseMode("offline"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if ModeLive.String() != "live" {
		t.Errorf("ModeLive.String() = %q", ModeLive.String())
	}
}
