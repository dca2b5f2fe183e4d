package views

import (
	"testing"

	"github.com/casa-dashboard/inaddash/internal/models"
)

func ptrInt(v int) *int           { return &v }
func ptrFloat(v float64) *float64 { return &v }

func TestDerive_NilReturnsSample(t *testing.T) {
	v := Derive(nil)
	if !v.Sample {
		t.Fatal("expected sample sentinel for nil analysis")
	}
	if len(v.Routes) == 0 {
		t.Fatal("sample dataset has no routes")
	}
	if v.Summary.TotalInad == 0 {
		t.Error("sample summary is empty")
	}

	real := Derive(&models.AnalysisSnapshot{Semester: "2024-H1"})
	if real.Sample {
		t.Error("real analysis must not carry the sample sentinel")
	}
}

func TestDerive_SummaryNotRecomputed(t *testing.T) {
	a := &models.AnalysisSnapshot{
		Semester:  "2024-H1",
		Summary:   models.Summary{TotalInad: 999, HighPriority: 7, WatchList: 3, Clear: 1, Unreliable: 2},
		Threshold: 0.25,
		Routes: []models.RouteRecord{
			{Airline: "xq", LastStop: " ayt ", Inad: 4, Priority: "HIGH_PRIORITY"},
		},
	}
	v := Derive(a)
	if v.Summary.TotalInad != 999 {
		t.Errorf("TotalInad = %d, want 999 from the supplied summary", v.Summary.TotalInad)
	}
	if v.Threshold != 0.25 {
		t.Errorf("Threshold = %g", v.Threshold)
	}

	want := []struct {
		name  string
		value int
		color string
	}{
		{"High Priority", 7, "#EF4444"},
		{"Watch List", 3, "#F59E0B"},
		{"Clear", 1, "#10B981"},
		{"Unreliable", 2, "#94A3B8"},
	}
	if len(v.Histogram) != len(want) {
		t.Fatalf("len(Histogram) = %d, want 4", len(v.Histogram))
	}
	for i, w := range want {
		b := v.Histogram[i]
		if b.Name != w.name || b.Value != w.value || b.Color != w.color {
			t.Errorf("bucket %d = %+v, want %+v", i, b, w)
		}
	}
}

func TestNormalizeRoute(t *testing.T) {
	r := NormalizeRoute(models.RouteRecord{
		Airline:       " xq",
		LastStop:      "ayt",
		Inad:          6,
		Priority:      "SOMETHING_NEW",
		OriginCountry: "tr",
		OriginCity:    "Antalya",
	})
	if r.Airline != "XQ" || r.LastStop != "AYT" {
		t.Errorf("codes not normalized: %+v", r)
	}
	if r.Priority != models.PriorityUnreliable {
		t.Errorf("Priority = %s, want UNRELIABLE", r.Priority)
	}
	if r.Pax != nil || r.Density != nil || r.Confidence != nil {
		t.Error("absent optionals must stay nil")
	}
	if r.CountryName == "" || r.CountryName == "TR" {
		t.Errorf("CountryName = %q", r.CountryName)
	}

	zero := NormalizeRoute(models.RouteRecord{Airline: "A", LastStop: "B", Pax: ptrInt(0), Density: ptrFloat(0)})
	if zero.Pax == nil || *zero.Pax != 0 || zero.Density == nil {
		t.Error("present zero values must be kept")
	}
}

func TestCountryName_Fallback(t *testing.T) {
	if got := CountryName("QQ"); got != "QQ" {
		t.Errorf("CountryName(QQ) = %q, want QQ", got)
	}
	if got := CountryName(""); got != "" {
		t.Errorf("CountryName(\"\") = %q", got)
	}
}

func TestMemo_Identity(t *testing.T) {
	var m Memo
	a := &models.AnalysisSnapshot{Semester: "2024-H1", Routes: []models.RouteRecord{{Airline: "XQ", LastStop: "AYT"}}}

	v1 := m.Derive(a)
	v2 := m.Derive(a)
	if &v1.Routes[0] != &v2.Routes[0] {
		t.Error("same analysis should return the same route slice")
	}
	if m.Hits() != 1 {
		t.Errorf("Hits = %d, want 1", m.Hits())
	}

	b := &models.AnalysisSnapshot{Semester: "2024-H1", Routes: []models.RouteRecord{{Airline: "XQ", LastStop: "AYT"}}}
	v3 := m.Derive(b)
	if &v3.Routes[0] == &v1.Routes[0] {
		t.Error("different analysis pointer should recompute")
	}

	s1 := m.Derive(nil)
	s2 := m.Derive(nil)
	if !s1.Sample || &s1.Routes[0] != &s2.Routes[0] {
		t.Error("sample views should be stable")
	}
}

func sampleRoutes() []models.Route {
	return []models.Route{
		{Airline: "XQ", LastStop: "AYT", Inad: 10, Density: ptrFloat(0.5), Priority: models.PriorityHigh, OriginCountry: "TR"},
		{Airline: "TK", LastStop: "IST", Inad: 20, Density: ptrFloat(0.2), Priority: models.PriorityWatch, OriginCountry: "TR"},
		{Airline: "XQ", LastStop: "SAW", Inad: 5, Density: ptrFloat(0.9), Priority: models.PriorityClear, OriginCountry: "TR"},
		{Airline: "TK", LastStop: "ADB", Inad: 4, Priority: models.PriorityUnreliable, OriginCountry: "TR"},
		{Airline: "ET", LastStop: "ADD", Inad: 15, Density: ptrFloat(0.3), Priority: models.PriorityWatch, OriginCountry: "ET"},
		{Airline: "ZZ", LastStop: "PRN", Inad: 1, Priority: models.PriorityUnreliable},
	}
}

func TestAirlineStats(t *testing.T) {
	got := AirlineStats(sampleRoutes())
	want := []AirlineStat{
		{Airline: "TK", Inad: 24, Routes: 2, WorstPriority: models.PriorityWatch},
		{Airline: "XQ", Inad: 15, Routes: 2, WorstPriority: models.PriorityHigh},
		{Airline: "ET", Inad: 15, Routes: 1, WorstPriority: models.PriorityWatch},
		{Airline: "ZZ", Inad: 1, Routes: 1, WorstPriority: models.PriorityClear},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopRoutesByDensity(t *testing.T) {
	got := TopRoutesByDensity(sampleRoutes(), 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].LastStop != "AYT" || got[1].LastStop != "ADD" {
		t.Errorf("order = %s, %s; want AYT, ADD", got[0].LastStop, got[1].LastStop)
	}
}

func TestRoutesWithPriority(t *testing.T) {
	got := RoutesWithPriority(sampleRoutes(), models.PriorityWatch)
	if len(got) != 2 || got[0].LastStop != "IST" || got[1].LastStop != "ADD" {
		t.Errorf("watch list = %+v", got)
	}
}

func TestRegionStats(t *testing.T) {
	got := RegionStats(sampleRoutes())
	total := 0
	for _, r := range got {
		total += r.Inad
	}
	if total != 55 {
		t.Errorf("region totals = %d, want 55", total)
	}
	last := got[len(got)-1]
	if last.Region != "Unknown" || last.Inad != 1 {
		t.Errorf("last region = %+v, want Unknown/1", last)
	}
}

func TestSummarizeSystemic(t *testing.T) {
	s := SummarizeSystemic(&models.SystemicCaseSet{Cases: []models.SystemicCase{
		{Airline: "XQ", Trend: "WORSENING", Consecutive: true},
		{Airline: "TK", Trend: "STABLE", Consecutive: true},
		{Airline: "ET", Trend: "IMPROVING"},
	}})
	if s.Total != 3 || s.Worsening != 1 || s.Consecutive != 2 {
		t.Errorf("summary = %+v", s)
	}
	if empty := SummarizeSystemic(nil); empty.Cases == nil || empty.Total != 0 {
		t.Errorf("nil set = %+v", empty)
	}
}

func TestTrendChart(t *testing.T) {
	c := TrendChart(&models.HistoricSnapshot{Semesters: []models.HistoricRow{
		{Semester: "2023-H2", HighPriorityCount: 2, WatchListCount: 4, TotalInad: 80},
		{Semester: "2024-H1", HighPriorityCount: 3, WatchListCount: 1, TotalInad: 95},
	}})
	if len(c.Labels) != 2 || len(c.Series) != 3 {
		t.Fatalf("chart = %+v", c)
	}
	if c.Series[0].Data[1] != 3 || c.Series[2].Data[0] != 80 {
		t.Errorf("series = %+v", c.Series)
	}
	if empty := TrendChart(nil); len(empty.Labels) != 0 || len(empty.Series) != 3 {
		t.Errorf("empty chart = %+v", empty)
	}
}

func TestAnalysisParameters(t *testing.T) {
	p := AnalysisParameters(&models.AnalysisSnapshot{
		Semester:  "2024-H2",
		Threshold: 0.1368,
		Config:    models.DefaultAnalysisConfig(),
	})
	if p.Period != "2024 H2 (Jul-Dec)" || p.ThresholdMethod != "median" || p.MinPax != 5000 {
		t.Errorf("params = %+v", p)
	}
}
