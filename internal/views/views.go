package views

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/biter777/countries"

	"github.com/casa-dashboard/inaddash/internal/models"
)

//go:embed sample.json
var sampleJSON []byte

// Bucket is one bar of the priority histogram.
type Bucket struct {
	Name     string          `json:"name"`
	Priority models.Priority `json:"priority"`
	Value    int             `json:"value"`
	Color    string          `json:"color"`
}

// Views is the presentation-ready form of one analysis.
type Views struct {
	Routes    []models.Route `json:"routes"`
	Summary   models.Summary `json:"summary"`
	Histogram []Bucket       `json:"priorityHistogram"`
	Semester  string         `json:"semester,omitempty"`
	Threshold float64        `json:"threshold"`
	Method    string         `json:"method,omitempty"`
	// Sample is set when no analysis was loaded and the bundled example
	// dataset is returned instead.
	Sample bool `json:"sample"`
}

var (
	sampleOnce  sync.Once
	sampleSnap  *models.AnalysisSnapshot
	sampleViews Views
)

// SampleSnapshot returns the bundled example analysis.
func SampleSnapshot() *models.AnalysisSnapshot {
	sampleOnce.Do(func() {
		var a models.AnalysisSnapshot
		if err := json.Unmarshal(sampleJSON, &a); err != nil {
			panic("views: bundled sample.json is invalid: " + err.Error())
		}
		sampleSnap = &a
		sampleViews = derive(&a)
		sampleViews.Sample = true
	})
	return sampleSnap
}

// Derive reshapes an analysis for display. A nil analysis yields the bundled
// example dataset with Sample set. The summary is taken from the analysis as
// supplied and never recomputed from the routes.
func Derive(a *models.AnalysisSnapshot) Views {
	if a == nil {
		SampleSnapshot()
		return sampleViews
	}
	return derive(a)
}

func derive(a *models.AnalysisSnapshot) Views {
	routes := make([]models.Route, 0, len(a.Routes))
	for _, rec := range a.Routes {
		routes = append(routes, NormalizeRoute(rec))
	}
	threshold := a.Threshold
	if threshold == 0 {
		threshold = a.Summary.Threshold
	}
	method := a.Summary.Method
	if method == "" {
		method = string(a.Config.ThresholdMethod)
	}
	return Views{
		Routes:    routes,
		Summary:   a.Summary,
		Histogram: Histogram(a.Summary),
		Semester:  a.Semester,
		Threshold: threshold,
		Method:    method,
	}
}

// NormalizeRoute maps a wire record to the canonical route. Absent optional
// numerics stay nil.
func NormalizeRoute(rec models.RouteRecord) models.Route {
	r := models.Route{
		Airline:       strings.ToUpper(strings.TrimSpace(rec.Airline)),
		LastStop:      strings.ToUpper(strings.TrimSpace(rec.LastStop)),
		OriginCity:    strings.TrimSpace(rec.OriginCity),
		OriginCountry: strings.ToUpper(strings.TrimSpace(rec.OriginCountry)),
		OriginLat:     rec.OriginLat,
		OriginLng:     rec.OriginLng,
		Inad:          rec.Inad,
		Pax:           rec.Pax,
		Density:       rec.Density,
		Confidence:    rec.Confidence,
		Priority:      models.ParsePriority(rec.Priority),
	}
	r.CountryName = CountryName(r.OriginCountry)
	return r
}

// CountryName resolves an ISO code to an English name, falling back to the code.
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	name := countries.ByName(code).String()
	if name == "" || name == "Unknown" {
		return code
	}
	return name
}

// Histogram builds the fixed four-bucket priority distribution.
func Histogram(s models.Summary) []Bucket {
	out := make([]Bucket, 0, len(models.Priorities))
	for _, p := range models.Priorities {
		out = append(out, Bucket{
			Name:     p.Label(),
			Priority: p,
			Value:    s.Count(p),
			Color:    p.Color(),
		})
	}
	return out
}

// Memo caches the views of the most recent analysis. The same analysis
// pointer always yields the same Views value.
type Memo struct {
	mu    sync.Mutex
	key   *models.AnalysisSnapshot
	valid bool
	val   Views
	hits  int
}

// Derive returns cached views when a is the same pointer as last time.
func (m *Memo) Derive(a *models.AnalysisSnapshot) Views {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.key == a {
		m.hits++
		return m.val
	}
	m.key = a
	m.val = Derive(a)
	m.valid = true
	return m.val
}

// Hits reports how many calls were served from the cache.
func (m *Memo) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}
