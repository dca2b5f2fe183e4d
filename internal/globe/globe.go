// Package globe turns routes into map arcs and origin points ending in
// Switzerland.
package globe

import (
	"math"
	"sort"
	"sync"

	"github.com/skypies/geo"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// Destination is where every arc ends.
var Destination = geo.NamedLatlong{Name: "Switzerland", Latlong: geo.Latlong{Lat: 46.8182, Long: 8.2275}}

// DestinationColor is used for the arc tail and the destination point.
const DestinationColor = "#0D9488"

// Filter selects which routes are drawn.
type Filter struct {
	Priorities map[models.Priority]bool `json:"priorities"`
	MinInad    int                      `json:"minInad"`
}

// DefaultFilter shows everything except UNRELIABLE routes.
func DefaultFilter() Filter {
	return Filter{
		Priorities: map[models.Priority]bool{
			models.PriorityHigh:  true,
			models.PriorityWatch: true,
			models.PriorityClear: true,
		},
		MinInad: 1,
	}
}

// Toggle adds or removes p and returns the new filter. f is left untouched.
func (f Filter) Toggle(p models.Priority) Filter {
	next := Filter{Priorities: make(map[models.Priority]bool, len(f.Priorities)+1), MinInad: f.MinInad}
	for k, v := range f.Priorities {
		if v {
			next.Priorities[k] = true
		}
	}
	if next.Priorities[p] {
		delete(next.Priorities, p)
	} else {
		next.Priorities[p] = true
	}
	return next
}

// Selected returns the enabled priorities in display order.
func (f Filter) Selected() []models.Priority {
	var out []models.Priority
	for _, p := range models.Priorities {
		if f.Priorities[p] {
			out = append(out, p)
		}
	}
	return out
}

func (f Filter) allows(r models.Route) bool {
	return f.Priorities[r.Priority] && r.Inad >= f.MinInad
}

// key is a comparable form of the filter for memoization.
func (f Filter) key() string {
	b := make([]byte, 0, 8)
	for _, p := range f.Selected() {
		b = append(b, byte('0'+p.Severity()))
	}
	return string(b)
}

type Arc struct {
	Airline    string          `json:"airline"`
	LastStop   string          `json:"lastStop"`
	OriginCity string          `json:"originCity,omitempty"`
	StartLat   float64         `json:"startLat"`
	StartLng   float64         `json:"startLng"`
	EndLat     float64         `json:"endLat"`
	EndLng     float64         `json:"endLng"`
	Colors     [2]string       `json:"color"`
	Stroke     float64         `json:"stroke"`
	DistanceKM float64         `json:"distanceKm"`
	Inad       int             `json:"inad"`
	Pax        *int            `json:"pax,omitempty"`
	Density    *float64        `json:"density,omitempty"`
	Priority   models.Priority `json:"priority"`
}

type Point struct {
	Lat           float64         `json:"lat"`
	Lng           float64         `json:"lng"`
	Name          string          `json:"name"`
	City          string          `json:"city,omitempty"`
	Size          float64         `json:"size"`
	Color         string          `json:"color"`
	Inad          int             `json:"inad,omitempty"`
	Priority      models.Priority `json:"priority,omitempty"`
	IsDestination bool            `json:"isDestination,omitempty"`
}

// Stats are the counters shown beside the map. Unplaced counts routes that
// passed the filter but carry no coordinates.
type Stats struct {
	Routes    int `json:"routes"`
	Origins   int `json:"origins"`
	TotalInad int `json:"totalInad"`
	Unplaced  int `json:"unplaced"`
}

type Projection struct {
	Arcs   []Arc   `json:"arcs"`
	Points []Point `json:"points"`
	Stats  Stats   `json:"stats"`
}

// Project filters routes and builds arcs, one point per origin code (first
// route seen wins) and the destination point.
func Project(routes []models.Route, f Filter) Projection {
	out := Projection{Arcs: []Arc{}, Points: []Point{}}
	seen := map[string]bool{}
	origins := map[string]bool{}

	for _, r := range routes {
		if !f.allows(r) {
			continue
		}
		out.Stats.Routes++
		out.Stats.TotalInad += r.Inad
		origins[r.LastStop] = true

		if !r.HasLocation() {
			out.Stats.Unplaced++
			continue
		}
		start := geo.Latlong{Lat: *r.OriginLat, Long: *r.OriginLng}
		out.Arcs = append(out.Arcs, Arc{
			Airline:    r.Airline,
			LastStop:   r.LastStop,
			OriginCity: r.OriginCity,
			StartLat:   start.Lat,
			StartLng:   start.Long,
			EndLat:     Destination.Lat,
			EndLng:     Destination.Long,
			Colors:     [2]string{r.Priority.Color(), DestinationColor},
			Stroke:     clamp(float64(r.Inad)/3, 1, 5),
			DistanceKM: math.Round(start.DistKM(Destination.Latlong)*10) / 10,
			Inad:       r.Inad,
			Pax:        r.Pax,
			Density:    r.Density,
			Priority:   r.Priority,
		})

		if seen[r.LastStop] {
			continue
		}
		seen[r.LastStop] = true
		out.Points = append(out.Points, Point{
			Lat:      start.Lat,
			Lng:      start.Long,
			Name:     r.LastStop,
			City:     r.OriginCity,
			Size:     clamp(float64(r.Inad)*0.3, 0.3, 1.5),
			Color:    r.Priority.Color(),
			Inad:     r.Inad,
			Priority: r.Priority,
		})
	}

	out.Points = append(out.Points, Point{
		Lat:           Destination.Lat,
		Lng:           Destination.Long,
		Name:          Destination.Name,
		City:          "Destination",
		Size:          1.5,
		Color:         DestinationColor,
		IsDestination: true,
	})
	out.Stats.Origins = len(origins)
	return out
}

// LongestArcs returns up to n arcs ordered by distance, longest first.
func LongestArcs(p Projection, n int) []Arc {
	arcs := append([]Arc(nil), p.Arcs...)
	sort.SliceStable(arcs, func(i, j int) bool { return arcs[i].DistanceKM > arcs[j].DistanceKM })
	if n >= 0 && len(arcs) > n {
		arcs = arcs[:n]
	}
	return arcs
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Projector memoizes the last projection.
type Projector struct {
	mu     sync.Mutex
	head   *models.Route
	length int
	fkey   string
	min    int
	valid  bool
	last   Projection
}

func (p *Projector) Project(routes []models.Route, f Filter) Projection {
	var head *models.Route
	if len(routes) > 0 {
		head = &routes[0]
	}
	fkey := f.key()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.head == head && p.length == len(routes) && p.fkey == fkey && p.min == f.MinInad {
		return p.last
	}
	p.last = Project(routes, f)
	p.head, p.length, p.fkey, p.min, p.valid = head, len(routes), fkey, f.MinInad, true
	return p.last
}
