package views

import (
	"sort"

	"github.com/biter777/countries"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// AirlineStat aggregates all routes of one carrier.
type AirlineStat struct {
	Airline       string          `json:"airline"`
	Inad          int             `json:"inad"`
	Routes        int             `json:"routes"`
	WorstPriority models.Priority `json:"worstPriority"`
}

// AirlineStats groups routes by airline, ordered by INAD total descending.
// The worst priority starts at CLEAR and only HIGH_PRIORITY or WATCH_LIST
// routes move it.
func AirlineStats(routes []models.Route) []AirlineStat {
	index := map[string]int{}
	var out []AirlineStat
	for _, r := range routes {
		i, ok := index[r.Airline]
		if !ok {
			i = len(out)
			index[r.Airline] = i
			out = append(out, AirlineStat{Airline: r.Airline, WorstPriority: models.PriorityClear})
		}
		st := &out[i]
		st.Inad += r.Inad
		st.Routes++
		switch r.Priority {
		case models.PriorityHigh:
			st.WorstPriority = models.PriorityHigh
		case models.PriorityWatch:
			if st.WorstPriority != models.PriorityHigh {
				st.WorstPriority = models.PriorityWatch
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Inad > out[j].Inad })
	return out
}

// TopRoutesByDensity returns up to n flagged routes with the highest density.
// CLEAR routes and routes without a density are skipped.
func TopRoutesByDensity(routes []models.Route, n int) []models.Route {
	var out []models.Route
	for _, r := range routes {
		if r.Priority == models.PriorityClear || r.Density == nil {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Density > *out[j].Density })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RoutesWithPriority keeps input order.
func RoutesWithPriority(routes []models.Route, p models.Priority) []models.Route {
	var out []models.Route
	for _, r := range routes {
		if r.Priority == p {
			out = append(out, r)
		}
	}
	return out
}

// RegionStat is the INAD total for one world region.
type RegionStat struct {
	Region string `json:"region"`
	Inad   int    `json:"inad"`
}

// RegionStats totals INAD by the origin country's region, descending.
func RegionStats(routes []models.Route) []RegionStat {
	index := map[string]int{}
	var out []RegionStat
	for _, r := range routes {
		region := Region(r.OriginCountry)
		i, ok := index[region]
		if !ok {
			i = len(out)
			index[region] = i
			out = append(out, RegionStat{Region: region})
		}
		out[i].Inad += r.Inad
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Inad > out[j].Inad })
	return out
}

// Region names the world region of an ISO country code.
func Region(code string) string {
	if code == "" {
		return "Unknown"
	}
	c := countries.ByName(code)
	if c == countries.Unknown {
		return "Unknown"
	}
	name := c.Region().String()
	if name == "" {
		return "Unknown"
	}
	return name
}

// SystemicSummary holds the systemic tab counters.
type SystemicSummary struct {
	Cases       []models.SystemicCase `json:"cases"`
	Total       int                   `json:"total"`
	Worsening   int                   `json:"worsening"`
	Consecutive int                   `json:"consecutive"`
}

// SummarizeSystemic counts cases from the list. The counters a live response
// carries are ignored so static and live snapshots agree.
func SummarizeSystemic(set *models.SystemicCaseSet) SystemicSummary {
	if set == nil {
		return SystemicSummary{Cases: []models.SystemicCase{}}
	}
	out := SystemicSummary{Cases: set.Cases, Total: len(set.Cases)}
	if out.Cases == nil {
		out.Cases = []models.SystemicCase{}
	}
	for _, c := range set.Cases {
		if c.Trend == "WORSENING" {
			out.Worsening++
		}
		if c.Consecutive {
			out.Consecutive++
		}
	}
	return out
}

// ChartData is a labelled set of series, one value per label.
type ChartData struct {
	Labels []string      `json:"labels"`
	Series []ChartSeries `json:"series"`
}

type ChartSeries struct {
	Name  string    `json:"name"`
	Data  []float64 `json:"data"`
	Color string    `json:"color"`
}

// TrendChart turns historic rows into high priority, watch list and total
// INAD series.
func TrendChart(h *models.HistoricSnapshot) ChartData {
	out := ChartData{Labels: []string{}}
	hp := ChartSeries{Name: models.PriorityHigh.Label(), Color: models.PriorityHigh.Color(), Data: []float64{}}
	wl := ChartSeries{Name: models.PriorityWatch.Label(), Color: models.PriorityWatch.Color(), Data: []float64{}}
	total := ChartSeries{Name: "Total INAD", Color: AccentColor, Data: []float64{}}
	if h != nil {
		for _, row := range h.Semesters {
			out.Labels = append(out.Labels, row.Semester)
			hp.Data = append(hp.Data, float64(row.HighPriorityCount))
			wl.Data = append(wl.Data, float64(row.WatchListCount))
			total.Data = append(total.Data, float64(row.TotalInad))
		}
	}
	out.Series = []ChartSeries{hp, wl, total}
	return out
}

// AccentColor is the dashboard's primary accent.
const AccentColor = "#0D9488"

// Parameters is the block of analysis settings shown alongside legal lists.
type Parameters struct {
	Period          string  `json:"period"`
	ThresholdMethod string  `json:"thresholdMethod"`
	Threshold       float64 `json:"threshold"`
	MinInad         int     `json:"minInad"`
	MinPax          int     `json:"minPax"`
}

// AnalysisParameters describes the settings an analysis ran with.
func AnalysisParameters(a *models.AnalysisSnapshot) Parameters {
	if a == nil {
		a = SampleSnapshot()
	}
	p := Parameters{
		Period:          a.Semester,
		ThresholdMethod: string(a.Config.ThresholdMethod),
		Threshold:       a.Threshold,
		MinInad:         a.Config.MinInad,
		MinPax:          a.Config.MinPax,
	}
	if sp, err := models.ParseSemester(a.Semester); err == nil {
		p.Period = sp.Label()
	}
	if p.ThresholdMethod == "" {
		p.ThresholdMethod = a.Summary.Method
	}
	return p
}
