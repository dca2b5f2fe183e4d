package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/casa-dashboard/inaddash/internal/briefing"
	"github.com/casa-dashboard/inaddash/internal/globe"
	"github.com/casa-dashboard/inaddash/internal/metrics"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/report"
	"github.com/casa-dashboard/inaddash/internal/state"
	"github.com/casa-dashboard/inaddash/internal/table"
	"github.com/casa-dashboard/inaddash/internal/views"
)

type ViewsResponse struct {
	views.Views
	Parameters views.Parameters      `json:"parameters"`
	Airlines   []views.AirlineStat   `json:"airlines"`
	Regions    []views.RegionStat    `json:"regions"`
	TopRoutes  []models.Route        `json:"topRoutes"`
	Systemic   views.SystemicSummary `json:"systemic"`
	Trend      views.ChartData       `json:"trend"`
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	st := s.dash.Snapshot()
	v, a := s.currentViews()
	writeJSON(w, http.StatusOK, ViewsResponse{
		Views:      v,
		Parameters: views.AnalysisParameters(a),
		Airlines:   views.AirlineStats(v.Routes),
		Regions:    views.RegionStats(v.Routes),
		TopRoutes:  views.TopRoutesByDensity(v.Routes, 10),
		Systemic:   views.SummarizeSystemic(st.Systemic),
		Trend:      views.TrendChart(st.Historic),
	})
}

// tableState reads ?q=, ?priority=, ?sort= and ?dir= over the default
// table state.
func tableState(r *http.Request) (table.State, error) {
	q := r.URL.Query()
	st := table.DefaultState()
	st.Search = strings.TrimSpace(q.Get("q"))

	p, err := table.ParsePriorityFilter(q.Get("priority"))
	if err != nil {
		return st, err
	}
	st.Priority = p
	if v := q.Get("sort"); v != "" {
		f, err := table.ParseSortField(v)
		if err != nil {
			return st, err
		}
		st.Field = f
	}
	if v := q.Get("dir"); v != "" {
		d, err := table.ParseDirection(v)
		if err != nil {
			return st, err
		}
		st.Direction = d
	}
	return st, nil
}

func (s *Server) routesPage(r *http.Request) (table.Page, *models.AnalysisSnapshot, error) {
	ts, err := tableState(r)
	if err != nil {
		return table.Page{}, nil, err
	}
	v, a := s.currentViews()
	return s.engine(s.requestLocale(r)).View(v.Routes, ts), a, nil
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	page, _, err := s.routesPage(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRoutesCSV(w http.ResponseWriter, r *http.Request) {
	page, _, err := s.routesPage(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, page.Routes); err != nil {
		writeError(w, err)
		return
	}
	metrics.ExportsTotal.WithLabelValues("csv").Inc()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.ExportFileName(s.now(), "csv")))
	w.Write(buf.Bytes())
}

func (s *Server) handleRoutesPDF(w http.ResponseWriter, r *http.Request) {
	page, a, err := s.routesPage(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	loc := s.requestLocale(r)
	meta := report.Meta{
		Title:     s.dict.T(loc, "routesOverview"),
		Period:    views.AnalysisParameters(a).Period,
		Filter:    describeState(page.State),
		Generated: s.now(),
	}
	var buf bytes.Buffer
	if err := report.RouteTable(&buf, meta, page.Routes); err != nil {
		writeError(w, err)
		return
	}
	metrics.ExportsTotal.WithLabelValues("pdf").Inc()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.ExportFileName(s.now(), "pdf")))
	w.Write(buf.Bytes())
}

func describeState(st table.State) string {
	parts := []string{"priority " + st.Priority}
	if st.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", st.Search))
	}
	parts = append(parts, fmt.Sprintf("sorted by %s %s", st.Field, st.Direction))
	return strings.Join(parts, ", ")
}

// globeFilter reads ?priority= (repeatable or comma separated) and
// ?minInad=. Without priorities the default selection applies.
func globeFilter(r *http.Request) (globe.Filter, error) {
	f := globe.DefaultFilter()
	q := r.URL.Query()
	var selected []models.Priority
	for _, v := range q["priority"] {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			p := models.Priority(strings.ToUpper(tok))
			if !p.Valid() {
				return f, fmt.Errorf("unknown priority %q", tok)
			}
			selected = append(selected, p)
		}
	}
	if len(selected) > 0 {
		f.Priorities = make(map[models.Priority]bool, len(selected))
		for _, p := range selected {
			f.Priorities[p] = true
		}
	}
	if v := q.Get("minInad"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("minInad must be a non-negative integer, got %q", v)
		}
		f.MinInad = n
	}
	return f, nil
}

type GlobeResponse struct {
	globe.Projection
	Selected []models.Priority `json:"selected"`
	MinInad  int               `json:"minInad"`
	Longest  []globe.Arc       `json:"longest"`
}

func (s *Server) handleGlobe(w http.ResponseWriter, r *http.Request) {
	f, err := globeFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	v, _ := s.currentViews()
	p := s.projector.Project(v.Routes, f)
	writeJSON(w, http.StatusOK, GlobeResponse{
		Projection: p,
		Selected:   f.Selected(),
		MinInad:    f.MinInad,
		Longest:    globe.LongestArcs(p, 5),
	})
}

type BriefingResponse struct {
	Semester string `json:"semester"`
	Locale   string `json:"locale"`
	Text     string `json:"text"`
}

// Briefings are never generated for the bundled sample.
var errNoAnalysis = &state.InputError{Msg: "No analysis loaded"}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if s.briefer == nil {
		writeError(w, briefing.ErrDisabled)
		return
	}
	a := s.dash.Snapshot().Analysis
	if a == nil {
		writeError(w, errNoAnalysis)
		return
	}
	loc := s.requestLocale(r)
	text, err := s.briefer.Summarize(r.Context(), a, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BriefingResponse{Semester: a.Semester, Locale: loc, Text: text})
}

type I18nResponse struct {
	Locale  string            `json:"locale"`
	Locales []string          `json:"locales"`
	Labels  map[string]string `json:"labels"`
}

func (s *Server) handleI18n(w http.ResponseWriter, r *http.Request) {
	loc := s.requestLocale(r)
	writeJSON(w, http.StatusOK, I18nResponse{
		Locale:  loc,
		Locales: s.dict.Locales(),
		Labels:  s.dict.Labels(loc),
	})
}
