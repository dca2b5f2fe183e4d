package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/casa-dashboard/inaddash/internal/config"
	"github.com/casa-dashboard/inaddash/internal/i18n"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/report"
	"github.com/casa-dashboard/inaddash/internal/table"
	"github.com/casa-dashboard/inaddash/internal/views"
)

type ExportCmd struct {
	Semester string `help:"Semester token (e.g. 2024-H2). Defaults to the latest."`
	Format   string `help:"Output format." enum:"csv,pdf" default:"csv"`
	Output   string `short:"o" help:"Output file. Defaults to routes-export-<date>.<format>." type:"path"`
	Search   string `short:"q" help:"Search airline, last stop or origin city."`
	Priority string `help:"Priority filter (all, HIGH_PRIORITY, WATCH_LIST, CLEAR, UNRELIABLE)." default:"all"`
	Sort     string `help:"Sort column." enum:"airline,lastStop,inad,pax,density,confidence" default:"inad"`
	Dir      string `help:"Sort direction." enum:"asc,desc" default:"desc"`
}

func (c *ExportCmd) Run(g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	st := table.DefaultState()
	st.Search = c.Search
	if st.Priority, err = table.ParsePriorityFilter(c.Priority); err != nil {
		return err
	}
	if st.Field, err = table.ParseSortField(c.Sort); err != nil {
		return err
	}
	if st.Direction, err = table.ParseDirection(c.Dir); err != nil {
		return err
	}

	a, err := c.load(ctx, s)
	if err != nil {
		return err
	}
	v := views.Derive(a)
	page := table.NewEngine(s.Locale).View(v.Routes, st)

	var buf bytes.Buffer
	switch c.Format {
	case "pdf":
		dict := i18n.MustLoad()
		meta := report.Meta{
			Title:     dict.T(s.Locale, "routesOverview"),
			Period:    views.AnalysisParameters(a).Period,
			Filter:    fmt.Sprintf("priority %s, sorted by %s %s", st.Priority, st.Field, st.Direction),
			Generated: time.Now(),
		}
		err = report.RouteTable(&buf, meta, page.Routes)
	default:
		err = table.WriteCSV(&buf, page.Routes)
	}
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = table.ExportFileName(time.Now(), c.Format)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.Printf("exported %d of %d routes for %s to %s", page.Count, page.Total, a.Semester, out)
	return nil
}

// load fetches the requested semester from the analysis service, or from
// the snapshot tree in static mode.
func (c *ExportCmd) load(ctx context.Context, s config.Settings) (*models.AnalysisSnapshot, error) {
	if config.ResolveMode(s) == models.ModeLive {
		gw := newGateway(s, nil)
		semester := c.Semester
		if semester == "" {
			sems, err := gw.Semesters(ctx)
			if err != nil {
				return nil, err
			}
			latest, ok := models.LatestSemester(sems)
			if !ok {
				return nil, fmt.Errorf("no semesters available")
			}
			semester = latest.Value
		}
		return gw.AnalyzeSemester(ctx, semester)
	}

	reader, closeFn, err := openSnapshots(ctx, s)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	semester := c.Semester
	if semester == "" {
		sems, err := reader.Semesters(ctx)
		if err != nil {
			return nil, err
		}
		latest, ok := models.LatestSemester(sems)
		if !ok {
			return nil, fmt.Errorf("no semesters available")
		}
		semester = latest.Value
	}
	return reader.Analysis(ctx, semester)
}
