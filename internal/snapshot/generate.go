package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// Service is the part of the analysis service a snapshot is generated from.
type Service interface {
	Semesters(ctx context.Context) ([]models.Semester, error)
	AnalyzeSemester(ctx context.Context, semester string) (*models.AnalysisSnapshot, error)
	Systemic(ctx context.Context, semesters []string) (*models.SystemicCaseSet, error)
	Config(ctx context.Context) (*models.AnalysisConfig, error)
}

// GenerateResult lists what a Generate run wrote.
type GenerateResult struct {
	Index    *models.SnapshotIndex
	Analyzed []string
	Failed   []string
	Systemic bool
}

// Generate pulls every semester from svc and writes the full snapshot tree.
// A semester whose analysis fails is logged and skipped; only a missing
// catalog aborts the run.
func Generate(ctx context.Context, svc Service, w *Writer, now time.Time) (*GenerateResult, error) {
	sems, err := svc.Semesters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	log.Printf("snapshot: found %d semesters", len(sems))
	if err := w.WriteSemesters(sems); err != nil {
		return nil, err
	}

	cfg := models.DefaultAnalysisConfig()
	if c, err := svc.Config(ctx); err != nil {
		log.Printf("snapshot: config unavailable, using defaults: %v", err)
	} else {
		cfg = *c
	}

	res := &GenerateResult{}
	var analyses []*models.AnalysisSnapshot
	for _, s := range sems {
		a, err := svc.AnalyzeSemester(ctx, s.Value)
		if err == nil {
			if a.GeneratedAt == "" {
				a.GeneratedAt = models.Timestamp(now)
			}
			err = w.WriteAnalysis(a)
		}
		if err != nil {
			log.Printf("snapshot: analyze %s: %v", s.Value, err)
			res.Failed = append(res.Failed, s.Value)
			continue
		}
		analyses = append(analyses, a)
		res.Analyzed = append(res.Analyzed, s.Value)
	}

	if len(analyses) > 0 {
		h := models.BuildHistoric(analyses)
		h.GeneratedAt = models.Timestamp(now)
		if err := w.WriteHistoric(h); err != nil {
			return nil, err
		}
	}

	values := models.SemesterValues(sems)
	if len(values) >= 2 {
		set, err := svc.Systemic(ctx, values)
		if err != nil {
			log.Printf("snapshot: systemic cases: %v", err)
		} else {
			if set.GeneratedAt == "" {
				set.GeneratedAt = models.Timestamp(now)
			}
			if err := w.WriteSystemic(set); err != nil {
				return nil, err
			}
			res.Systemic = true
		}
	}

	idx := &models.SnapshotIndex{
		Semesters:   values,
		GeneratedAt: models.Timestamp(now),
		Config:      cfg,
	}
	if latest, ok := models.LatestSemester(sems); ok {
		idx.LatestSemester = &latest.Value
	}
	if err := w.WriteIndex(idx); err != nil {
		return nil, err
	}
	res.Index = idx
	return res, nil
}
