package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/casa-dashboard/inaddash/internal/metrics"
	"github.com/casa-dashboard/inaddash/internal/models"
)

// Fixed file names inside the analysis/ directory.
const (
	SemestersFile = "semesters.json"
	HistoricFile  = "historic.json"
	SystemicFile  = "systemic.json"
	IndexFile     = "index.json"
)

// AnalysisFile returns the per-semester file name.
func AnalysisFile(semester string) string {
	return "analysis_" + semester + ".json"
}

// Reader decodes the pre-generated snapshot files.
type Reader struct {
	src Source
}

func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// Source returns the underlying source.
func (r *Reader) Source() Source {
	return r.src
}

func (r *Reader) Semesters(ctx context.Context) ([]models.Semester, error) {
	var out []models.Semester
	if err := r.readJSON(ctx, SemestersFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) Analysis(ctx context.Context, semester string) (*models.AnalysisSnapshot, error) {
	if _, err := models.ParseSemester(semester); err != nil {
		return nil, err
	}
	var out models.AnalysisSnapshot
	if err := r.readJSON(ctx, AnalysisFile(semester), &out); err != nil {
		return nil, err
	}
	if out.Semester == "" {
		out.Semester = semester
	}
	return &out, nil
}

func (r *Reader) Historic(ctx context.Context) (*models.HistoricSnapshot, error) {
	var out models.HistoricSnapshot
	if err := r.readJSON(ctx, HistoricFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Reader) Systemic(ctx context.Context) (*models.SystemicCaseSet, error) {
	var out models.SystemicCaseSet
	if err := r.readJSON(ctx, SystemicFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Reader) Index(ctx context.Context) (*models.SnapshotIndex, error) {
	var out models.SnapshotIndex
	if err := r.readJSON(ctx, IndexFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Reader) readJSON(ctx context.Context, name string, out any) error {
	b, err := r.src.Read(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			metrics.StaticReadsTotal.WithLabelValues(name, "missing").Inc()
			log.Printf("snapshot: %s not available from %s", name, r.src)
		} else {
			metrics.StaticReadsTotal.WithLabelValues(name, "error").Inc()
		}
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		metrics.StaticReadsTotal.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("decode %s: %w", name, err)
	}
	metrics.StaticReadsTotal.WithLabelValues(name, "ok").Inc()
	return nil
}
