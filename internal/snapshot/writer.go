package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// Writer lays out a snapshot tree under <root>/analysis.
type Writer struct {
	dir string
}

// NewWriter creates the analysis directory if needed.
func NewWriter(root string) (*Writer, error) {
	dir := filepath.Join(root, "analysis")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the analysis directory.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) WriteSemesters(semesters []models.Semester) error {
	if semesters == nil {
		semesters = []models.Semester{}
	}
	return w.writeJSON(SemestersFile, semesters)
}

func (w *Writer) WriteAnalysis(a *models.AnalysisSnapshot) error {
	if _, err := models.ParseSemester(a.Semester); err != nil {
		return err
	}
	return w.writeJSON(AnalysisFile(a.Semester), a)
}

func (w *Writer) WriteHistoric(h *models.HistoricSnapshot) error {
	return w.writeJSON(HistoricFile, h)
}

func (w *Writer) WriteSystemic(s *models.SystemicCaseSet) error {
	return w.writeJSON(SystemicFile, s)
}

func (w *Writer) WriteIndex(idx *models.SnapshotIndex) error {
	return w.writeJSON(IndexFile, idx)
}

// writeJSON writes through a temp file so readers never see a partial file.
func (w *Writer) writeJSON(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(w.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
