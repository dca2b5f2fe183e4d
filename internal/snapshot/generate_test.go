package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casa-dashboard/inaddash/internal/models"
)

type fakeService struct {
	semesters    []models.Semester
	systemicArgs []string
}

func (f *fakeService) Semesters(context.Context) ([]models.Semester, error) {
	return f.semesters, nil
}

func (f *fakeService) AnalyzeSemester(_ context.Context, semester string) (*models.AnalysisSnapshot, error) {
	if semester == "2023-H2" {
		return nil, errors.New("Analysis failed")
	}
	return &models.AnalysisSnapshot{
		Semester: semester,
		Summary:  models.Summary{TotalInad: 10, HighPriority: 1, WatchList: 2},
	}, nil
}

func (f *fakeService) Systemic(_ context.Context, semesters []string) (*models.SystemicCaseSet, error) {
	f.systemicArgs = semesters
	return &models.SystemicCaseSet{Cases: []models.SystemicCase{{Airline: "XQ", LastStop: "AYT", Appearances: 2}}}, nil
}

func (f *fakeService) Config(context.Context) (*models.AnalysisConfig, error) {
	cfg := models.DefaultAnalysisConfig()
	cfg.MinInad = 9
	return &cfg, nil
}

func TestGenerate(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root)
	if err != nil {
		t.Fatal(err)
	}
	svc := &fakeService{semesters: []models.Semester{{Value: "2023-H2"}, {Value: "2024-H1"}, {Value: "2024-H2"}}}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	res, err := Generate(context.Background(), svc, w, now)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Analyzed) != 2 || len(res.Failed) != 1 || res.Failed[0] != "2023-H2" {
		t.Errorf("analyzed=%v failed=%v", res.Analyzed, res.Failed)
	}
	if !res.Systemic || len(svc.systemicArgs) != 3 {
		t.Errorf("systemic=%v args=%v", res.Systemic, svc.systemicArgs)
	}

	r := NewReader(NewDirSource(root))
	ctx := context.Background()

	idx, err := r.Index(ctx)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if idx.LatestSemester == nil || *idx.LatestSemester != "2024-H2" {
		t.Errorf("latest = %v", idx.LatestSemester)
	}
	if idx.Config.MinInad != 9 || len(idx.Semesters) != 3 {
		t.Errorf("index = %+v", idx)
	}

	a, err := r.Analysis(ctx, "2024-H1")
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if a.GeneratedAt != "2025-01-02T03:04:05.000000" {
		t.Errorf("generated_at = %q", a.GeneratedAt)
	}
	if _, err := r.Analysis(ctx, "2023-H2"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("failed semester err = %v, want ErrNotAvailable", err)
	}

	h, err := r.Historic(ctx)
	if err != nil {
		t.Fatalf("Historic: %v", err)
	}
	if len(h.Semesters) != 2 || h.Trend.Direction != models.TrendStable {
		t.Errorf("historic = %+v", h)
	}

	set, err := r.Systemic(ctx)
	if err != nil || len(set.Cases) != 1 {
		t.Errorf("systemic = %+v, %v", set, err)
	}
}

func TestGenerate_SingleSemesterSkipsSystemic(t *testing.T) {
	root := t.TempDir()
	w, _ := NewWriter(root)
	svc := &fakeService{semesters: []models.Semester{{Value: "2024-H1"}}}

	res, err := Generate(context.Background(), svc, w, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Systemic || svc.systemicArgs != nil {
		t.Error("systemic cases need at least two semesters")
	}
	if _, err := NewReader(NewDirSource(root)).Systemic(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("systemic err = %v", err)
	}
}
