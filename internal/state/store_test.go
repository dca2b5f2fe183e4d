package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casa-dashboard/inaddash/internal/gateway"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/snapshot"
)

type fakeGateway struct {
	mu sync.Mutex

	status    models.Status
	semesters []models.Semester
	config    models.AnalysisConfig
	echo      func(models.AnalysisConfig) models.AnalysisConfig
	loadErr   error
	configErr error

	gates map[string]chan struct{}

	analyzeCalls  []string
	historicCalls [][]string
	systemicCalls [][]string
	updateCalls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		status:    models.Status{InadLoaded: true, BazlLoaded: true, Ready: true},
		semesters: []models.Semester{{Value: "2023-H2"}, {Value: "2024-H1"}},
		config:    models.DefaultAnalysisConfig(),
		gates:     map[string]chan struct{}{},
	}
}

func (g *fakeGateway) Status(context.Context) (*models.Status, error) {
	st := g.status
	return &st, nil
}

func (g *fakeGateway) UploadFiles(ctx context.Context, inad, bazl gateway.File) (*models.LoadResult, error) {
	return g.LoadServerFiles(ctx, inad.Name, bazl.Name)
}

func (g *fakeGateway) LoadServerFiles(context.Context, string, string) (*models.LoadResult, error) {
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	return &models.LoadResult{Success: true, Semesters: g.semesters}, nil
}

func (g *fakeGateway) Semesters(context.Context) ([]models.Semester, error) {
	return g.semesters, nil
}

func (g *fakeGateway) AnalyzeSemester(ctx context.Context, semester string) (*models.AnalysisSnapshot, error) {
	g.mu.Lock()
	g.analyzeCalls = append(g.analyzeCalls, semester)
	gate := g.gates[semester]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if strings.HasPrefix(semester, "1999") {
		return nil, &gateway.ServerError{Op: gateway.OpAnalyze, Status: 400, Detail: "Semester " + semester + " not found"}
	}
	return &models.AnalysisSnapshot{Semester: semester, Summary: models.Summary{TotalInad: 10}}, nil
}

func (g *fakeGateway) Historic(_ context.Context, semesters []string) (*models.HistoricSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.historicCalls = append(g.historicCalls, semesters)
	return &models.HistoricSnapshot{Trend: models.Trend{Direction: models.TrendStable}}, nil
}

func (g *fakeGateway) Systemic(_ context.Context, semesters []string) (*models.SystemicCaseSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.systemicCalls = append(g.systemicCalls, semesters)
	return &models.SystemicCaseSet{TotalSystemic: 1}, nil
}

func (g *fakeGateway) Config(context.Context) (*models.AnalysisConfig, error) {
	if g.configErr != nil {
		return nil, g.configErr
	}
	c := g.config
	return &c, nil
}

func (g *fakeGateway) UpdateConfig(_ context.Context, cfg models.AnalysisConfig) (*models.AnalysisConfig, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	if g.echo != nil {
		cfg = g.echo(cfg)
	}
	g.config = cfg
	return &cfg, nil
}

func (g *fakeGateway) analyzeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.analyzeCalls)
}

type fakeStatic struct {
	mu        sync.Mutex
	semesters []models.Semester
	analyses  map[string]*models.AnalysisSnapshot
	historic  *models.HistoricSnapshot
	systemic  *models.SystemicCaseSet
	reads     map[string]int
}

func newFakeStatic() *fakeStatic {
	return &fakeStatic{
		semesters: []models.Semester{{Value: "2023-H2"}, {Value: "2024-H1"}},
		analyses: map[string]*models.AnalysisSnapshot{
			"2023-H2": {Semester: "2023-H2", Summary: models.Summary{TotalInad: 5}},
			"2024-H1": {Semester: "2024-H1", Summary: models.Summary{TotalInad: 7}},
		},
		historic: &models.HistoricSnapshot{Semesters: []models.HistoricRow{{Semester: "2023-H2"}, {Semester: "2024-H1"}}},
		systemic: &models.SystemicCaseSet{Cases: []models.SystemicCase{{Airline: "XQ", LastStop: "AYT"}}},
		reads:    map[string]int{},
	}
}

func (f *fakeStatic) count(name string) {
	f.mu.Lock()
	f.reads[name]++
	f.mu.Unlock()
}

func (f *fakeStatic) readCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[name]
}

func (f *fakeStatic) Semesters(context.Context) ([]models.Semester, error) {
	f.count(snapshot.SemestersFile)
	if f.semesters == nil {
		return nil, snapshot.ErrNotAvailable
	}
	return f.semesters, nil
}

func (f *fakeStatic) Analysis(_ context.Context, semester string) (*models.AnalysisSnapshot, error) {
	f.count(snapshot.AnalysisFile(semester))
	a, ok := f.analyses[semester]
	if !ok {
		return nil, snapshot.ErrNotAvailable
	}
	return a, nil
}

func (f *fakeStatic) Historic(context.Context) (*models.HistoricSnapshot, error) {
	f.count(snapshot.HistoricFile)
	if f.historic == nil {
		return nil, snapshot.ErrNotAvailable
	}
	return f.historic, nil
}

func (f *fakeStatic) Systemic(context.Context) (*models.SystemicCaseSet, error) {
	f.count(snapshot.SystemicFile)
	if f.systemic == nil {
		return nil, snapshot.ErrNotAvailable
	}
	return f.systemic, nil
}

func newStaticStore(t *testing.T) (*Store, *fakeStatic, *fakeGateway) {
	t.Helper()
	fs := newFakeStatic()
	gw := newFakeGateway()
	return New(Options{Mode: models.ModeStatic, Static: fs, Gateway: gw}), fs, gw
}

func newLiveStore(t *testing.T) (*Store, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	return New(Options{Mode: models.ModeLive, Gateway: gw}), gw
}

func TestChangeSemester_StaticReadsFileOnly(t *testing.T) {
	s, fs, gw := newStaticStore(t)

	a, err := s.ChangeSemester(context.Background(), "2024-H1")
	require.NoError(t, err)
	assert.Equal(t, "2024-H1", a.Semester)
	assert.Equal(t, 1, fs.readCount("analysis_2024-H1.json"))
	assert.Equal(t, 0, gw.analyzeCount(), "static mode must not call the gateway")

	st := s.Snapshot()
	assert.Equal(t, "2024-H1", st.CurrentSemester)
	assert.Same(t, a, st.Analysis)
	assert.False(t, st.Loading)
}

func TestChangeSemester_LiveUsesGateway(t *testing.T) {
	gw := newFakeGateway()
	fs := newFakeStatic()
	s := New(Options{Mode: models.ModeLive, Gateway: gw, Static: fs})

	_, err := s.ChangeSemester(context.Background(), "2024-H1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-H1"}, gw.analyzeCalls)
	assert.Equal(t, 0, fs.readCount("analysis_2024-H1.json"))
}

func TestChangeSemester_StaticMissingFileSetsError(t *testing.T) {
	s, _, _ := newStaticStore(t)

	_, err := s.ChangeSemester(context.Background(), "2022-H1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrNotAvailable))
	assert.Equal(t, "analysis_2022-H1.json has not been generated", s.Snapshot().Error)
	assert.Equal(t, "2022-H1", s.Snapshot().CurrentSemester)
}

func TestRunAnalysis_NoSemester(t *testing.T) {
	s, gw := newLiveStore(t)

	_, err := s.RunAnalysis(context.Background(), "")
	require.ErrorIs(t, err, ErrNoSemester)
	assert.Equal(t, "No semester selected", s.Snapshot().Error)
	assert.Equal(t, 0, gw.analyzeCount())
}

func TestRunAnalysis_UsesCurrentSemester(t *testing.T) {
	s, gw := newLiveStore(t)
	s.SetCurrentSemester("2023-H2")

	_, err := s.RunAnalysis(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-H2"}, gw.analyzeCalls)
}

func TestRunAnalysis_ServerErrorDetail(t *testing.T) {
	s, _ := newLiveStore(t)

	_, err := s.RunAnalysis(context.Background(), "1999-H1")
	require.Error(t, err)
	var se *gateway.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Semester 1999-H1 not found", s.Snapshot().Error)
}

func TestErrorLastWinsAndClears(t *testing.T) {
	s, _ := newLiveStore(t)
	ctx := context.Background()

	_, _ = s.RunAnalysis(ctx, "")
	_, _ = s.RunAnalysis(ctx, "1999-H2")
	assert.Equal(t, "Semester 1999-H2 not found", s.Snapshot().Error)

	s.ClearError()
	assert.Empty(t, s.Snapshot().Error)

	_, _ = s.RunAnalysis(ctx, "1999-H2")
	_, err := s.RunAnalysis(ctx, "2024-H1")
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().Error, "a new attempt clears the previous error")
}

func TestUpdateConfig_RoundTrip(t *testing.T) {
	s, gw := newLiveStore(t)
	gw.echo = func(c models.AnalysisConfig) models.AnalysisConfig {
		hp := 10
		c.HighPriorityMinInad = &hp
		return c
	}
	s.SetCurrentSemester("2024-H1")

	cfg := models.DefaultAnalysisConfig()
	cfg.MinInad = 10
	got, err := s.UpdateConfig(context.Background(), cfg)
	require.NoError(t, err)

	held := s.Snapshot().Config
	assert.Equal(t, *got, held)
	assert.Equal(t, 10, held.MinInad)
	require.NotNil(t, held.HighPriorityMinInad)
	assert.Equal(t, 10, *held.HighPriorityMinInad)
	assert.Equal(t, []string{"2024-H1"}, gw.analyzeCalls, "exactly one re-fetch")
}

func TestUpdateConfig_NoSemesterNoRefetch(t *testing.T) {
	s, gw := newLiveStore(t)

	_, err := s.UpdateConfig(context.Background(), models.DefaultAnalysisConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, gw.updateCalls)
	assert.Equal(t, 0, gw.analyzeCount())
}

func TestUpdateConfig_InvalidRejectedBeforeIO(t *testing.T) {
	s, gw := newLiveStore(t)

	cfg := models.DefaultAnalysisConfig()
	cfg.ThresholdMethod = "mode"
	_, err := s.UpdateConfig(context.Background(), cfg)
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, gw.updateCalls)
	assert.NotEmpty(t, s.Snapshot().Error)
}

func TestModeRestrictedOperations(t *testing.T) {
	s, _, gw := newStaticStore(t)
	ctx := context.Background()

	_, err := s.UpdateConfig(ctx, models.DefaultAnalysisConfig())
	assert.ErrorIs(t, err, ErrStaticMode)
	_, err = s.LoadServerFiles(ctx, "a.xlsx", "b.xlsx")
	assert.ErrorIs(t, err, ErrStaticMode)
	_, err = s.UploadFiles(ctx, gateway.File{Name: "a"}, gateway.File{Name: "b"})
	assert.ErrorIs(t, err, ErrStaticMode)
	assert.Equal(t, 0, gw.updateCalls)
}

func TestFetchHistoric_StaticReadsOnce(t *testing.T) {
	s, fs, gw := newStaticStore(t)
	ctx := context.Background()
	require.NoError(t, s.Bootstrap(ctx))
	s.Wait()
	before := fs.readCount(snapshot.HistoricFile)

	h1, err := s.FetchHistoricData(ctx)
	require.NoError(t, err)
	h2, err := s.FetchHistoricData(ctx, "2024-H1")
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, fs.readCount(snapshot.HistoricFile))
	assert.Equal(t, 1, before)
	assert.Empty(t, gw.historicCalls)
}

func TestFetchHistoric_StaticFirstCallReadsOnce(t *testing.T) {
	s, fs, _ := newStaticStore(t)
	ctx := context.Background()
	s.mu.Lock()
	s.st.Semesters = fs.semesters
	s.mu.Unlock()

	for i := 0; i < 2; i++ {
		h, err := s.FetchHistoricData(ctx)
		require.NoError(t, err)
		require.NotNil(t, h)
	}
	assert.Equal(t, 1, fs.readCount(snapshot.HistoricFile))
}

func TestFetchHistoric_LiveCallsEveryTime(t *testing.T) {
	s, gw := newLiveStore(t)
	ctx := context.Background()
	_, err := s.LoadServerFiles(ctx, "a", "b")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := s.FetchHistoricData(ctx)
		require.NoError(t, err)
	}
	require.Len(t, gw.historicCalls, 2)
	assert.Equal(t, []string{"2023-H2", "2024-H1"}, gw.historicCalls[0])

	_, err = s.FetchSystemicCases(ctx, "2024-H1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2024-H1"}}, gw.systemicCalls)
}

func TestFetchHistoric_EmptyCatalogIsNoop(t *testing.T) {
	s, gw := newLiveStore(t)

	h, err := s.FetchHistoricData(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, h)
	c, err := s.FetchSystemicCases(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, gw.historicCalls)
	assert.Empty(t, gw.systemicCalls)
}

func TestFetchSystemic_StaticSoftMiss(t *testing.T) {
	s, fs, _ := newStaticStore(t)
	fs.systemic = nil
	s.mu.Lock()
	s.st.Semesters = fs.semesters
	s.mu.Unlock()

	c, err := s.FetchSystemicCases(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, s.Snapshot().Error)
	assert.False(t, s.Snapshot().Loading)
}

func TestBootstrap_Static(t *testing.T) {
	s, fs, gw := newStaticStore(t)

	require.NoError(t, s.Bootstrap(context.Background()))
	s.Wait()

	st := s.Snapshot()
	assert.True(t, st.DataReady)
	assert.Equal(t, "2024-H1", st.CurrentSemester)
	require.NotNil(t, st.Analysis)
	assert.Equal(t, "2024-H1", st.Analysis.Semester)
	assert.NotNil(t, st.Historic)
	assert.NotNil(t, st.Systemic)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, 1, fs.readCount(snapshot.SystemicFile))
	assert.Equal(t, 0, gw.analyzeCount())
}

func TestBootstrap_StaticFailureIsSilent(t *testing.T) {
	s, fs, _ := newStaticStore(t)
	fs.semesters = nil

	err := s.Bootstrap(context.Background())
	assert.Error(t, err)
	s.Wait()

	st := s.Snapshot()
	assert.False(t, st.DataReady)
	assert.Empty(t, st.Semesters)
	assert.Empty(t, st.CurrentSemester)
	assert.Nil(t, st.Analysis)
	assert.Empty(t, st.Error, "bootstrap failure is not a user-facing error")
}

func TestBootstrap_StaticMissingAnalysisIsSilent(t *testing.T) {
	s, fs, _ := newStaticStore(t)
	delete(fs.analyses, "2024-H1")
	fs.historic = nil

	require.NoError(t, s.Bootstrap(context.Background()))
	s.Wait()

	st := s.Snapshot()
	assert.True(t, st.DataReady)
	assert.Nil(t, st.Analysis)
	assert.Nil(t, st.Historic)
	assert.Empty(t, st.Error)
}

func TestBootstrap_Live(t *testing.T) {
	s, gw := newLiveStore(t)
	gw.config.MinInad = 8

	require.NoError(t, s.Bootstrap(context.Background()))

	st := s.Snapshot()
	assert.Equal(t, 8, st.Config.MinInad)
	assert.True(t, st.DataReady)
	assert.Equal(t, "2024-H1", st.CurrentSemester)
	assert.Nil(t, st.Analysis)
	assert.Equal(t, 0, gw.analyzeCount())
}

func TestBootstrap_LiveNotReady(t *testing.T) {
	s, gw := newLiveStore(t)
	gw.status.Ready = false
	gw.configErr = errors.New("connection refused")

	err := s.Bootstrap(context.Background())
	assert.Error(t, err)
	st := s.Snapshot()
	assert.False(t, st.DataReady)
	assert.Equal(t, models.DefaultAnalysisConfig(), st.Config)
	assert.Empty(t, st.Error)
}

func TestLoadServerFiles_ReplacesCatalog(t *testing.T) {
	s, gw := newLiveStore(t)
	ctx := context.Background()
	_, err := s.LoadServerFiles(ctx, "a", "b")
	require.NoError(t, err)
	_, err = s.FetchHistoricData(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Snapshot().Historic)

	gw.semesters = []models.Semester{{Value: "2024-H1"}, {Value: "2024-H2"}}
	res, err := s.UploadFiles(ctx, gateway.File{Name: "inad.xlsx"}, gateway.File{Name: "bazl.xlsx"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	st := s.Snapshot()
	assert.True(t, st.DataReady)
	assert.Equal(t, "2024-H2", st.CurrentSemester)
	assert.Len(t, st.Semesters, 2)
	assert.Nil(t, st.Historic, "new data invalidates cached aggregates")
	assert.Equal(t, 0, gw.analyzeCount(), "upload alone does not fetch an analysis")
}

func TestLoadServerFiles_AutoAnalyze(t *testing.T) {
	gw := newFakeGateway()
	s := New(Options{Mode: models.ModeLive, Gateway: gw, AutoAnalyzeOnUpload: true})

	_, err := s.LoadServerFiles(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-H1"}, gw.analyzeCalls)
	assert.NotNil(t, s.Snapshot().Analysis)
}

func TestLoadServerFiles_Failure(t *testing.T) {
	s, gw := newLiveStore(t)
	gw.loadErr = &gateway.ServerError{Op: gateway.OpLoadServerFiles, Status: 500}

	_, err := s.LoadServerFiles(context.Background(), "a", "b")
	require.Error(t, err)
	st := s.Snapshot()
	assert.Equal(t, "Failed to load server files", st.Error)
	assert.False(t, st.DataReady)
}

func TestStaleAnalysisDiscarded(t *testing.T) {
	s, gw := newLiveStore(t)
	gate := make(chan struct{})
	gw.gates["2023-H2"] = gate

	slowDone := make(chan error, 1)
	go func() {
		_, err := s.ChangeSemester(context.Background(), "2023-H2")
		slowDone <- err
	}()

	require.Eventually(t, func() bool { return gw.analyzeCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, s.Snapshot().Loading)

	fast, err := s.ChangeSemester(context.Background(), "2024-H1")
	require.NoError(t, err)
	close(gate)

	require.ErrorIs(t, <-slowDone, ErrSuperseded)
	st := s.Snapshot()
	assert.Same(t, fast, st.Analysis)
	assert.Equal(t, "2024-H1", st.CurrentSemester)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
}

func TestStoresAreIndependent(t *testing.T) {
	a, _ := newLiveStore(t)
	b, _ := newLiveStore(t)

	a.SetCurrentSemester("2024-H1")
	_, _ = b.RunAnalysis(context.Background(), "")

	assert.Equal(t, "2024-H1", a.Snapshot().CurrentSemester)
	assert.Empty(t, a.Snapshot().Error)
	assert.Empty(t, b.Snapshot().CurrentSemester)
	assert.NotEmpty(t, b.Snapshot().Error)
}

func TestSnapshotIsCopy(t *testing.T) {
	s, _ := newLiveStore(t)
	_, err := s.LoadServerFiles(context.Background(), "a", "b")
	require.NoError(t, err)

	st := s.Snapshot()
	st.Semesters[0].Value = "mutated"
	assert.Equal(t, "2023-H2", s.Snapshot().Semesters[0].Value)
}

func TestSnapshotConfigIsCopy(t *testing.T) {
	s, gw := newLiveStore(t)
	hp := 10
	gw.config.HighPriorityMinInad = &hp
	require.NoError(t, s.Bootstrap(context.Background()))

	st := s.Snapshot()
	require.NotNil(t, st.Config.HighPriorityMinInad)
	*st.Config.HighPriorityMinInad = 99
	assert.Equal(t, 10, *s.Snapshot().Config.HighPriorityMinInad)
}

func TestUpdateConfig_RejectedKeepsHeldConfig(t *testing.T) {
	s, gw := newLiveStore(t)
	hp := 10
	gw.config.HighPriorityMinInad = &hp
	require.NoError(t, s.Bootstrap(context.Background()))

	cfg := s.Snapshot().Config
	*cfg.HighPriorityMinInad = 99
	cfg.MinInad = -1
	_, err := s.UpdateConfig(context.Background(), cfg)
	require.Error(t, err)

	held := s.Snapshot().Config
	assert.Equal(t, 10, *held.HighPriorityMinInad)
	assert.Equal(t, models.DefaultAnalysisConfig().MinInad, held.MinInad)
	assert.Zero(t, gw.updateCalls)
}

func TestRefresh_LeavesErrorAlone(t *testing.T) {
	s, gw := newLiveStore(t)
	ctx := context.Background()
	_, err := s.LoadServerFiles(ctx, "a", "b")
	require.NoError(t, err)

	_, _ = s.RunAnalysis(ctx, "1999-H2")
	require.Equal(t, "Semester 1999-H2 not found", s.Snapshot().Error)

	a, err := s.RefreshAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-H1", a.Semester)
	_, err = s.RefreshHistoric(ctx)
	require.NoError(t, err)
	_, err = s.RefreshSystemic(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Semester 1999-H2 not found", s.Snapshot().Error, "successful refresh keeps the error")

	s.SetCurrentSemester("1999-H1")
	_, err = s.RefreshAnalysis(ctx)
	require.Error(t, err)
	assert.Equal(t, "Semester 1999-H2 not found", s.Snapshot().Error, "failed refresh does not overwrite the error")

	assert.Len(t, gw.historicCalls, 1)
	assert.Len(t, gw.systemicCalls, 1)
}
