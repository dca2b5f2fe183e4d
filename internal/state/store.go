package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/casa-dashboard/inaddash/internal/gateway"
	"github.com/casa-dashboard/inaddash/internal/metrics"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/snapshot"
)

// Gateway is the subset of the analysis service client the store drives.
type Gateway interface {
	Status(ctx context.Context) (*models.Status, error)
	UploadFiles(ctx context.Context, inad, bazl gateway.File) (*models.LoadResult, error)
	LoadServerFiles(ctx context.Context, inadPath, bazlPath string) (*models.LoadResult, error)
	Semesters(ctx context.Context) ([]models.Semester, error)
	AnalyzeSemester(ctx context.Context, semester string) (*models.AnalysisSnapshot, error)
	Historic(ctx context.Context, semesters []string) (*models.HistoricSnapshot, error)
	Systemic(ctx context.Context, semesters []string) (*models.SystemicCaseSet, error)
	Config(ctx context.Context) (*models.AnalysisConfig, error)
	UpdateConfig(ctx context.Context, cfg models.AnalysisConfig) (*models.AnalysisConfig, error)
}

// StaticReader reads pre-generated snapshot files.
type StaticReader interface {
	Semesters(ctx context.Context) ([]models.Semester, error)
	Analysis(ctx context.Context, semester string) (*models.AnalysisSnapshot, error)
	Historic(ctx context.Context) (*models.HistoricSnapshot, error)
	Systemic(ctx context.Context) (*models.SystemicCaseSet, error)
}

// InputError is a precondition failure. It aborts before any I/O.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

var (
	ErrNoSemester = &InputError{Msg: "No semester selected"}
	ErrStaticMode = &InputError{Msg: "Not available in static mode"}
	ErrNoGateway  = &InputError{Msg: "No analysis service configured"}
	ErrNoSnapshot = &InputError{Msg: "No snapshot source configured"}
)

// ErrSuperseded is returned to a caller whose response arrived after a newer
// request for the same resource was issued. The response is not applied.
var ErrSuperseded = errors.New("response superseded by a newer request")

// UnavailableError reports a snapshot file an explicit request depended on.
type UnavailableError struct {
	File string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s has not been generated", e.File)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

type resource int

const (
	resCatalog resource = iota
	resAnalysis
	resHistoric
	resSystemic
	resConfig
	numResources
)

var resourceNames = [numResources]string{"catalog", "analysis", "historic", "systemic", "config"}

func (r resource) String() string { return resourceNames[r] }

// State is the published read model. Payload pointers are shared with the
// store and must be treated as read-only.
type State struct {
	Loading         bool                     `json:"loading"`
	Error           string                   `json:"error,omitempty"`
	DataReady       bool                     `json:"dataReady"`
	Semesters       []models.Semester        `json:"semesters"`
	CurrentSemester string                   `json:"currentSemester,omitempty"`
	Analysis        *models.AnalysisSnapshot `json:"analysis,omitempty"`
	Historic        *models.HistoricSnapshot `json:"historic,omitempty"`
	Systemic        *models.SystemicCaseSet  `json:"systemic,omitempty"`
	Config          models.AnalysisConfig    `json:"config"`
	Mode            models.Mode              `json:"mode"`
}

// Options configures a Store.
type Options struct {
	Mode    models.Mode
	Gateway Gateway
	Static  StaticReader
	// AutoAnalyzeOnUpload runs the analysis for the newly selected semester
	// after a successful upload or server-file load.
	AutoAnalyzeOnUpload bool
}

// Store owns the dashboard state and every transition on it.
type Store struct {
	mode        models.Mode
	gw          Gateway
	static      StaticReader
	autoAnalyze bool

	mu       sync.Mutex
	st       State
	inflight int
	seq      [numResources]uint64

	wg sync.WaitGroup
}

// New creates an empty store. Multiple stores are independent.
func New(opts Options) *Store {
	return &Store{
		mode:        opts.Mode,
		gw:          opts.Gateway,
		static:      opts.Static,
		autoAnalyze: opts.AutoAnalyzeOnUpload,
		st: State{
			Config: models.DefaultAnalysisConfig(),
			Mode:   opts.Mode,
		},
	}
}

// Mode returns the mode the store was created with.
func (s *Store) Mode() models.Mode {
	return s.mode
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.st
	out.Loading = s.inflight > 0
	out.Semesters = append([]models.Semester(nil), s.st.Semesters...)
	out.Config = s.st.Config.Clone()
	return out
}

// Wait blocks until background fetches started by Bootstrap finish.
func (s *Store) Wait() {
	s.wg.Wait()
}

// ClearError resets the shared error.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.st.Error = ""
	s.mu.Unlock()
}

// SetCurrentSemester changes the selection without fetching anything.
func (s *Store) SetCurrentSemester(semester string) {
	s.mu.Lock()
	s.st.CurrentSemester = semester
	s.mu.Unlock()
}

// beginLocked issues a new request id for res and marks an operation in
// flight. A surfacing request is a new attempt by the user and clears the
// shared error; background requests leave it alone. Caller holds s.mu.
func (s *Store) beginLocked(res resource, surface bool) uint64 {
	s.inflight++
	s.seq[res]++
	if surface {
		s.st.Error = ""
	}
	return s.seq[res]
}

func (s *Store) done() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// currentLocked reports whether id is still the latest request for res.
// Caller holds s.mu.
func (s *Store) currentLocked(res resource, id uint64) bool {
	if s.seq[res] == id {
		return true
	}
	metrics.StaleResponsesTotal.WithLabelValues(res.String()).Inc()
	log.Printf("state: discarding stale %s response (request %d, latest %d)", res, id, s.seq[res])
	return false
}

// sourceErr reports a missing backend for the store's mode.
func (s *Store) sourceErr() *InputError {
	if s.mode == models.ModeStatic {
		if s.static == nil {
			return ErrNoSnapshot
		}
		return nil
	}
	if s.gw == nil {
		return ErrNoGateway
	}
	return nil
}

func (s *Store) failInput(err *InputError) error {
	s.mu.Lock()
	s.st.Error = err.Msg
	s.mu.Unlock()
	return err
}

// Bootstrap performs the first load. In static mode it reads the semester
// catalog, selects the latest semester, loads its analysis and starts the
// historic and systemic reads in the background. In live mode it syncs the
// server configuration and, when the service has data loaded, the catalog.
// Failures are logged and never set the shared error.
func (s *Store) Bootstrap(ctx context.Context) error {
	if s.mode == models.ModeStatic {
		return s.bootstrapStatic(ctx)
	}
	return s.bootstrapLive(ctx)
}

func (s *Store) bootstrapStatic(ctx context.Context) error {
	if s.static == nil {
		return fmt.Errorf("bootstrap: no snapshot reader")
	}

	s.mu.Lock()
	s.inflight++
	s.seq[resCatalog]++
	id := s.seq[resCatalog]
	s.mu.Unlock()

	sems, err := s.static.Semesters(ctx)
	s.done()
	if err != nil {
		log.Printf("state: bootstrap: no semester catalog: %v", err)
		return fmt.Errorf("bootstrap: %w", err)
	}
	latest, ok := models.LatestSemester(sems)
	if !ok {
		log.Printf("state: bootstrap: semester catalog is empty")
		return nil
	}

	s.mu.Lock()
	if !s.currentLocked(resCatalog, id) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.st.Semesters = sems
	s.st.DataReady = true
	s.st.CurrentSemester = latest.Value
	s.mu.Unlock()

	if _, err := s.runAnalysis(ctx, latest.Value, false); err != nil {
		log.Printf("state: bootstrap: analysis for %s: %v", latest.Value, err)
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if _, err := s.fetchHistoric(bg, nil, false); err != nil {
			log.Printf("state: bootstrap: historic: %v", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		if _, err := s.fetchSystemic(bg, nil, false); err != nil {
			log.Printf("state: bootstrap: systemic: %v", err)
		}
	}()
	return nil
}

func (s *Store) bootstrapLive(ctx context.Context) error {
	if s.gw == nil {
		return fmt.Errorf("bootstrap: %w", ErrNoGateway)
	}

	s.mu.Lock()
	s.inflight++
	s.seq[resConfig]++
	cfgID := s.seq[resConfig]
	s.mu.Unlock()
	defer s.done()

	var errs []error
	if cfg, err := s.gw.Config(ctx); err != nil {
		log.Printf("state: bootstrap: config sync: %v", err)
		errs = append(errs, err)
	} else {
		s.mu.Lock()
		if s.currentLocked(resConfig, cfgID) {
			s.st.Config = *cfg
		}
		s.mu.Unlock()
	}

	status, err := s.gw.Status(ctx)
	if err != nil {
		log.Printf("state: bootstrap: status: %v", err)
		return errors.Join(append(errs, err)...)
	}
	if !status.Ready {
		log.Printf("state: bootstrap: analysis service has no data loaded")
		return errors.Join(errs...)
	}

	s.mu.Lock()
	s.seq[resCatalog]++
	catID := s.seq[resCatalog]
	s.mu.Unlock()

	sems, err := s.gw.Semesters(ctx)
	if err != nil {
		log.Printf("state: bootstrap: semesters: %v", err)
		return errors.Join(append(errs, err)...)
	}
	s.mu.Lock()
	if s.currentLocked(resCatalog, catID) {
		s.applyCatalogLocked(sems)
	}
	s.mu.Unlock()
	return errors.Join(errs...)
}

// applyCatalogLocked replaces the catalog and selects the newest semester.
// Caller holds s.mu.
func (s *Store) applyCatalogLocked(sems []models.Semester) {
	s.st.Semesters = sems
	s.st.DataReady = true
	if latest, ok := models.LatestSemester(sems); ok {
		s.st.CurrentSemester = latest.Value
	}
}

// UploadFiles sends both spreadsheets to the analysis service and replaces the
// semester catalog with the result.
func (s *Store) UploadFiles(ctx context.Context, inad, bazl gateway.File) (*models.LoadResult, error) {
	return s.load(ctx, func(ctx context.Context) (*models.LoadResult, error) {
		return s.gw.UploadFiles(ctx, inad, bazl)
	})
}

// LoadServerFiles asks the analysis service to load spreadsheets from its own disk.
func (s *Store) LoadServerFiles(ctx context.Context, inadPath, bazlPath string) (*models.LoadResult, error) {
	return s.load(ctx, func(ctx context.Context) (*models.LoadResult, error) {
		return s.gw.LoadServerFiles(ctx, inadPath, bazlPath)
	})
}

func (s *Store) load(ctx context.Context, call func(context.Context) (*models.LoadResult, error)) (*models.LoadResult, error) {
	if s.mode == models.ModeStatic {
		return nil, s.failInput(ErrStaticMode)
	}
	if ie := s.sourceErr(); ie != nil {
		return nil, s.failInput(ie)
	}

	s.mu.Lock()
	id := s.beginLocked(resCatalog, true)
	s.mu.Unlock()

	res, err := call(ctx)

	s.mu.Lock()
	s.inflight--
	if !s.currentLocked(resCatalog, id) {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	if err != nil {
		s.st.Error = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.applyCatalogLocked(res.Semesters)
	// New source data makes every cached aggregate and in-flight read stale.
	s.st.Historic = nil
	s.st.Systemic = nil
	s.seq[resHistoric]++
	s.seq[resSystemic]++
	current := s.st.CurrentSemester
	s.mu.Unlock()

	if s.autoAnalyze && current != "" {
		if _, err := s.RunAnalysis(ctx, current); err != nil {
			return res, err
		}
	}
	return res, nil
}

// RunAnalysis fetches one semester's analysis and replaces the held payload.
// An empty semester means the current selection.
func (s *Store) RunAnalysis(ctx context.Context, semester string) (*models.AnalysisSnapshot, error) {
	return s.runAnalysis(ctx, semester, true)
}

func (s *Store) runAnalysis(ctx context.Context, semester string, surface bool) (*models.AnalysisSnapshot, error) {
	s.mu.Lock()
	if semester == "" {
		semester = s.st.CurrentSemester
	}
	if semester == "" {
		if surface {
			s.st.Error = ErrNoSemester.Msg
		}
		s.mu.Unlock()
		return nil, ErrNoSemester
	}
	if ie := s.sourceErr(); ie != nil {
		if surface {
			s.st.Error = ie.Msg
		}
		s.mu.Unlock()
		return nil, ie
	}
	id := s.beginLocked(resAnalysis, surface)
	s.mu.Unlock()

	var (
		a   *models.AnalysisSnapshot
		err error
	)
	if s.mode == models.ModeStatic {
		a, err = s.static.Analysis(ctx, semester)
		if errors.Is(err, snapshot.ErrNotAvailable) {
			err = &UnavailableError{File: snapshot.AnalysisFile(semester), Err: err}
		}
	} else {
		a, err = s.gw.AnalyzeSemester(ctx, semester)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if !s.currentLocked(resAnalysis, id) {
		return nil, ErrSuperseded
	}
	if err != nil {
		if surface {
			s.st.Error = err.Error()
		}
		return nil, err
	}
	s.st.Analysis = a
	return a, nil
}

// RefreshAnalysis re-reads the current semester's analysis in the background.
// It neither clears nor sets the shared error.
func (s *Store) RefreshAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error) {
	return s.runAnalysis(ctx, "", false)
}

// RefreshHistoric is the background form of FetchHistoricData.
func (s *Store) RefreshHistoric(ctx context.Context) (*models.HistoricSnapshot, error) {
	return s.fetchHistoric(ctx, nil, false)
}

// RefreshSystemic is the background form of FetchSystemicCases.
func (s *Store) RefreshSystemic(ctx context.Context) (*models.SystemicCaseSet, error) {
	return s.fetchSystemic(ctx, nil, false)
}

// ChangeSemester selects a semester and loads its analysis. In static mode
// the analysis comes from the snapshot file and never from the gateway.
func (s *Store) ChangeSemester(ctx context.Context, semester string) (*models.AnalysisSnapshot, error) {
	s.mu.Lock()
	s.st.CurrentSemester = semester
	s.st.Error = ""
	s.mu.Unlock()
	return s.RunAnalysis(ctx, semester)
}

func (s *Store) semesterList(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SemesterValues(s.st.Semesters)
}

// FetchHistoricData loads the multi-semester trend. With no arguments every
// known semester is used. Static mode reads historic.json at most once and
// ignores the argument; live mode always calls the gateway.
func (s *Store) FetchHistoricData(ctx context.Context, semesters ...string) (*models.HistoricSnapshot, error) {
	return s.fetchHistoric(ctx, semesters, true)
}

func (s *Store) fetchHistoric(ctx context.Context, semesters []string, surface bool) (*models.HistoricSnapshot, error) {
	list := s.semesterList(semesters)
	if len(list) == 0 {
		return nil, nil
	}

	if ie := s.sourceErr(); ie != nil {
		if surface {
			return nil, s.failInput(ie)
		}
		return nil, ie
	}

	s.mu.Lock()
	if s.mode == models.ModeStatic && s.st.Historic != nil {
		h := s.st.Historic
		s.mu.Unlock()
		return h, nil
	}
	id := s.beginLocked(resHistoric, surface)
	s.mu.Unlock()

	var (
		h   *models.HistoricSnapshot
		err error
	)
	if s.mode == models.ModeStatic {
		h, err = s.static.Historic(ctx)
		if errors.Is(err, snapshot.ErrNotAvailable) {
			s.done()
			return nil, nil
		}
	} else {
		h, err = s.gw.Historic(ctx, list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if !s.currentLocked(resHistoric, id) {
		return nil, ErrSuperseded
	}
	if err != nil {
		if surface {
			s.st.Error = err.Error()
		}
		return nil, err
	}
	s.st.Historic = h
	return h, nil
}

// FetchSystemicCases loads routes flagged across semesters, with the same
// defaulting and caching rules as FetchHistoricData.
func (s *Store) FetchSystemicCases(ctx context.Context, semesters ...string) (*models.SystemicCaseSet, error) {
	return s.fetchSystemic(ctx, semesters, true)
}

func (s *Store) fetchSystemic(ctx context.Context, semesters []string, surface bool) (*models.SystemicCaseSet, error) {
	list := s.semesterList(semesters)
	if len(list) == 0 {
		return nil, nil
	}

	if ie := s.sourceErr(); ie != nil {
		if surface {
			return nil, s.failInput(ie)
		}
		return nil, ie
	}

	s.mu.Lock()
	if s.mode == models.ModeStatic && s.st.Systemic != nil {
		c := s.st.Systemic
		s.mu.Unlock()
		return c, nil
	}
	id := s.beginLocked(resSystemic, surface)
	s.mu.Unlock()

	var (
		c   *models.SystemicCaseSet
		err error
	)
	if s.mode == models.ModeStatic {
		c, err = s.static.Systemic(ctx)
		if errors.Is(err, snapshot.ErrNotAvailable) {
			s.done()
			return nil, nil
		}
	} else {
		c, err = s.gw.Systemic(ctx, list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if !s.currentLocked(resSystemic, id) {
		return nil, ErrSuperseded
	}
	if err != nil {
		if surface {
			s.st.Error = err.Error()
		}
		return nil, err
	}
	s.st.Systemic = c
	return c, nil
}

// UpdateConfig sends the full configuration to the analysis service, holds
// the server-confirmed value and re-runs the current semester's analysis once.
func (s *Store) UpdateConfig(ctx context.Context, cfg models.AnalysisConfig) (*models.AnalysisConfig, error) {
	if s.mode == models.ModeStatic {
		return nil, s.failInput(ErrStaticMode)
	}
	if ie := s.sourceErr(); ie != nil {
		return nil, s.failInput(ie)
	}
	if err := cfg.Validate(); err != nil {
		return nil, s.failInput(&InputError{Msg: err.Error()})
	}

	s.mu.Lock()
	id := s.beginLocked(resConfig, true)
	s.mu.Unlock()

	echoed, err := s.gw.UpdateConfig(ctx, cfg)

	s.mu.Lock()
	s.inflight--
	if !s.currentLocked(resConfig, id) {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	if err != nil {
		s.st.Error = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.st.Config = echoed.Clone()
	current := s.st.CurrentSemester
	s.mu.Unlock()

	if current != "" {
		if _, err := s.RunAnalysis(ctx, current); err != nil {
			return echoed, err
		}
	}
	return echoed, nil
}
