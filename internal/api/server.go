package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casa-dashboard/inaddash/internal/archive"
	"github.com/casa-dashboard/inaddash/internal/briefing"
	"github.com/casa-dashboard/inaddash/internal/gateway"
	"github.com/casa-dashboard/inaddash/internal/globe"
	"github.com/casa-dashboard/inaddash/internal/i18n"
	"github.com/casa-dashboard/inaddash/internal/imagegen"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/state"
	"github.com/casa-dashboard/inaddash/internal/table"
	"github.com/casa-dashboard/inaddash/internal/views"
)

// Dashboard is the state store as seen by the HTTP layer.
type Dashboard interface {
	Mode() models.Mode
	Snapshot() state.State
	ClearError()
	ChangeSemester(ctx context.Context, semester string) (*models.AnalysisSnapshot, error)
	RunAnalysis(ctx context.Context, semester string) (*models.AnalysisSnapshot, error)
	UploadFiles(ctx context.Context, inad, bazl gateway.File) (*models.LoadResult, error)
	LoadServerFiles(ctx context.Context, inadPath, bazlPath string) (*models.LoadResult, error)
	FetchHistoricData(ctx context.Context, semesters ...string) (*models.HistoricSnapshot, error)
	FetchSystemicCases(ctx context.Context, semesters ...string) (*models.SystemicCaseSet, error)
	UpdateConfig(ctx context.Context, cfg models.AnalysisConfig) (*models.AnalysisConfig, error)
}

// Options holds the optional collaborators of a Server.
type Options struct {
	Port    string
	Locale  string
	CardTTL time.Duration
	Archive *archive.Store
	Briefer *briefing.Briefer
}

type Server struct {
	dash    Dashboard
	port    string
	locale  string
	dict    *i18n.Dictionary
	archive *archive.Store
	briefer *briefing.Briefer

	memo      views.Memo
	projector globe.Projector
	images    *imagegen.Cache

	enginesMu sync.Mutex
	engines   map[string]*table.Engine

	now func() time.Time
}

func NewServer(dash Dashboard, opts Options) *Server {
	dict := i18n.MustLoad()
	ttl := opts.CardTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if opts.Briefer == nil {
		log.Printf("api: briefing disabled")
	}
	return &Server{
		dash:    dash,
		port:    opts.Port,
		locale:  dict.Normalize(opts.Locale),
		dict:    dict,
		archive: opts.Archive,
		briefer: opts.Briefer,
		images:  imagegen.NewCache(ttl),
		engines: make(map[string]*table.Engine),
		now:     time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/semester", s.handleSemester)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/load-server-files", s.handleLoadServerFiles)
	mux.HandleFunc("GET /api/historic", s.handleHistoric)
	mux.HandleFunc("GET /api/systemic", s.handleSystemic)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleUpdateConfig)
	mux.HandleFunc("DELETE /api/error", s.handleClearError)

	mux.HandleFunc("GET /api/views", s.handleViews)
	mux.HandleFunc("GET /api/routes", s.handleRoutes)
	mux.HandleFunc("GET /api/routes.csv", s.handleRoutesCSV)
	mux.HandleFunc("GET /api/routes.pdf", s.handleRoutesPDF)
	mux.HandleFunc("GET /api/globe", s.handleGlobe)
	mux.HandleFunc("GET /api/briefing", s.handleBriefing)
	mux.HandleFunc("GET /api/i18n", s.handleI18n)

	mux.HandleFunc("GET /api/charts/histogram.png", s.handleHistogramChart)
	mux.HandleFunc("GET /api/charts/trend.png", s.handleTrendChart)
	mux.HandleFunc("GET /api/card.png", s.handleCard)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// requestLocale picks the ?lang= parameter, falling back to the server locale.
func (s *Server) requestLocale(r *http.Request) string {
	if l := r.URL.Query().Get("lang"); l != "" {
		return s.dict.Normalize(l)
	}
	return s.locale
}

// engine returns the table engine collating for locale.
func (s *Server) engine(locale string) *table.Engine {
	s.enginesMu.Lock()
	defer s.enginesMu.Unlock()
	e, ok := s.engines[locale]
	if !ok {
		e = table.NewEngine(locale)
		s.engines[locale] = e
	}
	return e
}

// currentViews derives presentation data for the loaded analysis, or the
// bundled sample when none is loaded.
func (s *Server) currentViews() (views.Views, *models.AnalysisSnapshot) {
	a := s.dash.Snapshot().Analysis
	v := s.memo.Derive(a)
	if a == nil {
		a = views.SampleSnapshot()
	}
	return v, a
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Detail: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Detail: msg})
}

func statusFor(err error) int {
	var ie *state.InputError
	var ue *state.UnavailableError
	var se *gateway.ServerError
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		return http.StatusNotFound
	case errors.Is(err, state.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, briefing.ErrDisabled):
		return http.StatusNotImplemented
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
