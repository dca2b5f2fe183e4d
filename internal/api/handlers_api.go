package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/casa-dashboard/inaddash/internal/archive"
	"github.com/casa-dashboard/inaddash/internal/gateway"
	"github.com/casa-dashboard/inaddash/internal/models"
)

// maxUpload bounds the combined size of an upload request.
const maxUpload = 64 << 20

type HealthStatus struct {
	Status          string         `json:"status"`
	Mode            models.Mode    `json:"mode"`
	DataReady       bool           `json:"dataReady"`
	CurrentSemester string         `json:"currentSemester,omitempty"`
	Archive         *archive.Stats `json:"archive,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.dash.Snapshot()
	health := HealthStatus{
		Status:          "ok",
		Mode:            st.Mode,
		DataReady:       st.DataReady,
		CurrentSemester: st.CurrentSemester,
	}
	if s.archive != nil {
		stats, err := s.archive.Stats(r.Context())
		if err != nil {
			health.Errors = append(health.Errors, "archive: "+err.Error())
		} else {
			health.Archive = stats
		}
	}
	if len(health.Errors) > 0 {
		health.Status = "degraded"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

type semesterRequest struct {
	Semester string `json:"semester"`
}

// decodeBody reads a JSON request body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}

func (s *Server) handleSemester(w http.ResponseWriter, r *http.Request) {
	var req semesterRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Semester == "" {
		badRequest(w, "semester is required")
		return
	}
	a, err := s.dash.ChangeSemester(r.Context(), req.Semester)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req semesterRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	a, err := s.dash.RunAnalysis(r.Context(), req.Semester)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		badRequest(w, "invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files [2]gateway.File
	for i, field := range []string{"inad_file", "bazl_file"} {
		f, hdr, err := r.FormFile(field)
		if err != nil {
			badRequest(w, "missing "+field)
			return
		}
		defer f.Close()
		files[i] = gateway.File{Name: hdr.Filename, Reader: f}
	}

	res, err := s.dash.UploadFiles(r.Context(), files[0], files[1])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type serverFilesRequest struct {
	InadPath string `json:"inadPath"`
	BazlPath string `json:"bazlPath"`
}

func (s *Server) handleLoadServerFiles(w http.ResponseWriter, r *http.Request) {
	var req serverFilesRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.InadPath == "" || req.BazlPath == "" {
		badRequest(w, "inadPath and bazlPath are required")
		return
	}
	res, err := s.dash.LoadServerFiles(r.Context(), req.InadPath, req.BazlPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// semestersParam collects ?semester= values, accepting repeats and
// comma-separated lists.
func semestersParam(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["semester"] {
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

func (s *Server) handleHistoric(w http.ResponseWriter, r *http.Request) {
	h, err := s.dash.FetchHistoricData(r.Context(), semestersParam(r)...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleSystemic(w http.ResponseWriter, r *http.Request) {
	c, err := s.dash.FetchSystemicCases(r.Context(), semestersParam(r)...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot().Config)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.dash.Snapshot().Config.Clone()
	if err := decodeBody(r, &cfg); err != nil {
		badRequest(w, err.Error())
		return
	}
	echoed, err := s.dash.UpdateConfig(r.Context(), cfg)
	if err != nil && echoed == nil {
		writeError(w, err)
		return
	}
	// The config was accepted even if the follow-up analysis failed; that
	// failure is visible through the state's error field.
	writeJSON(w, http.StatusOK, echoed)
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.dash.ClearError()
	w.WriteHeader(http.StatusNoContent)
}
