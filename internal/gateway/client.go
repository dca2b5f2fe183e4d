package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/casa-dashboard/inaddash/internal/httputil"
	"github.com/casa-dashboard/inaddash/internal/metrics"
	"github.com/casa-dashboard/inaddash/internal/models"
)

// Operation names, used for metrics labels and fallback messages.
const (
	OpHealth          = "health"
	OpStatus          = "status"
	OpUpload          = "upload"
	OpLoadServerFiles = "load_server_files"
	OpSemesters       = "semesters"
	OpAnalyze         = "analyze"
	OpHistoric        = "historic"
	OpSystemic        = "systemic"
	OpGetConfig       = "get_config"
	OpUpdateConfig    = "update_config"
)

var fallbackMessages = map[string]string{
	OpHealth:          "Health check failed",
	OpStatus:          "Failed to get status",
	OpUpload:          "Upload failed",
	OpLoadServerFiles: "Failed to load server files",
	OpSemesters:       "Failed to get semesters",
	OpAnalyze:         "Analysis failed",
	OpHistoric:        "Failed to get historic data",
	OpSystemic:        "Failed to detect systemic cases",
	OpGetConfig:       "Failed to get config",
	OpUpdateConfig:    "Failed to update config",
}

// FallbackMessage returns the generic message shown when the server gives no detail.
func FallbackMessage(op string) string {
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "Request failed"
}

// ServerError is a non-2xx response from the analysis service.
type ServerError struct {
	Op     string
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return FallbackMessage(e.Op)
}

// Call describes one completed request, handed to a Recorder.
type Call struct {
	Op        string
	Endpoint  string
	RequestID string
	Status    int
	Duration  time.Duration
	Body      []byte
	StartedAt time.Time
	Err       error
}

// Recorder receives every completed call. The payload archive implements it.
type Recorder interface {
	RecordCall(ctx context.Context, c Call)
}

// File is one upload part.
type File struct {
	Name   string
	Reader io.Reader
}

// Client talks to the INAD analysis service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	limiter      *rate.Limiter
	recorder     Recorder
	maxElapsed   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for JSON requests and uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
		cl.uploadClient = c
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRecorder attaches a call recorder.
func WithRecorder(r Recorder) Option {
	return func(cl *Client) { cl.recorder = r }
}

// WithMaxRetryElapsed bounds how long idempotent reads are retried.
func WithMaxRetryElapsed(d time.Duration) Option {
	return func(cl *Client) { cl.maxElapsed = d }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httputil.NewClient(),
		uploadClient: httputil.NewClientWithTimeout(httputil.UploadTimeout),
		limiter:      rate.NewLimiter(rate.Limit(10), 5),
		maxElapsed:   30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls the service root.
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var out models.Health
	if err := c.getJSON(ctx, OpHealth, "/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reports which source files are loaded on the service.
func (c *Client) Status(ctx context.Context) (*models.Status, error) {
	var out models.Status
	if err := c.getJSON(ctx, OpStatus, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFiles sends the INAD and BAZL spreadsheets as a multipart form.
func (c *Client) UploadFiles(ctx context.Context, inad, bazl File) (*models.LoadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, part := range []struct {
		field string
		file  File
	}{{"inad_file", inad}, {"bazl_file", bazl}} {
		if part.file.Reader == nil {
			return nil, fmt.Errorf("upload: missing %s", part.field)
		}
		fw, err := mw.CreateFormFile(part.field, part.file.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(fw, part.file.Reader); err != nil {
			return nil, fmt.Errorf("copy %s: %w", part.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var out models.LoadResult
	err := c.post(ctx, OpUpload, "/api/upload", nil, mw.FormDataContentType(), buf.Bytes(), c.uploadClient, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadServerFiles asks the service to read spreadsheets from its own disk.
func (c *Client) LoadServerFiles(ctx context.Context, inadPath, bazlPath string) (*models.LoadResult, error) {
	q := url.Values{}
	q.Set("inad_path", inadPath)
	q.Set("bazl_path", bazlPath)

	var out models.LoadResult
	if err := c.post(ctx, OpLoadServerFiles, "/api/load-server-files", q, "", nil, c.httpClient, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Semesters lists the semesters present in the loaded data.
func (c *Client) Semesters(ctx context.Context) ([]models.Semester, error) {
	var out []models.Semester
	if err := c.getJSON(ctx, OpSemesters, "/api/semesters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeSemester runs the analysis for one semester.
func (c *Client) AnalyzeSemester(ctx context.Context, semester string) (*models.AnalysisSnapshot, error) {
	var out models.AnalysisSnapshot
	if err := c.getJSON(ctx, OpAnalyze, "/api/analyze/"+url.PathEscape(semester), nil, &out); err != nil {
		return nil, err
	}
	if out.Semester == "" {
		out.Semester = semester
	}
	return &out, nil
}

// Historic fetches the multi-semester trend.
func (c *Client) Historic(ctx context.Context, semesters []string) (*models.HistoricSnapshot, error) {
	var out models.HistoricSnapshot
	q := url.Values{"semesters": {strings.Join(semesters, ",")}}
	if err := c.getJSON(ctx, OpHistoric, "/api/historic", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Systemic fetches routes flagged in more than one semester.
func (c *Client) Systemic(ctx context.Context, semesters []string) (*models.SystemicCaseSet, error) {
	var out models.SystemicCaseSet
	q := url.Values{"semesters": {strings.Join(semesters, ",")}}
	if err := c.getJSON(ctx, OpSystemic, "/api/systemic", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Config returns the service's current analysis configuration.
func (c *Client) Config(ctx context.Context) (*models.AnalysisConfig, error) {
	var out models.AnalysisConfig
	if err := c.getJSON(ctx, OpGetConfig, "/api/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConfig replaces the service configuration and returns the echoed value.
func (c *Client) UpdateConfig(ctx context.Context, cfg models.AnalysisConfig) (*models.AnalysisConfig, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var out struct {
		Success bool                  `json:"success"`
		Config  models.AnalysisConfig `json:"config"`
	}
	if err := c.post(ctx, OpUpdateConfig, "/api/config", nil, "application/json", body, c.httpClient, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &ServerError{Op: OpUpdateConfig, Status: http.StatusOK}
	}
	return &out.Config, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	var body []byte
	operation := func() error {
		b, status, err := c.do(ctx, op, http.MethodGet, path, q, "", nil, c.httpClient)
		if err != nil {
			return backoff.Permanent(err)
		}
		if httputil.Retryable(status) {
			log.Printf("gateway: %s returned %d, retrying", op, status)
			return &httputil.StatusError{Status: status, Body: b}
		}
		if status < 200 || status >= 300 {
			return backoff.Permanent(newServerError(op, status, b))
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return newServerError(op, se.Status, se.Body)
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, q url.Values, contentType string, payload []byte, hc *http.Client, out any) error {
	b, status, err := c.do(ctx, op, http.MethodPost, path, q, contentType, payload, hc)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return newServerError(op, status, b)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, contentType string, payload []byte, hc *http.Client) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit: %w", err)
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := hc.Do(req)
	elapsed := time.Since(start)
	metrics.GatewayLatency.WithLabelValues(op).Observe(elapsed.Seconds())

	call := Call{Op: op, Endpoint: path, RequestID: requestID, Duration: elapsed, StartedAt: start}
	if err != nil {
		metrics.GatewayCallsTotal.WithLabelValues(op, "error").Inc()
		call.Err = err
		c.record(ctx, call)
		return nil, 0, fmt.Errorf("%s: %w", strings.ToLower(FallbackMessage(op)), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GatewayCallsTotal.WithLabelValues(op, "error").Inc()
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	metrics.GatewayCallsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	call.Status = resp.StatusCode
	call.Body = body
	c.record(ctx, call)
	return body, resp.StatusCode, nil
}

func (c *Client) record(ctx context.Context, call Call) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordCall(ctx, call)
}

// newServerError extracts the "detail" field the service puts in error bodies.
// Validation errors carry a list instead of a string; the first message is used.
func newServerError(op string, status int, body []byte) *ServerError {
	se := &ServerError{Op: op, Status: status}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return se
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		se.Detail = s
		return se
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil && len(list) > 0 {
		se.Detail = list[0].Msg
	}
	return se
}
