// Package web exposes the coaching flow as an HTTP/JSON API.
//
// Routes:
//
//	POST /api/transcribe                      raw audio body or multipart field "audio"
//	POST /api/analyze                         JSON analysis.Request
//	GET  /api/speakers/{speakerID}/attempts   newest 50 attempts
//	GET  /api/speakers/{speakerID}/trend      issue-count series, oldest first
//	GET  /api/llm/status                      configured model and availability
//	GET  /healthz, /readyz, /metrics
//
// Failures are reported as {"error": "..."}: missing input answers 400, a
// failing store 500, and any other collaborator failure 502.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/MrWong99/lingocoach/internal/analysis"
	"github.com/MrWong99/lingocoach/internal/health"
	"github.com/MrWong99/lingocoach/internal/observe"
	"github.com/MrWong99/lingocoach/internal/progress"
)

// DefaultMaxAudioBytes caps uploaded recordings.
const DefaultMaxAudioBytes = 64 << 20

// maxJSONBytes caps analyze request bodies.
const maxJSONBytes = 1 << 20

// errBadRequest marks client input errors produced by this package.
var errBadRequest = errors.New("bad request")

// Service is the subset of *analysis.Service the handlers call.
type Service interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (analysis.Transcription, error)
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
	LLMStatus(ctx context.Context) analysis.LLMStatus
	History(ctx context.Context, speakerID string) ([]progress.Attempt, error)
	Trend(ctx context.Context, speakerID string) ([]progress.TrendPoint, error)
}

var _ Service = (*analysis.Service)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithHealth mounts h's /healthz and /readyz routes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics wraps every route in the observe middleware recording on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithMaxAudioBytes caps the size of uploaded recordings.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) {
		s.maxAudio = n
	}
}

// Server holds the HTTP handlers.
type Server struct {
	svc            Service
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	maxAudio       int64
}

// New creates a Server for svc.
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, maxAudio: DefaultMaxAudioBytes}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler, wrapped in the observe middleware when
// metrics are configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transcribe", s.transcribe)
	mux.HandleFunc("POST /api/analyze", s.analyze)
	mux.HandleFunc("GET /api/speakers/{speakerID}/attempts", s.attempts)
	mux.HandleFunc("GET /api/speakers/{speakerID}/trend", s.trend)
	mux.HandleFunc("GET /api/llm/status", s.llmStatus)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	var h http.Handler = mux
	if s.metrics != nil {
		h = observe.Middleware(s.metrics)(h)
	}
	return h
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	audio, err := s.readAudio(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Transcribe(r.Context(), audio, r.URL.Query().Get("language"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readAudio returns the recording from a multipart "audio" field or, for any
// other content type, the raw body.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudio)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read audio: %w", errBadRequest, err)
		}
		return data, nil
	}

	f, _, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, analysis.ErrNoAudio
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %w", errBadRequest, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %w", errBadRequest, err)
	}
	return data, nil
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, fmt.Errorf("%w: decode request: %w", errBadRequest, err))
		return
	}
	res, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) attempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.svc.History(r.Context(), r.PathValue("speakerID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (s *Server) trend(w http.ResponseWriter, r *http.Request) {
	points, err := s.svc.Trend(r.Context(), r.PathValue("speakerID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) llmStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.LLMStatus(r.Context()))
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, analysis.ErrNoAudio),
		errors.Is(err, analysis.ErrEmptyTranscript),
		errors.Is(err, analysis.ErrNoSpeaker),
		errors.Is(err, progress.ErrInvalidAttempt):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrStore):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		log.Info("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": message(err)})
}

// message strips the package prefixes from validation errors so clients see
// the plain prompt, for example "record audio first".
func message(err error) string {
	for _, sentinel := range []error{analysis.ErrNoAudio, analysis.ErrEmptyTranscript, analysis.ErrNoSpeaker} {
		if errors.Is(err, sentinel) {
			return strings.TrimPrefix(sentinel.Error(), "analysis: ")
		}
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
