package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lingocoach/internal/analysis"
	"github.com/MrWong99/lingocoach/internal/coach"
	"github.com/MrWong99/lingocoach/internal/grammar"
	"github.com/MrWong99/lingocoach/internal/health"
	"github.com/MrWong99/lingocoach/internal/progress"
	progressmock "github.com/MrWong99/lingocoach/internal/progress/mock"
	"github.com/MrWong99/lingocoach/internal/web"
	grammarmock "github.com/MrWong99/lingocoach/pkg/provider/grammar/mock"
	langidmock "github.com/MrWong99/lingocoach/pkg/provider/langid/mock"
	llmmock "github.com/MrWong99/lingocoach/pkg/provider/llm/mock"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
	sttmock "github.com/MrWong99/lingocoach/pkg/provider/stt/mock"
)

type env struct {
	stt     *sttmock.Provider
	checker *grammarmock.Checker
	llm     *llmmock.Provider
	store   *progressmock.Store
	srv     *httptest.Server
}

func newEnv(t *testing.T, opts ...web.Option) *env {
	t.Helper()
	e := &env{
		stt:     &sttmock.Provider{Result: stt.Result{Text: "Bonjour tout le monde", Language: "fr", LanguageProbability: 0.8, Duration: time.Second}},
		checker: &grammarmock.Checker{},
		llm:     &llmmock.Provider{ModelName: "llama3.2:3b", Responses: []string{"Weakest: tout\nWhy: x", "practice"}, Models: []string{"llama3.2:3b"}},
		store:   &progressmock.Store{},
	}
	svc := analysis.New(e.stt, &langidmock.Identifier{Code: "fr"},
		grammar.New(grammarmock.NewFactory(e.checker).New), coach.New(e.llm), e.store)
	e.srv = httptest.NewServer(web.New(svc, opts...).Handler())
	t.Cleanup(e.srv.Close)
	return e
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestTranscribe_RawBody(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	resp, err := http.Post(e.srv.URL+"/api/transcribe?language=fr", "audio/wav", strings.NewReader("RIFFdata"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, resp)
	if got["text"] != "Bonjour tout le monde" || got["language"] != "fr" || got["duration"] != 1.0 {
		t.Errorf("body = %v", got)
	}
	if c := e.stt.Calls; len(c) != 1 || string(c[0].Audio) != "RIFFdata" || c[0].LanguageHint != "fr" {
		t.Errorf("stt calls = %+v", c)
	}
}

func TestTranscribe_Multipart(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("audio", "take1.wav")
	_, _ = fw.Write([]byte("RIFFmultipart"))
	_ = mw.Close()

	resp, err := http.Post(e.srv.URL+"/api/transcribe", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if c := e.stt.Calls; len(c) != 1 || string(c[0].Audio) != "RIFFmultipart" || c[0].LanguageHint != "" {
		t.Errorf("stt calls = %+v", c)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, err := http.Post(e.srv.URL+"/api/transcribe", "audio/wav", http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		if got := decode[map[string]string](t, resp); got["error"] != "record audio first" {
			t.Errorf("error = %q", got["error"])
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.stt.Err = errors.New("whisper: HTTP 500")
		resp, err := http.Post(e.srv.URL+"/api/transcribe", "audio/wav", strings.NewReader("x"))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
		if got := decode[map[string]string](t, resp); !strings.Contains(got["error"], "whisper: HTTP 500") {
			t.Errorf("error = %q", got["error"])
		}
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, web.WithMaxAudioBytes(4))
		resp, err := http.Post(e.srv.URL+"/api/transcribe", "audio/wav", strings.NewReader("0123456789"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", resp.StatusCode)
		}
		if e.stt.CallCount() != 0 {
			t.Error("oversized upload reached the engine")
		}
	})
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	body := `{"text":"Bonjour tout le monde","target_language":"fr","native_language":"en","speaker_id":"zoe"}`
	resp, err := http.Post(e.srv.URL+"/api/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[analysis.Result](t, resp)
	if got.DetectedLanguage != "fr" || got.WeakestPoint.Phrase != "tout" || got.PracticeModule != "practice" || got.SpeakerID != "zoe" {
		t.Errorf("result = %+v", got)
	}
	if got.Grammar.Summary != "0 potential issues flagged by LanguageTool." {
		t.Errorf("grammar summary = %q", got.Grammar.Summary)
	}
	if n := len(e.store.Recorded()); n != 1 {
		t.Errorf("recorded %d attempts, want 1", n)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		setup  func(e *env)
		status int
	}{
		{"malformed json", `{"text":`, nil, http.StatusBadRequest},
		{"unknown field", `{"text":"hi","colour":"red"}`, nil, http.StatusBadRequest},
		{"empty transcript", `{"text":"   "}`, nil, http.StatusBadRequest},
		{"grammar down", `{"text":"hi"}`, func(e *env) { e.checker.Err = errors.New("connection refused") }, http.StatusBadGateway},
		{"llm down", `{"text":"hi"}`, func(e *env) { e.llm.CompleteErr = errors.New("status 500") }, http.StatusBadGateway},
		{"store down", `{"text":"hi"}`, func(e *env) { e.store.RecordErr = errors.New("disk I/O error") }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			if tt.setup != nil {
				tt.setup(e)
			}
			resp, err := http.Post(e.srv.URL+"/api/analyze", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := decode[map[string]string](t, resp); got["error"] == "" {
				t.Error("missing error message")
			}
			if n := len(e.store.Recorded()); n != 0 {
				t.Errorf("recorded %d attempts on failure", n)
			}
		})
	}
}

func TestAttemptsAndTrend(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	for i, ts := range []string{"2026-04-01T09:00:00", "2026-04-02T09:00:00"} {
		_, _ = e.store.Record(ctx, progress.Attempt{SpeakerID: "zoe", Timestamp: ts, NumIssues: 4 - i, LLMModel: "m"})
	}

	resp, err := http.Get(e.srv.URL + "/api/speakers/zoe/attempts")
	if err != nil {
		t.Fatal(err)
	}
	attempts := decode[[]progress.Attempt](t, resp)
	if len(attempts) != 2 || attempts[0].Timestamp != "2026-04-02T09:00:00" {
		t.Errorf("attempts = %+v", attempts)
	}

	resp, err = http.Get(e.srv.URL + "/api/speakers/zoe/trend")
	if err != nil {
		t.Fatal(err)
	}
	points := decode[[]progress.TrendPoint](t, resp)
	if len(points) != 2 || points[0].NumIssues != 4 || points[1].NumIssues != 3 {
		t.Errorf("trend = %+v", points)
	}

	resp, err = http.Get(e.srv.URL + "/api/speakers/nobody/attempts")
	if err != nil {
		t.Fatal(err)
	}
	if body, _ := io.ReadAll(resp.Body); strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty history body = %s, want []", body)
	}
	resp.Body.Close()
}

func TestLLMStatus(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/api/llm/status")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[analysis.LLMStatus](t, resp)
	if got != (analysis.LLMStatus{Enabled: true, Model: "llama3.2:3b", Available: true}) {
		t.Errorf("status = %+v", got)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	e := newEnv(t, web.WithHealth(health.New()), web.WithMetricsHandler(metrics))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(e.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/api/analyze")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
