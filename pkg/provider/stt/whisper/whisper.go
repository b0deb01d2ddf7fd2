// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary, which exposes a REST API
// at POST /inference. Each Transcribe call uploads the whole recording as one
// multipart request and reads the verbose JSON reply. WAV recordings are
// converted to 16 kHz mono before upload because whisper-server only accepts
// that format unless it was started with --convert; any other container is
// forwarded untouched.
//
// [NativeProvider] (build tag whisper_native) runs the same models in-process
// through the whisper.cpp CGO bindings.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080")
//	res, err := p.Transcribe(ctx, wavBytes, "")
//	fmt.Println(res.Text, res.Language)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/lingocoach/pkg/audio"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
)

const (
	// autoLanguage asks whisper.cpp to detect the spoken language.
	autoLanguage = "auto"

	defaultTimeout = 5 * time.Minute

	// maxErrorBody caps how much of a failed response is echoed in errors.
	maxErrorBody = 512
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language used when a call passes no hint (e.g., "en",
// "de"). Defaults to automatic detection.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the HTTP timeout for one transcription. Defaults to 5m.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse is the subset of whisper-server's verbose_json reply we
// read. Older server builds only report the full language name in Language.
type inferenceResponse struct {
	Text                        string  `json:"text"`
	Language                    string  `json:"language"`
	DetectedLanguage            string  `json:"detected_language"`
	LanguageProbability         float64 `json:"language_probability"`
	DetectedLanguageProbability float64 `json:"detected_language_probability"`
	Duration                    float64 `json:"duration"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, data []byte, languageHint string) (stt.Result, error) {
	if len(data) == 0 {
		return stt.Result{}, stt.ErrEmptyAudio
	}

	upload := data
	var clipDuration time.Duration
	if audio.IsWAV(data) {
		clip, err := audio.PrepareForSpeech(data)
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: decode audio: %w", err)
		}
		clipDuration = clip.Duration()
		upload = audio.EncodeWAV(clip)
	}

	lang := languageHint
	if lang == "" {
		lang = p.language
	}
	if lang == "" {
		lang = autoLanguage
	}

	body, contentType, err := buildForm(upload, lang)
	if err != nil {
		return stt.Result{}, err
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Result{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, truncate(raw, maxErrorBody))
	}

	var ir inferenceResponse
	if err := json.Unmarshal(raw, &ir); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	res := stt.Result{
		Text:                strings.TrimSpace(ir.Text),
		Language:            resolveLanguage(lang, ir),
		LanguageProbability: ir.LanguageProbability,
		Duration:            clipDuration,
	}
	if res.LanguageProbability == 0 {
		res.LanguageProbability = ir.DetectedLanguageProbability
	}
	if ir.Duration > 0 {
		res.Duration = time.Duration(ir.Duration * float64(time.Second))
	}
	return res, nil
}

// buildForm encodes the multipart body for POST /inference.
func buildForm(wav []byte, language string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", fmt.Errorf("whisper: write audio data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0"},
		{"language", language},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// resolveLanguage picks the ISO code for the transcription language. An
// explicit request language wins; otherwise the server's detection is used.
func resolveLanguage(requested string, ir inferenceResponse) string {
	if requested != autoLanguage {
		return requested
	}
	if ir.DetectedLanguage != "" {
		return normalizeLanguage(ir.DetectedLanguage)
	}
	return normalizeLanguage(ir.Language)
}

// languageNames maps whisper's full language names to ISO 639-1 codes for the
// languages this application coaches, plus a few common neighbours.
var languageNames = map[string]string{
	"english":    "en",
	"german":     "de",
	"spanish":    "es",
	"french":     "fr",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"polish":     "pl",
	"russian":    "ru",
	"turkish":    "tr",
}

// normalizeLanguage lower-cases lang and maps a full language name to its
// code. Unknown full names are returned lower-cased.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if code, ok := languageNames[lang]; ok {
		return code
	}
	return lang
}

// truncate returns at most n bytes of b as a string.
func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
