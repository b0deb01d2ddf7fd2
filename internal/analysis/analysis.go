// Package analysis runs the coaching flow: transcribe a recording, then
// analyse a transcript for grammar, pronunciation and the learner's weakest
// point, and record the attempt.
//
// A [Service] is stateless between calls. Every action is one blocking call
// chain; a failing collaborator aborts the action and nothing is recorded.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lingocoach/internal/coach"
	"github.com/MrWong99/lingocoach/internal/grammar"
	"github.com/MrWong99/lingocoach/internal/latin"
	"github.com/MrWong99/lingocoach/internal/observe"
	"github.com/MrWong99/lingocoach/internal/progress"
	"github.com/MrWong99/lingocoach/internal/pronounce"
	"github.com/MrWong99/lingocoach/pkg/provider/langid"
	"github.com/MrWong99/lingocoach/pkg/provider/llm"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
)

var (
	// ErrNoAudio is returned by [Service.Transcribe] when no audio was given.
	ErrNoAudio = errors.New("analysis: record audio first")

	// ErrEmptyTranscript is returned by [Service.Analyze] when the text is
	// blank.
	ErrEmptyTranscript = errors.New("analysis: need transcript text first")

	// ErrStore wraps failures of the attempt store.
	ErrStore = errors.New("analysis: attempt store")

	// ErrNoSpeaker is returned by [Service.History] and [Service.Trend] when
	// no speaker id is available.
	ErrNoSpeaker = errors.New("analysis: speaker id must not be empty")
)

// GrammarChecker condenses grammar-engine output for a transcript.
type GrammarChecker interface {
	Feedback(ctx context.Context, text, langCode string) (grammar.Feedback, error)
}

// Defaults are the per-request values used when a [Request] leaves them
// empty.
type Defaults struct {
	TargetLanguage string
	NativeLanguage string
	SpeakerID      string
	UseLLM         bool

	// PronunciationFeedback enables the extra pronunciation-coaching LLM
	// call.
	PronunciationFeedback bool
}

// Option configures a [Service].
type Option func(*Service)

// WithDefaults sets the per-request defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithTargets tunes the pronunciation target lists.
func WithTargets(o pronounce.Options) Option {
	return func(s *Service) {
		s.targets = o
	}
}

// WithProbeTimeout bounds the LLM availability probe. Default: 3s.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.probeTimeout = d
	}
}

// WithMetrics records collaborator latency and attempt counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces the clock used to stamp attempts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSTTName sets the provider label used in STT metrics. Default: "stt".
func WithSTTName(name string) Option {
	return func(s *Service) {
		s.sttName = name
	}
}

// Service wires the collaborators of the coaching flow. It is safe for
// concurrent use.
type Service struct {
	stt      stt.Provider
	langid   langid.Identifier
	grammar  GrammarChecker
	coach    *coach.Coach
	store    progress.Store
	metrics  *observe.Metrics
	now      func() time.Time
	sttName  string
	defaults Defaults
	targets  pronounce.Options

	probeTimeout time.Duration
}

// New creates a Service. coach may be nil, in which case the LLM is treated
// as disabled for every request.
func New(sttp stt.Provider, id langid.Identifier, gc GrammarChecker, c *coach.Coach, store progress.Store, opts ...Option) *Service {
	s := &Service{
		stt:     sttp,
		langid:  id,
		grammar: gc,
		coach:   c,
		store:   store,
		now:     time.Now,
		sttName: "stt",
		defaults: Defaults{
			TargetLanguage: "en",
			NativeLanguage: "en",
			SpeakerID:      "default",
			UseLLM:         true,
		},
		probeTimeout: 3 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Transcription is the outcome of [Service.Transcribe].
type Transcription struct {
	Text                string  `json:"text"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`

	// Duration is the clip length in seconds.
	Duration float64 `json:"duration"`
}

// Transcribe converts a recording to text. languageHint may be empty to let
// the engine detect the language.
func (s *Service) Transcribe(ctx context.Context, audio []byte, languageHint string) (Transcription, error) {
	if len(audio) == 0 {
		return Transcription{}, ErrNoAudio
	}

	ctx, span := observe.StartSpan(ctx, "analysis.transcribe",
		observe.AttrProvider.String(s.sttName),
		observe.AttrLanguage.String(languageHint),
	)
	defer span.End()

	start := time.Now()
	res, err := s.stt.Transcribe(ctx, audio, languageHint)
	if s.metrics != nil {
		s.metrics.ObserveCall(ctx, observe.KindSTT, s.sttName, start, err)
	}
	if err != nil {
		return Transcription{}, observe.Fail(span, fmt.Errorf("analysis: transcribe: %w", err))
	}
	observe.Logger(ctx).Debug("transcribed recording",
		"bytes", len(audio),
		"language", res.Language,
		"probability", res.LanguageProbability,
		"elapsed", time.Since(start),
	)
	return Transcription{
		Text:                res.Text,
		Language:            res.Language,
		LanguageProbability: res.LanguageProbability,
		Duration:            res.Duration.Seconds(),
	}, nil
}

// Request is the input of [Service.Analyze]. Empty fields take the
// service defaults.
type Request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language,omitempty"`
	NativeLanguage string `json:"native_language,omitempty"`
	SpeakerID      string `json:"speaker_id,omitempty"`

	// UseLLM overrides the default LLM switch when non-nil.
	UseLLM *bool `json:"use_llm,omitempty"`

	// PronunciationFeedback overrides the default when non-nil.
	PronunciationFeedback *bool `json:"pronunciation_feedback,omitempty"`
}

// Result is the outcome of [Service.Analyze].
type Result struct {
	AttemptID      int64  `json:"attempt_id"`
	Timestamp      string `json:"ts"`
	SpeakerID      string `json:"speaker_id"`
	Transcript     string `json:"transcript"`
	TargetLanguage string `json:"target_language"`
	NativeLanguage string `json:"native_language"`

	// DetectedLanguage is the identified language code or "unknown".
	DetectedLanguage string `json:"detected_language"`

	Grammar        grammar.Feedback   `json:"grammar"`
	WeakestPoint   coach.WeakestPoint `json:"weakest"`
	PracticeModule string             `json:"practice"`

	Latin             string            `json:"latin_text"`
	PronunciationHint string            `json:"latin_pron"`
	Targets           pronounce.Targets `json:"pron_targets"`

	// PronunciationFeedback is empty unless requested.
	PronunciationFeedback string `json:"pronunciation_feedback,omitempty"`

	// LLMModel names the model used, or is empty when the LLM was off.
	LLMModel string `json:"llm_model"`
}

// resolved is a Request with defaults applied.
type resolved struct {
	target, native, speaker string
	useLLM, pronFeedback    bool
}

func (s *Service) resolve(req Request) resolved {
	r := resolved{
		target:       firstNonEmpty(req.TargetLanguage, s.defaults.TargetLanguage),
		native:       firstNonEmpty(req.NativeLanguage, s.defaults.NativeLanguage),
		speaker:      firstNonEmpty(strings.TrimSpace(req.SpeakerID), s.defaults.SpeakerID),
		useLLM:       s.defaults.UseLLM,
		pronFeedback: s.defaults.PronunciationFeedback,
	}
	if req.UseLLM != nil {
		r.useLLM = *req.UseLLM
	}
	if req.PronunciationFeedback != nil {
		r.pronFeedback = *req.PronunciationFeedback
	}
	if s.coach == nil {
		r.useLLM = false
	}
	return r
}

// Analyze runs the full analysis of req.Text and records the attempt.
//
// Language identification and grammar checking run alongside the local
// romanisation and pronunciation analysis. The LLM steps follow in order
// because the practice module depends on the weakest point. A grammar, LLM
// or store failure aborts the call and no attempt is recorded.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, ErrEmptyTranscript
	}
	opts := s.resolve(req)
	text := req.Text

	ctx, span := observe.StartSpan(ctx, "analysis.analyze",
		observe.AttrSpeaker.String(opts.speaker),
		observe.AttrLanguage.String(opts.target),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	res := Result{
		SpeakerID:      opts.speaker,
		Transcript:     text,
		TargetLanguage: opts.target,
		NativeLanguage: opts.native,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.DetectedLanguage = s.identify(text)
		fb, err := s.grammar.Feedback(gctx, text, res.DetectedLanguage)
		if err != nil {
			return err
		}
		res.Grammar = fb
		return nil
	})
	g.Go(func() error {
		res.Latin = latin.Latinize(text)
		res.PronunciationHint = latin.PronunciationHint(res.Latin)
		res.Targets = pronounce.Analyze(text, opts.native, s.targets)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, observe.Fail(span, fmt.Errorf("analysis: %w", err))
	}

	res.WeakestPoint = coach.DisabledWeakestPoint()
	res.PracticeModule = coach.Disabled
	if opts.useLLM {
		wp, err := s.coach.WeakestPoint(ctx, coach.WeakestPointInput{
			Text:             text,
			DetectedLanguage: res.DetectedLanguage,
			TargetLanguage:   opts.target,
			NativeLanguage:   opts.native,
			GrammarSummary:   res.Grammar.Summary,
		})
		if err != nil {
			return Result{}, observe.Fail(span, fmt.Errorf("analysis: %w", err))
		}
		res.WeakestPoint = wp

		practice, err := s.coach.PracticeModule(ctx, coach.PracticeInput{
			Text:             text,
			DetectedLanguage: res.DetectedLanguage,
			TargetLanguage:   opts.target,
			NativeLanguage:   opts.native,
			WeakestPoint:     wp.Phrase,
		})
		if err != nil {
			return Result{}, observe.Fail(span, fmt.Errorf("analysis: %w", err))
		}
		res.PracticeModule = practice
		res.LLMModel = s.coach.Model()

		if opts.pronFeedback {
			fb, err := s.coach.PronunciationFeedback(ctx, coach.PronunciationInput{
				Text:           text,
				TargetLanguage: opts.target,
				LatinHint:      res.PronunciationHint,
				SoundAlikes:    res.Targets.SoundAlikes,
			})
			if err != nil {
				return Result{}, observe.Fail(span, fmt.Errorf("analysis: %w", err))
			}
			res.PronunciationFeedback = fb
		}
	}

	res.Timestamp = progress.Stamp(s.now())
	storeStart := time.Now()
	id, err := s.store.Record(ctx, progress.Attempt{
		SpeakerID:        opts.speaker,
		Timestamp:        res.Timestamp,
		TargetLanguage:   opts.target,
		DetectedLanguage: res.DetectedLanguage,
		Transcript:       text,
		WeakestPoint:     res.WeakestPoint.Phrase,
		NumIssues:        res.Grammar.NumMatches,
		LLMModel:         res.LLMModel,
	})
	if s.metrics != nil {
		s.metrics.ObserveCall(ctx, observe.KindStore, "progress", storeStart, err)
	}
	if err != nil {
		return Result{}, observe.Fail(span, fmt.Errorf("%w: record: %w", ErrStore, err))
	}
	res.AttemptID = id
	if s.metrics != nil {
		s.metrics.RecordAttempt(ctx, opts.target, opts.useLLM)
	}

	observe.Logger(ctx).Info("attempt analysed",
		"attempt_id", id,
		"speaker", opts.speaker,
		"detected", res.DetectedLanguage,
		"issues", res.Grammar.NumMatches,
		"llm", opts.useLLM,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// identify returns the language of text, or langid.Unknown if the
// identifier panics.
func (s *Service) identify(text string) (code string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("analysis: language identifier panicked", "panic", r)
			code = langid.Unknown
		}
	}()
	code = s.langid.Identify(text)
	if code == "" {
		code = langid.Unknown
	}
	return code
}

// LLMStatus describes the configured LLM.
type LLMStatus struct {
	Enabled   bool   `json:"enabled"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
}

// LLMStatus reports whether the configured model is installed on the LLM
// backend. The probe is bounded by the probe timeout and any failure reads
// as unavailable.
func (s *Service) LLMStatus(ctx context.Context) LLMStatus {
	if s.coach == nil {
		return LLMStatus{}
	}
	st := LLMStatus{Enabled: s.defaults.UseLLM, Model: s.coach.Model()}
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	st.Available = llm.HasModel(ctx, s.coach.Provider(), st.Model)
	return st
}

// History returns the newest attempts of speakerID, newest first. An empty
// speakerID uses the default speaker.
func (s *Service) History(ctx context.Context, speakerID string) ([]progress.Attempt, error) {
	speakerID = firstNonEmpty(strings.TrimSpace(speakerID), s.defaults.SpeakerID)
	if speakerID == "" {
		return nil, ErrNoSpeaker
	}
	start := time.Now()
	attempts, err := s.store.List(ctx, speakerID)
	if s.metrics != nil {
		s.metrics.ObserveCall(ctx, observe.KindStore, "progress", start, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStore, err)
	}
	return attempts, nil
}

// Trend returns the issue-count series of speakerID, oldest first.
func (s *Service) Trend(ctx context.Context, speakerID string) ([]progress.TrendPoint, error) {
	attempts, err := s.History(ctx, speakerID)
	if err != nil {
		return nil, err
	}
	return progress.Trend(attempts), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
