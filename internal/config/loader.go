package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr     = ":8501"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultOllamaModel    = "llama3.2:3b"
	DefaultWhisperURL     = "http://127.0.0.1:8080"
	DefaultLanguageTool   = "http://localhost:8081"
	DefaultLanguage       = "en"
	DefaultSpeakerID      = "default"
	DefaultLLMTimeout     = 2 * time.Minute
	DefaultProbeTimeout   = 3 * time.Second
	DefaultBiggestWords   = 10
	DefaultMismatchWords  = 12
	DefaultSoundAlikes    = 5
	DefaultSQLitePath     = "data/progress.db"
	defaultLLMProvider    = "ollama"
	defaultSTTProvider    = "whisper"
	defaultGrammarBackend = "languagetool"
	defaultLangIDBackend  = "lingua"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":     {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":     {"whisper", "whisper-native", "deepgram"},
	"grammar": {"languagetool"},
	"langid":  {"lingua"},
}

// Env holds the deployment knobs read from the environment. Set variables
// win over the YAML file.
type Env struct {
	OllamaURL       string `env:"OLLAMA_URL" env-description:"Ollama base URL used by the ollama LLM provider"`
	OllamaModel     string `env:"OLLAMA_MODEL" env-description:"model name used by the LLM provider"`
	ListenAddr      string `env:"LINGOCOACH_LISTEN_ADDR" env-description:"HTTP listen address"`
	LogLevel        string `env:"LINGOCOACH_LOG_LEVEL" env-description:"debug, info, warn or error"`
	UseLLM          string `env:"LINGOCOACH_USE_LLM" env-description:"true or false; switches the LLM coaching calls"`
	StoreDriver     string `env:"LINGOCOACH_STORE_DRIVER" env-description:"sqlite or postgres"`
	StorePath       string `env:"LINGOCOACH_STORE_PATH" env-description:"SQLite database file"`
	StoreDSN        string `env:"LINGOCOACH_STORE_DSN" env-description:"PostgreSQL connection string"`
	LanguageToolURL string `env:"LANGUAGETOOL_URL" env-description:"LanguageTool server base URL"`
	WhisperURL      string `env:"WHISPER_URL" env-description:"whisper.cpp server base URL"`
}

// EnvUsage describes the environment variables [ApplyEnv] reads.
func EnvUsage() string {
	desc, err := cleanenv.GetDescription(&Env{}, nil)
	if err != nil {
		return ""
	}
	return desc
}

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and validates the result. An empty path skips the
// file and configures from the environment and defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return finish(&Config{})
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, then applies environment
// overrides, defaults and validation. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the variables described by [Env] onto cfg.
func ApplyEnv(cfg *Config) error {
	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	return env.apply(cfg)
}

func (e Env) apply(cfg *Config) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.ListenAddr, e.ListenAddr)
	if e.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(e.LogLevel)
	}
	if e.UseLLM != "" {
		b, err := strconv.ParseBool(e.UseLLM)
		if err != nil {
			return fmt.Errorf("config: LINGOCOACH_USE_LLM %q: %w", e.UseLLM, err)
		}
		cfg.Coach.UseLLM = &b
	}
	if e.StoreDriver != "" {
		cfg.Store.Driver = StoreDriver(e.StoreDriver)
	}
	set(&cfg.Store.Path, e.StorePath)
	set(&cfg.Store.DSN, e.StoreDSN)

	llmName := cfg.Providers.LLM.Name
	if llmName == "" || llmName == defaultLLMProvider {
		set(&cfg.Providers.LLM.BaseURL, e.OllamaURL)
	}
	set(&cfg.Providers.LLM.Model, e.OllamaModel)

	if cfg.Providers.Grammar.Name == "" || cfg.Providers.Grammar.Name == defaultGrammarBackend {
		set(&cfg.Providers.Grammar.BaseURL, e.LanguageToolURL)
	}
	if cfg.Providers.STT.Name == "" || cfg.Providers.STT.Name == defaultSTTProvider {
		set(&cfg.Providers.STT.BaseURL, e.WhisperURL)
	}
	return nil
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	def(&cfg.Server.ListenAddr, DefaultListenAddr)
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	p := &cfg.Providers
	def(&p.LLM.Name, defaultLLMProvider)
	if p.LLM.Name == defaultLLMProvider {
		def(&p.LLM.BaseURL, DefaultOllamaURL)
		def(&p.LLM.Model, DefaultOllamaModel)
	}
	def(&p.STT.Name, defaultSTTProvider)
	if p.STT.Name == defaultSTTProvider {
		def(&p.STT.BaseURL, DefaultWhisperURL)
	}
	def(&p.Grammar.Name, defaultGrammarBackend)
	if p.Grammar.Name == defaultGrammarBackend {
		def(&p.Grammar.BaseURL, DefaultLanguageTool)
	}
	def(&p.LangID.Name, defaultLangIDBackend)

	c := &cfg.Coach
	if c.UseLLM == nil {
		on := true
		c.UseLLM = &on
	}
	def(&c.TargetLanguage, DefaultLanguage)
	def(&c.NativeLanguage, DefaultLanguage)
	def(&c.SpeakerID, DefaultSpeakerID)
	if c.LLMTimeout == 0 {
		c.LLMTimeout = DefaultLLMTimeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.BiggestWords == 0 {
		c.BiggestWords = DefaultBiggestWords
	}
	if c.MismatchWords == 0 {
		c.MismatchWords = DefaultMismatchWords
	}
	if c.SoundAlikeGroups == 0 {
		c.SoundAlikeGroups = DefaultSoundAlikes
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.Driver == StoreSQLite {
		def(&cfg.Store.Path, DefaultSQLitePath)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("grammar", cfg.Providers.Grammar.Name)
	validateProviderName("langid", cfg.Providers.LangID.Name)
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}

	c := cfg.Coach
	for field, lang := range map[string]string{"target_language": c.TargetLanguage, "native_language": c.NativeLanguage} {
		if lang != "" && !slices.Contains(SupportedLanguages, lang) {
			errs = append(errs, fmt.Errorf("coach.%s %q is not supported; valid values: %v", field, lang, SupportedLanguages))
		}
	}
	if c.LLMTimeout < 0 {
		errs = append(errs, fmt.Errorf("coach.llm_timeout %s must not be negative", c.LLMTimeout))
	}
	if c.ProbeTimeout < 0 {
		errs = append(errs, fmt.Errorf("coach.probe_timeout %s must not be negative", c.ProbeTimeout))
	}
	for field, n := range map[string]int{"biggest_words": c.BiggestWords, "mismatch_words": c.MismatchWords, "sound_alike_groups": c.SoundAlikeGroups} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("coach.%s %d must not be negative", field, n))
		}
	}
	if c.PronunciationFeedback && !c.LLMEnabled() {
		slog.Warn("coach.pronunciation_feedback is set but the LLM is disabled; no pronunciation feedback will be produced")
	}

	if cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: sqlite, postgres", cfg.Store.Driver))
	}
	if cfg.Store.Driver == StorePostgres && cfg.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required when store.driver is postgres"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
