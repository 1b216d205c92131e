package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidSourceNames lists the recognised vocabulary term sources. Used by
// [Validate] to warn about unrecognised source names.
var ValidSourceNames = []string{"github", "hackernews", "stackoverflow"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
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

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "0.0.0.0:8765"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ReadTimeoutS == 0 {
		cfg.Server.ReadTimeoutS = 60
	}
	if cfg.Server.PingIntervalS == 0 {
		cfg.Server.PingIntervalS = 20
	}
	if cfg.Server.PingTimeoutS == 0 {
		cfg.Server.PingTimeoutS = 10
	}
	if cfg.Server.MaxMessageBytes == 0 {
		cfg.Server.MaxMessageBytes = 10_000_000
	}
	if cfg.Recognizer.Engine == "" {
		cfg.Recognizer.Engine = EngineVosk
	}
	if cfg.Recognizer.SampleRate == 0 {
		cfg.Recognizer.SampleRate = 16000
	}
	if cfg.Vocabulary.RefreshIntervalS == 0 {
		cfg.Vocabulary.RefreshIntervalS = 3600
	}
	if cfg.Vocabulary.SchedulerTickS == 0 {
		cfg.Vocabulary.SchedulerTickS = 300
	}
	if cfg.Vocabulary.FetchTimeoutS == 0 {
		cfg.Vocabulary.FetchTimeoutS = 10
	}
	if len(cfg.Vocabulary.Sources) == 0 {
		cfg.Vocabulary.Sources = slices.Clone(ValidSourceNames)
	}
	if cfg.Correction.ContextWindow == 0 {
		cfg.Correction.ContextWindow = 20
	}
	if cfg.Correction.MaxSuggestions == 0 {
		cfg.Correction.MaxSuggestions = 3
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ReadTimeoutS < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout_s %d must not be negative", cfg.Server.ReadTimeoutS))
	}
	if cfg.Server.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_message_bytes %d must not be negative", cfg.Server.MaxMessageBytes))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Recognizer
	if !cfg.Recognizer.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("recognizer.engine %q is invalid; valid values: vosk, whisper", cfg.Recognizer.Engine))
	}
	if cfg.Recognizer.CustomModelPath == "" && len(cfg.Recognizer.BaseModelPaths) == 0 {
		errs = append(errs, errors.New("recognizer: either custom_model_path or base_model_paths must be set"))
	}
	if cfg.Recognizer.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("recognizer.sample_rate %d must be positive", cfg.Recognizer.SampleRate))
	}

	// Vocabulary
	if cfg.Vocabulary.SchedulerTickS > cfg.Vocabulary.RefreshIntervalS {
		slog.Warn("vocabulary scheduler tick is longer than the refresh interval; refreshes will lag",
			"scheduler_tick_s", cfg.Vocabulary.SchedulerTickS,
			"refresh_interval_s", cfg.Vocabulary.RefreshIntervalS,
		)
	}
	for _, src := range cfg.Vocabulary.Sources {
		validateSourceName(src)
	}

	// Correction
	if cfg.Correction.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("correction.context_window %d must not be negative", cfg.Correction.ContextWindow))
	}
	if cfg.Correction.MaxSuggestions < 0 {
		errs = append(errs, fmt.Errorf("correction.max_suggestions %d must not be negative", cfg.Correction.MaxSuggestions))
	}

	return errors.Join(errs...)
}

// validateSourceName logs a warning if name is not found in
// [ValidSourceNames].
func validateSourceName(name string) {
	if slices.Contains(ValidSourceNames, name) {
		return
	}
	slog.Warn("unknown vocabulary source name, possible typo",
		"name", name,
		"known", ValidSourceNames,
	)
}
