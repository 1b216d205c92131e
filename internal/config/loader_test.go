package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
recognizer:
  base_model_paths:
    - /models/vosk-model-en-us-0.22
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != "0.0.0.0:8765" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Server.ReadTimeout() != 60*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout())
	}
	if cfg.Server.PingInterval() != 20*time.Second || cfg.Server.PingTimeout() != 10*time.Second {
		t.Errorf("ping = %v/%v, want 20s/10s", cfg.Server.PingInterval(), cfg.Server.PingTimeout())
	}
	if cfg.Server.MaxMessageBytes != 10_000_000 {
		t.Errorf("MaxMessageBytes = %d", cfg.Server.MaxMessageBytes)
	}
	if cfg.Recognizer.Engine != EngineVosk {
		t.Errorf("Engine = %q", cfg.Recognizer.Engine)
	}
	if cfg.Recognizer.SampleRate != 16000 {
		t.Errorf("SampleRate = %d", cfg.Recognizer.SampleRate)
	}
	if cfg.Vocabulary.RefreshInterval() != time.Hour {
		t.Errorf("RefreshInterval = %v", cfg.Vocabulary.RefreshInterval())
	}
	if len(cfg.Vocabulary.Sources) != 3 {
		t.Errorf("Sources = %v, want all three enabled", cfg.Vocabulary.Sources)
	}
	if cfg.Correction.ContextWindow != 20 || cfg.Correction.MaxSuggestions != 3 {
		t.Errorf("Correction = %+v", cfg.Correction)
	}
}

func TestLoadFromReaderOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
server:
  listen_addr: "127.0.0.1:9000"
  log_level: debug
  read_timeout_s: 30
recognizer:
  engine: whisper
  custom_model_path: /models/ggml-base.en.bin
  language: en
  silence_threshold_ms: 700
vocabulary:
  sources: [github]
  custom_terms: [fooapi, barjs]
correction:
  max_suggestions: 5
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9000" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout() != 30*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout())
	}
	if cfg.Recognizer.Engine != EngineWhisper || cfg.Recognizer.SilenceThresholdMs != 700 {
		t.Errorf("recognizer = %+v", cfg.Recognizer)
	}
	if len(cfg.Vocabulary.Sources) != 1 || cfg.Vocabulary.Sources[0] != "github" {
		t.Errorf("Sources = %v", cfg.Vocabulary.Sources)
	}
	if len(cfg.Vocabulary.CustomTerms) != 2 {
		t.Errorf("CustomTerms = %v", cfg.Vocabulary.CustomTerms)
	}
	if cfg.Correction.MaxSuggestions != 5 {
		t.Errorf("MaxSuggestions = %d", cfg.Correction.MaxSuggestions)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
server:
  listen_adress: "oops"
recognizer:
  base_model_paths: [/m]
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReaderEmpty(t *testing.T) {
	t.Parallel()

	// An empty document still gets defaults, but fails validation because
	// no model path is configured.
	_, err := LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected validation error for missing model paths")
	}
	if !strings.Contains(err.Error(), "custom_model_path or base_model_paths") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateCollectsAllFailures(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.LogLevel = "loud"
	cfg.Server.ReadTimeoutS = -1
	cfg.Recognizer.Engine = "sphinx"
	cfg.Recognizer.SampleRate = 0
	cfg.Correction.MaxSuggestions = -2

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log_level", "read_timeout_s", "engine", "sample_rate", "max_suggestions"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestValidateTLS(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Recognizer.BaseModelPaths = []string{"/m"}
	cfg.Server.TLS = &TLSConfig{CertFile: "/certs/server.pem"}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "key_file") {
		t.Errorf("expected key_file error, got %v", err)
	}

	cfg.Server.TLS.KeyFile = "/certs/server.key"
	if err := Validate(cfg); err != nil {
		t.Errorf("complete TLS config should validate: %v", err)
	}
}

func TestLogLevelAndEngineValidity(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if LogLevel("verbose").IsValid() {
		t.Error("verbose should be invalid")
	}

	if !EngineVosk.IsValid() || !EngineWhisper.IsValid() {
		t.Error("built-in engines should be valid")
	}
	if Engine("sphinx").IsValid() {
		t.Error("sphinx should be invalid")
	}
}
