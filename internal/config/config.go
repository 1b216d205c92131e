// Package config provides the configuration schema and loader for the
// voxlex transcription server.
package config

import "time"

// LogLevel controls log verbosity for the voxlex server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Engine selects the speech-to-text backend.
type Engine string

const (
	// EngineVosk uses the Vosk/Kaldi streaming decoder.
	EngineVosk Engine = "vosk"

	// EngineWhisper uses whisper.cpp batch inference with silence-based
	// utterance segmentation.
	EngineWhisper Engine = "whisper"
)

// IsValid reports whether e is a recognised engine.
func (e Engine) IsValid() bool {
	return e == EngineVosk || e == EngineWhisper
}

// Config is the root configuration structure for voxlex.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Correction CorrectionConfig `yaml:"correction"`
}

// ServerConfig holds network, timeout, and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on.
	// Defaults to "0.0.0.0:8765".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ReadTimeoutS is how long (seconds) the session read loop waits for a
	// frame before sending a keepalive ping. Defaults to 60.
	ReadTimeoutS int `yaml:"read_timeout_s"`

	// PingIntervalS is the transport-level ping interval in seconds.
	// Defaults to 20.
	PingIntervalS int `yaml:"ping_interval_s"`

	// PingTimeoutS is how long (seconds) to wait for a transport pong
	// before declaring the connection dead. Defaults to 10.
	PingTimeoutS int `yaml:"ping_timeout_s"`

	// MaxMessageBytes caps the size of a single inbound frame.
	// Defaults to 10 MB.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RecognizerConfig selects and tunes the STT backend.
type RecognizerConfig struct {
	// Engine selects the backend. Defaults to "vosk".
	Engine Engine `yaml:"engine"`

	// CustomModelPath, when set, points to a domain-adapted model that
	// skips the correction pipeline entirely. Takes precedence over
	// BaseModelPaths.
	CustomModelPath string `yaml:"custom_model_path"`

	// BaseModelPaths lists stock model directories in preference order,
	// largest first. The first path that exists on disk is loaded.
	BaseModelPaths []string `yaml:"base_model_paths"`

	// SampleRate is the PCM sample rate in Hz clients must send.
	// Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// Language is the BCP-47 language code, used by the whisper engine.
	Language string `yaml:"language"`

	// SilenceThresholdMs is the consecutive-silence duration (ms) that
	// closes a whisper utterance. Ignored by vosk.
	SilenceThresholdMs int `yaml:"silence_threshold_ms"`

	// MaxBufferDurationMs caps buffered whisper audio (ms) before a forced
	// utterance flush. Ignored by vosk.
	MaxBufferDurationMs int `yaml:"max_buffer_duration_ms"`
}

// VocabularyConfig tunes the dynamic vocabulary store and its background
// refresh.
type VocabularyConfig struct {
	// RefreshIntervalS is the minimum spacing (seconds) between external
	// refresh attempts. Defaults to 3600.
	RefreshIntervalS int `yaml:"refresh_interval_s"`

	// SchedulerTickS is how often (seconds) the scheduler checks whether a
	// refresh is due. Defaults to 300.
	SchedulerTickS int `yaml:"scheduler_tick_s"`

	// FetchTimeoutS is the per-source HTTP timeout in seconds.
	// Defaults to 10.
	FetchTimeoutS int `yaml:"fetch_timeout_s"`

	// Sources lists the enabled term sources. Valid values: "github",
	// "hackernews", "stackoverflow". Empty enables all of them.
	Sources []string `yaml:"sources"`

	// CustomTerms are extra seed terms added at startup. Each candidate
	// still has to pass the technical-term heuristic.
	CustomTerms []string `yaml:"custom_terms"`
}

// CorrectionConfig tunes the transcript correction pipeline.
type CorrectionConfig struct {
	// ContextWindow is how many recent utterances feed the context
	// vocabulary. Defaults to 20.
	ContextWindow int `yaml:"context_window"`

	// MaxSuggestions caps the suggestion list attached to final events.
	// Defaults to 3.
	MaxSuggestions int `yaml:"max_suggestions"`
}

// ReadTimeout returns the session read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutS) * time.Second
}

// PingInterval returns the transport ping interval as a duration.
func (s ServerConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalS) * time.Second
}

// PingTimeout returns the transport pong deadline as a duration.
func (s ServerConfig) PingTimeout() time.Duration {
	return time.Duration(s.PingTimeoutS) * time.Second
}

// RefreshInterval returns the minimum refresh spacing as a duration.
func (v VocabularyConfig) RefreshInterval() time.Duration {
	return time.Duration(v.RefreshIntervalS) * time.Second
}

// SchedulerTick returns the scheduler wake interval as a duration.
func (v VocabularyConfig) SchedulerTick() time.Duration {
	return time.Duration(v.SchedulerTickS) * time.Second
}

// FetchTimeout returns the per-source HTTP timeout as a duration.
func (v VocabularyConfig) FetchTimeout() time.Duration {
	return time.Duration(v.FetchTimeoutS) * time.Second
}
