// This file contains the whisper.cpp-backed Engine implementation using the
// ggerganov CGO bindings. The whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// whisper.cpp is a batch transcription engine, so the session simulates the
// streaming contract: incoming PCM is buffered, an energy-based silence
// detector segments utterances, and AcceptAudio reports an utterance boundary
// once enough consecutive silence follows speech (or the buffer duration cap
// is hit). Because inference only runs on boundaries, PartialResult returns
// the last committed text rather than a true low-latency interim guess.

package recognizer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit
	// PCM units) below which audio is considered silent. The maximum
	// possible value for 16-bit audio is 32 767; 300 corresponds to
	// near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000
)

// Compile-time assertion that WhisperEngine satisfies Engine.
var _ Engine = (*WhisperEngine)(nil)

// WhisperEngine implements Engine on top of a whisper.cpp model. The model
// is loaded once and shared; each session creates its own inference context
// on demand since whisper contexts are not thread-safe.
type WhisperEngine struct {
	model     whisperlib.Model
	modelType ModelType
	language  string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// WhisperOption is a functional option for configuring a WhisperEngine.
type WhisperOption func(*WhisperEngine)

// WithWhisperLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de"). Defaults to "en".
func WithWhisperLanguage(lang string) WhisperOption {
	return func(e *WhisperEngine) { e.language = lang }
}

// WithWhisperSampleRate sets the PCM sample rate in Hz. Defaults to 16000.
func WithWhisperSampleRate(rate int) WhisperOption {
	return func(e *WhisperEngine) { e.sampleRate = rate }
}

// WithWhisperSilenceThresholdMs sets the consecutive-silence duration (ms)
// after speech that closes an utterance. Defaults to 500 ms.
func WithWhisperSilenceThresholdMs(ms int) WhisperOption {
	return func(e *WhisperEngine) { e.silenceThresholdMs = ms }
}

// WithWhisperMaxBufferDurationMs sets the maximum buffered audio duration
// (ms) before an utterance is force-closed. Defaults to 10 000 ms.
func WithWhisperMaxBufferDurationMs(ms int) WhisperOption {
	return func(e *WhisperEngine) { e.maxBufferDurationMs = ms }
}

// NewWhisper loads the whisper.cpp model from the given file path. The
// caller must call Close when the engine is no longer needed.
func NewWhisper(modelPath string, modelType ModelType, opts ...WhisperOption) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, errors.New("recognizer: whisper modelPath must not be empty")
	}
	slog.Info("loading whisper model", "path", modelPath, "model_type", modelType)
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("recognizer: load whisper model %q: %w", modelPath, err)
	}

	e := &WhisperEngine{
		model:               model,
		modelType:           modelType,
		language:            defaultLanguage,
		sampleRate:          16000,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// ModelType reports the variant resolved at load time.
func (e *WhisperEngine) ModelType() ModelType { return e.modelType }

// SampleRate returns the configured PCM sample rate in Hz.
func (e *WhisperEngine) SampleRate() int { return e.sampleRate }

// Close releases the whisper model.
func (e *WhisperEngine) Close() error {
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}

// NewSession opens a buffering session over the shared model.
func (e *WhisperEngine) NewSession() (Session, error) {
	if e.model == nil {
		return nil, errors.New("recognizer: whisper engine is closed")
	}
	return &whisperSession{engine: e, open: true}, nil
}

// whisperSession accumulates PCM and runs inference on utterance boundaries.
// All state is confined to the owning connection's read loop.
type whisperSession struct {
	engine *WhisperEngine
	open   bool

	buffer    []byte
	hadSpeech bool
	silenceMs int

	// pending holds an inferred result awaiting FinalResult.
	pending   Result
	hasResult bool
}

var _ Session = (*whisperSession)(nil)

func (s *whisperSession) AcceptAudio(chunk []byte) (bool, error) {
	if !s.open {
		return false, ErrClosed
	}

	rms := computeRMS(chunk)
	chunkMs := chunkDurationMs(chunk, s.engine.sampleRate)

	if rms < defaultRMSThreshold {
		if !s.hadSpeech {
			return false, nil
		}
		s.silenceMs += chunkMs
		s.buffer = append(s.buffer, chunk...)
		if s.silenceMs >= s.engine.silenceThresholdMs {
			return s.commit()
		}
		return false, nil
	}

	s.hadSpeech = true
	s.silenceMs = 0
	s.buffer = append(s.buffer, chunk...)

	maxBytes := s.engine.maxBufferDurationMs * s.engine.sampleRate * (bitsPerSample / 8) / 1000
	if maxBytes > 0 && len(s.buffer) >= maxBytes {
		return s.commit()
	}
	return false, nil
}

// commit runs inference over the buffered utterance and stages the result
// for FinalResult. Inference failure degrades to "no boundary"; the session
// keeps accepting audio.
func (s *whisperSession) commit() (bool, error) {
	pcm := s.buffer
	s.buffer = nil
	s.hadSpeech = false
	s.silenceMs = 0

	if len(pcm) == 0 {
		return false, nil
	}
	text, err := s.infer(pcm)
	if err != nil {
		slog.Error("whisper inference failed", "error", err)
		return false, nil
	}
	if text == "" {
		return false, nil
	}
	s.pending = Result{Text: text}
	s.hasResult = true
	return true, nil
}

func (s *whisperSession) FinalResult() (Result, error) {
	if !s.open {
		return Result{}, ErrClosed
	}
	if !s.hasResult {
		// Drain: flush whatever speech is still buffered.
		if len(s.buffer) > 0 && s.hadSpeech {
			if _, err := s.commit(); err != nil {
				return Result{}, err
			}
		}
		if !s.hasResult {
			return Result{}, nil
		}
	}
	res := s.pending
	s.pending = Result{}
	s.hasResult = false
	return res, nil
}

// PartialResult returns an empty guess; whisper.cpp cannot produce interim
// hypotheses without running full inference.
func (s *whisperSession) PartialResult() (string, error) {
	if !s.open {
		return "", ErrClosed
	}
	return "", nil
}

func (s *whisperSession) Reset() error {
	if !s.open {
		return ErrClosed
	}
	s.buffer = nil
	s.hadSpeech = false
	s.silenceMs = 0
	s.pending = Result{}
	s.hasResult = false
	return nil
}

func (s *whisperSession) Close() error {
	s.open = false
	s.buffer = nil
	return nil
}

// infer converts the buffered PCM to float32, runs whisper.cpp inference
// with a fresh context, and returns the concatenated segment text.
func (s *whisperSession) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	// Contexts are not thread-safe but the model can be shared; one fresh
	// context per inference keeps sessions independent.
	wctx, err := s.engine.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("recognizer: create whisper context: %w", err)
	}

	if err := wctx.SetLanguage(s.engine.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", s.engine.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("recognizer: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("recognizer: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
