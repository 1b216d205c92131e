// Package recognizer wraps opaque speech-to-text engines behind a uniform
// streaming contract.
//
// An Engine owns a loaded acoustic model and is shared across all
// connections. Each connection opens its own Session: a stateful decoder that
// accepts raw 16-bit little-endian PCM audio and reports utterance
// boundaries. Sessions are exclusively owned by one connection and must never
// be shared; Engines must be safe for concurrent NewSession calls.
package recognizer

import (
	"errors"
	"fmt"
	"os"
)

// ModelType names the active model variant. It decides whether the
// vocabulary-correction pipeline runs on top of the raw transcript.
type ModelType string

const (
	// ModelCustomTrained is a domain-adapted model whose output is trusted
	// as-is; no correction pass is applied.
	ModelCustomTrained ModelType = "custom-trained"

	// ModelBaseWithCorrection is a stock model whose output is routed
	// through the technical-vocabulary corrector.
	ModelBaseWithCorrection ModelType = "base-with-correction"
)

// CorrectionEnabled reports whether transcripts from this model variant
// should be post-processed by the corrector.
func (t ModelType) CorrectionEnabled() bool {
	return t != ModelCustomTrained
}

// Word holds per-word timing and confidence detail for a final result.
// Times are seconds from the start of the utterance.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// Result is an authoritative recognition result for one utterance.
type Result struct {
	Text       string
	Confidence float64
	Words      []Word
}

// Session is one connection's exclusive decoder state.
//
// Sessions are not safe for concurrent use; the owning connection drives all
// calls from its single read loop. Callers must call Close when the session
// ends, and must not use the session afterwards.
type Session interface {
	// AcceptAudio feeds a chunk of raw 16 kHz mono PCM audio to the decoder.
	// It returns true when an utterance boundary was reached, meaning
	// FinalResult now holds a committed transcript; false means the decoder
	// is still accumulating and PartialResult holds the current guess.
	AcceptAudio(chunk []byte) (bool, error)

	// FinalResult returns the committed transcript for the utterance that
	// just ended, consuming it. Calling it flushes any buffered audio, so it
	// is also used to drain the decoder on disconnect.
	FinalResult() (Result, error)

	// PartialResult returns the decoder's current interim guess. May be
	// empty while the decoder has not heard enough speech.
	PartialResult() (string, error)

	// Reset discards all accumulated audio and decoder state, as if the
	// session had just been opened.
	Reset() error

	// Close releases the decoder. Calling Close more than once is safe.
	Close() error
}

// Engine is the abstraction over a loaded STT model.
//
// Implementations must be safe for concurrent use; many sessions may be open
// at once, one per connection.
type Engine interface {
	// NewSession opens a fresh decoder bound to the engine's model.
	// The caller owns the Session and must call Close when done.
	NewSession() (Session, error)

	// ModelType reports which model variant the engine loaded.
	ModelType() ModelType

	// SampleRate is the PCM sample rate in Hz the engine expects.
	SampleRate() int

	// Close releases the model. No sessions may be opened afterwards.
	Close() error
}

// ErrClosed is returned by Session methods after Close.
var ErrClosed = errors.New("recognizer: session is closed")

// ResolveModelPath picks the model directory to load. A configured
// custom-trained model always wins; otherwise the base model paths are probed
// in their declared preference order (largest first) and the first one that
// exists on disk is used.
//
// A missing model is a startup configuration error; the process should exit.
func ResolveModelPath(customPath string, basePaths []string) (string, ModelType, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err != nil {
			return "", "", fmt.Errorf("recognizer: custom model %q: %w", customPath, err)
		}
		return customPath, ModelCustomTrained, nil
	}
	for _, p := range basePaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, ModelBaseWithCorrection, nil
		}
	}
	return "", "", fmt.Errorf("recognizer: no model found in any of %v", basePaths)
}
