// This file contains the Vosk-backed Engine implementation using the
// alphacep CGO bindings. libvosk must be available at link time via
// LIBRARY_PATH and C_INCLUDE_PATH environment variables.

package recognizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Compile-time assertion that VoskEngine satisfies Engine.
var _ Engine = (*VoskEngine)(nil)

// voskQuiet silences the Kaldi log spew once per process.
var voskQuiet sync.Once

// VoskEngine implements Engine on top of a Vosk/Kaldi model. The model is
// loaded once at startup and shared across all sessions; each session gets
// its own KaldiRecognizer.
type VoskEngine struct {
	model      *vosk.VoskModel
	modelType  ModelType
	sampleRate int
}

// VoskOption is a functional option for configuring a VoskEngine.
type VoskOption func(*VoskEngine)

// WithVoskSampleRate sets the PCM sample rate in Hz. This must match the
// audio clients actually send. Defaults to 16000.
func WithVoskSampleRate(rate int) VoskOption {
	return func(e *VoskEngine) { e.sampleRate = rate }
}

// NewVosk loads the Vosk model at modelPath and returns an engine for it.
// The caller must call Close when the engine is no longer needed.
func NewVosk(modelPath string, modelType ModelType, opts ...VoskOption) (*VoskEngine, error) {
	voskQuiet.Do(func() { vosk.SetLogLevel(-1) })

	slog.Info("loading vosk model", "path", modelPath, "model_type", modelType)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("recognizer: load vosk model %q: %w", modelPath, err)
	}

	e := &VoskEngine{
		model:      model,
		modelType:  modelType,
		sampleRate: 16000,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// ModelType reports the variant resolved at load time.
func (e *VoskEngine) ModelType() ModelType { return e.modelType }

// SampleRate returns the configured PCM sample rate in Hz.
func (e *VoskEngine) SampleRate() int { return e.sampleRate }

// Close frees the shared model. Open sessions must be closed first.
func (e *VoskEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

// NewSession creates a fresh KaldiRecognizer with word-level timestamps
// enabled.
func (e *VoskEngine) NewSession() (Session, error) {
	rec, err := e.newRecognizer()
	if err != nil {
		return nil, err
	}
	return &voskSession{engine: e, rec: rec}, nil
}

func (e *VoskEngine) newRecognizer() (*vosk.VoskRecognizer, error) {
	rec, err := vosk.NewRecognizer(e.model, float64(e.sampleRate))
	if err != nil {
		return nil, fmt.Errorf("recognizer: create vosk recognizer: %w", err)
	}
	rec.SetWords(1)
	return rec, nil
}

// voskSession wraps one KaldiRecognizer. The decoder is stateful across
// AcceptAudio calls until an utterance boundary fires.
type voskSession struct {
	engine *VoskEngine
	rec    *vosk.VoskRecognizer
}

var _ Session = (*voskSession)(nil)

func (s *voskSession) AcceptAudio(chunk []byte) (bool, error) {
	if s.rec == nil {
		return false, ErrClosed
	}
	return s.rec.AcceptWaveform(chunk) != 0, nil
}

func (s *voskSession) FinalResult() (Result, error) {
	if s.rec == nil {
		return Result{}, ErrClosed
	}
	return parseVoskResult(s.rec.FinalResult())
}

func (s *voskSession) PartialResult() (string, error) {
	if s.rec == nil {
		return "", ErrClosed
	}
	var p struct {
		Partial string `json:"partial"`
	}
	if err := json.Unmarshal([]byte(s.rec.PartialResult()), &p); err != nil {
		return "", fmt.Errorf("recognizer: parse vosk partial: %w", err)
	}
	return p.Partial, nil
}

// Reset swaps in a brand-new recognizer rather than reusing the old decoder,
// guaranteeing no buffered audio survives the reset.
func (s *voskSession) Reset() error {
	if s.rec == nil {
		return ErrClosed
	}
	rec, err := s.engine.newRecognizer()
	if err != nil {
		return err
	}
	s.rec.Free()
	s.rec = rec
	return nil
}

func (s *voskSession) Close() error {
	if s.rec != nil {
		s.rec.Free()
		s.rec = nil
	}
	return nil
}

// parseVoskResult decodes the JSON emitted by Result/FinalResult. Vosk
// reports per-word confidence in the "result" array; when no utterance-level
// confidence is present the word confidences are averaged.
func parseVoskResult(raw string) (Result, error) {
	var r struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Words      []Word  `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, fmt.Errorf("recognizer: parse vosk result: %w", err)
	}
	res := Result{Text: r.Text, Confidence: r.Confidence, Words: r.Words}
	if res.Confidence == 0 && len(res.Words) > 0 {
		var sum float64
		for _, w := range res.Words {
			sum += w.Conf
		}
		res.Confidence = sum / float64(len(res.Words))
	}
	return res, nil
}
