// Package mock provides test doubles for the recognizer package interfaces.
//
// Use Engine to verify session construction and model metadata, and Session
// to script utterance boundaries and inspect which audio chunks were
// delivered.
//
// Example:
//
//	sess := &mock.Session{
//	    Script: []mock.Step{
//	        {Partial: "hello wor"},
//	        {Boundary: true, Final: recognizer.Result{Text: "hello world"}},
//	    },
//	}
//	eng := &mock.Engine{Session: sess, Type: recognizer.ModelBaseWithCorrection}
package mock

import (
	"sync"

	"github.com/jhalloran/voxlex/internal/recognizer"
)

// Engine is a mock implementation of recognizer.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by every NewSession call. If nil, NewSession
	// returns a new empty Session.
	Session recognizer.Session

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// Type is reported by ModelType. Defaults to ModelBaseWithCorrection
	// when empty.
	Type recognizer.ModelType

	// Rate is reported by SampleRate. Defaults to 16000 when zero.
	Rate int

	// NewSessionCalls is the number of NewSession invocations.
	NewSessionCalls int

	// CloseCalls is the number of Close invocations.
	CloseCalls int
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession() (recognizer.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls++
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// ModelType returns Type, defaulting to ModelBaseWithCorrection.
func (e *Engine) ModelType() recognizer.ModelType {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Type == "" {
		return recognizer.ModelBaseWithCorrection
	}
	return e.Type
}

// SampleRate returns Rate, defaulting to 16000.
func (e *Engine) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Rate == 0 {
		return 16000
	}
	return e.Rate
}

// Close records the call and returns nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCalls++
	return nil
}

// Ensure Engine implements recognizer.Engine at compile time.
var _ recognizer.Engine = (*Engine)(nil)

// Step scripts the outcome of a single AcceptAudio call.
type Step struct {
	// Boundary is returned by AcceptAudio. When true, Final is staged for
	// the next FinalResult call.
	Boundary bool

	// Final is the result staged when Boundary is true.
	Final recognizer.Result

	// Partial is returned by PartialResult while this step is the most
	// recent one consumed.
	Partial string

	// Err, if non-nil, is returned by AcceptAudio for this step.
	Err error
}

// Session is a mock implementation of recognizer.Session. Pre-populate
// Script with the steps AcceptAudio should play back; calls past the end of
// the script report no boundary.
type Session struct {
	mu sync.Mutex

	// Script is consumed one step per AcceptAudio call.
	Script []Step

	// FlushResult is returned by FinalResult when no scripted boundary is
	// pending, emulating the drain-on-disconnect path.
	FlushResult recognizer.Result

	// AcceptCalls records a copy of every chunk passed to AcceptAudio.
	AcceptCalls [][]byte

	// ResetCalls is the number of Reset invocations.
	ResetCalls int

	// CloseCalls is the number of Close invocations.
	CloseCalls int

	next    int
	pending *recognizer.Result
	partial string
}

// AcceptAudio plays back the next scripted step.
func (s *Session) AcceptAudio(chunk []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.AcceptCalls = append(s.AcceptCalls, cp)

	if s.next >= len(s.Script) {
		return false, nil
	}
	step := s.Script[s.next]
	s.next++
	if step.Err != nil {
		return false, step.Err
	}
	s.partial = step.Partial
	if step.Boundary {
		res := step.Final
		s.pending = &res
		return true, nil
	}
	return false, nil
}

// FinalResult returns the staged boundary result, or FlushResult when none
// is pending.
func (s *Session) FinalResult() (recognizer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		res := *s.pending
		s.pending = nil
		return res, nil
	}
	res := s.FlushResult
	s.FlushResult = recognizer.Result{}
	return res, nil
}

// PartialResult returns the partial from the most recent consumed step.
func (s *Session) PartialResult() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial, nil
}

// Reset records the call and discards any staged result.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
	s.pending = nil
	s.partial = ""
	return nil
}

// Close records the call and returns nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// Ensure Session implements recognizer.Session at compile time.
var _ recognizer.Session = (*Session)(nil)
