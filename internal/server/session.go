package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/jhalloran/voxlex/internal/corrector"
	"github.com/jhalloran/voxlex/internal/observe"
	"github.com/jhalloran/voxlex/internal/recognizer"
	"github.com/jhalloran/voxlex/internal/vocab"
)

// session drives one connection's receive loop. It exclusively owns its
// recognizer and corrector context; the vocabulary store is the only shared
// resource it touches.
type session struct {
	id   string
	conn *websocket.Conn

	rec  recognizer.Session
	corr *corrector.Corrector // nil when the model is custom-trained

	modelType  recognizer.ModelType
	sampleRate int
	store      *vocab.Store
	scheduler  *vocab.Scheduler
	metrics    *observe.Metrics

	readTimeout    time.Duration
	pingInterval   time.Duration
	pingTimeout    time.Duration
	maxSuggestions int

	// lastFrame is the unix-nano time of the most recent inbound frame,
	// read by the keepalive goroutine.
	lastFrame atomic.Int64
}

// vocabSize returns a pointer to the current vocabulary size when correction
// is active, nil otherwise. Events embed it with omitempty so custom-trained
// sessions never expose a vocabulary_size field.
func (s *session) vocabSize() *int {
	if s.corr == nil {
		return nil
	}
	n := s.store.Len()
	return &n
}

// send marshals ev and writes it as one text frame.
func (s *session) send(ctx context.Context, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("server: marshal event: %w", err)
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// run executes the session until the client disconnects or ctx is cancelled.
// It sends the greeting, then alternates between audio and command frames.
func (s *session) run(ctx context.Context) {
	log := observe.Logger(ctx).With("client", s.id)

	greeting := connectionEvent{
		Type:              EventConnection,
		Status:            "connected",
		Message:           "Ready for audio data",
		ModelType:         string(s.modelType),
		CorrectionEnabled: s.corr != nil,
		VocabularySize:    s.vocabSize(),
	}
	if err := s.send(ctx, greeting); err != nil {
		log.Warn("failed to send greeting", "err", err)
		return
	}
	log.Info("client ready for audio")

	s.lastFrame.Store(time.Now().UnixNano())

	// Idle keepalive runs beside the read loop: cancelling a Read context
	// would close the whole connection, so inactivity is detected out of
	// band instead of with read deadlines.
	kaCtx, kaCancel := context.WithCancel(ctx)
	defer kaCancel()
	go s.keepalive(kaCtx, log)
	if s.pingInterval > 0 && s.pingTimeout > 0 {
		go s.transportPing(kaCtx, log)
	}

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			st := websocket.CloseStatus(err)
			if st == websocket.StatusNormalClosure || st == websocket.StatusGoingAway {
				log.Info("client disconnected")
			} else if ctx.Err() == nil {
				log.Info("connection closed", "err", err)
			}
			return
		}
		s.lastFrame.Store(time.Now().UnixNano())

		switch typ {
		case websocket.MessageBinary:
			if err := s.handleAudio(ctx, data); err != nil {
				log.Error("audio processing failed", "err", err)
				s.sendError(ctx, err)
			}
		case websocket.MessageText:
			s.handleCommand(ctx, log, data)
		}
	}
}

// keepalive sends a ping event whenever no frame has arrived for a full
// read-timeout window. Transport-level closes end the loop via ctx.
func (s *session) keepalive(ctx context.Context, log *slog.Logger) {
	if s.readTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(s.readTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastFrame.Load())
			if time.Since(last) < s.readTimeout {
				continue
			}
			ev := pingEvent{
				Type:           EventPing,
				Timestamp:      float64(time.Now().UnixNano()) / float64(time.Second),
				VocabularySize: s.vocabSize(),
			}
			if err := s.send(ctx, ev); err != nil {
				return
			}
			// Treat the ping as activity so the next one waits a full window.
			s.lastFrame.Store(time.Now().UnixNano())
			log.Debug("keepalive ping sent")
		}
	}
}

// transportPing sends a protocol-level ping every ping interval and closes
// the connection when the pong does not arrive within the ping timeout, so a
// half-open connection is detected even while the read loop sits idle.
func (s *session) transportPing(ctx context.Context, log *slog.Logger) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Info("closing unresponsive connection", "err", err)
				s.conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				return
			}
		}
	}
}

// handleAudio feeds one PCM chunk to the recognizer and emits the resulting
// final or partial event.
func (s *session) handleAudio(ctx context.Context, chunk []byte) error {
	boundary, err := s.rec.AcceptAudio(chunk)
	if err != nil {
		return err
	}

	if boundary {
		res, err := s.rec.FinalResult()
		if err != nil {
			return err
		}
		if res.Text == "" {
			return nil
		}
		return s.emitFinal(ctx, res)
	}

	partial, err := s.rec.PartialResult()
	if err != nil {
		return err
	}
	if partial == "" {
		return nil
	}
	if s.corr != nil {
		partial = s.corr.CorrectPartial(partial)
	}
	s.metrics.RecordTranscript(ctx, "partial")
	return s.send(ctx, partialEvent{Type: EventPartial, Transcript: partial})
}

// emitFinal corrects a committed transcript and sends the final event.
func (s *session) emitFinal(ctx context.Context, res recognizer.Result) error {
	ev := finalEvent{
		Type:       EventFinal,
		Transcript: res.Text,
		Confidence: res.Confidence,
		Words:      res.Words,
	}

	if s.corr != nil {
		start := time.Now()
		corrected := s.corr.CorrectText(res.Text)
		s.metrics.CorrectionDuration.Record(ctx, time.Since(start).Seconds())

		if corrected != res.Text {
			ev.Transcript = corrected
			ev.Original = res.Text
			s.metrics.CorrectionsApplied.Add(ctx, 1)
		}
		ev.Suggestions = s.corr.Suggestions(res.Text, s.maxSuggestions)
	}

	s.metrics.RecordTranscript(ctx, "final")
	slog.Info("final transcript", "client", s.id, "text", ev.Transcript)
	return s.send(ctx, ev)
}

// flushFinal drains any transcript still buffered in the recognizer on
// disconnect. Best effort: the connection is usually already gone.
func (s *session) flushFinal(ctx context.Context) {
	res, err := s.rec.FinalResult()
	if err != nil || res.Text == "" {
		return
	}
	if err := s.emitFinal(ctx, res); err != nil {
		slog.Debug("could not deliver flushed final", "client", s.id, "err", err)
	}
}

// handleCommand parses and dispatches one client text frame. Malformed
// payloads are logged and dropped; unknown actions are silently ignored.
func (s *session) handleCommand(ctx context.Context, log *slog.Logger, data []byte) {
	cmd, err := parseCommand(data)
	if err != nil {
		log.Warn("invalid command frame", "err", err)
		return
	}
	if !knownAction(cmd.Action) {
		log.Debug("ignoring unknown command", "action", cmd.Action)
		return
	}
	s.metrics.RecordCommand(ctx, cmd.Action)

	var replyErr error
	switch cmd.Action {
	case ActionReset:
		if err := s.rec.Reset(); err != nil {
			s.sendError(ctx, err)
			return
		}
		log.Info("recognizer reset")
		replyErr = s.send(ctx, statusEvent{Type: EventStatus, Message: "Recognizer reset"})

	case ActionPing:
		replyErr = s.send(ctx, pongEvent{
			Type:           EventPong,
			Timestamp:      cmd.Timestamp,
			VocabularySize: s.vocabSize(),
		})

	case ActionGetModelInfo:
		replyErr = s.send(ctx, modelInfoEvent{
			Type:              EventModelInfo,
			ModelType:         string(s.modelType),
			SampleRate:        s.sampleRate,
			CorrectionEnabled: s.corr != nil,
			VocabularySize:    s.vocabSize(),
		})

	case ActionRetrainModel:
		// Online retraining is a training-pipeline concern, not something
		// the serving path can do; acknowledge instead of failing.
		replyErr = s.send(ctx, statusEvent{
			Type:    EventStatus,
			Message: fmt.Sprintf("Model retraining is not supported for %s models", s.modelType),
		})

	case ActionGetVocabularyStats:
		st := s.store.Stats()
		ev := vocabularyStatsEvent{
			Type:       EventVocabularyStats,
			TotalTerms: st.TotalTerms,
			Trending:   st.Trending,
		}
		if !st.LastRefresh.IsZero() {
			ev.LastRefresh = st.LastRefresh.UTC().Format(time.RFC3339)
		}
		replyErr = s.send(ctx, ev)

	case ActionForceVocabularyUpdate:
		// Fire and forget: the refresh keeps running even if this session
		// disconnects before it completes.
		s.scheduler.ForceRefresh()
		replyErr = s.send(ctx, statusEvent{Type: EventStatus, Message: "Vocabulary refresh started"})

	case ActionSearchTerms:
		limit := cmd.Limit
		if limit <= 0 {
			limit = 10
		}
		replyErr = s.send(ctx, searchResultsEvent{
			Type:    EventSearchResults,
			Query:   cmd.Query,
			Results: s.store.SearchSimilar(cmd.Query, limit),
		})

	case ActionAddCustomTerms:
		added := s.store.AddTerms(cmd.Terms...)
		s.metrics.RecordTermsLearned(ctx, "command", int64(added))
		replyErr = s.send(ctx, statusEvent{
			Type:    EventStatus,
			Message: fmt.Sprintf("Added %d of %d terms", added, len(cmd.Terms)),
		})
	}

	if replyErr != nil {
		log.Debug("could not deliver command reply", "action", cmd.Action, "err", replyErr)
	}
}

// sendError delivers an error event; delivery failure only gets logged.
func (s *session) sendError(ctx context.Context, err error) {
	ev := errorEvent{Type: EventError, Message: err.Error()}
	if sendErr := s.send(ctx, ev); sendErr != nil {
		slog.Debug("could not deliver error event", "client", s.id, "err", sendErr)
	}
}
