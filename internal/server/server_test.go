package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/jhalloran/voxlex/internal/config"
	"github.com/jhalloran/voxlex/internal/recognizer"
	"github.com/jhalloran/voxlex/internal/recognizer/mock"
	"github.com/jhalloran/voxlex/internal/vocab"
)

// testEnv wires a Server over a mock engine and dials one client connection.
type testEnv struct {
	srv   *Server
	store *vocab.Store
	conn  *websocket.Conn
	ctx   context.Context
}

func newTestEnv(t *testing.T, eng recognizer.Engine) *testEnv {
	t.Helper()
	return newTestEnvConfig(t, eng, nil)
}

// newTestEnvConfig is newTestEnv with a hook to adjust the config after
// defaults are applied.
func newTestEnvConfig(t *testing.T, eng recognizer.Engine, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if mutate != nil {
		mutate(cfg)
	}

	store := vocab.New()
	sched := vocab.NewScheduler(store, time.Hour, time.Hour)
	srv := New(cfg.Server, cfg.Correction, eng, store, sched)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })

	return &testEnv{srv: srv, store: store, conn: conn, ctx: ctx}
}

// readEvent reads one text frame and decodes it into a generic map.
func (e *testEnv) readEvent(t *testing.T) map[string]any {
	t.Helper()
	typ, data, err := e.conn.Read(e.ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("frame type = %v, want text", typ)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return ev
}

func (e *testEnv) sendCommand(t *testing.T, raw string) {
	t.Helper()
	if err := e.conn.Write(e.ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write command: %v", err)
	}
}

func (e *testEnv) sendAudio(t *testing.T, chunk []byte) {
	t.Helper()
	if err := e.conn.Write(e.ctx, websocket.MessageBinary, chunk); err != nil {
		t.Fatalf("write audio: %v", err)
	}
}

// skipGreeting consumes the connection event every session starts with.
func (e *testEnv) skipGreeting(t *testing.T) {
	t.Helper()
	if ev := e.readEvent(t); ev["type"] != EventConnection {
		t.Fatalf("first frame type = %v, want connection", ev["type"])
	}
}

func TestSessionGreeting(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	ev := env.readEvent(t)

	if ev["type"] != EventConnection || ev["status"] != "connected" {
		t.Errorf("greeting = %v", ev)
	}
	if ev["message"] != "Ready for audio data" {
		t.Errorf("message = %v", ev["message"])
	}
	if ev["model_type"] != string(recognizer.ModelBaseWithCorrection) {
		t.Errorf("model_type = %v", ev["model_type"])
	}
	if ev["correction_enabled"] != true {
		t.Errorf("correction_enabled = %v", ev["correction_enabled"])
	}
	size, ok := ev["vocabulary_size"].(float64)
	if !ok || size <= 0 {
		t.Errorf("vocabulary_size = %v, want positive number", ev["vocabulary_size"])
	}
}

func TestSessionGreetingCustomModel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{Type: recognizer.ModelCustomTrained})
	ev := env.readEvent(t)

	if ev["correction_enabled"] != false {
		t.Errorf("correction_enabled = %v, want false", ev["correction_enabled"])
	}
	if _, present := ev["vocabulary_size"]; present {
		t.Error("custom-trained greeting must not carry vocabulary_size")
	}
}

func TestSessionAudioFlow(t *testing.T) {
	t.Parallel()

	sess := &mock.Session{
		Script: []mock.Step{
			{Partial: "type scrip"},
			{Boundary: true, Final: recognizer.Result{
				Text:       "type script rocks",
				Confidence: 0.8,
				Words: []recognizer.Word{
					{Word: "type", Start: 0, End: 0.3, Conf: 0.8},
				},
			}},
		},
	}
	env := newTestEnv(t, &mock.Engine{Session: sess})
	env.skipGreeting(t)

	env.sendAudio(t, []byte{0, 0, 0, 0})
	partial := env.readEvent(t)
	if partial["type"] != EventPartial || partial["transcript"] != "type scrip" {
		t.Errorf("partial = %v", partial)
	}

	env.sendAudio(t, []byte{0, 0, 0, 0})
	final := env.readEvent(t)
	if final["type"] != EventFinal {
		t.Fatalf("final = %v", final)
	}
	if final["transcript"] != "typescript rocks" {
		t.Errorf("transcript = %v, want corrected compound", final["transcript"])
	}
	if final["original"] != "type script rocks" {
		t.Errorf("original = %v", final["original"])
	}
	if final["confidence"] != 0.8 {
		t.Errorf("confidence = %v", final["confidence"])
	}
}

func TestSessionEmptyFinalSkipped(t *testing.T) {
	t.Parallel()

	sess := &mock.Session{
		Script: []mock.Step{{Boundary: true, Final: recognizer.Result{}}},
	}
	env := newTestEnv(t, &mock.Engine{Session: sess})
	env.skipGreeting(t)

	env.sendAudio(t, []byte{0, 0})
	env.sendCommand(t, `{"action":"ping"}`)

	// The empty boundary produced no frame, so the next one is the pong.
	if ev := env.readEvent(t); ev["type"] != EventPong {
		t.Errorf("got %v, want pong directly after silent boundary", ev)
	}
}

func TestSessionResetCommand(t *testing.T) {
	t.Parallel()

	sess := &mock.Session{}
	env := newTestEnv(t, &mock.Engine{Session: sess})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"reset"}`)
	ev := env.readEvent(t)
	if ev["type"] != EventStatus || ev["message"] != "Recognizer reset" {
		t.Errorf("reset reply = %v", ev)
	}
	if sess.ResetCalls != 1 {
		t.Errorf("ResetCalls = %d, want 1", sess.ResetCalls)
	}
}

func TestSessionPingPong(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"ping","timestamp":1718000000.25}`)
	ev := env.readEvent(t)
	if ev["type"] != EventPong {
		t.Fatalf("reply = %v", ev)
	}
	if ev["timestamp"] != 1718000000.25 {
		t.Errorf("timestamp = %v, want client value echoed", ev["timestamp"])
	}
	if _, ok := ev["vocabulary_size"].(float64); !ok {
		t.Errorf("vocabulary_size = %v, want number", ev["vocabulary_size"])
	}
}

func TestSessionModelInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{Rate: 8000})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"get_model_info"}`)
	ev := env.readEvent(t)
	if ev["type"] != EventModelInfo {
		t.Fatalf("reply = %v", ev)
	}
	if ev["sample_rate"] != float64(8000) {
		t.Errorf("sample_rate = %v", ev["sample_rate"])
	}
	if ev["model_type"] != string(recognizer.ModelBaseWithCorrection) {
		t.Errorf("model_type = %v", ev["model_type"])
	}
}

func TestSessionRetrainModel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"retrain_model"}`)
	ev := env.readEvent(t)
	msg, _ := ev["message"].(string)
	if ev["type"] != EventStatus || !strings.Contains(msg, "not supported") {
		t.Errorf("retrain reply = %v", ev)
	}
}

func TestSessionVocabularyStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"get_vocabulary_stats"}`)
	ev := env.readEvent(t)
	if ev["type"] != EventVocabularyStats {
		t.Fatalf("reply = %v", ev)
	}
	if total, _ := ev["total_terms"].(float64); total <= 0 {
		t.Errorf("total_terms = %v", ev["total_terms"])
	}
	if _, present := ev["last_refresh"]; present {
		t.Error("last_refresh should be omitted before any refresh")
	}
}

func TestSessionSearchTerms(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"search_terms","query":"pyton"}`)
	ev := env.readEvent(t)
	if ev["type"] != EventSearchResults || ev["query"] != "pyton" {
		t.Fatalf("reply = %v", ev)
	}
	results, _ := ev["results"].([]any)
	if len(results) == 0 || results[0] != "python" {
		t.Errorf("results = %v, want python first", results)
	}
}

func TestSessionAddCustomTerms(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	env.skipGreeting(t)

	env.sendCommand(t, `{"action":"add_custom_terms","terms":["fooapi","banana"]}`)
	ev := env.readEvent(t)
	if ev["type"] != EventStatus || ev["message"] != "Added 1 of 2 terms" {
		t.Errorf("reply = %v", ev)
	}
	if !env.store.Contains("fooapi") {
		t.Error("accepted term missing from store")
	}
	if env.store.Contains("banana") {
		t.Error("invalid term was admitted")
	}
}

func TestSessionIgnoresBadCommands(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{})
	env.skipGreeting(t)

	// Neither a malformed frame nor an unknown action elicits a reply or
	// kills the session; the follow-up ping still gets its pong.
	env.sendCommand(t, `this is not json`)
	env.sendCommand(t, `{"action":"self_destruct"}`)
	env.sendCommand(t, `{"action":"ping"}`)

	if ev := env.readEvent(t); ev["type"] != EventPong {
		t.Errorf("got %v, want pong as the only reply", ev)
	}
}

func TestTransportPingKeepsIdleSessionOpen(t *testing.T) {
	t.Parallel()

	env := newTestEnvConfig(t, &mock.Engine{}, func(cfg *config.Config) {
		cfg.Server.PingIntervalS = 1
		cfg.Server.PingTimeoutS = 1
	})
	env.skipGreeting(t)

	// A blocked Read answers protocol pings, standing in for a quiet but
	// healthy client.
	events := make(chan map[string]any, 1)
	go func() {
		_, data, err := env.conn.Read(env.ctx)
		if err != nil {
			return
		}
		var ev map[string]any
		if json.Unmarshal(data, &ev) == nil {
			events <- ev
		}
	}()

	// Sit through two ping rounds before asking for proof of life.
	time.Sleep(2500 * time.Millisecond)
	env.sendCommand(t, `{"action":"ping"}`)

	select {
	case ev := <-events:
		if ev["type"] != EventPong {
			t.Errorf("got %v, want pong", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("session died under transport pings")
	}
}

func TestTransportPingTimeoutClosesConnection(t *testing.T) {
	t.Parallel()

	env := newTestEnvConfig(t, &mock.Engine{}, func(cfg *config.Config) {
		cfg.Server.PingIntervalS = 1
		cfg.Server.PingTimeoutS = 1
	})
	env.skipGreeting(t)

	// With no Read in flight the client never answers protocol pings, so
	// the server gives up after one interval plus one timeout.
	time.Sleep(3 * time.Second)

	_, _, err := env.conn.Read(env.ctx)
	if err == nil {
		t.Fatal("expected the connection to be closed")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Errorf("close status = %v, want policy violation", status)
	}
}

func TestHandleWSRecognizerUnavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &mock.Engine{NewSessionErr: errors.New("model gone")})

	_, _, err := env.conn.Read(env.ctx)
	if err == nil {
		t.Fatal("expected the connection to be closed")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusInternalError {
		t.Errorf("close status = %v, want internal error", status)
	}
}

func TestHandlerHTTPEndpoints(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	store := vocab.New()
	srv := New(cfg.Server, cfg.Correction, &mock.Engine{}, store,
		vocab.NewScheduler(store, time.Hour, time.Hour))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
