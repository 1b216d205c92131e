package server

import (
	"encoding/json"

	"github.com/jhalloran/voxlex/internal/recognizer"
	"github.com/jhalloran/voxlex/internal/vocab"
)

// Event type discriminators. Every server→client frame carries one of these
// in its "type" field.
const (
	EventConnection      = "connection"
	EventFinal           = "final"
	EventPartial         = "partial"
	EventStatus          = "status"
	EventPong            = "pong"
	EventPing            = "ping"
	EventError           = "error"
	EventModelInfo       = "model_info"
	EventVocabularyStats = "vocabulary_stats"
	EventSearchResults   = "search_results"
)

// connectionEvent is the greeting sent as the first frame of every session.
type connectionEvent struct {
	Type              string `json:"type"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	ModelType         string `json:"model_type"`
	CorrectionEnabled bool   `json:"correction_enabled"`

	// VocabularySize is present only when correction is active.
	VocabularySize *int `json:"vocabulary_size,omitempty"`
}

// finalEvent carries a committed transcript for one utterance.
type finalEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`

	// Original holds the raw recognizer text, present only when correction
	// changed it.
	Original    string            `json:"original,omitempty"`
	Confidence  float64           `json:"confidence"`
	Words       []recognizer.Word `json:"words"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// partialEvent carries an interim transcript guess.
type partialEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

// statusEvent acknowledges a command with a human-readable message.
type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// pongEvent answers a client ping, echoing the client's timestamp untouched.
type pongEvent struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`

	// VocabularySize is present only when correction is active.
	VocabularySize *int `json:"vocabulary_size,omitempty"`
}

// pingEvent is the server-initiated keepalive sent after a read-timeout of
// inactivity.
type pingEvent struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`

	// VocabularySize is present only when correction is active.
	VocabularySize *int `json:"vocabulary_size,omitempty"`
}

// errorEvent reports an in-session failure the client can observe.
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// modelInfoEvent describes the active model variant.
type modelInfoEvent struct {
	Type              string `json:"type"`
	ModelType         string `json:"model_type"`
	SampleRate        int    `json:"sample_rate"`
	CorrectionEnabled bool   `json:"correction_enabled"`
	VocabularySize    *int   `json:"vocabulary_size,omitempty"`
}

// vocabularyStatsEvent reports the store's size, trending terms, and last
// refresh time.
type vocabularyStatsEvent struct {
	Type        string            `json:"type"`
	TotalTerms  int               `json:"total_terms"`
	Trending    []vocab.TermCount `json:"trending"`
	LastRefresh string            `json:"last_refresh,omitempty"`
}

// searchResultsEvent answers a fuzzy term search.
type searchResultsEvent struct {
	Type    string   `json:"type"`
	Query   string   `json:"query"`
	Results []string `json:"results"`
}
