package server

import (
	"encoding/json"
	"fmt"
)

// Client command actions. The set is closed: frames with any other action
// are silently ignored, which is deliberate protocol behaviour.
const (
	ActionReset                 = "reset"
	ActionGetModelInfo          = "get_model_info"
	ActionRetrainModel          = "retrain_model"
	ActionGetVocabularyStats    = "get_vocabulary_stats"
	ActionForceVocabularyUpdate = "force_vocabulary_update"
	ActionSearchTerms           = "search_terms"
	ActionAddCustomTerms        = "add_custom_terms"
	ActionPing                  = "ping"
)

// command is the envelope for all client JSON frames. Fields beyond Action
// are action-specific; irrelevant ones are left at their zero value.
type command struct {
	Action string `json:"action"`

	// Timestamp is echoed verbatim in the pong reply. Kept raw so clients
	// may send numbers or strings.
	Timestamp json.RawMessage `json:"timestamp,omitempty"`

	// Query and Limit parameterise search_terms.
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`

	// Terms lists candidates for add_custom_terms.
	Terms []string `json:"terms,omitempty"`
}

// parseCommand decodes a client text frame. A payload that is not a JSON
// object, or that lacks an action, is a malformed command.
func parseCommand(data []byte) (command, error) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return command{}, fmt.Errorf("server: parse command: %w", err)
	}
	if cmd.Action == "" {
		return command{}, fmt.Errorf("server: command has no action")
	}
	return cmd, nil
}

// knownAction reports whether action is part of the closed command set.
func knownAction(action string) bool {
	switch action {
	case ActionReset, ActionGetModelInfo, ActionRetrainModel,
		ActionGetVocabularyStats, ActionForceVocabularyUpdate,
		ActionSearchTerms, ActionAddCustomTerms, ActionPing:
		return true
	}
	return false
}
