package avs

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"
)

// ConversationState is the per-client state mutated by directives.
type ConversationState struct {
	SpeechToken       string          `json:"speechToken"`
	PresentationToken string          `json:"presentationToken"`
	TextResponse      []string        `json:"textResponse"`
	APLDocument       json.RawMessage `json:"aplDocument,omitempty"`
	APLDataSource     json.RawMessage `json:"aplDataSource,omitempty"`
	APLCommands       json.RawMessage `json:"aplCommands,omitempty"`
}

// Clone returns a deep copy.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.TextResponse = append([]string(nil), s.TextResponse...)
	out.APLDocument = cloneRaw(s.APLDocument)
	out.APLDataSource = cloneRaw(s.APLDataSource)
	out.APLCommands = cloneRaw(s.APLCommands)
	return out
}

// beginTurn clears the per-turn outputs.
func (s *ConversationState) beginTurn() {
	s.TextResponse = []string{}
	s.APLDocument = nil
	s.APLDataSource = nil
	s.APLCommands = nil
}

// resetSession starts a new conversation.
func (s *ConversationState) resetSession() {
	s.SpeechToken = ""
}

// apply dispatches one directive into the state. Unknown and stale directives
// are logged and ignored.
func (s *ConversationState) apply(d Directive, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	payload, err := d.Decode()
	if err != nil {
		logger.Warn("avs directive decode failed", zap.String("directive", d.Identifier()), zap.Error(err))
		return
	}
	switch p := payload.(type) {
	case SpeakPayload:
		text, err := p.Caption.PlainText()
		if err != nil {
			logger.Warn("avs caption parse failed", zap.Error(err))
			text = p.Caption.Content
		}
		s.TextResponse = append(s.TextResponse, text)
		if p.Token != "" {
			s.SpeechToken = p.Token
		}
	case RenderDocumentPayload:
		s.APLDocument = p.Document
		s.APLDataSource = p.Datasources
		s.PresentationToken = p.PresentationToken
	case ExecuteCommandsPayload:
		if p.PresentationToken != s.PresentationToken {
			logger.Warn("avs stale apl commands dropped",
				zap.String("presentation_token", p.PresentationToken),
				zap.String("current_token", s.PresentationToken),
			)
			return
		}
		s.APLCommands = p.Commands
	case UnknownPayload:
		logger.Info("avs directive ignored", zap.String("directive", p.ID))
	default:
		logger.Debug("avs directive not applied to conversation", zap.String("directive", d.Identifier()))
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return bytes.Clone(raw)
}

// DebugInfo is the skill debugging data pushed over the downchannel.
type DebugInfo struct {
	Request    []json.RawMessage `json:"request"`
	Response   []json.RawMessage `json:"response"`
	Intent     json.RawMessage   `json:"intent,omitempty"`
	OutOfSkill bool              `json:"outOfSkill"`
}

func emptyDebugInfo() DebugInfo {
	return DebugInfo{Request: []json.RawMessage{}, Response: []json.RawMessage{}}
}

// TurnResult is returned for each Recognize/UserEvent turn.
type TurnResult struct {
	AlexaResponse []string        `json:"alexaResponse"`
	Documents     json.RawMessage `json:"documents,omitempty"`
	DataSources   json.RawMessage `json:"dataSources,omitempty"`
	Debugging     DebugInfo       `json:"debugging"`
	APLCommands   json.RawMessage `json:"aplCommands,omitempty"`
}

func newTurnResult(state ConversationState, debug DebugInfo) *TurnResult {
	state = state.Clone()
	return &TurnResult{
		AlexaResponse: state.TextResponse,
		Documents:     state.APLDocument,
		DataSources:   state.APLDataSource,
		Debugging:     debug,
		APLCommands:   state.APLCommands,
	}
}
