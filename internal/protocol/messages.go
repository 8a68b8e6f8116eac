package protocol

import (
	"context"
	"encoding/json"

	"github.com/saker-ai/avs-device/pkg/avs"
)

// Simulator message types.
const (
	TypeUtterance  = "utterance"
	TypeUserEvent  = "user-event"
	TypeNewSession = "new-session"
	TypeSetLocale  = "set-locale"
	TypeFetchState = "fetch-state"
	TypeHeartbeat  = "heartbeat"

	TypeFetchTranscriptList = "fetch-transcript-list"
	TypeFetchTranscript     = "fetch-transcript"
	TypeDeleteTranscript    = "delete-transcript"

	TypeTurnResult = "turn-result"
	TypeState      = "state"
	TypeAck        = "ack"
	TypeError      = "error"
)

// ClientCommand represents a command sent from a simulator frontend.
type ClientCommand struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"request_id,omitempty"`
	Utterance  string          `json:"utterance,omitempty"`
	NewSession bool            `json:"new_session,omitempty"`
	Event      json.RawMessage `json:"event,omitempty"`
	Locale     string          `json:"locale,omitempty"`
	// TranscriptUID selects a transcript for fetch-transcript and
	// delete-transcript.
	TranscriptUID string `json:"transcript_uid,omitempty"`
}

// ServerMessage is the reply to a ClientCommand.
type ServerMessage struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Result    *avs.TurnResult        `json:"result,omitempty"`
	State     *avs.ConversationState `json:"state,omitempty"`
	Locale    string                 `json:"locale,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Device is the simulated device surface used by the simulator frontends.
type Device interface {
	SendAudioEvent(ctx context.Context, utterance string, isNewSession bool) (*avs.TurnResult, error)
	SendUserEvent(ctx context.Context, userEvent json.RawMessage) (*avs.TurnResult, error)
	SendNewSessionEvent(ctx context.Context) error
	SendLocaleSettingEvent(ctx context.Context, locale string) error
	State() avs.ConversationState
	Locale() string
}

// DeviceResolver returns the device for an access token and region. Empty
// values select the configured defaults.
type DeviceResolver func(token string, region string) (Device, error)

// Execute runs one command against a device and builds the reply.
func Execute(ctx context.Context, device Device, cmd ClientCommand) ServerMessage {
	reply := ServerMessage{RequestID: cmd.RequestID}
	var err error
	switch cmd.Type {
	case TypeUtterance:
		reply.Type = TypeTurnResult
		reply.Result, err = device.SendAudioEvent(ctx, cmd.Utterance, cmd.NewSession)
	case TypeUserEvent:
		reply.Type = TypeTurnResult
		reply.Result, err = device.SendUserEvent(ctx, cmd.Event)
	case TypeNewSession:
		reply.Type = TypeAck
		err = device.SendNewSessionEvent(ctx)
	case TypeSetLocale:
		reply.Type = TypeAck
		err = device.SendLocaleSettingEvent(ctx, cmd.Locale)
		reply.Locale = device.Locale()
	case TypeHeartbeat:
		return ServerMessage{Type: TypeAck, RequestID: cmd.RequestID}
	case TypeFetchState:
		reply.Type = TypeState
		state := device.State()
		reply.State = &state
		reply.Locale = device.Locale()
	default:
		return ServerMessage{Type: TypeError, RequestID: cmd.RequestID, Message: "unknown message type: " + cmd.Type}
	}
	if err != nil {
		// A partial turn result is kept next to the error.
		reply.Message = err.Error()
		if reply.Result == nil {
			reply.Type = TypeError
		}
	}
	return reply
}
