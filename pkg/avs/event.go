package avs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	NamespaceSpeechRecognizer     = "SpeechRecognizer"
	NamespaceSpeechSynthesizer    = "SpeechSynthesizer"
	NamespaceAudioActivityTracker = "AudioActivityTracker"
	NamespaceAPL                  = "Alexa.Presentation.APL"
	NamespaceSystem               = "System"
	NamespaceSettings             = "Settings"
	NamespaceSkillDebugger        = "SkillDebugger"

	EventRecognize         = "Recognize"
	EventUserEvent         = "UserEvent"
	EventSynchronizeState  = "SynchronizeState"
	EventSettingsUpdated   = "SettingsUpdated"
	contextSpeechState     = "SpeechState"
	contextActivityState   = "ActivityState"
	recognizeProfile       = "CLOSE_TALK"
	playerActivityFinished = "FINISHED"
)

// Header is the shared event/directive header.
type Header struct {
	Namespace       string `json:"namespace"`
	Name            string `json:"name"`
	MessageID       string `json:"messageId,omitempty"`
	DialogRequestID string `json:"dialogRequestId,omitempty"`
}

// Event is a device-to-cloud message.
type Event struct {
	Header  Header `json:"header"`
	Payload any    `json:"payload"`
}

// EventPack is the metadata part of an events request.
type EventPack struct {
	Event   Event   `json:"event"`
	Context []Event `json:"context"`
}

// Name returns the primary event name.
func (p EventPack) Name() string {
	return p.Event.Header.Name
}

// Marshal encodes the pack as request metadata.
func (p EventPack) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

type recognizePayload struct {
	Profile string `json:"profile"`
	Format  string `json:"format"`
}

// SpeechStatePayload is the SpeechSynthesizer.SpeechState context.
type SpeechStatePayload struct {
	Token                string `json:"token"`
	OffsetInMilliseconds int64  `json:"offsetInMilliseconds"`
	PlayerActivity       string `json:"playerActivity"`
}

type activityStatePayload struct {
	Dialog activityDialog `json:"dialog"`
}

type activityDialog struct {
	Interface              string `json:"interface"`
	IdleTimeInMilliseconds int64  `json:"idleTimeInMilliseconds"`
}

type settingsUpdatedPayload struct {
	Settings []setting `json:"settings"`
}

type setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newHeader(namespace, name string) Header {
	return Header{
		Namespace:       namespace,
		Name:            name,
		MessageID:       uuid.NewString(),
		DialogRequestID: uuid.NewString(),
	}
}

func speechStateContext(speechToken string) Event {
	return Event{
		Header: Header{Namespace: NamespaceSpeechSynthesizer, Name: contextSpeechState},
		Payload: SpeechStatePayload{
			Token:          speechToken,
			PlayerActivity: playerActivityFinished,
		},
	}
}

func activityStateContext() Event {
	return Event{
		Header: Header{Namespace: NamespaceAudioActivityTracker, Name: contextActivityState},
		Payload: activityStatePayload{
			Dialog: activityDialog{Interface: NamespaceSpeechSynthesizer},
		},
	}
}

// NewRecognizeEvent builds the SpeechRecognizer.Recognize event for one utterance.
func NewRecognizeEvent(speechToken string, format AudioFormat) EventPack {
	if format == "" {
		format = AudioFormatL16
	}
	return EventPack{
		Event: Event{
			Header: newHeader(NamespaceSpeechRecognizer, EventRecognize),
			Payload: recognizePayload{
				Profile: recognizeProfile,
				Format:  string(format),
			},
		},
		Context: []Event{
			speechStateContext(speechToken),
			activityStateContext(),
		},
	}
}

// NewUserEvent builds Alexa.Presentation.APL.UserEvent. The user event object is
// sent as the payload with presentationToken set to the current token.
func NewUserEvent(userEvent json.RawMessage, presentationToken string) (EventPack, error) {
	payload := map[string]any{}
	if len(userEvent) > 0 && string(userEvent) != "null" {
		if err := json.Unmarshal(userEvent, &payload); err != nil {
			return EventPack{}, fmt.Errorf("decode apl user event: %w", err)
		}
	}
	payload["presentationToken"] = presentationToken
	return EventPack{
		Event: Event{
			Header:  newHeader(NamespaceAPL, EventUserEvent),
			Payload: payload,
		},
		Context: []Event{},
	}, nil
}

// NewSynchronizeStateEvent builds System.SynchronizeState.
func NewSynchronizeStateEvent() EventPack {
	return EventPack{
		Event: Event{
			Header:  newHeader(NamespaceSystem, EventSynchronizeState),
			Payload: map[string]any{},
		},
		Context: []Event{},
	}
}

// NewLocaleUpdateEvent builds Settings.SettingsUpdated for the locale setting.
func NewLocaleUpdateEvent(locale string) EventPack {
	return EventPack{
		Event: Event{
			Header: newHeader(NamespaceSettings, EventSettingsUpdated),
			Payload: settingsUpdatedPayload{
				Settings: []setting{{Key: "locale", Value: locale}},
			},
		},
		Context: []Event{},
	}
}
