package avs

import (
	"encoding/json"
	"testing"
)

func TestNewRecognizeEvent(t *testing.T) {
	pack := NewRecognizeEvent("", "")
	if pack.Name() != EventRecognize {
		t.Fatalf("name=%s, want %s", pack.Name(), EventRecognize)
	}
	raw, err := pack.Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var decoded struct {
		Event struct {
			Header  Header `json:"header"`
			Payload struct {
				Profile string `json:"profile"`
				Format  string `json:"format"`
			} `json:"payload"`
		} `json:"event"`
		Context []struct {
			Header  Header          `json:"header"`
			Payload json.RawMessage `json:"payload"`
		} `json:"context"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.Event.Payload.Profile != "CLOSE_TALK" {
		t.Fatalf("profile=%s, want CLOSE_TALK", decoded.Event.Payload.Profile)
	}
	if decoded.Event.Payload.Format != string(AudioFormatL16) {
		t.Fatalf("format=%s, want %s", decoded.Event.Payload.Format, AudioFormatL16)
	}
	if decoded.Event.Header.MessageID == "" || decoded.Event.Header.DialogRequestID == "" {
		t.Fatalf("header=%+v, want message and dialog request ids", decoded.Event.Header)
	}
	if len(decoded.Context) != 2 {
		t.Fatalf("context=%d, want 2", len(decoded.Context))
	}
	if decoded.Context[0].Header.Name != "SpeechState" || decoded.Context[1].Header.Name != "ActivityState" {
		t.Fatalf("context headers=%+v,%+v", decoded.Context[0].Header, decoded.Context[1].Header)
	}
	var speech SpeechStatePayload
	if err := json.Unmarshal(decoded.Context[0].Payload, &speech); err != nil {
		t.Fatalf("Unmarshal speech state returned error: %v", err)
	}
	if speech.Token != "" || speech.PlayerActivity != "FINISHED" || speech.OffsetInMilliseconds != 0 {
		t.Fatalf("speech state=%+v, want empty token FINISHED at 0", speech)
	}
}

func TestNewRecognizeEventOpusFormat(t *testing.T) {
	pack := NewRecognizeEvent("tok", AudioFormatOpus)
	payload := pack.Event.Payload.(recognizePayload)
	if payload.Format != "OPUS" {
		t.Fatalf("format=%s, want OPUS", payload.Format)
	}
}

func TestEventHeadersAreUnique(t *testing.T) {
	a := NewSynchronizeStateEvent()
	b := NewSynchronizeStateEvent()
	if a.Event.Header.MessageID == b.Event.Header.MessageID {
		t.Fatal("message ids repeat across events")
	}
	if a.Event.Header.Namespace != NamespaceSystem || a.Name() != EventSynchronizeState {
		t.Fatalf("header=%+v, want System.SynchronizeState", a.Event.Header)
	}
}

func TestNewUserEvent(t *testing.T) {
	pack, err := NewUserEvent(json.RawMessage(`{"arguments":["go"],"source":{"type":"TouchWrapper"}}`), "pres-1")
	if err != nil {
		t.Fatalf("NewUserEvent returned error: %v", err)
	}
	if pack.Event.Header.Namespace != NamespaceAPL || pack.Name() != EventUserEvent {
		t.Fatalf("header=%+v, want Alexa.Presentation.APL.UserEvent", pack.Event.Header)
	}
	payload := pack.Event.Payload.(map[string]any)
	if payload["presentationToken"] != "pres-1" {
		t.Fatalf("presentationToken=%v, want pres-1", payload["presentationToken"])
	}
	if _, ok := payload["arguments"]; !ok {
		t.Fatal("user event arguments missing")
	}

	if _, err := NewUserEvent(json.RawMessage(`[1,2]`), ""); err == nil {
		t.Fatal("NewUserEvent(array) error=nil, want non-nil")
	}
}

func TestNewLocaleUpdateEvent(t *testing.T) {
	raw, err := NewLocaleUpdateEvent("de-DE").Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var decoded struct {
		Event struct {
			Payload struct {
				Settings []struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"settings"`
			} `json:"payload"`
		} `json:"event"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	settings := decoded.Event.Payload.Settings
	if len(settings) != 1 || settings[0].Key != "locale" || settings[0].Value != "de-DE" {
		t.Fatalf("settings=%+v, want locale=de-DE", settings)
	}
}
