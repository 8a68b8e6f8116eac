package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/saker-ai/avs-device/pkg/avs"
)

type stubDevice struct {
	turnErr  error
	partial  bool
	locale   string
	sessions int
}

func (d *stubDevice) SendAudioEvent(_ context.Context, utterance string, _ bool) (*avs.TurnResult, error) {
	if d.turnErr != nil && !d.partial {
		return nil, d.turnErr
	}
	return &avs.TurnResult{AlexaResponse: []string{"echo " + utterance}}, d.turnErr
}

func (d *stubDevice) SendUserEvent(_ context.Context, _ json.RawMessage) (*avs.TurnResult, error) {
	return &avs.TurnResult{AlexaResponse: []string{}}, nil
}

func (d *stubDevice) SendNewSessionEvent(context.Context) error {
	d.sessions++
	return nil
}

func (d *stubDevice) SendLocaleSettingEvent(_ context.Context, locale string) error {
	d.locale = locale
	return nil
}

func (d *stubDevice) State() avs.ConversationState {
	return avs.ConversationState{SpeechToken: "s1"}
}

func (d *stubDevice) Locale() string { return d.locale }

func TestExecuteUtterance(t *testing.T) {
	reply := Execute(context.Background(), &stubDevice{}, ClientCommand{Type: TypeUtterance, RequestID: "r1", Utterance: "hi"})
	if reply.Type != TypeTurnResult || reply.RequestID != "r1" {
		t.Fatalf("reply=%+v, want turn-result r1", reply)
	}
	if reply.Result == nil || reply.Result.AlexaResponse[0] != "echo hi" {
		t.Fatalf("result=%+v, want echo hi", reply.Result)
	}
}

func TestExecuteErrors(t *testing.T) {
	reply := Execute(context.Background(), &stubDevice{turnErr: avs.ErrTurnInFlight}, ClientCommand{Type: TypeUtterance})
	if reply.Type != TypeError || reply.Message == "" {
		t.Fatalf("reply=%+v, want error", reply)
	}

	reply = Execute(context.Background(), &stubDevice{turnErr: errors.New("debug timeout"), partial: true}, ClientCommand{Type: TypeUtterance, Utterance: "x"})
	if reply.Type != TypeTurnResult || reply.Result == nil || reply.Message != "debug timeout" {
		t.Fatalf("reply=%+v, want partial turn-result with message", reply)
	}

	reply = Execute(context.Background(), &stubDevice{}, ClientCommand{Type: "bogus"})
	if reply.Type != TypeError {
		t.Fatalf("reply=%+v, want error for unknown type", reply)
	}
}

func TestExecuteStateAndAcks(t *testing.T) {
	dev := &stubDevice{}
	if reply := Execute(context.Background(), dev, ClientCommand{Type: TypeNewSession}); reply.Type != TypeAck || dev.sessions != 1 {
		t.Fatalf("reply=%+v sessions=%d, want ack 1", reply, dev.sessions)
	}
	if reply := Execute(context.Background(), dev, ClientCommand{Type: TypeSetLocale, Locale: "fr-FR"}); reply.Locale != "fr-FR" {
		t.Fatalf("reply=%+v, want locale fr-FR", reply)
	}
	reply := Execute(context.Background(), dev, ClientCommand{Type: TypeFetchState})
	if reply.Type != TypeState || reply.State == nil || reply.State.SpeechToken != "s1" {
		t.Fatalf("reply=%+v, want state s1", reply)
	}
}
