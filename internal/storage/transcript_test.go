package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/saker-ai/avs-device/pkg/avs"
)

func TestTranscriptLifecycle(t *testing.T) {
	dir := t.TempDir()
	uid, err := CreateTranscript(dir, "NA")
	if err != nil {
		t.Fatalf("CreateTranscript returned error: %v", err)
	}
	if list := ListTranscripts(dir, "NA"); len(list) != 0 {
		t.Fatalf("ListTranscripts=%v, want empty before any turn", list)
	}

	if err := AppendTranscript(dir, "NA", uid,
		TranscriptEntry{Role: RoleUser, Content: "open space facts"},
		TranscriptEntry{Role: RoleAlexa, Content: "Here's your fact"},
	); err != nil {
		t.Fatalf("AppendTranscript returned error: %v", err)
	}

	entries, err := GetTranscript(dir, "NA", uid)
	if err != nil {
		t.Fatalf("GetTranscript returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].Role != RoleUser || entries[1].Content != "Here's your fact" {
		t.Fatalf("entries=%+v, want user then alexa", entries)
	}
	if entries[0].Timestamp == "" {
		t.Fatal("entry timestamp is empty")
	}

	list := ListTranscripts(dir, "NA")
	if len(list) != 1 || list[0].UID != uid || list[0].LatestEntry.Role != RoleAlexa {
		t.Fatalf("ListTranscripts=%+v, want one with alexa latest", list)
	}

	if !DeleteTranscript(dir, "NA", uid) {
		t.Fatal("DeleteTranscript=false, want true")
	}
	if DeleteTranscript(dir, "NA", uid) {
		t.Fatal("second DeleteTranscript=true, want false")
	}
}

func TestTranscriptRejectsUnsafeNames(t *testing.T) {
	dir := t.TempDir()
	if _, err := CreateTranscript(dir, "../escape"); err == nil {
		t.Fatal("CreateTranscript(../escape) error=nil, want non-nil")
	}
	if _, err := GetTranscript(dir, "NA", "../../etc/passwd"); err == nil {
		t.Fatal("GetTranscript(traversal) error=nil, want non-nil")
	}
	if _, err := CreateTranscript("", "NA"); err == nil {
		t.Fatal("CreateTranscript(empty dir) error=nil, want non-nil")
	}
}

type echoDevice struct {
	err error
}

func (d *echoDevice) SendAudioEvent(_ context.Context, utterance string, _ bool) (*avs.TurnResult, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &avs.TurnResult{AlexaResponse: []string{"you said", utterance}}, nil
}

func (d *echoDevice) SendUserEvent(context.Context, json.RawMessage) (*avs.TurnResult, error) {
	return &avs.TurnResult{AlexaResponse: []string{"touched"}}, nil
}

func (d *echoDevice) SendNewSessionEvent(context.Context) error            { return nil }
func (d *echoDevice) SendLocaleSettingEvent(context.Context, string) error { return nil }
func (d *echoDevice) State() avs.ConversationState                         { return avs.ConversationState{} }
func (d *echoDevice) Locale() string                                       { return "en-US" }

func TestRecorderWritesTurns(t *testing.T) {
	dir := t.TempDir()
	device := &echoDevice{}
	rec := NewRecorder(device, dir, "EU", nil)
	ctx := context.Background()

	if _, err := rec.SendAudioEvent(ctx, "hello", true); err != nil {
		t.Fatalf("SendAudioEvent returned error: %v", err)
	}
	first := rec.TranscriptUID()
	if first == "" {
		t.Fatal("TranscriptUID is empty after a turn")
	}
	if _, err := rec.SendUserEvent(ctx, json.RawMessage(`{"arguments":["x"]}`)); err != nil {
		t.Fatalf("SendUserEvent returned error: %v", err)
	}

	entries, err := GetTranscript(dir, "EU", first)
	if err != nil {
		t.Fatalf("GetTranscript returned error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries=%d, want 4", len(entries))
	}
	if entries[1].Content != "you said hello" || entries[2].Role != RoleEvent {
		t.Fatalf("entries=%+v", entries)
	}

	device.err = errors.New("offline")
	if _, err := rec.SendAudioEvent(ctx, "lost", false); err == nil {
		t.Fatal("SendAudioEvent error=nil, want offline")
	}
	if entries, _ := GetTranscript(dir, "EU", first); len(entries) != 4 {
		t.Fatalf("failed turn was recorded: %d entries", len(entries))
	}

	device.err = nil
	if err := rec.SendNewSessionEvent(ctx); err != nil {
		t.Fatalf("SendNewSessionEvent returned error: %v", err)
	}
	if _, err := rec.SendAudioEvent(ctx, "again", false); err != nil {
		t.Fatalf("SendAudioEvent returned error: %v", err)
	}
	if rec.TranscriptUID() == first {
		t.Fatal("new session kept the old transcript")
	}
}

func TestRecorderTranscriptAccess(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(&echoDevice{}, dir, "NA", nil)
	ctx := context.Background()

	if _, err := rec.SendAudioEvent(ctx, "hello", true); err != nil {
		t.Fatalf("SendAudioEvent returned error: %v", err)
	}
	uid := rec.TranscriptUID()
	list := rec.ListTranscripts()
	if len(list) != 1 || list[0].UID != uid {
		t.Fatalf("ListTranscripts=%+v, want [%s]", list, uid)
	}
	entries, err := rec.GetTranscript(uid)
	if err != nil {
		t.Fatalf("GetTranscript returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}

	if !rec.DeleteTranscript(uid) {
		t.Fatal("DeleteTranscript=false, want true")
	}
	if rec.TranscriptUID() != "" {
		t.Fatalf("TranscriptUID=%q after delete, want empty", rec.TranscriptUID())
	}
	if rec.DeleteTranscript(uid) {
		t.Fatal("second DeleteTranscript=true, want false")
	}
	if _, err := rec.SendAudioEvent(ctx, "again", false); err != nil {
		t.Fatalf("SendAudioEvent returned error: %v", err)
	}
	if got := rec.TranscriptUID(); got == "" || got == uid {
		t.Fatalf("TranscriptUID=%q, want a new transcript", got)
	}
}
