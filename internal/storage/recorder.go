package storage

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/protocol"
	"github.com/saker-ai/avs-device/pkg/avs"
)

// Recorder wraps a device and writes every turn to a transcript. A new
// transcript is started with each new skill session.
type Recorder struct {
	protocol.Device

	baseDir   string
	deviceUID string
	logger    *zap.Logger

	mu  sync.Mutex
	uid string
}

// NewRecorder executes the newRecorder function.
func NewRecorder(device protocol.Device, baseDir string, deviceUID string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{Device: device, baseDir: baseDir, deviceUID: deviceUID, logger: logger}
}

// TranscriptUID returns the transcript currently written to.
func (r *Recorder) TranscriptUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uid
}

// ListTranscripts lists the transcripts of the recorded device.
func (r *Recorder) ListTranscripts() []TranscriptInfo {
	return ListTranscripts(r.baseDir, r.deviceUID)
}

// GetTranscript reads one transcript of the recorded device.
func (r *Recorder) GetTranscript(transcriptUID string) ([]TranscriptEntry, error) {
	return GetTranscript(r.baseDir, r.deviceUID, transcriptUID)
}

// DeleteTranscript removes a transcript. Deleting the current one makes the
// next turn start a fresh transcript.
func (r *Recorder) DeleteTranscript(transcriptUID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !DeleteTranscript(r.baseDir, r.deviceUID, transcriptUID) {
		return false
	}
	if r.uid == transcriptUID {
		r.uid = ""
	}
	return true
}

// SendAudioEvent implements protocol.Device.
func (r *Recorder) SendAudioEvent(ctx context.Context, utterance string, isNewSession bool) (*avs.TurnResult, error) {
	result, err := r.Device.SendAudioEvent(ctx, utterance, isNewSession)
	r.record(isNewSession, TranscriptEntry{Role: RoleUser, Content: utterance}, result, err)
	return result, err
}

// SendUserEvent implements protocol.Device.
func (r *Recorder) SendUserEvent(ctx context.Context, userEvent json.RawMessage) (*avs.TurnResult, error) {
	result, err := r.Device.SendUserEvent(ctx, userEvent)
	r.record(false, TranscriptEntry{Role: RoleEvent, Result: userEvent}, result, err)
	return result, err
}

// SendNewSessionEvent implements protocol.Device.
func (r *Recorder) SendNewSessionEvent(ctx context.Context) error {
	if err := r.Device.SendNewSessionEvent(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.uid = ""
	r.mu.Unlock()
	return nil
}

func (r *Recorder) record(newTranscript bool, request TranscriptEntry, result *avs.TurnResult, turnErr error) {
	if result == nil && turnErr != nil {
		return
	}
	entries := []TranscriptEntry{request}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			r.logger.Warn("transcript encode failed", zap.Error(err))
			return
		}
		reply := TranscriptEntry{Role: RoleAlexa, Content: strings.Join(result.AlexaResponse, " "), Result: raw}
		if turnErr != nil {
			reply.Error = turnErr.Error()
		}
		entries = append(entries, reply)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if newTranscript || r.uid == "" {
		uid, err := CreateTranscript(r.baseDir, r.deviceUID)
		if err != nil {
			r.logger.Warn("transcript create failed", zap.Error(err))
			return
		}
		r.uid = uid
	}
	if err := AppendTranscript(r.baseDir, r.deviceUID, r.uid, entries...); err != nil {
		r.logger.Warn("transcript append failed", zap.String("transcript", r.uid), zap.Error(err))
	}
}
