package ws

import (
	"github.com/saker-ai/avs-device/internal/protocol"
	"github.com/saker-ai/avs-device/internal/storage"
)

// Message represents a message.
type Message = protocol.ServerMessage

type incomingHandler func(*session, protocol.ClientCommand)

// transcriptStore is implemented by devices that record transcripts.
type transcriptStore interface {
	ListTranscripts() []storage.TranscriptInfo
	GetTranscript(transcriptUID string) ([]storage.TranscriptEntry, error)
	DeleteTranscript(transcriptUID string) bool
}
