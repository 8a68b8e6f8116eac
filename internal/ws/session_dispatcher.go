package ws

import (
	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/protocol"
	"github.com/saker-ai/avs-device/internal/storage"
)

func (s *session) dispatchIncoming(cmd protocol.ClientCommand) {
	handlers := map[string]incomingHandler{
		protocol.TypeUtterance:  (*session).onTurn,
		protocol.TypeUserEvent:  (*session).onTurn,
		protocol.TypeNewSession: (*session).onTurn,
		protocol.TypeSetLocale:  (*session).onTurn,
		protocol.TypeFetchState: (*session).onImmediate,
		protocol.TypeHeartbeat:  (*session).onImmediate,

		protocol.TypeFetchTranscriptList: (*session).onTranscriptList,
		protocol.TypeFetchTranscript:     (*session).onFetchTranscript,
		protocol.TypeDeleteTranscript:    (*session).onDeleteTranscript,
	}

	if handler, ok := handlers[cmd.Type]; ok {
		handler(s, cmd)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("session_id", s.clientUID),
		zap.String("type", cmd.Type),
	)
	s.sendJSON(Message{Type: protocol.TypeError, RequestID: cmd.RequestID, Message: "unknown message type: " + cmd.Type})
}

// onTurn runs commands that reach AVS off the read loop so heartbeats keep
// flowing while a turn waits for debugging info.
func (s *session) onTurn(cmd protocol.ClientCommand) {
	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		reply := protocol.Execute(s.ctx, s.device, cmd)
		if reply.Type == protocol.TypeError {
			s.logger.Warn("ws command failed",
				zap.String("session_id", s.clientUID),
				zap.String("type", cmd.Type),
				zap.String("error", reply.Message),
			)
		}
		s.sendJSON(reply)
	}()
}

func (s *session) onImmediate(cmd protocol.ClientCommand) {
	s.sendJSON(protocol.Execute(s.ctx, s.device, cmd))
}

// transcripts returns the transcript store of the session device, replying
// with an error when recording is off.
func (s *session) transcripts(cmd protocol.ClientCommand) (transcriptStore, bool) {
	store, ok := s.device.(transcriptStore)
	if !ok {
		s.sendJSON(Message{Type: protocol.TypeError, RequestID: cmd.RequestID, Message: "transcripts are disabled"})
	}
	return store, ok
}

func (s *session) onTranscriptList(cmd protocol.ClientCommand) {
	store, ok := s.transcripts(cmd)
	if !ok {
		return
	}
	s.sendJSON(map[string]any{"type": "transcript-list", "request_id": cmd.RequestID, "transcripts": store.ListTranscripts()})
}

func (s *session) onFetchTranscript(cmd protocol.ClientCommand) {
	store, ok := s.transcripts(cmd)
	if !ok {
		return
	}
	entries, err := store.GetTranscript(cmd.TranscriptUID)
	if err != nil {
		s.sendJSON(Message{Type: protocol.TypeError, RequestID: cmd.RequestID, Message: err.Error()})
		return
	}
	s.sendJSON(map[string]any{"type": "transcript-data", "request_id": cmd.RequestID, "transcript_uid": cmd.TranscriptUID, "entries": entries})
}

func (s *session) onDeleteTranscript(cmd protocol.ClientCommand) {
	store, ok := s.transcripts(cmd)
	if !ok {
		return
	}
	success := store.DeleteTranscript(cmd.TranscriptUID)
	s.sendJSON(map[string]any{"type": "transcript-deleted", "request_id": cmd.RequestID, "transcript_uid": cmd.TranscriptUID, "success": success})
}

var _ transcriptStore = (*storage.Recorder)(nil)
