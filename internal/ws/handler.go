package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/protocol"
)

// Handler represents a handler.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	resolve  protocol.DeviceResolver
	sessions map[string]*session
	mu       sync.Mutex
}

type session struct {
	conn      *websocket.Conn
	sendMu    sync.Mutex
	logger    *zap.Logger
	ctx       context.Context
	clientUID string
	device    protocol.Device
	turns     sync.WaitGroup
}

// NewHandler executes the newHandler function.
func NewHandler(logger *zap.Logger, resolve protocol.DeviceResolver) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:   logger,
		resolve:  resolve,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and serves one simulator session. The device is
// picked by the token and region query parameters.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	device, err := h.resolve(r.URL.Query().Get("token"), r.URL.Query().Get("region"))
	if err != nil {
		h.logger.Warn("ws device unavailable", zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		conn:      conn,
		logger:    h.logger,
		ctx:       ctx,
		clientUID: fmt.Sprintf("%d", time.Now().UnixNano()),
		device:    device,
	}
	sess.logger.Info("ws session opened", zap.String("session_id", sess.clientUID))

	h.registerSession(sess)
	defer h.unregisterSession(sess.clientUID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("ws connection closed", zap.Error(err))
			break
		}
		var cmd protocol.ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			sess.sendJSON(Message{Type: protocol.TypeError, Message: "invalid message: " + err.Error()})
			continue
		}
		sess.dispatchIncoming(cmd)
	}

	cancel()
	sess.turns.Wait()
	sess.logger.Info("ws session closed", zap.String("session_id", sess.clientUID))
}

// SessionCount returns the number of open simulator sessions.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("ws send failed", zap.Error(err))
	}
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	h.sessions[sess.clientUID] = sess
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(clientUID string) {
	h.mu.Lock()
	delete(h.sessions, clientUID)
	h.mu.Unlock()
}
