package avs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/session/fsm"
	"github.com/saker-ai/avs-device/internal/transport/avs/codec"
	"github.com/saker-ai/avs-device/pkg/audio"
)

// Client is a simulated AVS device bound to one access token and region. It
// owns the HTTP/2 session, the keep-alive ping and the conversation state.
type Client struct {
	cfg    Config
	logger *zap.Logger
	collab Collaborators
	sess   *session
	turns  *fsm.Machine

	mu     sync.Mutex
	state  ConversationState
	locale string

	pingMu     sync.Mutex
	pingCancel context.CancelFunc
}

// NewClient executes the newClient function.
func NewClient(cfg Config, collab Collaborators, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = normalizeConfig(cfg)
	if collab.Player == nil {
		collab.Player = NopPlayer{}
	}
	logger = logger.With(zap.String("region", string(cfg.Region)))
	return &Client{
		cfg:    cfg,
		logger: logger,
		collab: collab,
		sess:   newSession(cfg.Endpoint, collab.Tokens, collab.HTTPClient, logger),
		turns:  fsm.New(),
		state:  ConversationState{TextResponse: []string{}},
		locale: cfg.Locale,
	}
}

// Region returns the gateway region of the client.
func (c *Client) Region() Region {
	return c.cfg.Region
}

// State returns a copy of the conversation state.
func (c *Client) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// TurnState reports the turn state machine position.
func (c *Client) TurnState() fsm.State {
	return c.turns.State()
}

// Locale returns the device locale: the configured one until a
// SettingsUpdated event succeeds.
func (c *Client) Locale() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

// Closed reports whether the session was torn down.
func (c *Client) Closed() bool {
	return c.sess.isClosed()
}

// Close tears down the session. Every later operation fails with ErrSessionClosed.
func (c *Client) Close() {
	c.stopPing()
	c.turns.Close()
	c.sess.close()
}

// SendAudioEvent runs one Recognize turn for the synthesized utterance. When
// debugging retrieval fails the partial result is returned with the error.
func (c *Client) SendAudioEvent(ctx context.Context, utterance string, isNewSession bool) (*TurnResult, error) {
	if err := c.beginTurn(); err != nil {
		return nil, err
	}
	defer c.turns.End()

	if isNewSession {
		c.mu.Lock()
		c.state.resetSession()
		c.mu.Unlock()
	}
	if err := c.sendCapabilities(ctx); err != nil {
		return nil, err
	}
	body, err := c.recognizeAudio(ctx, utterance)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	token := c.state.SpeechToken
	c.mu.Unlock()

	c.logger.Info("avs recognize turn",
		zap.String("utterance", utterance),
		zap.Bool("new_session", isNewSession),
		zap.Int("audio_bytes", len(body)),
	)
	return c.runTurn(ctx, NewRecognizeEvent(token, c.cfg.AudioFormat), body)
}

// SendUserEvent runs one APL UserEvent turn against the current presentation.
func (c *Client) SendUserEvent(ctx context.Context, userEvent json.RawMessage) (*TurnResult, error) {
	if err := c.beginTurn(); err != nil {
		return nil, err
	}
	defer c.turns.End()

	if err := c.sendCapabilities(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	token := c.state.PresentationToken
	c.mu.Unlock()

	pack, err := NewUserEvent(userEvent, token)
	if err != nil {
		return nil, err
	}
	c.logger.Info("avs user event turn", zap.String("presentation_token", token))
	return c.runTurn(ctx, pack, nil)
}

// SendNewSessionEvent synchronizes state for a fresh session.
func (c *Client) SendNewSessionEvent(ctx context.Context) error {
	if c.sess.isClosed() {
		return ErrSessionClosed
	}
	c.mu.Lock()
	c.state.resetSession()
	c.mu.Unlock()
	return c.sendEventWithRetries(ctx, NewSynchronizeStateEvent(), nil)
}

// SendLocaleSettingEvent updates the device locale.
func (c *Client) SendLocaleSettingEvent(ctx context.Context, locale string) error {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return errors.New("avs locale is empty")
	}
	if c.sess.isClosed() {
		return ErrSessionClosed
	}
	if err := c.sendEventWithRetries(ctx, NewLocaleUpdateEvent(locale), nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.locale = locale
	c.mu.Unlock()
	return nil
}

// SendPing checks the session. Anything but 204 closes the session.
func (c *Client) SendPing(ctx context.Context) error {
	resp, err := c.sess.do(ctx, "ping", http.MethodGet, c.sess.url(pingPath), "", nil)
	if err != nil {
		if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
			return err
		}
		c.logger.Warn("avs ping failed", zap.Error(err))
		c.Close()
		return err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		err := statusError("ping", resp.StatusCode, body)
		c.logger.Warn("avs ping rejected", zap.Int("status", resp.StatusCode))
		c.Close()
		return err
	}
	c.logger.Debug("avs ping ok")
	return nil
}

// StartPing pings every PingInterval until ctx ends, the client is closed or a
// ping fails.
func (c *Client) StartPing(ctx context.Context) {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	if c.pingCancel != nil {
		return
	}
	pingCtx, cancel := context.WithCancel(ctx)
	c.pingCancel = cancel
	go c.pingLoop(pingCtx)
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SendPing(ctx); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("avs ping loop stopped", zap.Error(err))
				}
				return
			}
		}
	}
}

func (c *Client) stopPing() {
	c.pingMu.Lock()
	cancel := c.pingCancel
	c.pingMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) beginTurn() error {
	if c.sess.isClosed() {
		return ErrSessionClosed
	}
	if err := c.turns.Begin(); err != nil {
		if errors.Is(err, fsm.ErrClosed) {
			return ErrSessionClosed
		}
		return ErrTurnInFlight
	}
	return nil
}

// runTurn opens the downchannel before posting the event, then waits for the
// debugging directives correlated with it.
func (c *Client) runTurn(ctx context.Context, pack EventPack, audioBody []byte) (*TurnResult, error) {
	dc := newDownchannel(c.sess, c.cfg.DownchannelRetry, c.logger)
	if err := dc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect downchannel: %w", err)
	}
	defer dc.Close()

	c.turns.OnSending()
	if err := c.sendEventWithRetries(ctx, pack, audioBody); err != nil {
		return nil, err
	}

	c.turns.OnAwaitingDebug()
	debug, debugErr := dc.Directives(ctx)

	c.mu.Lock()
	result := newTurnResult(c.state, debug)
	c.mu.Unlock()
	if debugErr != nil {
		c.logger.Warn("avs debugging info unavailable", zap.String("event", pack.Name()), zap.Error(debugErr))
		return result, fmt.Errorf("retrieve debugging info: %w", debugErr)
	}
	return result, nil
}

func (c *Client) recognizeAudio(ctx context.Context, utterance string) ([]byte, error) {
	if c.collab.Speech == nil {
		return nil, errors.New("avs speech generator is not configured")
	}
	path, err := c.collab.Speech.Synthesize(ctx, utterance)
	if err != nil {
		return nil, fmt.Errorf("synthesize utterance: %w", err)
	}
	defer os.Remove(path)
	wav, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	pcm, err := audio.ToRecognizePCM(wav)
	if err != nil {
		return nil, fmt.Errorf("convert synthesized audio: %w", err)
	}
	if c.cfg.AudioFormat == AudioFormatOpus {
		encoded, err := audio.EncodeRecognizeOpus(pcm)
		if err != nil {
			return nil, fmt.Errorf("encode synthesized audio: %w", err)
		}
		return encoded, nil
	}
	return pcm, nil
}

func (c *Client) sendEventWithRetries(ctx context.Context, pack EventPack, audioBody []byte) error {
	metadata, err := pack.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", pack.Name(), err)
	}
	body, err := codec.Pack(metadata, audioBody)
	if err != nil {
		return fmt.Errorf("pack %s event: %w", pack.Name(), err)
	}
	name := "send " + pack.Name() + " event"
	return c.cfg.EventRetry.Do(ctx, name, func() error {
		return c.sendEvent(ctx, pack.Name(), body)
	}, func(err error, wait time.Duration) {
		c.logger.Warn("avs event retry", zap.String("event", pack.Name()), zap.Error(err), zap.Duration("wait", wait))
	})
}

func (c *Client) sendEvent(ctx context.Context, name string, body []byte) error {
	resp, err := c.sess.do(ctx, "post event", http.MethodPost, c.sess.url(eventsPath), codec.FormDataContentType(), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError("read event response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("post event", resp.StatusCode, data)
	}
	c.logger.Debug("avs event sent",
		zap.String("event", name),
		zap.Int("status", resp.StatusCode),
		zap.Int("response_bytes", len(data)),
	)
	if name != EventRecognize && name != EventUserEvent {
		return nil
	}

	var parts []codec.Part
	if resp.StatusCode != http.StatusNoContent && len(data) > 0 {
		boundary, err := codec.BoundaryFromContentType(resp.Header.Get("Content-Type"))
		if err != nil {
			boundary = codec.SniffBoundary(data)
		}
		if boundary == "" {
			return protocolError("post event", fmt.Errorf("no multipart boundary in %s response", name))
		}
		parts, err = codec.Decode(data, boundary)
		if err != nil {
			return protocolError("post event", err)
		}
	}
	c.processDirectives(ctx, parts)
	return nil
}

// processDirectives resets the per-turn state and applies every directive in
// order. Audio parts are played sequentially after all parts were handled.
func (c *Client) processDirectives(ctx context.Context, parts []codec.Part) {
	var files []string
	c.mu.Lock()
	c.state.beginTurn()
	for _, part := range parts {
		switch part.Kind() {
		case codec.PartKindJSON:
			directive, ok := ParseJSONContent(part.Body)
			if !ok {
				c.logger.Debug("avs non-directive json part skipped")
				continue
			}
			c.logger.Debug("avs directive", zap.String("directive", directive.Identifier()))
			c.state.apply(directive, c.logger)
		case codec.PartKindBinary:
			path, err := c.writeAudioPart(part)
			if err != nil {
				c.logger.Warn("avs audio part dropped", zap.String("content_id", part.ContentID()), zap.Error(err))
				continue
			}
			files = append(files, path)
		default:
			c.logger.Debug("avs multipart part skipped", zap.String("content_type", part.Header.Get("Content-Type")))
		}
	}
	c.mu.Unlock()

	c.play(ctx, files)
}

func (c *Client) writeAudioPart(part codec.Part) (string, error) {
	f, err := os.CreateTemp(c.cfg.TempDir, "avs-speech-*.mp3")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(part.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (c *Client) play(ctx context.Context, files []string) {
	for _, path := range files {
		if err := c.collab.Player.Play(ctx, path); err != nil {
			c.logger.Warn("avs audio playback failed", zap.String("file", path), zap.Error(err))
		}
		_ = os.Remove(path)
	}
}

func (c *Client) sendCapabilities(ctx context.Context) error {
	manifest, err := CapabilityManifest()
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	return c.cfg.EventRetry.Do(ctx, "send capabilities", func() error {
		resp, err := c.sess.do(ctx, "put capabilities", http.MethodPut, c.cfg.CapabilitiesURL, "application/json", manifest)
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError("put capabilities", resp.StatusCode, body)
		}
		return nil
	}, func(err error, wait time.Duration) {
		c.logger.Warn("avs capabilities retry", zap.Error(err), zap.Duration("wait", wait))
	})
}
