package avs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/transport/avs/codec"
)

const (
	downchannelChunkSize  = 32 * 1024
	downchannelQueueDepth = 64
)

// Downchannel is one long-poll directives stream, opened for a single turn to
// capture the skill debugging directives correlated with it.
type Downchannel struct {
	sess   *session
	policy RetryPolicy
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc

	// Owned by the turn goroutine.
	chunks   chan []byte
	boundary string
	buf      bytes.Buffer

	requests   []json.RawMessage
	responses  []json.RawMessage
	intent     json.RawMessage
	outOfSkill bool

	closeOnce sync.Once
}

func newDownchannel(sess *session, policy RetryPolicy, logger *zap.Logger) *Downchannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downchannel{
		sess:   sess,
		policy: policy,
		logger: logger,
	}
}

// Connect opens the directives stream and returns once the response headers
// arrived. Body chunks are read in the background until the stream ends or
// Close is called.
func (d *Downchannel) Connect(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	resp, err := d.sess.do(streamCtx, "open downchannel", http.MethodGet, d.sess.url(directivesPath), "", nil)
	if err != nil {
		cancel()
		return err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		cancel()
		return statusError("open downchannel", resp.StatusCode, body)
	}

	boundary, err := codec.BoundaryFromContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		d.logger.Debug("avs downchannel boundary not in headers", zap.Error(err))
	}

	chunks := make(chan []byte, downchannelQueueDepth)
	d.chunks = chunks
	d.boundary = boundary
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go d.readLoop(streamCtx, resp.Body, chunks)
	d.logger.Debug("avs downchannel connected", zap.String("boundary", boundary))
	return nil
}

func (d *Downchannel) readLoop(ctx context.Context, body io.ReadCloser, chunks chan<- []byte) {
	defer close(chunks)
	defer body.Close()
	buf := make([]byte, downchannelChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			select {
			case chunks <- bytes.Clone(buf[:n]):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				d.logger.Warn("avs downchannel read failed", zap.Error(err))
			}
			return
		}
	}
}

// drain appends every chunk received so far to the buffer.
func (d *Downchannel) drain() {
	for {
		select {
		case chunk, ok := <-d.chunks:
			if !ok {
				d.chunks = nil
				return
			}
			d.buf.Write(chunk)
		default:
			return
		}
	}
}

// Directives waits for the debugging directives of the current turn. Each
// attempt re-parses the whole accumulated buffer. An out-of-skill exception ends
// the wait with empty capture lists. The buffer is cleared after a successful
// retrieval.
func (d *Downchannel) Directives(ctx context.Context) (DebugInfo, error) {
	d.mu.Lock()
	connected := d.cancel != nil
	d.mu.Unlock()
	if !connected {
		return emptyDebugInfo(), protocolError("retrieve debugging directives", errors.New("downchannel not connected"))
	}

	var info DebugInfo
	err := d.policy.Do(ctx, "retrieve debugging directives", func() error {
		if d.sess.isClosed() {
			return ErrSessionClosed
		}
		d.drain()
		if err := d.parse(); err != nil {
			return err
		}
		if !d.outOfSkill && len(d.requests) == 0 && len(d.responses) == 0 {
			return ErrDebugInfoPending
		}
		info = d.snapshot()
		return nil
	}, func(err error, wait time.Duration) {
		d.logger.Debug("avs debugging directives pending", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return emptyDebugInfo(), err
	}
	d.buf.Reset()
	return info, nil
}

// parse decodes the accumulated buffer and rebuilds the captures from scratch.
func (d *Downchannel) parse() error {
	d.requests = nil
	d.responses = nil
	d.intent = nil
	d.outOfSkill = false

	raw := d.buf.Bytes()
	boundary := d.boundary
	if boundary == "" {
		boundary = codec.SniffBoundary(raw)
	}
	if boundary == "" {
		return ErrDebugInfoPending
	}
	parts, err := codec.Decode(raw, boundary)
	if err != nil {
		return protocolError("decode downchannel", err)
	}
	for _, part := range parts {
		if part.Kind() != codec.PartKindJSON {
			continue
		}
		directive, ok := ParseJSONContent(part.Body)
		if !ok {
			continue
		}
		d.process(directive)
	}
	return nil
}

func (d *Downchannel) process(directive Directive) {
	payload, err := directive.Decode()
	if err != nil {
		d.logger.Warn("avs downchannel directive decode failed", zap.String("directive", directive.Identifier()), zap.Error(err))
		return
	}
	switch p := payload.(type) {
	case CaptureDebuggingInfoPayload:
		switch p.Type {
		case debugTypeConsideredIntents:
			var content struct {
				Intents json.RawMessage `json:"intents"`
			}
			if err := unmarshalPayload(p.Content, &content); err != nil {
				d.logger.Warn("avs considered intents decode failed", zap.Error(err))
				return
			}
			d.intent = nullAsUnset(content.Intents)
		case debugTypeSkillExecutionInfo:
			var content struct {
				InvocationRequest struct {
					Body json.RawMessage `json:"body"`
				} `json:"invocationRequest"`
				InvocationResponse struct {
					Body json.RawMessage `json:"body"`
				} `json:"invocationResponse"`
			}
			if err := unmarshalPayload(p.Content, &content); err != nil {
				d.logger.Warn("avs skill execution info decode failed", zap.Error(err))
				return
			}
			if body := nullAsUnset(content.InvocationRequest.Body); body != nil {
				d.requests = append(d.requests, body)
			}
			if body := nullAsUnset(content.InvocationResponse.Body); body != nil {
				d.responses = append(d.responses, body)
			}
		default:
			d.logger.Debug("avs debugging info ignored", zap.String("type", p.Type))
		}
	case ExceptionPayload:
		if p.Code == ExceptionUnauthorizedDebugging {
			d.outOfSkill = true
			return
		}
		d.logger.Warn("avs skill debugger exception", zap.String("code", p.Code), zap.String("description", p.Description))
	default:
		d.logger.Debug("avs downchannel directive ignored", zap.String("directive", directive.Identifier()))
	}
}

func (d *Downchannel) snapshot() DebugInfo {
	info := emptyDebugInfo()
	info.Request = append(info.Request, d.requests...)
	info.Response = append(info.Response, d.responses...)
	info.Intent = d.intent
	info.OutOfSkill = d.outOfSkill
	return info
}

// Close cancels the stream.
func (d *Downchannel) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		cancel := d.cancel
		d.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}
