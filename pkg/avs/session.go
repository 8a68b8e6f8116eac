package avs

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// session is the shared HTTP/2 connection to one AVS gateway.
type session struct {
	endpoint string
	tokens   TokenProvider
	client   *http.Client
	logger   *zap.Logger
	closed   atomic.Bool
}

func newSession(endpoint string, tokens TokenProvider, client *http.Client, logger *zap.Logger) *session {
	if client == nil {
		client = &http.Client{Transport: newHTTP2Transport(endpoint)}
	}
	return &session{
		endpoint: endpoint,
		tokens:   tokens,
		client:   client,
		logger:   logger,
	}
}

// newHTTP2Transport returns an HTTP/2 transport; plain http endpoints use h2c.
func newHTTP2Transport(endpoint string) *http2.Transport {
	if strings.HasPrefix(endpoint, "http://") {
		return &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	}
	return &http2.Transport{}
}

func (s *session) isClosed() bool {
	return s.closed.Load()
}

func (s *session) close() {
	if s.closed.Swap(true) {
		return
	}
	s.client.CloseIdleConnections()
	s.logger.Info("avs session closed", zap.String("endpoint", s.endpoint))
}

// do issues one authorized request. The caller owns the response body.
func (s *session) do(ctx context.Context, op, method, url, contentType string, body []byte) (*http.Response, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, protocolError(op, err)
	}
	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			if _, ok := AsError(err); ok {
				return nil, err
			}
			return nil, &Error{Kind: KindAuth, Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.isClosed() {
			return nil, ErrSessionClosed
		}
		return nil, networkError(op, err)
	}
	return resp, nil
}

func (s *session) url(path string) string {
	return s.endpoint + path
}
