package avs

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// TokenProvider supplies the device access token, refreshing it as needed.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// SpeechGenerator synthesizes an utterance into a WAV file and returns its path.
// The caller removes the file.
type SpeechGenerator interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// AudioPlayer plays an audio file to completion.
type AudioPlayer interface {
	Play(ctx context.Context, path string) error
}

// Collaborators groups the external dependencies of a Client.
type Collaborators struct {
	Tokens     TokenProvider
	Speech     SpeechGenerator
	Player     AudioPlayer
	HTTPClient *http.Client
}

// StaticToken is a TokenProvider returning a fixed token.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(t))
	if token == "" {
		return "", &Error{Kind: KindAuth, Op: "device token", Err: errors.New("access token is empty")}
	}
	return token, nil
}

// NopPlayer discards audio.
type NopPlayer struct{}

// Play implements AudioPlayer.
func (NopPlayer) Play(context.Context, string) error { return nil }

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }
