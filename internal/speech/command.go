// Package speech adapts external programs to the device speech and playback
// collaborators.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const (
	placeholderText = "{text}"
	placeholderOut  = "{out}"
	placeholderFile = "{file}"
)

// CommandGenerator synthesizes speech by running a TTS command line such as
// "espeak-ng -w {out} {text}".
type CommandGenerator struct {
	command []string
	tempDir string
	logger  *zap.Logger
}

// NewCommandGenerator executes the newCommandGenerator function.
func NewCommandGenerator(command string, tempDir string, logger *zap.Logger) (*CommandGenerator, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("tts command is empty")
	}
	if !strings.Contains(command, placeholderOut) {
		return nil, fmt.Errorf("tts command %q has no %s placeholder", command, placeholderOut)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandGenerator{command: fields, tempDir: tempDir, logger: logger}, nil
}

// Synthesize writes the utterance to a new WAV file and returns its path.
func (g *CommandGenerator) Synthesize(ctx context.Context, text string) (string, error) {
	out, err := os.CreateTemp(g.tempDir, "avs-utterance-*.wav")
	if err != nil {
		return "", err
	}
	path := out.Name()
	_ = out.Close()

	args := substitute(g.command, map[string]string{placeholderText: text, placeholderOut: path})
	if err := run(ctx, args); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("tts command: %w", err)
	}
	g.logger.Debug("speech synthesized", zap.String("file", path), zap.Int("chars", len(text)))
	return path, nil
}

// CommandPlayer plays audio by running a command line such as "mpg123 -q {file}".
type CommandPlayer struct {
	command []string
	logger  *zap.Logger
}

// NewCommandPlayer executes the newCommandPlayer function.
func NewCommandPlayer(command string, logger *zap.Logger) (*CommandPlayer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("player command is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.Contains(command, placeholderFile) {
		fields = append(fields, placeholderFile)
	}
	return &CommandPlayer{command: fields, logger: logger}, nil
}

// Play blocks until the file finished playing.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	args := substitute(p.command, map[string]string{placeholderFile: path})
	if err := run(ctx, args); err != nil {
		return fmt.Errorf("player command: %w", err)
	}
	p.logger.Debug("audio played", zap.String("file", path))
	return nil
}

// substitute replaces placeholders per argument so values never get split.
func substitute(command []string, values map[string]string) []string {
	args := make([]string, len(command))
	for i, arg := range command {
		for placeholder, value := range values {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		args[i] = arg
	}
	return args
}

func run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
