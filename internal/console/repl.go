// Package console implements the interactive utterance REPL.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/output"
	"github.com/saker-ai/avs-device/internal/protocol"
)

const (
	prompt = "avs> "
	help   = `Type an utterance to send it to Alexa.
  :new [utterance]  start a new skill session, optionally with an utterance
  :locale <locale>  change the device locale
  :state            show the conversation state
  :help             show this help
  :quit             exit`
)

// REPL sends typed lines to a device and renders the replies.
type REPL struct {
	device protocol.Device
	editor *LineEditor
	out    io.Writer
	format output.Format
	logger *zap.Logger
}

// New executes the new function.
func New(device protocol.Device, editor *LineEditor, out io.Writer, format output.Format, logger *zap.Logger) *REPL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &REPL{device: device, editor: editor, out: out, format: format, logger: logger}
}

// Run reads lines until :quit, end of input or ctx cancellation.
func (r *REPL) Run(ctx context.Context) error {
	if r.editor.IsInteractive() {
		fmt.Fprintln(r.out, help)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.editor.GetLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		quit, err := r.handle(ctx, strings.TrimSpace(line))
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func (r *REPL) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		return false, r.exec(ctx, protocol.ClientCommand{Type: protocol.TypeUtterance, Utterance: line})
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "q", "exit":
		return true, nil
	case "help", "h":
		fmt.Fprintln(r.out, help)
		return false, nil
	case "state":
		return false, r.exec(ctx, protocol.ClientCommand{Type: protocol.TypeFetchState})
	case "new":
		if arg == "" {
			return false, r.exec(ctx, protocol.ClientCommand{Type: protocol.TypeNewSession})
		}
		return false, r.exec(ctx, protocol.ClientCommand{Type: protocol.TypeUtterance, Utterance: arg, NewSession: true})
	case "locale":
		if arg == "" {
			fmt.Fprintln(r.out, "usage: :locale <locale>")
			return false, nil
		}
		return false, r.exec(ctx, protocol.ClientCommand{Type: protocol.TypeSetLocale, Locale: arg})
	default:
		fmt.Fprintf(r.out, "unknown command %q, try :help\n", line)
		return false, nil
	}
}

func (r *REPL) exec(ctx context.Context, cmd protocol.ClientCommand) error {
	reply := protocol.Execute(ctx, r.device, cmd)
	if reply.Message != "" {
		r.logger.Warn("console command failed", zap.String("type", cmd.Type), zap.String("error", reply.Message))
		fmt.Fprintf(r.out, "error: %s\n", reply.Message)
	}
	switch reply.Type {
	case protocol.TypeTurnResult:
		return output.Render(r.out, r.format, reply.Result)
	case protocol.TypeState:
		return output.Render(r.out, r.format, reply.State)
	case protocol.TypeAck:
		if reply.Locale != "" {
			fmt.Fprintf(r.out, "locale: %s\n", reply.Locale)
		} else {
			fmt.Fprintln(r.out, "ok")
		}
	}
	return nil
}
