package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saker-ai/avs-device/pkg/avs"
)

var (
	newSession    bool
	userEventFile string
)

var sayCmd = &cobra.Command{
	Use:   "say <utterance>",
	Short: "Send one utterance and print the turn result",
	Long: `Synthesize the utterance, send it as a Recognize event and print what
Alexa said, the APL documents and the skill debugging info.

Example:
  avs-device say "ask space facts for a fact" --new-session -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		utterance := strings.Join(args, " ")
		return withClient(cmd.Context(), func(ctx context.Context, client *avs.Client, _ runEnv) error {
			result, err := client.SendAudioEvent(ctx, utterance, newSession)
			return printTurn(cmd, result, err)
		})
	},
}

var userEventCmd = &cobra.Command{
	Use:   "user-event [json]",
	Short: "Send an APL UserEvent",
	Long: `Send an Alexa.Presentation.APL.UserEvent with the given payload. The
payload comes from the argument or from --file.

Example:
  avs-device user-event '{"arguments":["next"],"source":{"type":"TouchWrapper"}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readUserEvent(args)
		if err != nil {
			return err
		}
		return withClient(cmd.Context(), func(ctx context.Context, client *avs.Client, _ runEnv) error {
			result, err := client.SendUserEvent(ctx, raw)
			return printTurn(cmd, result, err)
		})
	},
}

var newSessionCmd = &cobra.Command{
	Use:   "new-session",
	Short: "Start a new skill session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *avs.Client, _ runEnv) error {
			if err := client.SendNewSessionEvent(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		})
	},
}

var localeCmd = &cobra.Command{
	Use:   "locale <locale>",
	Short: "Change the device locale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *avs.Client, _ runEnv) error {
			if err := client.SendLocaleSettingEvent(ctx, args[0]); err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), map[string]string{"locale": client.Locale()})
		})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the AVS session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *avs.Client, _ runEnv) error {
			if err := client.SendPing(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", client.Region())
			return nil
		})
	},
}

func init() {
	sayCmd.Flags().BoolVar(&newSession, "new-session", false, "start a new skill session with this utterance")
	userEventCmd.Flags().StringVarP(&userEventFile, "file", "f", "", "read the user event JSON from a file")
}

// printTurn prints a turn result. A partial result is printed before the
// error is returned.
func printTurn(cmd *cobra.Command, result *avs.TurnResult, turnErr error) error {
	if result != nil {
		if err := outputResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	}
	return turnErr
}

func readUserEvent(args []string) (json.RawMessage, error) {
	var raw []byte
	switch {
	case userEventFile != "":
		data, err := os.ReadFile(userEventFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", userEventFile, err)
		}
		raw = data
	case len(args) == 1:
		raw = []byte(args[0])
	default:
		return nil, fmt.Errorf("user event is required, pass JSON or use -f flag")
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("user event is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
