package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/saker-ai/avs-device/internal/console"
	"github.com/saker-ai/avs-device/pkg/avs"
	"github.com/saker-ai/avs-device/pkg/runtime"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive utterance REPL",
	Long: `Type utterances and see each turn result. Lines starting with ':' are
commands; :help lists them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := getOutputFormat()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return withClient(ctx, func(ctx context.Context, client *avs.Client, env runEnv) error {
			client.StartPing(ctx)
			device := runtime.WithTranscript(client, env.cfg, client.Region(), env.logger)
			editor := console.NewLineEditor(os.Stdin, cmd.OutOrStdout())
			defer editor.Close()
			return console.New(device, editor, cmd.OutOrStdout(), format, env.logger).Run(ctx)
		})
	},
}
