package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appconfig "github.com/saker-ai/avs-device/internal/config"
	applogger "github.com/saker-ai/avs-device/internal/logger"
	"github.com/saker-ai/avs-device/internal/output"
	"github.com/saker-ai/avs-device/pkg/avs"
	"github.com/saker-ai/avs-device/pkg/runtime"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	token        string
	region       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avs-device",
	Short: "Simulated Alexa Voice Service device for skill testing",
	Long: `avs-device drives Alexa skills through the Alexa Voice Service as if it
were a physical device. Utterances are synthesized to speech, sent as
Recognize events, and the spoken responses, APL documents and skill
debugging info are collected per turn.

Configuration is read from conf.yaml (or --config) over built-in defaults.
Every key can be overridden with an AVS_ environment variable, e.g.
AVS_ACCESS_TOKEN or AVS_EVENT_RETRY_ATTEMPTS.

Examples:
  # One turn
  avs-device say "open space facts" --new-session

  # Interactive session
  avs-device console

  # Simulator API for a browser or test harness
  avs-device serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./conf.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "LWA access token (default from config)")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "AVS region: NA, EU or FE (default from config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(userEventCmd)
	rootCmd.AddCommand(newSessionCmd)
	rootCmd.AddCommand(localeCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(consoleCmd)
}

// loadConfig loads the config and a logger that keeps stdout free for results.
func loadConfig() (appconfig.Config, *zap.Logger, error) {
	cfg, err := appconfig.LoadConfig(cfgFile)
	if err != nil {
		return appconfig.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := applogger.NewWithStdout(cfg.Log, zapcore.Lock(os.Stderr))
	if err != nil {
		return appconfig.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// runEnv carries the loaded config and logger into command bodies.
type runEnv struct {
	cfg    appconfig.Config
	logger *zap.Logger
}

// withClient runs fn against a freshly built client and closes it afterwards.
func withClient(ctx context.Context, fn func(context.Context, *avs.Client, runEnv) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := runtime.NewRegistry(cfg, logger)
	defer reg.Close()
	client, err := runtime.ResolveClient(reg, cfg, token, region)
	if err != nil {
		return err
	}
	return fn(ctx, client, runEnv{cfg: cfg, logger: logger})
}

func getOutputFormat() (output.Format, error) {
	return output.ParseFormat(outputFormat)
}

// outputResult renders result to w in the selected output format.
func outputResult(w io.Writer, result any) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}
	return output.Render(w, format, result)
}
