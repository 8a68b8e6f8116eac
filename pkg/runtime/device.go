package runtime

import (
	"strings"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/avs-device/internal/config"
	"github.com/saker-ai/avs-device/internal/protocol"
	"github.com/saker-ai/avs-device/internal/speech"
	"github.com/saker-ai/avs-device/internal/storage"
	"github.com/saker-ai/avs-device/pkg/avs"
)

// NewRegistry builds a client registry whose clients synthesize speech and
// play responses with the configured commands.
func NewRegistry(cfg appconfig.Config, logger *zap.Logger) *avs.Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return avs.NewRegistry(clientFactory(cfg, logger), logger)
}

func clientFactory(cfg appconfig.Config, logger *zap.Logger) avs.ClientFactory {
	return func(token string, region avs.Region) (*avs.Client, error) {
		generator, err := speech.NewCommandGenerator(cfg.TTSCommand, cfg.TempDir, logger)
		if err != nil {
			return nil, err
		}
		collab := avs.Collaborators{
			Tokens: avs.StaticToken(token),
			Speech: generator,
		}
		if strings.TrimSpace(cfg.PlayerCommand) != "" {
			player, err := speech.NewCommandPlayer(cfg.PlayerCommand, logger)
			if err != nil {
				return nil, err
			}
			collab.Player = player
		}

		clientCfg := cfg.AVS()
		clientCfg.Region = region
		if region != avs.ParseRegion(cfg.Region) {
			// The configured endpoint override only applies to the configured region.
			clientCfg.Endpoint = ""
		}
		logger.Info("avs client created", zap.String("region", string(region)))
		return avs.NewClient(clientCfg, collab, logger), nil
	}
}

// ResolveClient fetches the client for token and region, applying config
// defaults to empty values.
func ResolveClient(reg *avs.Registry, cfg appconfig.Config, token string, region string) (*avs.Client, error) {
	if strings.TrimSpace(token) == "" {
		token = cfg.AccessToken
	}
	if strings.TrimSpace(region) == "" {
		region = cfg.Region
	}
	return reg.Get(token, avs.ParseRegion(region))
}

// WithTranscript wraps device in a transcript recorder when transcript_dir is
// set. Transcripts are grouped by region.
func WithTranscript(device protocol.Device, cfg appconfig.Config, region avs.Region, logger *zap.Logger) protocol.Device {
	if strings.TrimSpace(cfg.TranscriptDir) == "" {
		return device
	}
	return storage.NewRecorder(device, cfg.TranscriptDir, string(region), logger)
}
