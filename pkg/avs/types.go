package avs

import (
	"strings"
	"time"
)

// Region selects the AVS gateway.
type Region string

const (
	RegionNA Region = "NA"
	RegionEU Region = "EU"
	RegionFE Region = "FE"
)

const (
	// DefaultCapabilitiesURL is the device capability registration endpoint.
	DefaultCapabilitiesURL = "https://api.amazonalexa.com/v1/devices/@self/capabilities"
	// DefaultPingInterval is the keep-alive period required by AVS.
	DefaultPingInterval = 300 * time.Second
	// DefaultLocale is used when no locale is configured.
	DefaultLocale = "en-US"

	eventsPath     = "/v20160207/events"
	directivesPath = "/v20160207/directives"
	pingPath       = "/ping"
)

var regionEndpoints = map[Region]string{
	RegionNA: "https://alexa.na.gateway.devices.a2z.com",
	RegionEU: "https://alexa.eu.gateway.devices.a2z.com",
	RegionFE: "https://alexa.fe.gateway.devices.a2z.com",
}

// ParseRegion normalizes a region name, defaulting to NA.
func ParseRegion(raw string) Region {
	switch Region(strings.ToUpper(strings.TrimSpace(raw))) {
	case RegionEU:
		return RegionEU
	case RegionFE:
		return RegionFE
	default:
		return RegionNA
	}
}

// Endpoint returns the gateway base URL of the region.
func (r Region) Endpoint() string {
	return regionEndpoints[ParseRegion(string(r))]
}

// AudioFormat is the Recognize audio encoding.
type AudioFormat string

const (
	// AudioFormatL16 is 16 kHz / 16-bit / mono little-endian PCM.
	AudioFormatL16 AudioFormat = "AUDIO_L16_RATE_16000_CHANNELS_1"
	// AudioFormatOpus is 16 kHz mono Opus, 20 ms frames at 32 kbps CBR.
	AudioFormatOpus AudioFormat = "OPUS"
)

// ParseAudioFormat maps config values to a Recognize format.
func ParseAudioFormat(raw string) AudioFormat {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "opus":
		return AudioFormatOpus
	default:
		return AudioFormatL16
	}
}

// Config represents a config.
type Config struct {
	Region           Region
	Endpoint         string
	CapabilitiesURL  string
	Locale           string
	AudioFormat      AudioFormat
	PingInterval     time.Duration
	EventRetry       RetryPolicy
	DownchannelRetry RetryPolicy
	TempDir          string
}

func normalizeConfig(cfg Config) Config {
	cfg.Region = ParseRegion(string(cfg.Region))
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.Endpoint == "" {
		cfg.Endpoint = cfg.Region.Endpoint()
	}
	if strings.TrimSpace(cfg.CapabilitiesURL) == "" {
		cfg.CapabilitiesURL = DefaultCapabilitiesURL
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = AudioFormatL16
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	cfg.EventRetry = cfg.EventRetry.normalize(DefaultEventRetry)
	cfg.DownchannelRetry = cfg.DownchannelRetry.normalize(DefaultDownchannelRetry)
	return cfg
}
