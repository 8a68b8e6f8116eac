package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	appdefaults "github.com/saker-ai/avs-device/config"
	"github.com/saker-ai/avs-device/internal/logger"
	"github.com/saker-ai/avs-device/pkg/avs"
)

const envPrefix = "avs"

// RetryConfig represents a retryConfig.
type RetryConfig struct {
	Attempts        int           `mapstructure:"attempts" yaml:"attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	Multiplier      float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// Config represents a config.
type Config struct {
	RootDir          string        `mapstructure:"-"`
	Region           string        `mapstructure:"region"`
	Endpoint         string        `mapstructure:"endpoint"`
	CapabilitiesURL  string        `mapstructure:"capabilities_url"`
	AccessToken      string        `mapstructure:"access_token"`
	Locale           string        `mapstructure:"locale"`
	AudioFormat      string        `mapstructure:"audio_format"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	EventRetry       RetryConfig   `mapstructure:"event_retry"`
	DownchannelRetry RetryConfig   `mapstructure:"downchannel_retry"`
	TempDir          string        `mapstructure:"temp_dir"`
	TranscriptDir    string        `mapstructure:"transcript_dir"`
	TTSCommand       string        `mapstructure:"tts_command"`
	PlayerCommand    string        `mapstructure:"player_command"`
	HTTPAddr         string        `mapstructure:"http_addr"`
	TLSDisable       bool          `mapstructure:"tls_disable"`
	TLSCertPath      string        `mapstructure:"tls_cert_path"`
	TLSKeyPath       string        `mapstructure:"tls_key_path"`
	Log              logger.Config `mapstructure:"log"`
}

// AVS maps the loaded settings onto the device client config.
func (c Config) AVS() avs.Config {
	return avs.Config{
		Region:           avs.ParseRegion(c.Region),
		Endpoint:         c.Endpoint,
		CapabilitiesURL:  c.CapabilitiesURL,
		Locale:           c.Locale,
		AudioFormat:      avs.ParseAudioFormat(c.AudioFormat),
		PingInterval:     c.PingInterval,
		EventRetry:       avs.RetryPolicy(c.EventRetry),
		DownchannelRetry: avs.RetryPolicy(c.DownchannelRetry),
		TempDir:          c.TempDir,
	}
}

// Load reads conf.yaml from the root directory over the embedded defaults.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName("conf")
	v.AddConfigPath(rootDir)
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}
	return decode(v, rootDir)
}

// LoadConfig reads an explicit config file. An empty path falls back to Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("AVS_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}
	return decode(v, rootDir)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetDefault("region", string(avs.RegionNA))
	v.SetDefault("locale", avs.DefaultLocale)
	v.SetDefault("audio_format", "l16")
	v.SetDefault("ping_interval", avs.DefaultPingInterval)
	v.SetDefault("capabilities_url", avs.DefaultCapabilitiesURL)
	v.SetDefault("http_addr", ":8101")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.name", "avs-device.log")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RootDir = rootDir
	derivePaths(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch strings.ToUpper(strings.TrimSpace(cfg.Region)) {
	case string(avs.RegionNA), string(avs.RegionEU), string(avs.RegionFE):
	default:
		return fmt.Errorf("unknown region %q", cfg.Region)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.AudioFormat)) {
	case "l16", "opus":
	default:
		return fmt.Errorf("unknown audio_format %q", cfg.AudioFormat)
	}
	return nil
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("AVS_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	if strings.TrimSpace(cfg.TempDir) != "" {
		cfg.TempDir = resolvePath(cfg.RootDir, cfg.TempDir, "")
	}
	if strings.TrimSpace(cfg.TranscriptDir) != "" {
		cfg.TranscriptDir = resolvePath(cfg.RootDir, cfg.TranscriptDir, "")
	}
	cfg.TLSCertPath = resolvePath(cfg.RootDir, cfg.TLSCertPath, filepath.Join("certs", "server.crt"))
	cfg.TLSKeyPath = resolvePath(cfg.RootDir, cfg.TLSKeyPath, filepath.Join("certs", "server.key"))
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
