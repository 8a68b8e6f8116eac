package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/avs-device/internal/config"
	apphttp "github.com/saker-ai/avs-device/internal/http"
	applogger "github.com/saker-ai/avs-device/internal/logger"
	"github.com/saker-ai/avs-device/internal/protocol"
	"github.com/saker-ai/avs-device/internal/ws"
	"github.com/saker-ai/avs-device/pkg/avs"
)

// Server represents a server.
type Server struct {
	cfg      appconfig.Config
	logger   *zap.Logger
	registry *avs.Registry
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// New executes the new function.
func New(configPath string) (*Server, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load avs-device config: %w", err)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("avs-device logger configured",
		zap.String("level", cfg.Log.Level),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
		zap.String("file_name", cfg.Log.File.Name),
	)
	logger.Info("avs-device config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("region", cfg.Region),
	)
	return NewWithConfig(cfg, logger), nil
}

// NewWithConfig builds a server from an already loaded config.
func NewWithConfig(cfg appconfig.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry(cfg, logger)
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}

	resolve := s.resolver()
	wsHandler := ws.NewHandler(logger, s.recordingResolver())
	router := apphttp.NewRouter(resolve, wsHandler, logger)
	s.server = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	return s
}

// resolver keeps a ping loop running on every client handed to a simulator.
func (s *Server) resolver() protocol.DeviceResolver {
	return func(token string, region string) (protocol.Device, error) {
		client, err := ResolveClient(s.registry, s.cfg, token, region)
		if err != nil {
			return nil, err
		}
		client.StartPing(s.ctx)
		return client, nil
	}
}

// recordingResolver gives each simulator websocket session its own transcript.
func (s *Server) recordingResolver() protocol.DeviceResolver {
	return func(token string, region string) (protocol.Device, error) {
		client, err := ResolveClient(s.registry, s.cfg, token, region)
		if err != nil {
			return nil, err
		}
		client.StartPing(s.ctx)
		return WithTranscript(client, s.cfg, client.Region(), s.logger), nil
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Handler
}

// Run executes the run method.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}

	err := listen(s.server, s.cfg, s.logger)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr executes the addr method.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Shutdown stops the HTTP server and closes every AVS client.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	err := ignoreServerClosed(s.server.Shutdown(ctx))
	s.cancel()
	s.registry.Close()
	return err
}

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
