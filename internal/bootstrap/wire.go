package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"avatarchat/internal/config"
	"avatarchat/internal/domain"
	"avatarchat/internal/logging"
	"avatarchat/internal/ports"
	"avatarchat/internal/presentation"
	"avatarchat/internal/providers/heygen"
	"avatarchat/internal/proxy"
	"avatarchat/internal/telemetry"
	"avatarchat/internal/usecase"
	"avatarchat/internal/widget"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Input      *widget.TextInput
	Proxy      *proxy.Server
	// ProxyClient reaches the proxy at Config.Proxy.BaseURL.
	ProxyClient *proxy.Client
	Config      config.Config
	Logger      zerolog.Logger
	// Shutdown flushes tracing.
	Shutdown func(context.Context) error
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	shutdown, err := telemetry.Setup(cfg.Tracing.Stdout, nil)
	if err != nil {
		return Services{}, err
	}

	vendor := heygen.NewClient(heygen.Config{
		APIKey:     cfg.HeyGen.APIKey,
		APIBaseURL: cfg.HeyGen.APIBaseURL,
		Logger:     logging.Component(logger, "heygen"),
	})
	if !vendor.HasAPIKey() {
		logger.Warn().Msg("HEYGEN_API_KEY is not set; token requests will fail")
	}

	proxyClient := proxy.NewClient(cfg.Proxy.BaseURL, nil)
	controller := usecase.NewSessionController(
		proxyClient,
		heygen.NewProvider(vendor, logging.Component(logger, "avatar")),
		eventSink,
		presentation.NewSurface(),
		StartOptions(cfg),
		logger,
	)

	return Services{
		Controller:  controller,
		Input:       widget.NewTextInput(controller, logging.Component(logger, "input")),
		Proxy:       proxy.New(vendor, logging.Component(logger, "proxy")),
		ProxyClient: proxyClient,
		Config:      cfg,
		Logger:      logger,
		Shutdown:    shutdown,
	}, nil
}

// StartOptions maps avatar configuration to session start parameters.
func StartOptions(cfg config.Config) domain.StartOptions {
	return domain.StartOptions{
		Quality:     domain.AvatarQuality(cfg.Avatar.Quality),
		AvatarName:  cfg.Avatar.AvatarID,
		KnowledgeID: cfg.Avatar.KnowledgeID,
		Voice: domain.VoiceSettings{
			Rate:    cfg.Avatar.VoiceRate,
			Emotion: domain.VoiceEmotion(cfg.Avatar.VoiceEmotion),
		},
		Language:           cfg.Avatar.Language,
		DisableIdleTimeout: cfg.Avatar.DisableIdleTimeout,
	}
}
