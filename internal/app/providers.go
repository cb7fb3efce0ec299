package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"genai-chat/internal/api/server"
	v1routes "genai-chat/internal/api/v1/routes"
	"genai-chat/internal/api/v1/services"
	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/chat/genaibackend"
	"genai-chat/internal/app/chat/imageloader"
	"genai-chat/internal/app/chat/openaicompat"
	appconfig "genai-chat/internal/app/config"
	apperrors "genai-chat/internal/app/errors"
	"genai-chat/internal/app/logging"
	"genai-chat/internal/app/metrics"
	"genai-chat/internal/config"
)

// provideLogger honours GENAI_CHAT_LOG_LEVEL and GENAI_CHAT_DEV.
func provideLogger(settings *config.Settings) (*zap.Logger, error) {
	if settings.Env == nil {
		return logging.NewLogger(settings.Chat.Server.Environment == "development")
	}
	return logging.NewLoggerAt(settings.Env.Development, settings.Env.LogLevel)
}

func provideChatConfiguration(settings *config.Settings) *appconfig.ChatConfiguration {
	return settings.Chat
}

// provideBackend picks the provider API named by cfg.Backend.
func provideBackend(ctx context.Context, cfg *appconfig.ChatConfiguration, logger *zap.Logger) (chat.Backend, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.Wrap(apperrors.ErrMissingAPIKey, "set GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	switch cfg.Backend {
	case appconfig.BackendGenAI, "":
		b, err := genaibackend.New(ctx, genaibackend.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case appconfig.BackendOpenAI:
		b, err := openaicompat.New(openaicompat.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnknownBackend, "%q", cfg.Backend)
	}
}

// provideImageLoader is the gateway loader. Clients only get data URLs,
// gs:// URIs and s3:// objects (when a MinIO endpoint is set); the process
// never reads its own files or fetches URLs on their behalf.
func provideImageLoader(cfg *appconfig.ChatConfiguration) (chat.ImageLoader, error) {
	return newImageLoader(cfg)
}

// provideLocalImageLoader is the CLI loader. The user running the command
// may also reference local files and http(s) URLs.
func provideLocalImageLoader(cfg *appconfig.ChatConfiguration) (chat.ImageLoader, error) {
	return newImageLoader(cfg, imageloader.WithLocalFiles(), imageloader.WithRemoteURLs())
}

func newImageLoader(cfg *appconfig.ChatConfiguration, extra ...imageloader.Option) (*imageloader.Loader, error) {
	opts := append([]imageloader.Option{imageloader.WithMaxBytes(cfg.Images.MaxBytes)}, extra...)
	if m := cfg.Images.Minio; m.Endpoint != "" {
		store, err := imageloader.NewMinioStore(imageloader.MinioConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, imageloader.WithObjectStore(store))
	}
	return imageloader.New(opts...), nil
}

func provideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func providePrometheus(reg *prometheus.Registry) (*metrics.Prometheus, error) {
	return metrics.NewPrometheus(reg)
}

func provideRecorder(stats *metrics.InMemory, prom *metrics.Prometheus) metrics.Recorder {
	return metrics.Multi{stats, prom}
}

func provideChatModel(
	backend chat.Backend,
	cfg *appconfig.ChatConfiguration,
	logger *zap.Logger,
	recorder metrics.Recorder,
	images chat.ImageLoader,
) (*chat.ChatModel, error) {
	chatCfg, err := cfg.ChatConfig()
	if err != nil {
		return nil, err
	}
	return chat.New(backend, chatCfg,
		chat.WithLogger(logger),
		chat.WithRecorder(recorder),
		chat.WithImageLoader(images))
}

// provideServerConfig leaves room for a full model timeout on streaming
// responses.
func provideServerConfig(cfg *appconfig.ChatConfiguration) server.Config {
	return server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Timeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
		Environment:  cfg.Server.Environment,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}
}

func provideServiceContainer(model *chat.ChatModel, stats *metrics.InMemory) *v1routes.ServiceContainer {
	return &v1routes.ServiceContainer{
		ChatService:  services.NewChatService(model),
		StatsService: services.NewStatsService(stats),
	}
}

func provideServer(
	cfg server.Config,
	container *v1routes.ServiceContainer,
	reg *prometheus.Registry,
	logger *zap.Logger,
) *server.Server {
	return server.NewServer(cfg, container, reg, logger)
}
