package bootstrap

import (
	"log/slog"
	"os"
	"time"

	"github.com/eleven-am/speech-delivery/internal/cache"
	"github.com/eleven-am/speech-delivery/internal/delivery"
	"github.com/eleven-am/speech-delivery/internal/gateway"
	"github.com/eleven-am/speech-delivery/internal/history"
	"github.com/eleven-am/speech-delivery/internal/playback"
	"github.com/eleven-am/speech-delivery/internal/synthesis"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideSynthesisConfig(cfg *Config) synthesis.Config {
	return synthesis.Config{
		OpenAIKey:        cfg.OpenAIKey,
		ElevenLabsKey:    cfg.ElevenLabsKey,
		ArtifactDir:      cfg.ArtifactDir,
		DefaultProvider:  cfg.DefaultProvider,
		FallbackProvider: cfg.FallbackProvider,
	}
}

func ProvideProviderRegistry(cfg synthesis.Config, logger *slog.Logger) (*synthesis.Registry, error) {
	return synthesis.NewRegistry(cfg, logger)
}

func ProvideAudioCache(cfg *Config, client *redis.Client, logger *slog.Logger) *cache.AudioCache {
	return cache.NewAudioCache(client, time.Duration(cfg.CacheTTLHours)*time.Hour, logger)
}

func ProvideHistoryStore(db *gorm.DB) *history.Store {
	return history.NewStore(db)
}

func RunMigrations(store *history.Store) error {
	return store.Migrate()
}

func ProvideController(cfg *Config, registry *synthesis.Registry, audioCache *cache.AudioCache, logger *slog.Logger) *delivery.Controller {
	return delivery.NewController(delivery.ControllerConfig{
		Providers:     registry,
		Cache:         audioCache,
		StreamTimeout: time.Duration(cfg.StreamTimeoutMs) * time.Millisecond,
		Log:           logger,
	})
}

func ProvidePlaybackRegistry(logger *slog.Logger) *playback.Registry {
	return playback.NewRegistry(logger)
}

func ProvidePlayerHub(logger *slog.Logger) *gateway.PlayerHub {
	return gateway.NewPlayerHub(logger)
}

func ProvideSpeechHandler(
	cfg *Config,
	controller *delivery.Controller,
	sessions *playback.Registry,
	players *gateway.PlayerHub,
	store *history.Store,
	logger *slog.Logger,
) *gateway.Handler {
	return gateway.NewHandler(gateway.HandlerConfig{
		Controller:    controller,
		Sessions:      sessions,
		Players:       players,
		History:       store,
		StreamTimeout: time.Duration(cfg.StreamTimeoutMs) * time.Millisecond,
		MaxBufferedMs: cfg.MaxBufferedMs,
		Log:           logger,
	})
}

func RegisterRoutes(e *echo.Echo, handler *gateway.Handler) {
	handler.RegisterRoutes(e.Group("/api/v1"))
}

var SpeechModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSynthesisConfig,
		ProvideProviderRegistry,
		ProvideAudioCache,
		ProvideHistoryStore,
		ProvideController,
		ProvidePlaybackRegistry,
		ProvidePlayerHub,
		ProvideSpeechHandler,
	),
	fx.Invoke(
		RunMigrations,
		RegisterRoutes,
	),
)
