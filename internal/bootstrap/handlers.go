package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/Nacho7823/voiceAsisstant/internal/api"
	"github.com/Nacho7823/voiceAsisstant/internal/health"
	"github.com/Nacho7823/voiceAsisstant/internal/job"
	"github.com/Nacho7823/voiceAsisstant/internal/llmproxy"
	"github.com/Nacho7823/voiceAsisstant/internal/staging"
	"github.com/Nacho7823/voiceAsisstant/internal/stream"
	"github.com/Nacho7823/voiceAsisstant/internal/transcripts"
	"github.com/Nacho7823/voiceAsisstant/internal/vad"
	"github.com/Nacho7823/voiceAsisstant/internal/whisper"
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

func ProvideRegistry(logger *slog.Logger) *job.Registry {
	return job.NewRegistry(logger)
}

// StartJobSweeper evicts jobs whose producer finished long ago but whose
// handle was never collected, e.g. a client that connected and vanished
// before the stream began.
func StartJobSweeper(lc fx.Lifecycle, registry *job.Registry, cfg *Config) {
	sweepCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go registry.RunSweeper(sweepCtx, cfg.SweepInterval, cfg.JobTTL)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}

func ProvideStaging(cfg *Config, logger *slog.Logger) (*staging.Store, error) {
	return staging.NewStore(cfg.AudiosDir, cfg.SaveAudios, logger)
}

func ProvideWhisperClient(cfg *Config, logger *slog.Logger) *whisper.Client {
	return whisper.NewClient(whisper.Config{Address: cfg.WhisperAddress}, logger)
}

func ProvideEngine(client *whisper.Client) whisper.Engine {
	return client
}

func ProvideHistory(redisClient *redis.Client) *job.History {
	return job.NewHistory(redisClient)
}

func ProvideArchive(db *gorm.DB) (*transcripts.Store, error) {
	if db == nil {
		return nil, nil
	}
	store := transcripts.NewStore(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func ProvideRunner(engine whisper.Engine, registry *job.Registry, history *job.History, archive *transcripts.Store, logger *slog.Logger) *stream.Runner {
	return stream.NewRunner(engine, registry, history, archive, logger)
}

func ProvideAPIHandler(
	engine whisper.Engine,
	runner *stream.Runner,
	registry *job.Registry,
	stagingStore *staging.Store,
	history *job.History,
	archive *transcripts.Store,
	logger *slog.Logger,
) *api.Handler {
	return api.NewHandler(engine, runner, registry, stagingStore, history, archive, logger)
}

func ProvideVADHandler(cfg *Config, logger *slog.Logger) *vad.Handler {
	detectorConfig := vad.Config{
		Threshold:      cfg.VADThreshold,
		HangoverChunks: cfg.VADHangover,
	}
	return vad.NewHandler(func() vad.Detector {
		return vad.NewEnergyDetector(detectorConfig)
	}, logger)
}

func ProvideLLMProxyHandler(cfg *Config, logger *slog.Logger) *llmproxy.Handler {
	return llmproxy.NewHandler(llmproxy.Config{
		UpstreamURL: cfg.LLMUpstreamURL,
		APIKey:      cfg.LLMAPIKey,
	}, logger)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, whisperClient *whisper.Client, registry *job.Registry, logger *slog.Logger) *health.Handler {
	return health.NewHandler(db, redisClient, whisperClient, registry, logger)
}

type HandlerParams struct {
	fx.In

	APIHandler      *api.Handler
	VADHandler      *vad.Handler
	LLMProxyHandler *llmproxy.Handler
	HealthHandler   *health.Handler
	Config          *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	params.APIHandler.RegisterRoutes(e)
	params.VADHandler.RegisterRoutes(e)
	params.LLMProxyHandler.RegisterRoutes(e)
	params.HealthHandler.RegisterRoutes(e)

	e.Static("/assets", params.Config.StaticDir)
	e.GET("/", func(c echo.Context) error {
		return c.File(params.Config.IndexHTML)
	})
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRegistry,
		ProvideStaging,
		ProvideWhisperClient,
		ProvideEngine,
		ProvideHistory,
		ProvideArchive,
		ProvideRunner,
		ProvideAPIHandler,
		ProvideVADHandler,
		ProvideLLMProxyHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(StartJobSweeper),
	fx.Invoke(RegisterRoutes),
)
