// cmd/forgevision/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"forgevision/internal/common/config"
	"forgevision/internal/common/database"
	"forgevision/internal/common/logger"
	"forgevision/internal/common/observability"
	"forgevision/internal/pipeline"
	"forgevision/internal/session"
	collectrequest "forgevision/internal/workers/design/collect-request"
	rendervisual "forgevision/internal/workers/design/render-visual"
	synthesizebrief "forgevision/internal/workers/design/synthesize-brief"

	"go.uber.org/zap"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg          *config.Config
	zap          *zap.Logger
	log          logger.Logger
	obs          *observability.Observability
	redis        *database.RedisClient
	store        session.Store
	orchestrator *pipeline.Orchestrator
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// newApp wires config, logging, the session store and the pipeline. When
// forceMemory is set the session backend is always in-process.
func newApp(ctx context.Context, obs *observability.Observability, forceMemory bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.RequireCredentials(cfg); err != nil {
		return nil, err
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	a := &app{cfg: cfg, zap: zapLog, log: log, obs: obs}

	sessionCfg := cfg.Session
	if forceMemory {
		sessionCfg.Backend = config.SessionBackendMemory
	}

	if sessionCfg.Backend == config.SessionBackendRedis {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		err = retryWithBackoff(func() error {
			return rc.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		zapLog.Info("Redis connected", zap.String("address", cfg.Database.Redis.Address))
		a.redis = rc
	}

	a.store, err = session.New(sessionCfg, a.redis)
	if err != nil {
		a.close()
		return nil, err
	}

	gemini, err := synthesizebrief.NewGeminiGenerator(ctx, &synthesizebrief.Config{
		APIKey:  cfg.APIs.Gemini.APIKey,
		Model:   cfg.APIs.Gemini.Model,
		Timeout: config.GetDuration(cfg.APIs.Gemini.Timeout),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	renderCfg := rendervisual.LoadConfig()
	renderCfg.Token = cfg.APIs.HuggingFace.Token
	renderCfg.BaseURL = cfg.APIs.HuggingFace.BaseURL
	renderCfg.Model = cfg.APIs.HuggingFace.Model
	renderCfg.Timeout = config.GetDuration(cfg.APIs.HuggingFace.Timeout)

	hf, err := rendervisual.NewHuggingFaceClient(renderCfg)
	if err != nil {
		a.close()
		return nil, err
	}

	synthCfg := synthesizebrief.LoadConfig()
	synthCfg.Model = cfg.APIs.Gemini.Model
	synthCfg.Timeout = config.GetDuration(cfg.APIs.Gemini.Timeout)

	a.orchestrator = pipeline.New(
		collectrequest.NewHandler(log),
		synthesizebrief.NewHandler(synthCfg, gemini, log),
		rendervisual.NewHandler(renderCfg, hf, log),
		a.store,
		obs,
		log,
	)

	zapLog.Info("Pipeline ready",
		zap.String("textModel", cfg.APIs.Gemini.Model),
		zap.String("imageModel", cfg.APIs.HuggingFace.Model),
		zap.String("sessionBackend", sessionCfg.Backend),
	)

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.zap.Error("Error closing Redis client", zap.Error(err))
		}
	}
	_ = a.zap.Sync()
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
