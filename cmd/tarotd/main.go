package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/adapters/cards"
	httpadapter "github.com/dungdc40/tarot-nextjs-sub000/internal/adapters/http"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/adapters/llm/openrouter"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/adapters/realtime"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/config"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/flow"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/voice"
)

// stdRNG delegates to math/rand/v2 (auto-seeded). Voice batch draws use it
// for their 50/50 orientation coin.
type stdRNG struct{}

func (stdRNG) Intn(n int) int { return rand.IntN(n) }

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	cardStore := cards.NewEmbeddedStore()

	oracle := openrouter.NewClient(
		&http.Client{Timeout: cfg.LLMTimeout},
		cfg.OpenRouterAPIKey,
		cfg.OpenRouterBaseURL,
		cfg.LLMModel,
		cfg.LLMFallbackModels,
		logger,
	)

	textSessions := flow.NewManager(oracle, cardStore, logger)

	tokenClient := realtime.NewTokenClient(
		&http.Client{Timeout: cfg.LLMTimeout},
		cfg.OpenRouterAPIKey,
		cfg.OpenRouterBaseURL,
		cfg.RealtimeModel,
	)
	voiceSessions := voice.NewManager(
		func() ports.RealtimeChannel { return realtime.NewChannel(cfg.RealtimeURL, logger) },
		tokenClient,
		cardStore,
		stdRNG{},
		logger,
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))

	handler := httpadapter.NewHandler(textSessions, voiceSessions)
	handler.Register(e)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
