package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamvox/asr-gateway/internal/asr"
	"github.com/streamvox/asr-gateway/internal/config"
	"github.com/streamvox/asr-gateway/internal/observability"
	"github.com/streamvox/asr-gateway/internal/resilience"
	"github.com/streamvox/asr-gateway/internal/segmenter"
	"github.com/streamvox/asr-gateway/internal/server"
	"github.com/streamvox/asr-gateway/internal/stream"
	"github.com/streamvox/asr-gateway/internal/vad"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("asr_backend", cfg.ASRBackend).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("ASR Gateway Service starting")

	// VAD oracle. A missing credential disables VAD for the whole
	// process; sessions degrade to energy detection.
	var oracle vad.Oracle
	if o, err := vad.NewDeepgramOracle(cfg.DeepgramAPIKey); err != nil {
		if errors.Is(err, vad.ErrNoCredential) {
			logger.Warn().Msg("DEEPGRAM_API_KEY not set, voice activity detection disabled")
		} else {
			logger.Error().Err(err).Msg("Failed to initialize VAD oracle, continuing without it")
		}
	} else {
		oracle = o
	}

	// Recognition backend
	recognizer, err := asr.Open(cfg.ASRBackend, asr.Options{
		APIKey:     cfg.DeepgramAPIKey,
		Model:      cfg.ASRModel,
		Language:   cfg.ASRLanguage,
		SampleRate: cfg.SampleRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.ASRBackend).Msg("Failed to open ASR backend")
	}

	breaker := resilience.NewCircuitBreaker("vad-oracle",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)

	streamDefaults := stream.Options{
		SampleRate:          cfg.SampleRate,
		ChunkSize:           cfg.ChunkSize,
		BufferSeconds:       cfg.BufferSeconds,
		EnergyThreshold:     cfg.EnergyThreshold,
		MinSilenceDuration:  cfg.MinSilenceDuration,
		StabilizationFrames: cfg.StabilizationFrames,
		UseVAD:              cfg.UseVAD,
		VADThreshold:        cfg.VADThreshold,
		VADWindowSeconds:    cfg.VADWindowSeconds,
		ForceSpeech:         cfg.ForceSpeech,
		Oracle:              oracle,
		Recognizer:          recognizer,
		Breaker:             breaker,
		Logger:              logger,
	}

	segmentOpts := segmenter.Options{
		MinDuration:       cfg.SegmentMinDuration,
		MaxDuration:       cfg.SegmentMaxDuration,
		NewChunkThreshold: cfg.SegmentNewChunkThreshold,
	}

	// Create HTTP server
	mux := http.NewServeMux()
	mux.Handle("/v1/stream", server.NewStreamHandler(streamDefaults, logger))
	mux.Handle("/v1/segment", server.NewSegmentHandler(oracle, segmentOpts, logger))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness: the gateway is serving as long as a recognizer exists.
	// The oracle check is only registered when VAD is configured, since
	// running without it is a supported mode.
	checks := map[string]observability.HealthCheckFunc{
		"asr_backend": func(ctx context.Context) (bool, error) {
			return recognizer != nil, nil
		},
	}
	if oracle != nil {
		checks["vad_oracle"] = func(ctx context.Context) (bool, error) {
			return breaker.State() != resilience.StateOpen, nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/v1/stream", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
