package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the ASR gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Deepgram API configuration. The key drives both the VAD oracle and
	// the remote transcription backend; leaving it unset disables VAD and
	// is not an error.
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`

	// ASR backend selection
	ASRBackend  string `envconfig:"ASR_BACKEND" default:"deepgram"` // registered backend name
	ASRModel    string `envconfig:"ASR_MODEL" default:"nova-2"`
	ASRLanguage string `envconfig:"ASR_LANGUAGE" default:"en"`

	// Audio processing configuration
	SampleRate    int `envconfig:"SAMPLE_RATE" default:"16000"`  // Hz
	ChunkSize     int `envconfig:"CHUNK_SIZE" default:"4000"`    // samples per classified sub-chunk
	BufferSeconds int `envconfig:"BUFFER_SECONDS" default:"30"`  // ingest buffer cap

	// Segmentation configuration
	EnergyThreshold     float64 `envconfig:"ENERGY_THRESHOLD" default:"0.01"`       // mean-square speech threshold
	MinSilenceDuration  float64 `envconfig:"MIN_SILENCE_DURATION" default:"0.8"`    // seconds of silence that closes a segment
	StabilizationFrames int     `envconfig:"STABILIZATION_FRAMES" default:"5"`      // speech sub-chunks between interim results
	UseVAD              bool    `envconfig:"USE_VAD" default:"true"`                // prefer the oracle-backed detector
	VADThreshold        float64 `envconfig:"VAD_THRESHOLD" default:"0.5"`           // oracle confidence threshold
	VADWindowSeconds    float64 `envconfig:"VAD_WINDOW_SECONDS" default:"3.0"`      // audio accumulated per oracle call
	ForceSpeech         bool    `envconfig:"FORCE_SPEECH" default:"false"`          // classify everything as speech (debugging)

	// Offline segmenter configuration
	SegmentMinDuration       float64 `envconfig:"SEGMENT_MIN_DURATION" default:"15.0"`       // seconds
	SegmentMaxDuration       float64 `envconfig:"SEGMENT_MAX_DURATION" default:"22.0"`       // seconds
	SegmentNewChunkThreshold float64 `envconfig:"SEGMENT_NEW_CHUNK_THRESHOLD" default:"0.2"` // gap that opens a new chunk, seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.BufferSeconds <= 0 {
		return fmt.Errorf("BUFFER_SECONDS must be positive, got %d", c.BufferSeconds)
	}
	if c.MinSilenceDuration <= 0 {
		return fmt.Errorf("MIN_SILENCE_DURATION must be positive, got %v", c.MinSilenceDuration)
	}
	if c.StabilizationFrames <= 0 {
		return fmt.Errorf("STABILIZATION_FRAMES must be positive, got %d", c.StabilizationFrames)
	}
	if c.SegmentMinDuration >= c.SegmentMaxDuration {
		return fmt.Errorf("SEGMENT_MIN_DURATION (%v) must be below SEGMENT_MAX_DURATION (%v)",
			c.SegmentMinDuration, c.SegmentMaxDuration)
	}
	return nil
}
