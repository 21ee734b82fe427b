package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the live tutor
type Config struct {
	// HTTP server for health and metrics
	Port string `envconfig:"PORT" default:"8080"`

	// Gemini API key, used by the live session, Gemini TTS and Gemini completion
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`

	// Live session configuration
	LiveModel    string `envconfig:"LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-09-2025"`
	LiveVoice    string `envconfig:"LIVE_VOICE" default:"Puck"`
	LiveEndpoint string `envconfig:"LIVE_ENDPOINT" default:"wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"`
	LocalBargeIn bool   `envconfig:"LOCAL_BARGE_IN" default:"false"` // Flush playback on local speech start

	// Capture configuration
	CaptureSampleRate int    `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"`
	CaptureBlockSize  int    `envconfig:"CAPTURE_BLOCK_SIZE" default:"4096"`   // Samples per emitted frame
	CaptureStrategy   string `envconfig:"CAPTURE_STRATEGY" default:"callback"` // callback, blocking

	// Playback configuration
	PlaybackSampleRate int `envconfig:"PLAYBACK_SAMPLE_RATE" default:"24000"`
	PlaybackBufferMs   int `envconfig:"PLAYBACK_BUFFER_MS" default:"50"` // Speaker buffer length

	// Speech synthesis configuration
	TTSProvider     string `envconfig:"TTS_PROVIDER" default:"gemini"` // gemini, cartesia
	TTSModel        string `envconfig:"TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	TTSVoice        string `envconfig:"TTS_VOICE" default:"Puck"`
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// Text completion configuration
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"gemini"` // gemini, ollama
	LLMModel    string `envconfig:"LLM_MODEL" default:"gemini-3-flash-preview"`
	OllamaURL   string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel string `envconfig:"OLLAMA_MODEL" default:"llama3"`

	// Learner profile (YAML); empty uses built-in defaults
	ProfilePath string `envconfig:"PROFILE_PATH" default:""`

	// Turn-based listening
	ListenProvider    string `envconfig:"LISTEN_PROVIDER" default:"none"` // none, deepgram
	DeepgramAPIKey    string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel     string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage  string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	TurnListenDelayMs int    `envconfig:"TURN_LISTEN_DELAY_MS" default:"300"` // Final transcript to reply
	TurnResumeDelayMs int    `envconfig:"TURN_RESUME_DELAY_MS" default:"500"` // Queue drained to listening again

	// Voice activity detection for local barge-in
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"`
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"3"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // Milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // Milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"true"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks provider selections and their required credentials.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch c.CaptureStrategy {
	case "callback", "blocking":
	default:
		return fmt.Errorf("CAPTURE_STRATEGY must be callback or blocking, got %q", c.CaptureStrategy)
	}

	switch c.TTSProvider {
	case "gemini":
	case "cartesia":
		if c.CartesiaAPIKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	switch c.LLMProvider {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.ListenProvider {
	case "none":
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when LISTEN_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("unknown LISTEN_PROVIDER %q", c.ListenProvider)
	}

	if c.CaptureBlockSize <= 0 {
		return fmt.Errorf("CAPTURE_BLOCK_SIZE must be positive")
	}
	if c.CaptureSampleRate <= 0 || c.PlaybackSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive")
	}

	return nil
}

// CircuitBreakerTimeout returns the reset timeout as a duration.
func (c *Config) CircuitBreakerTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// TurnListenDelay returns the delay between a final transcript and the reply.
func (c *Config) TurnListenDelay() time.Duration {
	return time.Duration(c.TurnListenDelayMs) * time.Millisecond
}

// TurnResumeDelay returns the delay before listening resumes after speaking.
func (c *Config) TurnResumeDelay() time.Duration {
	return time.Duration(c.TurnResumeDelayMs) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
