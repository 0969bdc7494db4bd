package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the repograder server and worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	GitHub    GitHubConfig
	Worker    WorkerConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	TranscriptDir    string
	Gemini           GeminiConfig
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GitHubConfig struct {
	Token        string
	APIURL       string
	Timeout      time.Duration
	CloneDir     string
	CloneDepth   int
	CloneTimeout time.Duration
}

// WorkerConfig bounds the evaluation pipeline.
type WorkerConfig struct {
	PollInterval       time.Duration
	MaxFiles           int
	MaxFileChars       int
	PromptMaxFiles     int
	PromptMaxFileChars int
	StatusTTL          time.Duration
}

type AuthConfig struct {
	StaffTokenHash     string
	RateLimitPerMinute int
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplerRatio float64
	ServiceName  string
}

var validProviders = map[string]bool{
	"gemini":    true,
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPipeline reads everything the evaluation pipeline needs and skips the
// HTTP-only settings, for commands that never serve the API.
func LoadPipeline() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validatePipeline(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port: envInt("REPOGRADER_PORT", 8080),
			Env:  envString("REPOGRADER_ENV", "development"),
		},
		Database: databaseFromEnv(),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "gemini"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			TranscriptDir:    os.Getenv("AI_TRANSCRIPT_DIR"),
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  envString("GEMINI_MODEL", "gemini-2.5-flash"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
		},
		GitHub: githubFromEnv(),
		Worker: WorkerConfig{
			PollInterval:       envDuration("WORKER_POLL_INTERVAL", 30*time.Second),
			MaxFiles:           envInt("WORKER_MAX_FILES", 50),
			MaxFileChars:       envInt("SANITIZER_MAX_FILE_CHARS", 50000),
			PromptMaxFiles:     envInt("PROMPT_MAX_FILES", 30),
			PromptMaxFileChars: envInt("PROMPT_MAX_FILE_CHARS", 5000),
			StatusTTL:          envDuration("SUBMISSION_STATUS_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			StaffTokenHash:     os.Getenv("STAFF_TOKEN_HASH"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			Exporter:     envString("OTEL_EXPORTER", "stdout"),
			Endpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SamplerRatio: envFloat("OTEL_SAMPLER_RATIO", 1.0),
			ServiceName:  envString("OTEL_SERVICE_NAME", "repograder"),
		},
	}
}

// LoadDatabase reads only the database settings, for commands such as
// migrate that need nothing else.
func LoadDatabase() (DatabaseConfig, error) {
	db := databaseFromEnv()
	if db.URL == "" {
		return db, fmt.Errorf("DATABASE_URL is required")
	}
	return db, nil
}

// LoadGitHub reads the repository host settings and the optional REDIS_URL.
func LoadGitHub() (GitHubConfig, RedisConfig, error) {
	gh := githubFromEnv()
	if err := validateGitHub(gh); err != nil {
		return gh, RedisConfig{}, err
	}
	return gh, RedisConfig{URL: os.Getenv("REDIS_URL")}, nil
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
	}
}

func githubFromEnv() GitHubConfig {
	return GitHubConfig{
		Token:        os.Getenv("GITHUB_TOKEN"),
		APIURL:       os.Getenv("GITHUB_API_URL"),
		Timeout:      envDuration("GITHUB_TIMEOUT", 10*time.Second),
		CloneDir:     envString("CLONE_DIR", "/tmp/repos"),
		CloneDepth:   envInt("CLONE_DEPTH", 1),
		CloneTimeout: envDuration("CLONE_TIMEOUT", 2*time.Minute),
	}
}

func validateGitHub(gh GitHubConfig) error {
	if gh.APIURL != "" && !strings.HasPrefix(gh.APIURL, "http://") && !strings.HasPrefix(gh.APIURL, "https://") {
		return fmt.Errorf("GITHUB_API_URL must start with http:// or https://, got %q", gh.APIURL)
	}
	if gh.CloneDepth < 0 {
		return fmt.Errorf("CLONE_DEPTH must be >= 0, got %d", gh.CloneDepth)
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if c.Auth.StaffTokenHash == "" {
		return fmt.Errorf("STAFF_TOKEN_HASH is required")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}
	switch c.AI.Provider {
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
		}
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
		}
	case "anthropic":
		if c.AI.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
		}
	case "vllm":
		if c.AI.VLLM.Model == "" {
			return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
		}
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}

	if err := validateGitHub(c.GitHub); err != nil {
		return err
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	if c.Worker.MaxFiles <= 0 || c.Worker.PromptMaxFiles <= 0 || c.Worker.PromptMaxFileChars <= 0 || c.Worker.MaxFileChars <= 0 {
		return fmt.Errorf("WORKER_MAX_FILES, SANITIZER_MAX_FILE_CHARS, PROMPT_MAX_FILES and PROMPT_MAX_FILE_CHARS must be positive")
	}

	if c.Telemetry.Enabled && c.Telemetry.Exporter != "stdout" && c.Telemetry.Exporter != "otlp" {
		return fmt.Errorf("OTEL_EXPORTER must be stdout or otlp, got %q", c.Telemetry.Exporter)
	}
	if c.Telemetry.SamplerRatio < 0 || c.Telemetry.SamplerRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLER_RATIO must be within [0, 1], got %v", c.Telemetry.SamplerRatio)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
