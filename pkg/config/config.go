package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Supported completion back-ends.
const (
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendLangchain = "langchain"
)

// ErrMissingAPIKey is returned by Validate when the credential for the selected
// back-end is not present in the environment.
var ErrMissingAPIKey = errors.New("api key not set")

type Config struct {
	Backend       string
	OpenAIApiKey  string
	OpenAIBaseURL string
	GoogleApiKey  string
	Model         string
	FastModel     string
	MaxIterations int
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int
	DBMaxConnIdle time.Duration
	Port          string
	ReportDir     string
	Debug         bool
}

func Load() *Config {
	backend := strings.ToLower(getEnv("RESEARCH_BACKEND", BackendOpenAI))

	model, fastModel := "gpt-4o", "gpt-4o-mini"
	if backend != BackendOpenAI {
		model, fastModel = "gemini-3-pro-preview", "gemini-3-flash-preview"
	}

	return &Config{
		Backend:       backend,
		OpenAIApiKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GoogleApiKey:  getEnv("GOOGLE_API_KEY", ""),
		Model:         getEnv("RESEARCH_MODEL", model),
		FastModel:     getEnv("RESEARCH_FAST_MODEL", fastModel),
		MaxIterations: clamp(getEnvAsInt("MAX_ITERATIONS", research.MaxIterations), 1, research.MaxIterations),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxConns:    getEnvAsInt("DB_MAX_CONNS", 0),
		DBMinConns:    getEnvAsInt("DB_MIN_CONNS", 0),
		DBMaxConnIdle: getEnvAsDuration("DB_MAX_CONN_IDLE", 0),
		Port:          getEnv("PORT", "8081"),
		ReportDir:     getEnv("REPORT_DIR", "."),
		Debug:         getEnvAsBool("DEBUG", false),
	}
}

// APIKeyVar names the environment variable holding the credential for the
// configured back-end.
func (c *Config) APIKeyVar() string {
	if c.Backend == BackendOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}

// Validate checks the configuration before any work begins.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI:
		if c.OpenAIApiKey == "" {
			return fmt.Errorf("%w: %s not set. Please set it in your environment or .env file", ErrMissingAPIKey, c.APIKeyVar())
		}
	case BackendGemini, BackendLangchain:
		if c.GoogleApiKey == "" {
			return fmt.Errorf("%w: %s not set. Please set it in your environment or .env file", ErrMissingAPIKey, c.APIKeyVar())
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
