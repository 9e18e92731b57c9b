package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/listing-verifier/constants"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Fetch    FetchConfig    `yaml:"fetch"`
	OCR      OCRConfig      `yaml:"ocr"`
	Vision   VisionConfig   `yaml:"vision"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// FetchConfig controls how image and document references are retrieved
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
	CacheDSN  string        `yaml:"cache_dsn"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	PrimaryLang      string `yaml:"primary_lang"`
	SecondaryLang    string `yaml:"secondary_lang"`
	MaxPDFPages      int    `yaml:"max_pdf_pages"`
	DPI              int    `yaml:"dpi"`
	HeicConverter    string `yaml:"heic_converter"`
	TessdataDir      string `yaml:"tessdata_dir"`
	ArtifactCacheDir string `yaml:"artifact_cache_dir"`
}

// VisionConfig holds detection model configuration
type VisionConfig struct {
	Backend    string        `yaml:"backend"`
	Endpoint   string        `yaml:"endpoint"`
	Command    string        `yaml:"command"`
	WeightsURL string        `yaml:"weights_url"`
	WeightsDir string        `yaml:"weights_dir"`
	MaxImages  int           `yaml:"max_images"`
	MaxSide    int           `yaml:"max_side"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"-"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AnalysisConfig toggles orchestration behavior
type AnalysisConfig struct {
	Parallel bool `yaml:"parallel"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			GRPCAddr:        ":8081",
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:   15 * time.Second,
			MaxBytes:  20 << 20,
			UserAgent: "listing-verifier/1.0",
			CacheTTL:  24 * time.Hour,
		},
		OCR: OCRConfig{
			PrimaryLang:      "eng",
			SecondaryLang:    "ara",
			MaxPDFPages:      2,
			DPI:              300,
			HeicConverter:    "magick",
			ArtifactCacheDir: "./tmp",
		},
		Vision: VisionConfig{
			Backend:    constants.VisionBackendHTTP,
			Endpoint:   "http://localhost:8500",
			Command:    "yolo-detect",
			WeightsDir: "./models",
			MaxImages:  6,
			MaxSide:    1280,
			Timeout:    30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    constants.ProviderOpenAI,
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.0,
			MaxTokens:   200,
			Timeout:     45 * time.Second,
		},
		Analysis: AnalysisConfig{Parallel: true},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig loads configuration from an optional YAML file (CONFIG_FILE) and
// then from environment variables, which take precedence.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MaxBodyBytes = getEnvAsInt64("MAX_BODY_BYTES", c.Server.MaxBodyBytes)
	c.Server.ReadTimeout = getEnvAsDuration("HTTP_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("HTTP_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Fetch.Timeout = getEnvAsDuration("FETCH_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.MaxBytes = getEnvAsInt64("FETCH_MAX_BYTES", c.Fetch.MaxBytes)
	c.Fetch.UserAgent = getEnv("FETCH_USER_AGENT", c.Fetch.UserAgent)
	c.Fetch.CacheDSN = getEnv("FETCH_CACHE_DSN", c.Fetch.CacheDSN)
	c.Fetch.CacheTTL = getEnvAsDuration("FETCH_CACHE_TTL", c.Fetch.CacheTTL)

	c.OCR.PrimaryLang = getEnv("OCR_LANG_PRIMARY", c.OCR.PrimaryLang)
	c.OCR.SecondaryLang = getEnv("OCR_LANG_SECONDARY", c.OCR.SecondaryLang)
	c.OCR.MaxPDFPages = getEnvAsInt("OCR_MAX_PDF_PAGES", c.OCR.MaxPDFPages)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)

	c.Vision.Backend = getEnv("VISION_BACKEND", c.Vision.Backend)
	c.Vision.Endpoint = getEnv("VISION_ENDPOINT", c.Vision.Endpoint)
	c.Vision.Command = getEnv("VISION_COMMAND", c.Vision.Command)
	c.Vision.WeightsURL = getEnv("VISION_WEIGHTS_URL", c.Vision.WeightsURL)
	c.Vision.WeightsDir = getEnv("VISION_WEIGHTS_DIR", c.Vision.WeightsDir)
	c.Vision.MaxImages = getEnvAsInt("VISION_MAX_IMAGES", c.Vision.MaxImages)
	c.Vision.MaxSide = getEnvAsInt("VISION_MAX_SIDE", c.Vision.MaxSide)
	c.Vision.Timeout = getEnvAsDuration("VISION_TIMEOUT", c.Vision.Timeout)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	switch c.LLM.Provider {
	case constants.ProviderGemini:
		if c.LLM.Model == "" || strings.HasPrefix(c.LLM.Model, "gpt-") {
			c.LLM.Model = "gemini-1.5-flash"
		}
		c.LLM.Model = getEnv("GEMINI_MODEL", c.LLM.Model)
		c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	default:
		c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
		c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	}
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)

	c.Analysis.Parallel = getEnvAsBool("ANALYSIS_PARALLEL", c.Analysis.Parallel)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Fetch.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "FETCH_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Fetch.MaxBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "FETCH_MAX_BYTES must be positive", ErrInvalidInput)
	}
	if c.OCR.PrimaryLang == "" && c.OCR.SecondaryLang == "" {
		return NewAppError("CONFIG_ERROR", "at least one OCR language is required", ErrInvalidInput)
	}
	if c.Vision.MaxImages <= 0 {
		return NewAppError("CONFIG_ERROR", "VISION_MAX_IMAGES must be positive", ErrInvalidInput)
	}
	switch c.Vision.Backend {
	case constants.VisionBackendHTTP:
		if c.Vision.Endpoint == "" {
			return NewAppError("CONFIG_ERROR", "VISION_ENDPOINT is required for the http backend", ErrInvalidInput)
		}
	case constants.VisionBackendCommand:
		if c.Vision.Command == "" {
			return NewAppError("CONFIG_ERROR", "VISION_COMMAND is required for the command backend", ErrInvalidInput)
		}
	case constants.VisionBackendNone:
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown VISION_BACKEND %q", c.Vision.Backend), ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case constants.ProviderOpenAI, constants.ProviderGemini, constants.ProviderNone:
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.MaxTokens <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_TOKENS must be positive", ErrInvalidInput)
	}
	return nil
}
