package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pbram/livescene/internal/llm"
)

// EnvPrefix is the namespace prefix for all Livescene environment variables.
const EnvPrefix = "LIVESCENE_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	DataDir               string `yaml:"data_dir"`
	CacheSize             int    `yaml:"cache_size"`
	StageTimeout          string `yaml:"stage_timeout"`
	MinTranscriptChars    int    `yaml:"min_transcript_chars"`
	TextModel             string `yaml:"text_model"`
	ImageModel            string `yaml:"image_model"`
	TranscribeModel       string `yaml:"transcribe_model"`
	Language              string `yaml:"language"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	ArchiveSchedule       string `yaml:"archive_schedule"`

	// Secrets — env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		DataDir:               "data",
		CacheSize:             10,
		StageTimeout:          "60s",
		MinTranscriptChars:    3,
		TextModel:             "openai/gpt-4o",
		ImageModel:            "openai/dall-e-3",
		TranscribeModel:       "nova-2",
		Language:              "en",
		GoogleCredentialsFile: "./service-account.json",
		ArchiveSchedule:       "@every 10m",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedStageTimeout returns StageTimeout as a time.Duration, falling back
// to 60s if the value is invalid.
func (c *Config) ParsedStageTimeout() time.Duration {
	d, err := time.ParseDuration(c.StageTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// KeyForProvider returns the API key for a model provider. Imagen runs on
// the Gemini API, so the "google" image provider shares the Gemini key.
func (c *Config) KeyForProvider(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini", "google":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_SIZE"); v != "" {
		if size, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && size > 0 {
			cfg.CacheSize = size
		}
	}
	if v := os.Getenv(EnvPrefix + "STAGE_TIMEOUT"); v != "" {
		cfg.StageTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "MIN_TRANSCRIPT_CHARS"); v != "" {
		if chars, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && chars > 0 {
			cfg.MinTranscriptChars = chars
		}
	}
	if v := os.Getenv(EnvPrefix + "TEXT_MODEL"); v != "" {
		cfg.TextModel = v
	}
	if v := os.Getenv(EnvPrefix + "IMAGE_MODEL"); v != "" {
		cfg.ImageModel = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_MODEL"); v != "" {
		cfg.TranscribeModel = v
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
	if v := os.Getenv(EnvPrefix + "ARCHIVE_SCHEDULE"); v != "" {
		cfg.ArchiveSchedule = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured — audio transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}

	if provider, _, err := llm.ParseModel(cfg.TextModel); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid text_model %q — scene analysis and composition are disabled.", cfg.TextModel))
	} else if cfg.KeyForProvider(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for text model %q — scene analysis and composition are disabled. Set %s.", cfg.TextModel, secretEnvForProvider(provider)))
	}

	if provider, _, err := llm.ParseModel(cfg.ImageModel); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid image_model %q — image generation is disabled.", cfg.ImageModel))
	} else if cfg.KeyForProvider(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for image model %q — image generation is disabled. Set %s.", cfg.ImageModel, secretEnvForProvider(provider)))
	}

	if _, err := time.ParseDuration(cfg.StageTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid stage_timeout %q — using default 60s.", cfg.StageTimeout))
	}
	if cfg.CacheSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid cache_size %d — using default 10.", cfg.CacheSize))
	}

	return warnings
}

func secretEnvForProvider(provider string) string {
	switch provider {
	case "gemini", "google":
		return EnvPrefix + "GEMINI_API_KEY"
	default:
		return EnvPrefix + strings.ToUpper(provider) + "_API_KEY"
	}
}
