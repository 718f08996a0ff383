package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all interviewd environment variables.
const EnvPrefix = "INTERVIEWD_"

// DefaultSilenceTimeout is how long the orchestrator waits after the last
// final transcript fragment before treating the answer as complete.
const DefaultSilenceTimeout = 6 * time.Second

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	SilenceTimeout        string `yaml:"silence_timeout"`
	MaxQuestions          int    `yaml:"max_questions"`
	OpenAIModel           string `yaml:"openai_model"`
	AgentURL              string `yaml:"agent_url"`
	STTModel              string `yaml:"stt_model"`
	Language              string `yaml:"language"`
	SampleRate            int    `yaml:"sample_rate"`
	UtteranceEndMS        int    `yaml:"utterance_end_ms"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets come from env vars only and are never serialized to YAML.
	DeepgramAPIKey string `yaml:"-"`
	OpenAIAPIKey   string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		DBPath:                "data/interviewd.db",
		SilenceTimeout:        "6s",
		MaxQuestions:          10,
		OpenAIModel:           "gpt-4o-mini",
		STTModel:              "nova-2",
		Language:              "en-US",
		SampleRate:            16000,
		UtteranceEndMS:        3000,
		GoogleCredentialsFile: "./service-account.json",
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

// ParsedSilenceTimeout returns SilenceTimeout as a time.Duration, falling
// back to the default if the value is missing, invalid, or non-positive.
func (c *Config) ParsedSilenceTimeout() time.Duration {
	d, err := time.ParseDuration(c.SilenceTimeout)
	if err != nil || d <= 0 {
		return DefaultSilenceTimeout
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "SILENCE_TIMEOUT"); v != "" {
		cfg.SilenceTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.MaxQuestions = n
		}
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv(EnvPrefix + "AGENT_URL"); v != "" {
		cfg.AgentURL = v
	}
	if v := os.Getenv(EnvPrefix + "STT_MODEL"); v != "" {
		cfg.STTModel = v
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv(EnvPrefix + "SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.SampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "UTTERANCE_END_MS"); v != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && ms > 0 {
			cfg.UtteranceEndMS = ms
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured, live transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.OpenAIAPIKey == "" && cfg.AgentURL == "" {
		warnings = append(warnings, "Neither "+EnvPrefix+"OPENAI_API_KEY nor agent_url configured, question generation is unavailable.")
	}
	if d, err := time.ParseDuration(cfg.SilenceTimeout); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid silence_timeout %q, using default %s.", cfg.SilenceTimeout, DefaultSilenceTimeout))
	}
	if cfg.MaxQuestions <= 0 {
		warnings = append(warnings, "Invalid max_questions, using default 10.")
		cfg.MaxQuestions = 10
	}

	return warnings
}
