package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AnthropicAPIKey          string `yaml:"anthropic_api_key"`
	ClassifierModel          string `yaml:"classifier_model"`
	ClassifierTimeoutSeconds int    `yaml:"classifier_timeout_seconds"`
	MaxAttempts              int    `yaml:"max_attempts"`
	Workers                  int    `yaml:"workers"`

	RepoPath  string `yaml:"repo_path"`
	OutputDir string `yaml:"output_dir"`
	DBPath    string `yaml:"db_path"`

	KeywordTablePath string   `yaml:"keyword_table_path"`
	AuthorDomains    []string `yaml:"author_domains"`
	TrackDegraded    bool     `yaml:"track_degraded"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	WatchSchedule string `yaml:"watch_schedule"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.ClassifierModel, "CLASSIFIER_MODEL")
	envOverrideInt(&cfg.ClassifierTimeoutSeconds, "CLASSIFIER_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.MaxAttempts, "MAX_ATTEMPTS")
	envOverrideInt(&cfg.Workers, "WORKERS")
	envOverride(&cfg.RepoPath, "REPO_PATH")
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.KeywordTablePath, "KEYWORD_TABLE_PATH")
	envOverrideBool(&cfg.TrackDegraded, "TRACK_DEGRADED")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.WatchSchedule, "WATCH_SCHEDULE")

	if domains := os.Getenv("AUTHOR_DOMAINS"); domains != "" {
		cfg.AuthorDomains = nil
		for _, d := range strings.Split(domains, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				cfg.AuthorDomains = append(cfg.AuthorDomains, d)
			}
		}
	}

	// Defaults
	if cfg.ClassifierTimeoutSeconds == 0 {
		cfg.ClassifierTimeoutSeconds = 300
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Workers == 0 {
		cfg.Workers = 3
	}
	if cfg.RepoPath == "" {
		cfg.RepoPath = "."
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./data"
	}

	// Validate
	if cfg.AnthropicAPIKey == "" {
		log.Fatalf("Required config 'anthropic_api_key' is not set (via config.yaml or env var)")
	}
	if cfg.Workers < 1 {
		log.Fatalf("invalid workers '%d': must be >= 1", cfg.Workers)
	}
	if cfg.ClassifierTimeoutSeconds < 1 {
		log.Fatalf("invalid classifier_timeout_seconds '%d': must be >= 1", cfg.ClassifierTimeoutSeconds)
	}
	if cfg.MaxAttempts < 1 {
		log.Fatalf("invalid max_attempts '%d': must be >= 1", cfg.MaxAttempts)
	}
	if cfg.KeywordTablePath != "" {
		if _, err := LoadKeywordTable(cfg.KeywordTablePath); err != nil {
			log.Fatalf("invalid keyword_table_path '%s': %v", cfg.KeywordTablePath, err)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
