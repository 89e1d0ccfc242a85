// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like OPENAI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment specific overrides
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars expands ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig pulls API keys from the environment when the yaml
// left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.Vision.OpenAIAPIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.APIs.Vision.OpenAIAPIKey = val
		}
	}
	if cfg.APIs.Vision.AnthropicAPIKey == "" {
		if val := os.Getenv("ANTHROPIC_API_KEY"); val != "" {
			cfg.APIs.Vision.AnthropicAPIKey = val
		}
	}
	if cfg.APIs.Speech.WhisperAPIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.APIs.Speech.WhisperAPIKey = val
		}
	}
	if cfg.APIs.Speech.DeepgramAPIKey == "" {
		if val := os.Getenv("DEEPGRAM_API_KEY"); val != "" {
			cfg.APIs.Speech.DeepgramAPIKey = val
		}
	}
	if cfg.APIs.GenAI.APIKey == "" {
		if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.APIs.GenAI.APIKey = val
		}
	}
	if cfg.APIs.Embedding.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.APIs.Embedding.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.ListenAddr == "" {
		cfg.App.ListenAddr = ":8080"
	}

	// Pipeline defaults
	if cfg.Pipeline.GlobalDeadline == 0 {
		cfg.Pipeline.GlobalDeadline = 30000
	}
	if cfg.Pipeline.IntentThreshold == 0 {
		cfg.Pipeline.IntentThreshold = 0.5
	}
	if cfg.Pipeline.MergeAlpha == 0 {
		cfg.Pipeline.MergeAlpha = 0.6
	}
	if cfg.Pipeline.MaxToolConcurrency == 0 {
		cfg.Pipeline.MaxToolConcurrency = 4
	}
	if cfg.Pipeline.CategoryWeight == 0 && cfg.Pipeline.BrandWeight == 0 && cfg.Pipeline.ColorWeight == 0 {
		cfg.Pipeline.CategoryWeight = 0.4
		cfg.Pipeline.BrandWeight = 0.3
		cfg.Pipeline.ColorWeight = 0.3
	}
	cfg.Pipeline.AgreementWeights = AgreementWeights{
		Category: cfg.Pipeline.CategoryWeight,
		Brand:    cfg.Pipeline.BrandWeight,
		Color:    cfg.Pipeline.ColorWeight,
	}
	if cfg.Pipeline.SessionTTL == 0 {
		cfg.Pipeline.SessionTTL = 3600
	}
	if cfg.Pipeline.ContextHistoryDepth == 0 {
		cfg.Pipeline.ContextHistoryDepth = 10
	}

	// Limits defaults
	if cfg.Limits.MaxTextLength == 0 {
		cfg.Limits.MaxTextLength = 2000
	}
	if cfg.Limits.MaxImageBytes == 0 {
		cfg.Limits.MaxImageBytes = 10 * 1024 * 1024
	}
	if cfg.Limits.MaxAudioBytes == 0 {
		cfg.Limits.MaxAudioBytes = 25 * 1024 * 1024
	}
	if len(cfg.Limits.ImageFormats) == 0 {
		cfg.Limits.ImageFormats = []string{"jpeg", "png", "webp"}
	}
	if len(cfg.Limits.AudioFormats) == 0 {
		cfg.Limits.AudioFormats = []string{"wav", "mp3", "webm", "m4a"}
	}
	if cfg.Limits.MaxResultsCap == 0 {
		cfg.Limits.MaxResultsCap = 50
	}
	if cfg.Limits.DefaultResults == 0 {
		cfg.Limits.DefaultResults = 10
	}

	// Provider chain defaults
	if cfg.Providers.Vision.Policy == "" {
		cfg.Providers.Vision.Policy = "fallback"
	}
	if len(cfg.Providers.Vision.Order) == 0 {
		cfg.Providers.Vision.Order = []string{"openai-vision", "anthropic-vision"}
	}
	if cfg.Providers.Vision.Timeout == 0 {
		cfg.Providers.Vision.Timeout = 8000
	}
	if cfg.Providers.Speech.Policy == "" {
		cfg.Providers.Speech.Policy = "fallback"
	}
	if len(cfg.Providers.Speech.Order) == 0 {
		cfg.Providers.Speech.Order = []string{"whisper", "deepgram"}
	}
	if cfg.Providers.Speech.Timeout == 0 {
		cfg.Providers.Speech.Timeout = 8000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ProductIndex == "" {
		cfg.Database.Elasticsearch.ProductIndex = "products"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Tool defaults
	for key, tool := range cfg.Tools {
		if tool.Timeout == 0 {
			tool.Timeout = 5000
		}
		if tool.MaxRetries == 0 {
			tool.MaxRetries = 1
		}
		cfg.Tools[key] = tool
	}

	// API timeout defaults
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 10000
	}
	if cfg.APIs.Embedding.Timeout == 0 {
		cfg.APIs.Embedding.Timeout = 5000
	}
	if cfg.APIs.Embedding.Dimensions == 0 {
		cfg.APIs.Embedding.Dimensions = 1536
	}

	// Cost table defaults
	if cfg.Costs.VisionCall == 0 {
		cfg.Costs.VisionCall = 0.01
	}
	if cfg.Costs.SpeechCall == 0 {
		cfg.Costs.SpeechCall = 0.006
	}
	if cfg.Costs.GenerateCall == 0 {
		cfg.Costs.GenerateCall = 0.01
	}
	if cfg.Costs.EmbeddingCall == 0 {
		cfg.Costs.EmbeddingCall = 0.0001
	}

	// Evaluation defaults
	if cfg.Evaluation.MinAccuracy == 0 {
		cfg.Evaluation.MinAccuracy = 0.85
	}
	if cfg.Evaluation.MaxP95LatencyMs == 0 {
		cfg.Evaluation.MaxP95LatencyMs = 4000
	}
	if cfg.Evaluation.MaxCostPerQuery == 0 {
		cfg.Evaluation.MaxCostPerQuery = 0.10
	}
	if cfg.Evaluation.ParallelRequests == 0 {
		cfg.Evaluation.ParallelRequests = 1
	}
}

// validateConfig validates critical configuration fields. Failures here
// are fatal and must prevent the orchestrator from starting.
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Pipeline.IntentThreshold < 0 || cfg.Pipeline.IntentThreshold > 1 {
		return fmt.Errorf("pipeline.intent_threshold must be in [0,1]")
	}
	if cfg.Pipeline.MergeAlpha < 0 || cfg.Pipeline.MergeAlpha > 1 {
		return fmt.Errorf("pipeline.merge_alpha must be in [0,1]")
	}

	switch cfg.Providers.Vision.Policy {
	case "fallback", "parallel":
	default:
		return fmt.Errorf("providers.vision.policy must be 'fallback' or 'parallel'")
	}
	// Speech has no parallel-compare path; there is no agreement scoring
	// over transcripts.
	if cfg.Providers.Speech.Policy != "fallback" {
		return fmt.Errorf("providers.speech.policy must be 'fallback'")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetToolConfig retrieves tool-specific configuration with fallback to defaults
func GetToolConfig(cfg *Config, toolName string) ToolConfig {
	if tool, exists := cfg.Tools[toolName]; exists {
		return tool
	}

	return ToolConfig{
		Enabled:    true,
		Timeout:    5000,
		MaxRetries: 1,
	}
}

// IsToolEnabled checks if a specific tool is enabled
func IsToolEnabled(cfg *Config, toolName string) bool {
	if tool, exists := cfg.Tools[toolName]; exists {
		return tool.Enabled
	}
	return true
}
