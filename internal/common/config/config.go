// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig             `mapstructure:"app"`
	Pipeline   PipelineConfig        `mapstructure:"pipeline"`
	Limits     LimitsConfig          `mapstructure:"limits"`
	Providers  ProvidersConfig       `mapstructure:"providers"`
	Database   DatabaseConfig        `mapstructure:"database"`
	Tools      map[string]ToolConfig `mapstructure:"tools"`
	APIs       APIsConfig            `mapstructure:"apis"`
	Costs      CostsConfig           `mapstructure:"costs"`
	Evaluation EvaluationConfig      `mapstructure:"evaluation"`
	Logging    LoggingConfig         `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

// PipelineConfig holds the end-to-end orchestration knobs.
type PipelineConfig struct {
	GlobalDeadline      int     `mapstructure:"global_deadline"` // milliseconds
	IntentThreshold     float64 `mapstructure:"intent_threshold"`
	MergeAlpha          float64 `mapstructure:"merge_alpha"`
	MaxToolConcurrency  int     `mapstructure:"max_tool_concurrency"`
	AgreementWeights    AgreementWeights
	CategoryWeight      float64 `mapstructure:"category_weight"`
	BrandWeight         float64 `mapstructure:"brand_weight"`
	ColorWeight         float64 `mapstructure:"color_weight"`
	SessionTTL          int     `mapstructure:"session_ttl"`           // seconds
	ContextHistoryDepth int     `mapstructure:"context_history_depth"` // turns folded into context
}

// AgreementWeights groups the vision agreement score weighting.
type AgreementWeights struct {
	Category float64
	Brand    float64
	Color    float64
}

// LimitsConfig bounds the raw multimodal payloads accepted at the edge.
type LimitsConfig struct {
	MaxTextLength  int      `mapstructure:"max_text_length"`
	MaxImageBytes  int      `mapstructure:"max_image_bytes"`
	MaxAudioBytes  int      `mapstructure:"max_audio_bytes"`
	ImageFormats   []string `mapstructure:"image_formats"`
	AudioFormats   []string `mapstructure:"audio_formats"`
	MaxResultsCap  int      `mapstructure:"max_results_cap"`
	DefaultResults int      `mapstructure:"default_results"`
}

// ProvidersConfig configures the ordered analyzer chains.
type ProvidersConfig struct {
	Vision ProviderChainConfig `mapstructure:"vision"`
	Speech ProviderChainConfig `mapstructure:"speech"`
}

// ProviderChainConfig holds an ordered provider list plus the invocation
// policy: "fallback" calls them in order, "parallel" fans out to all of
// them and compares results.
type ProviderChainConfig struct {
	Policy     string   `mapstructure:"policy"`
	Order      []string `mapstructure:"order"`
	Timeout    int      `mapstructure:"timeout"` // milliseconds, per call
	MaxRetries int      `mapstructure:"max_retries"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ProductIndex string   `mapstructure:"product_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ToolConfig holds the core settings applicable to every tool.
type ToolConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"` // milliseconds
	MaxRetries int  `mapstructure:"max_retries"`
}

// APIsConfig holds settings for external model API integrations.
type APIsConfig struct {
	Vision struct {
		OpenAIBaseURL    string `mapstructure:"openai_base_url"`
		OpenAIAPIKey     string `mapstructure:"openai_api_key"`
		OpenAIModel      string `mapstructure:"openai_model"`
		AnthropicBaseURL string `mapstructure:"anthropic_base_url"`
		AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
		AnthropicModel   string `mapstructure:"anthropic_model"`
	} `mapstructure:"vision"`

	Speech struct {
		WhisperBaseURL  string `mapstructure:"whisper_base_url"`
		WhisperAPIKey   string `mapstructure:"whisper_api_key"`
		DeepgramBaseURL string `mapstructure:"deepgram_base_url"`
		DeepgramAPIKey  string `mapstructure:"deepgram_api_key"`
	} `mapstructure:"speech"`

	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`

	Embedding struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Model      string `mapstructure:"model"`
		Dimensions int    `mapstructure:"dimensions"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"embedding"`
}

// CostsConfig is the per-call unit cost table in USD used for the
// response cost estimate and the evaluation harness.
type CostsConfig struct {
	VisionCall    float64 `mapstructure:"vision_call"`
	SpeechCall    float64 `mapstructure:"speech_call"`
	GenerateCall  float64 `mapstructure:"generate_call"`
	EmbeddingCall float64 `mapstructure:"embedding_call"`
}

// EvaluationConfig holds settings for the evaluation harness.
type EvaluationConfig struct {
	CorpusPath       string  `mapstructure:"corpus_path"`
	OutputPath       string  `mapstructure:"output_path"`
	MinAccuracy      float64 `mapstructure:"min_accuracy"`
	MaxP95LatencyMs  float64 `mapstructure:"max_p95_latency_ms"`
	MaxCostPerQuery  float64 `mapstructure:"max_cost_per_query"`
	ParallelRequests int     `mapstructure:"parallel_requests"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
