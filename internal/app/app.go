// Package app wires configuration, infrastructure clients and pipeline
// stages into a runnable discovery pipeline. Both the orchestrator and
// the evaluator build from here so they evaluate identical wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/database"
	commonhttp "product-discovery/internal/common/http"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/observability"
	"product-discovery/internal/conversation"
	"product-discovery/internal/embedding"
	"product-discovery/internal/intent"
	"product-discovery/internal/normalizer"
	"product-discovery/internal/pipeline"
	"product-discovery/internal/repository"
	"product-discovery/internal/search"
	"product-discovery/internal/speech"
	"product-discovery/internal/synthesizer"
	"product-discovery/internal/tools"
	"product-discovery/internal/vision"
)

const maxConnectAttempts = 5

// Infrastructure bundles the store clients with their lifecycles.
type Infrastructure struct {
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
}

// Close releases every held connection.
func (i *Infrastructure) Close() {
	if i.Postgres != nil {
		i.Postgres.Close()
	}
	if i.Redis != nil {
		i.Redis.Close()
	}
}

// Connect dials the stores with exponential backoff so the service
// survives a slower-starting database in compose setups.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}

	err := retryWithBackoff(ctx, maxConnectAttempts, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		infra.Postgres = pg
		return pg.Ping(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	log.Info("postgres connected", map[string]interface{}{"host": cfg.Database.Postgres.Host})

	err = retryWithBackoff(ctx, maxConnectAttempts, func() error {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		infra.Redis = rdb
		return rdb.Ping(ctx)
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})

	err = retryWithBackoff(ctx, maxConnectAttempts, func() error {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		infra.Elasticsearch = es
		return es.Ping(ctx)
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	log.Info("elasticsearch connected", map[string]interface{}{"addresses": cfg.Database.Elasticsearch.Addresses})

	return infra, nil
}

func retryWithBackoff(ctx context.Context, attempts int, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}

		backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// BuildPipeline assembles every stage from config and connected stores.
func BuildPipeline(cfg *config.Config, infra *Infrastructure, obs *observability.Observability, log logger.Logger) (*pipeline.Pipeline, error) {
	visionOrch, err := vision.NewOrchestrator(
		visionProviders(cfg, commonhttp.NewClient(config.GetDuration(cfg.Providers.Vision.Timeout))),
		cfg.Providers.Vision,
		cfg.Pipeline.AgreementWeights,
		log,
	)
	if err != nil {
		return nil, err
	}

	speechOrch, err := speech.NewOrchestrator(
		speechProviders(cfg, commonhttp.NewClient(config.GetDuration(cfg.Providers.Speech.Timeout))),
		cfg.Providers.Speech,
		log,
	)
	if err != nil {
		return nil, err
	}

	repo := repository.NewProductRepository(infra.Postgres.GetDB(), log)
	index := search.NewIndex(infra.Elasticsearch.Client, infra.Elasticsearch.ProductIndex(), log)
	embedder := embedding.NewClient(
		cfg.APIs.Embedding.BaseURL,
		cfg.APIs.Embedding.APIKey,
		cfg.APIs.Embedding.Model,
		cfg.APIs.Embedding.Dimensions,
		cfg.Costs.EmbeddingCall,
		commonhttp.NewClient(config.GetDuration(cfg.APIs.Embedding.Timeout)),
	)

	registry := tools.NewRegistry(cfg)
	toolSet := []tools.Tool{
		tools.NewProductSearchTool(index, embedder, infra.Redis.GetClient(), cfg.Pipeline.MergeAlpha, log),
		tools.NewInventoryCheckTool(repo, log),
		tools.NewPriceComparisonTool(repo, log),
		tools.NewReviewAnalysisTool(repo, log),
		tools.NewRecommendationTool(repo, infra.Redis.GetClient(), log),
	}
	for _, tool := range toolSet {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}

	generator := synthesizer.NewGenAIClient(
		cfg.APIs.GenAI.BaseURL,
		cfg.APIs.GenAI.APIKey,
		cfg.APIs.GenAI.Model,
		commonhttp.NewClient(config.GetDuration(cfg.APIs.GenAI.Timeout)),
	)

	return pipeline.New(pipeline.Deps{
		Config:     cfg,
		Normalizer: normalizer.New(cfg.Limits, log),
		Vision:     visionOrch,
		Speech:     speechOrch,
		Classifier: intent.NewClassifier(cfg.Pipeline.IntentThreshold, log),
		Registry:   registry,
		Executor:   tools.NewExecutor(cfg, log),
		Conversations: conversation.NewManager(
			infra.Redis.GetClient(),
			time.Duration(cfg.Pipeline.SessionTTL)*time.Second,
			cfg.Pipeline.ContextHistoryDepth,
			log,
		),
		Synthesizer: synthesizer.New(generator, log),
		Observer:    obs,
		Logger:      log,
	}), nil
}

// visionProviders builds the chain in the configured order; unknown
// names are skipped so a typo degrades to a shorter chain instead of a
// crash.
func visionProviders(cfg *config.Config, client *commonhttp.Client) []vision.Provider {
	providers := make([]vision.Provider, 0, len(cfg.Providers.Vision.Order))
	for _, name := range cfg.Providers.Vision.Order {
		switch name {
		case "openai-vision":
			providers = append(providers, vision.NewOpenAIProvider(
				cfg.APIs.Vision.OpenAIBaseURL,
				cfg.APIs.Vision.OpenAIAPIKey,
				cfg.APIs.Vision.OpenAIModel,
				cfg.Costs.VisionCall,
				client,
			))
		case "anthropic-vision":
			providers = append(providers, vision.NewAnthropicProvider(
				cfg.APIs.Vision.AnthropicBaseURL,
				cfg.APIs.Vision.AnthropicAPIKey,
				cfg.APIs.Vision.AnthropicModel,
				cfg.Costs.VisionCall,
				client,
			))
		}
	}
	return providers
}

func speechProviders(cfg *config.Config, client *commonhttp.Client) []speech.Provider {
	providers := make([]speech.Provider, 0, len(cfg.Providers.Speech.Order))
	for _, name := range cfg.Providers.Speech.Order {
		switch name {
		case "whisper":
			providers = append(providers, speech.NewWhisperProvider(
				cfg.APIs.Speech.WhisperBaseURL,
				cfg.APIs.Speech.WhisperAPIKey,
				cfg.Costs.SpeechCall,
				client,
			))
		case "deepgram":
			providers = append(providers, speech.NewDeepgramProvider(
				cfg.APIs.Speech.DeepgramBaseURL,
				cfg.APIs.Speech.DeepgramAPIKey,
				cfg.Costs.SpeechCall,
				client,
			))
		}
	}
	return providers
}
