// Package pipeline sequences the discovery stages for one query:
// normalize, analyze modalities, classify, dispatch tools, merge,
// synthesize, and record the turn.
package pipeline

import (
	"context"
	"sync"
	"time"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/metrics"
	"product-discovery/internal/common/observability"
	"product-discovery/internal/conversation"
	"product-discovery/internal/intent"
	"product-discovery/internal/models"
	"product-discovery/internal/normalizer"
	"product-discovery/internal/speech"
	"product-discovery/internal/synthesizer"
	"product-discovery/internal/tools"
	"product-discovery/internal/vision"
)

// VisionAnalyzer and SpeechTranscriber let tests stand in for the
// provider orchestrators.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, image []byte, opts vision.Options) (*models.VisionOutcome, error)
}

type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, opts speech.Options) (*models.Transcript, error)
}

type Pipeline struct {
	cfg           *config.Config
	normalizer    *normalizer.Normalizer
	vision        VisionAnalyzer
	speech        SpeechTranscriber
	classifier    *intent.Classifier
	registry      *tools.Registry
	executor      *tools.Executor
	conversations *conversation.Manager
	synth         *synthesizer.Synthesizer
	observer      *observability.Observability
	logger        logger.Logger
}

type Deps struct {
	Config        *config.Config
	Normalizer    *normalizer.Normalizer
	Vision        VisionAnalyzer
	Speech        SpeechTranscriber
	Classifier    *intent.Classifier
	Registry      *tools.Registry
	Executor      *tools.Executor
	Conversations *conversation.Manager
	Synthesizer   *synthesizer.Synthesizer
	Observer      *observability.Observability
	Logger        logger.Logger
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		cfg:           deps.Config,
		normalizer:    deps.Normalizer,
		vision:        deps.Vision,
		speech:        deps.Speech,
		classifier:    deps.Classifier,
		registry:      deps.Registry,
		executor:      deps.Executor,
		conversations: deps.Conversations,
		synth:         deps.Synthesizer,
		observer:      deps.Observer,
		logger:        deps.Logger.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Process runs one query end to end. Validation failures surface as an
// error; everything after validation produces a response, degraded when
// the global deadline cut work short.
func (p *Pipeline) Process(ctx context.Context, req *models.Request) (*models.Response, error) {
	start := time.Now()
	metrics.ActiveQueries.Inc()
	defer metrics.ActiveQueries.Dec()

	breakdown := newStageBreakdown()

	query, err := p.runNormalize(req, breakdown)
	if err != nil {
		return nil, err
	}

	log := p.logger.WithFields(map[string]interface{}{
		"queryId":   query.ID,
		"sessionId": query.SessionID,
	})

	deadline := config.GetDuration(p.cfg.Pipeline.GlobalDeadline)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	convCtx := p.loadContext(ctx, query, breakdown, log)

	visionOutcome, voiceCommand := p.analyzeModalities(ctx, query, breakdown, log)

	classified := p.classify(query, convCtx, visionOutcome, voiceCommand, breakdown)
	log.Info("intent classified", map[string]interface{}{
		"intent":     classified.Kind,
		"confidence": classified.Confidence,
		"source":     classified.Source,
	})

	results, invocations := p.dispatchTools(ctx, query, classified, convCtx, visionOutcome, breakdown)

	ranked := tools.MergeResults(results, query.MaxResults)
	comparison := firstComparison(results)
	degraded := ctx.Err() == context.DeadlineExceeded
	if degraded {
		log.Warn("global deadline exceeded", map[string]interface{}{
			"error": errors.NewPipelineTimeoutError(query.ID).Error(),
		})
	}

	synthOut := p.synthesize(ctx, query, classified, ranked, comparison, degraded, breakdown)

	cost := p.estimateCost(visionOutcome, voiceCommand, results, synthOut.GeneratorUsed)

	response := &models.Response{
		QueryID:            query.ID,
		Intent:             classified.Kind,
		IntentConfidence:   classified.Confidence,
		Message:            synthOut.Message,
		Products:           ranked,
		Comparison:         comparison,
		SuggestedFollowups: synthOut.Followups,
		LatencyMs:          float64(time.Since(start).Milliseconds()),
		LatencyBreakdown:   breakdown.snapshot(),
		CostUSD:            cost,
		Degraded:           degraded,
		Timestamp:          time.Now().UTC(),
	}

	p.recordTurn(query, classified, invocations, response)
	p.recordMetrics(ctx, response, time.Since(start))

	return response, nil
}

func (p *Pipeline) runNormalize(req *models.Request, breakdown *stageBreakdown) (*models.Query, error) {
	defer stageTimer("normalize", breakdown)()
	return p.normalizer.Normalize(req)
}

func (p *Pipeline) loadContext(ctx context.Context, query *models.Query, breakdown *stageBreakdown, log logger.Logger) conversation.Context {
	defer stageTimer("context", breakdown)()

	convCtx, err := p.conversations.Context(ctx, query.SessionID)
	if err != nil {
		// A broken session store costs context, not the query.
		log.Warn("conversation context unavailable", map[string]interface{}{"error": err.Error()})
		return conversation.Context{}
	}
	return convCtx
}

// analyzeModalities runs vision and speech side by side. A failed
// chain drops its modality's signal; the query continues on whatever
// signals remain.
func (p *Pipeline) analyzeModalities(ctx context.Context, query *models.Query, breakdown *stageBreakdown, log logger.Logger) (*models.VisionOutcome, *models.VoiceCommand) {
	var (
		wg            sync.WaitGroup
		visionOutcome *models.VisionOutcome
		voiceCommand  *models.VoiceCommand
	)

	if query.HasModality(models.ModalityImage) && p.vision != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stageTimer("vision", breakdown)()

			outcome, err := p.vision.Analyze(ctx, query.ImageData, vision.Options{ImageFormat: query.ImageFormat})
			if err != nil {
				log.Warn("vision analysis failed", map[string]interface{}{"error": err.Error()})
				return
			}
			visionOutcome = outcome
		}()
	}

	if query.HasModality(models.ModalityAudio) && p.speech != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stageTimer("speech", breakdown)()

			transcript, err := p.speech.Transcribe(ctx, query.AudioData, speech.Options{AudioFormat: query.AudioFormat})
			if err != nil {
				log.Warn("transcription failed", map[string]interface{}{"error": err.Error()})
				return
			}
			voiceCommand = speech.ExtractCommand(transcript)
		}()
	}

	wg.Wait()
	return visionOutcome, voiceCommand
}

func (p *Pipeline) classify(query *models.Query, convCtx conversation.Context, visionOutcome *models.VisionOutcome, voiceCommand *models.VoiceCommand, breakdown *stageBreakdown) models.Intent {
	defer stageTimer("intent", breakdown)()

	return p.classifier.Classify(query, intent.Signals{
		Text:        query.Text,
		Voice:       voiceCommand,
		Vision:      visionOutcome,
		Context:     convCtx.Filters,
		PriorIntent: convCtx.PriorIntent,
	})
}

func (p *Pipeline) dispatchTools(ctx context.Context, query *models.Query, classified models.Intent, convCtx conversation.Context, visionOutcome *models.VisionOutcome, breakdown *stageBreakdown) ([]tools.Result, []models.ToolInvocation) {
	// Clarify and unknown intents never dispatch tools.
	selected := p.registry.ToolsFor(classified.Kind)
	if len(selected) == 0 {
		return nil, nil
	}

	defer stageTimer("tools", breakdown)()

	params := tools.Params{
		Query:        query,
		Intent:       classified,
		SearchText:   searchText(query, visionOutcome),
		Limit:        query.MaxResults,
		CandidateIDs: convCtx.LastProductIDs,
	}
	return p.executor.Run(ctx, selected, params)
}

func (p *Pipeline) synthesize(ctx context.Context, query *models.Query, classified models.Intent, ranked []models.RankedProduct, comparison *models.Comparison, degraded bool, breakdown *stageBreakdown) synthesizer.Output {
	defer stageTimer("synthesize", breakdown)()

	// Past the deadline the generator gets no time; synthesize from the
	// template against a fresh context.
	synthCtx := ctx
	if degraded {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}

	return p.synth.Synthesize(synthCtx, synthesizer.Input{
		Query:      query,
		Intent:     classified,
		Products:   ranked,
		Comparison: comparison,
		Degraded:   degraded,
	})
}

// estimateCost sums the unit costs of every external model call made
// for this query.
func (p *Pipeline) estimateCost(visionOutcome *models.VisionOutcome, voiceCommand *models.VoiceCommand, results []tools.Result, generatorUsed bool) float64 {
	cost := 0.0

	if visionOutcome != nil {
		for _, raw := range visionOutcome.Raw {
			cost += raw.CostUSD
		}
	}
	if voiceCommand != nil {
		cost += voiceCommand.Transcript.CostUSD
	}
	for _, result := range results {
		if result.Tool == "product_search" {
			cost += p.cfg.Costs.EmbeddingCall
		}
	}
	if generatorUsed {
		cost += p.cfg.Costs.GenerateCall
	}

	return cost
}

// recordTurn appends to the session log outside the request deadline so
// a timed-out query still leaves a consistent trail.
func (p *Pipeline) recordTurn(query *models.Query, classified models.Intent, invocations []models.ToolInvocation, response *models.Response) {
	turnCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	productIDs := make([]string, 0, len(response.Products))
	for _, rp := range response.Products {
		productIDs = append(productIDs, rp.Product.ID)
	}

	turn := models.Turn{
		QueryID:     query.ID,
		UserInput:   query.Text,
		Intent:      classified,
		Invocations: invocations,
		Response:    response.Message,
		ProductIDs:  productIDs,
		Filters:     classified.Filters,
		Timestamp:   time.Now().UTC(),
	}

	if err := p.conversations.AppendTurn(turnCtx, query.SessionID, turn); err != nil {
		p.logger.Error("failed to record turn", map[string]interface{}{
			"sessionId": query.SessionID,
			"error":     err.Error(),
		})
	}
}

func (p *Pipeline) recordMetrics(ctx context.Context, response *models.Response, elapsed time.Duration) {
	degradedLabel := "false"
	if response.Degraded {
		degradedLabel = "true"
	}
	metrics.QueriesProcessed.WithLabelValues(string(response.Intent), degradedLabel).Inc()

	if p.observer != nil {
		p.observer.RecordQueryProcessed(ctx, string(response.Intent), response.Degraded)
		p.observer.RecordQueryDuration(ctx, elapsed, string(response.Intent))
		p.observer.RecordQueryCost(ctx, response.CostUSD)
	}
}

// searchText picks the retrieval phrasing: the user's text when
// present, otherwise the vision analyzer's best search query.
func searchText(query *models.Query, visionOutcome *models.VisionOutcome) string {
	if query.Text != "" {
		return query.Text
	}
	if visionOutcome != nil {
		if len(visionOutcome.Canonical.SearchQueries) > 0 {
			return visionOutcome.Canonical.SearchQueries[0]
		}
		return visionOutcome.Canonical.Description
	}
	return ""
}

func firstComparison(results []tools.Result) *models.Comparison {
	for _, result := range results {
		if result.Comparison != nil {
			return result.Comparison
		}
	}
	return nil
}

// stageBreakdown collects per-stage latencies. Vision and speech write
// from parallel goroutines, so access is guarded.
type stageBreakdown struct {
	mu sync.Mutex
	ms map[string]float64
}

func newStageBreakdown() *stageBreakdown {
	return &stageBreakdown{ms: make(map[string]float64)}
}

func (b *stageBreakdown) set(stage string, ms float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ms[stage] = ms
}

func (b *stageBreakdown) snapshot() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]float64, len(b.ms))
	for stage, ms := range b.ms {
		out[stage] = ms
	}
	return out
}

func stageTimer(stage string, breakdown *stageBreakdown) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		breakdown.set(stage, float64(elapsed.Milliseconds()))
		metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}
