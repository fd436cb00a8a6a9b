// Command server boots the Request Gateway process: it wires every
// internal component (Tag Vocabulary, Embedding Client, Vector Index,
// Collaborative Recommender, LLM Client, Web-Search Fallback, the six
// Worker Agents, the three Category Experts, the Leader, and the Pipeline
// Runner) and serves HTTP (§6), a gRPC health check (§6.1), and an MCP
// tool surface (§6.1) side by side. Wiring runs through a dig container so
// each component's constructor declares only the types it needs, rather
// than one long hand-ordered sequence of assignments.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mcpserverlib "github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	adapterselastic "github.com/podwise/hrap/internal/adapters/elastic"
	adaptersminio "github.com/podwise/hrap/internal/adapters/minio"
	adapterspostgres "github.com/podwise/hrap/internal/adapters/postgres"
	"github.com/podwise/hrap/internal/config"
	"github.com/podwise/hrap/internal/embedding"
	"github.com/podwise/hrap/internal/experts"
	"github.com/podwise/hrap/internal/gateway"
	"github.com/podwise/hrap/internal/grpchealth"
	"github.com/podwise/hrap/internal/leader"
	"github.com/podwise/hrap/internal/llmclient"
	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/mcpserver"
	"github.com/podwise/hrap/internal/pipeline"
	"github.com/podwise/hrap/internal/providers"
	"github.com/podwise/hrap/internal/recommender"
	"github.com/podwise/hrap/internal/telemetry"
	"github.com/podwise/hrap/internal/traceexport"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
	"github.com/podwise/hrap/internal/vectorindex"
	"github.com/podwise/hrap/internal/vocabulary"
	"github.com/podwise/hrap/internal/websearch"
	"github.com/podwise/hrap/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	container := dig.New()
	registerProviders(container, *configPath)

	if err := container.Invoke(run); err != nil {
		logger.Errorf(context.Background(), "server: startup failed: %v", err)
		os.Exit(1)
	}
}

// registerProviders declares the constructor graph. Each Provide call is a
// single component's build step; dig resolves the call order from the
// parameter types, so adding a new component only means adding a provider,
// not re-threading an init sequence by hand.
func registerProviders(c *dig.Container, configPath string) {
	must := func(err error) {
		if err != nil {
			logger.Errorf(context.Background(), "server: provider registration failed: %v", err)
			os.Exit(1)
		}
	}

	must(c.Provide(func() (*config.Config, error) { return config.Load(configPath) }))
	must(c.Provide(provideSignalContext))
	must(c.Provide(provideTelemetryShutdown))
	must(c.Provide(provideVocabularyBundle))
	must(c.Provide(provideEmbeddingClient))
	must(c.Provide(provideDB))
	must(c.Provide(provideVectorIndex))
	must(c.Provide(provideLLMClient))
	must(c.Provide(provideRedisClient))
	must(c.Provide(provideWebSearchClient))
	must(c.Provide(provideRecommender))
	must(c.Provide(provideEpisodeRepo))
	must(c.Provide(provideObjectStore))
	must(c.Provide(provideStageBudget))
	must(c.Provide(provideLeader))
	must(c.Provide(provideTracedRunner))
	must(c.Provide(provideGateway))
	must(c.Provide(grpchealth.New))
	must(c.Provide(provideMCPServer))
}

// signalContext is the process-lifetime context, cancelled on SIGINT/SIGTERM.
type signalContext struct {
	context.Context
	stop context.CancelFunc
}

func provideSignalContext() *signalContext {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &signalContext{Context: ctx, stop: stop}
}

func provideTelemetryShutdown(ctx *signalContext, cfg *config.Config) (func(context.Context) error, error) {
	return telemetry.Init(ctx, "hrap", cfg.OTLPEndpoint)
}

// vocabularyBundle pairs the Tag Vocabulary seam with its optional health
// pinger, since dig resolves by concrete type and the two need to travel
// together without forcing every other consumer of TagVocabulary to also
// depend on gateway.Pinger.
type vocabularyBundle struct {
	Vocab  interfaces.TagVocabulary
	Pinger gateway.Pinger
}

// provideVocabularyBundle loads the static vocabulary source and, when the
// deployment opts into the Elasticsearch keyword backend, wraps it behind a
// VocabularyIndex that routes Match to ES instead of the in-process
// gojieba tokenizer (§6.2, DESIGN.md "elastic adapter").
func provideVocabularyBundle(ctx *signalContext, cfg *config.Config) (*vocabularyBundle, error) {
	vocab := vocabulary.New()
	if data, err := os.ReadFile(cfg.VocabularyPath); err != nil {
		logger.Warnf(ctx, "server: vocabulary file %s not read: %v", cfg.VocabularyPath, err)
	} else if err := vocab.LoadYAML(data); err != nil {
		return nil, err
	}

	if cfg.Retrieval.KeywordDriver != "elasticsearch" {
		return &vocabularyBundle{Vocab: vocab}, nil
	}

	idx, err := adapterselastic.New(cfg.ElasticAddrs, "tags", vocab)
	if err != nil {
		return nil, err
	}

	var allTags []types.Tag
	for _, cat := range types.AllCategories() {
		allTags = append(allTags, vocab.TagsByCategory(cat)...)
	}
	if err := idx.IndexTags(ctx, allTags); err != nil {
		logger.Warnf(ctx, "server: elastic tag indexing failed: %v", err)
	}
	return &vocabularyBundle{Vocab: idx, Pinger: idx}, nil
}

func provideEmbeddingClient(cfg *config.Config) (*embedding.Client, error) {
	return embedding.New(embedding.Config{
		Provider:   providers.ProviderName(cfg.Embedding.Provider),
		BaseURL:    cfg.Embedding.Endpoint,
		APIKey:     cfg.Embedding.APIKey,
		ModelName:  cfg.Embedding.ModelID,
		Dimensions: cfg.Retrieval.EmbeddingDim,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	})
}

// provideDB returns a nil *gorm.DB when no DSN is configured: Postgres
// backs both episode lookup and interaction storage, but neither is
// mandatory for a deployment that only serves recommendations from a
// pre-published model (§9 "recommender can run cold").
func provideDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PostgresDSN == "" {
		return nil, nil
	}
	if err := adapterspostgres.Migrate(cfg.PostgresDSN); err != nil {
		return nil, err
	}
	return gorm.Open(gormpostgres.Open(cfg.PostgresDSN), &gorm.Config{})
}

func provideVectorIndex(cfg *config.Config, db *gorm.DB) (interfaces.VectorIndexClient, error) {
	return vectorindex.New(cfg, db)
}

func provideLLMClient(cfg *config.Config) (*llmclient.Client, error) {
	specs := make([]llmclient.BackendSpec, 0, len(cfg.LLMBackends))
	for _, b := range cfg.LLMBackends {
		specs = append(specs, llmclient.BackendSpec{
			Name:        b.Name,
			Provider:    providers.ProviderName(b.Provider),
			Endpoint:    b.Endpoint,
			APIKey:      b.APIKey,
			ModelID:     b.ModelID,
			Priority:    b.Priority,
			MaxTokens:   b.MaxTokens,
			Temperature: b.Temperature,
			MaxInFlight: b.MaxInFlight,
			Timeout:     time.Duration(b.TimeoutMS) * time.Millisecond,
		})
	}
	return llmclient.New(specs, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)
}

// provideRedisClient is shared by the Web-Search Fallback cache and the
// Collaborative Recommender's cross-process model cache (§4.4, §4.6):
// both are small, infrequent payloads against the same instance, so one
// connection pool serves both rather than opening a second.
func provideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.WebSearch.RedisAddr})
}

func provideWebSearchClient(cfg *config.Config, redisClient *redis.Client) interfaces.WebSearchClient {
	if !cfg.WebSearch.Enabled {
		return nil
	}
	return websearch.New(websearch.Config{
		Endpoint:   cfg.WebSearch.Endpoint,
		APIKey:     cfg.WebSearch.APIKey,
		TTL:        time.Duration(cfg.WebSearch.TTLSeconds) * time.Second,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}, redisClient)
}

func provideRecommender(ctx *signalContext, cfg *config.Config, redisClient *redis.Client) *recommender.Recommender {
	rec := recommender.New(cfg.Recommender.KCF, cfg.Recommender.MinInteractions)
	go pollRecommenderModel(ctx, rec, redisClient, cfg.Recommender.RefreshInterval)
	return rec
}

func provideEpisodeRepo(db *gorm.DB) interfaces.EpisodeLookupRepository {
	if db == nil {
		return nil
	}
	return adapterspostgres.NewEpisodeRepository(db)
}

// objectStoreBundle mirrors vocabularyBundle: the store doubles as both the
// resolver interface the Gateway consumes and the pinger the health
// endpoint reports on.
type objectStoreBundle struct {
	Resolver interfaces.ObjectURIResolver
	Pinger   gateway.Pinger
}

func provideObjectStore(cfg *config.Config) (*objectStoreBundle, error) {
	if cfg.MinioEndpoint == "" {
		return &objectStoreBundle{}, nil
	}
	store, err := adaptersminio.New(adaptersminio.Config{
		Endpoint:        cfg.MinioEndpoint,
		AccessKeyID:     cfg.MinioAccessKey,
		SecretAccessKey: cfg.MinioSecretKey,
		UseSSL:          cfg.MinioUseSSL,
		Bucket:          cfg.MinioBucket,
	})
	if err != nil {
		return nil, err
	}
	return &objectStoreBundle{Resolver: store, Pinger: store}, nil
}

// provideStageBudget turns the config file's flat stage_budgets_ms map into
// the closure the Leader and Category Experts use to look up one worker
// stage's wall-clock allowance (§4.10).
func provideStageBudget(cfg *config.Config) func(types.EventType) time.Duration {
	budgets := make(types.StageBudgets, len(cfg.StageBudgetsMS))
	for k, v := range cfg.StageBudgetsMS {
		budgets[types.EventType(k)] = v
	}
	return func(stage types.EventType) time.Duration {
		if ms, ok := budgets[stage]; ok && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		return 500 * time.Millisecond
	}
}

func provideLeader(
	cfg *config.Config,
	vocab *vocabularyBundle,
	embedClient *embedding.Client,
	vectorIndex interfaces.VectorIndexClient,
	llmPool *llmclient.Client,
	rec *recommender.Recommender,
	episodeRepo interfaces.EpisodeLookupRepository,
	webSearchClient interfaces.WebSearchClient,
	stageBudget func(types.EventType) time.Duration,
) *leader.Leader {
	rewriter := workers.NewRewriter(vocab.Vocab)
	hybridSearcher := workers.NewHybridSearcher(embedClient, vectorIndex, vocab.Vocab, cfg.Retrieval.HybridAlpha, cfg.Retrieval.NProbe)
	reranker := workers.NewReranker(cfg.Retrieval.KR)
	expertFactory := leader.ExpertFactory(func(category types.Category) leader.Expert {
		return experts.New(category, rewriter, hybridSearcher, reranker, stageBudget)
	})

	chunkNeighbors, _ := vectorIndex.(interfaces.ChunkNeighborLookup)
	merge := leader.MergeWorkers{
		Augmenter:  workers.NewAugmenter(chunkNeighbors),
		Compressor: workers.NewCompressor(embedClient, cfg.Retrieval.CompressSimilarityTheta, cfg.Retrieval.LCtx),
		Answerer:   workers.NewAnswerer(llmPool),
	}

	return leader.New(vocab.Vocab, expertFactory, merge, rec, episodeRepo, webSearchClient, leader.Config{
		KMerge:             cfg.Retrieval.KMerge,
		ConfidenceW1:       cfg.Confidence.W1,
		ConfidenceW2:       cfg.Confidence.W2,
		ThresholdRAG:       cfg.Confidence.ThresholdRAG,
		ThresholdFallback:  cfg.Confidence.ThresholdFallback,
		WebFallbackEnabled: cfg.WebSearch.Enabled,
		StageBudget:        stageBudget,
	})
}

// traceRecordingRunner wraps the Pipeline Runner so every completed
// request's Trace is appended to the export buffer without threading an
// Exporter reference through internal/pipeline itself.
type traceRecordingRunner struct {
	inner    *pipeline.Runner
	exporter *traceexport.Exporter
}

func (r *traceRecordingRunner) Run(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace) {
	resp, trace := r.inner.Run(ctx, q, traceID)
	if r.exporter != nil && trace != nil {
		r.exporter.Append(trace)
	}
	return resp, trace
}

func provideTracedRunner(cfg *config.Config, l *leader.Leader) (*traceRecordingRunner, error) {
	runner := pipeline.New(l, time.Duration(cfg.Gateway.TReqMS)*time.Millisecond)

	var exporter *traceexport.Exporter
	if cfg.TraceExportDir != "" {
		var err error
		exporter, err = traceexport.NewExporter(cfg.TraceExportDir)
		if err != nil {
			return nil, err
		}
	}
	return &traceRecordingRunner{inner: runner, exporter: exporter}, nil
}

func provideGateway(
	cfg *config.Config,
	runner *traceRecordingRunner,
	rec *recommender.Recommender,
	episodeRepo interfaces.EpisodeLookupRepository,
	objectStore *objectStoreBundle,
	llmPool *llmclient.Client,
	vectorIndex interfaces.VectorIndexClient,
	webSearchClient interfaces.WebSearchClient,
	vocab *vocabularyBundle,
) *gateway.Gateway {
	pingers := map[string]gateway.Pinger{
		"llm":           llmPool,
		"vector_index":  asPinger(vectorIndex),
		"web_search":    asPinger(webSearchClient),
		"object_store":  objectStore.Pinger,
		"keyword_index": vocab.Pinger,
	}
	return gateway.New(runner, rec, episodeRepo, objectStore.Resolver, cfg.Gateway, pingers)
}

func provideMCPServer(runner *traceRecordingRunner) *mcpserverlib.MCPServer {
	return mcpserver.New(runner, "hrap", "1.0.0")
}

// run is invoked once the container has built the full graph; it owns the
// three listeners (HTTP, gRPC health, MCP) and blocks until shutdown.
func run(
	ctx *signalContext,
	cfg *config.Config,
	shutdownTelemetry func(context.Context) error,
	gw *gateway.Gateway,
	healthSrv *grpchealth.Server,
	mcpSrv *mcpserverlib.MCPServer,
	runner *traceRecordingRunner,
) error {
	defer ctx.stop()
	defer shutdownTelemetry(context.Background())
	if runner.exporter != nil {
		defer runner.exporter.Flush()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Gateway.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))
	gw.RegisterRoutes(engine)

	httpServer := &http.Server{Addr: cfg.Gateway.Addr, Handler: engine}

	go func() {
		if err := healthSrv.Serve(ctx, cfg.GRPCAddr); err != nil {
			logger.Errorf(ctx, "server: grpc health server stopped: %v", err)
		}
	}()

	mcpHTTP := mcpserverlib.NewStreamableHTTPServer(mcpSrv)
	go func() {
		if err := mcpHTTP.Start(cfg.MCPAddr); err != nil && err != http.ErrServerClosed {
			logger.Errorf(ctx, "server: mcp server stopped: %v", err)
		}
	}()

	go func() {
		logger.Infof(ctx, "server: listening on %s", cfg.Gateway.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf(ctx, "server: http server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof(context.Background(), "server: shutting down")
	healthSrv.SetNotServing()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = mcpHTTP.Shutdown(shutdownCtx)
	healthSrv.Stop()
	return nil
}

// pollRecommenderModel periodically pulls the latest published interaction
// matrix (written by cmd/refreshworker) into rec. The Recommender itself
// has no network dependency of its own (§3); this is the seam that feeds
// it without coupling query serving to the refresh schedule.
func pollRecommenderModel(ctx context.Context, rec *recommender.Recommender, client *redis.Client, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh := func() {
		matrix, err := recommender.LoadMatrix(ctx, client)
		if err != nil {
			logger.Warnf(ctx, "server: recommender matrix load failed: %v", err)
			return
		}
		if matrix == nil {
			return
		}
		if err := rec.Refresh(ctx, matrix); err != nil {
			logger.Warnf(ctx, "server: recommender refresh failed: %v", err)
		}
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// asPinger narrows v to gateway.Pinger, returning nil when v is nil or
// doesn't implement it (an optional component simply isn't reported on).
func asPinger(v interface{}) gateway.Pinger {
	p, _ := v.(gateway.Pinger)
	return p
}
