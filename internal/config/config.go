package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLMBackendConfig describes one entry in the priority-ordered LLM pool
// (§6 "llm_backends").
type LLMBackendConfig struct {
	Name        string  `mapstructure:"name"`
	Provider    string  `mapstructure:"provider"`
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	ModelID     string  `mapstructure:"model_id"`
	Priority    int     `mapstructure:"priority"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxInFlight int64   `mapstructure:"max_in_flight"`
	TimeoutMS   int     `mapstructure:"timeout_ms"`
}

// RetrievalConfig groups the vector-index / hybrid-scoring tunables.
type RetrievalConfig struct {
	HybridAlpha float64 `mapstructure:"hybrid_alpha"`
	KMerge      int     `mapstructure:"k_merge"`
	KR          int     `mapstructure:"k_r"`
	LCtx        int     `mapstructure:"l_ctx"`
	EmbeddingDim int    `mapstructure:"embedding_dim"`
	// NProbe is the ANN search-quality knob passed straight through to the
	// Vector Index driver: Qdrant's HnswEf, pgvector's ivfflat.probes (§4.3
	// "nprobe-stable"). Independent of KMerge, which only bounds how many
	// merged candidates the Leader keeps after hybrid scoring.
	NProbe int `mapstructure:"nprobe"`
	// CompressSimilarityTheta (θ_c) is W5's sentence-drop threshold: a
	// sentence whose embedding similarity to the query falls below this is
	// cut from the compressed context (§4.7).
	CompressSimilarityTheta float64 `mapstructure:"compress_similarity_theta"`

	// VectorDriver selects the Vector Index backend: "qdrant" or "pgvector".
	VectorDriver string `mapstructure:"vector_driver"`
	// KeywordDriver selects the optional keyword-search backend:
	// "elasticsearch" or "" (disabled).
	KeywordDriver string `mapstructure:"keyword_driver"`
}

// EmbeddingConfig groups the Embedding Client's single-backend connection
// settings (§4.2).
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	ModelID    string `mapstructure:"model_id"`
}

// RecommenderConfig groups the Collaborative Recommender's tunables (§4.4).
type RecommenderConfig struct {
	KCF             int     `mapstructure:"k_cf"`
	MinInteractions int     `mapstructure:"min_interactions"`
	HalfLifeDays    float64 `mapstructure:"cf_halflife_days"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ConfidenceConfig groups the Leader's confidence-gate tunables (§4.9,
// Open Question 2 in DESIGN.md: weights default to w1=0.6, w2=0.4).
type ConfidenceConfig struct {
	ThresholdRAG      float64 `mapstructure:"confidence_threshold_rag"`
	ThresholdFallback float64 `mapstructure:"confidence_threshold_fallback"`
	W1                float64 `mapstructure:"w1"`
	W2                float64 `mapstructure:"w2"`
}

// WebSearchConfig groups the Web-Search Fallback's tunables (§4.6).
type WebSearchConfig struct {
	Enabled   bool   `mapstructure:"enable_web_fallback"`
	TTLSeconds int   `mapstructure:"web_fallback_ttl_s"`
	RedisAddr string `mapstructure:"redis_addr"`
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	Endpoint  string `mapstructure:"endpoint"`
}

// GatewayConfig groups Request Gateway tunables (§4.11, §6).
type GatewayConfig struct {
	Addr               string        `mapstructure:"addr"`
	LQMax              int           `mapstructure:"l_q_max"`
	QPSCeilingPerClient float64      `mapstructure:"qps_ceiling_per_client"`
	TReqMS             int           `mapstructure:"t_req_ms"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
}

// RetryConfig groups the exponential-backoff retry tunables used at the
// Embedding, LLM, and Web-Search boundaries only (§5 "Retries").
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// PoolConfig holds the pool.max_outstanding and pool.t_pool_ms settings.
// No client reads them: Embedding and Vector Index calls are not bounded by
// a shared pool and never wait for or fail on pool saturation.
type PoolConfig struct {
	MaxOutstanding int           `mapstructure:"max_outstanding"`
	TPoolMS        int           `mapstructure:"t_pool_ms"`
}

// Config is the fully-resolved process configuration, populated by viper
// from a config file, environment variables (HRAP_ prefix), and defaults.
// It is passed explicitly at construction to every component; there is no
// global mutable config singleton (§9 re-architecture note).
type Config struct {
	Env   string `mapstructure:"env"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Confidence  ConfidenceConfig  `mapstructure:"confidence"`
	WebSearch   WebSearchConfig   `mapstructure:"web_search"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Pool        PoolConfig        `mapstructure:"pool"`

	LLMBackends []LLMBackendConfig `mapstructure:"llm_backends"`

	StageBudgetsMS map[string]int `mapstructure:"stage_budgets_ms"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`

	QdrantAddr string `mapstructure:"qdrant_addr"`
	ElasticAddrs []string `mapstructure:"elastic_addrs"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	TraceExportDir string `mapstructure:"trace_export_dir"`

	VocabularyPath string `mapstructure:"vocabulary_path"`
	GRPCAddr       string `mapstructure:"grpc_addr"`
	MCPAddr        string `mapstructure:"mcp_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("retrieval.hybrid_alpha", 0.7)
	v.SetDefault("retrieval.k_merge", 8)
	v.SetDefault("retrieval.nprobe", 16)
	v.SetDefault("retrieval.k_r", 5)
	v.SetDefault("retrieval.l_ctx", 2048)
	v.SetDefault("retrieval.compress_similarity_theta", 0.3)
	v.SetDefault("retrieval.embedding_dim", 768)
	v.SetDefault("retrieval.vector_driver", "qdrant")
	v.SetDefault("retrieval.keyword_driver", "")

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.model_id", "nomic-embed-text")

	v.SetDefault("recommender.k_cf", 10)
	v.SetDefault("recommender.min_interactions", 5)
	v.SetDefault("recommender.cf_halflife_days", 30)
	v.SetDefault("recommender.refresh_interval", "1h")

	v.SetDefault("confidence.confidence_threshold_rag", 0.7)
	v.SetDefault("confidence.confidence_threshold_fallback", 0.7)
	v.SetDefault("confidence.w1", 0.6)
	v.SetDefault("confidence.w2", 0.4)

	v.SetDefault("web_search.enable_web_fallback", true)
	v.SetDefault("web_search.web_fallback_ttl_s", 3600)
	v.SetDefault("web_search.redis_addr", "localhost:6379")

	v.SetDefault("gateway.addr", ":8080")
	v.SetDefault("gateway.l_q_max", 2000)
	v.SetDefault("gateway.qps_ceiling_per_client", 5.0)
	v.SetDefault("gateway.t_req_ms", 30000)
	v.SetDefault("gateway.cors_origins", []string{"*"})

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "100ms")

	v.SetDefault("pool.max_outstanding", 64)
	v.SetDefault("pool.t_pool_ms", 5000)

	v.SetDefault("stage_budgets_ms", map[string]int{
		"rewrite_query": 300,
		"hybrid_search": 800,
		"augment":       400,
		"rerank":        500,
		"compress":      600,
		"answer":        8000,
	})

	v.SetDefault("qdrant_addr", "localhost:6334")
	v.SetDefault("vocabulary_path", "configs/vocabulary.yaml")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("mcp_addr", ":9191")
}

// Load resolves configuration from (in priority order) an optional config
// file at path, HRAP_-prefixed environment variables, then defaults. An
// empty path skips the file lookup.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HRAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the startup-only invariants whose violation is a
// ConfigError (§7): process exits non-zero rather than degrading.
func (c *Config) Validate() error {
	if c.Retrieval.HybridAlpha < 0 || c.Retrieval.HybridAlpha > 1 {
		return fmt.Errorf("config: retrieval.hybrid_alpha must be in [0,1], got %f", c.Retrieval.HybridAlpha)
	}
	if c.Retrieval.EmbeddingDim <= 0 {
		return fmt.Errorf("config: retrieval.embedding_dim must be positive")
	}
	if len(c.LLMBackends) == 0 {
		return fmt.Errorf("config: llm_backends must not be empty")
	}
	switch c.Retrieval.VectorDriver {
	case "qdrant", "pgvector":
	default:
		return fmt.Errorf("config: retrieval.vector_driver must be qdrant or pgvector, got %q", c.Retrieval.VectorDriver)
	}
	return nil
}

// StageBudget resolves a worker's wall-clock budget as a time.Duration,
// falling back to 1s when the stage is not explicitly configured.
func (c *Config) StageBudget(stage string) time.Duration {
	if ms, ok := c.StageBudgetsMS[stage]; ok {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Second
}
