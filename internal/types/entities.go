package types

import "time"

// Query is the immutable per-request question entity created at the
// Gateway. It is destroyed at response emission; nothing downstream may
// mutate it.
type Query struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	UserID     string    `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Lang       string    `json:"lang,omitempty"`
}

// Tag is a canonical vocabulary entry, loaded once at boot and immutable at
// runtime.
type Tag struct {
	Name     string          `json:"name"`
	Category Category        `json:"category"`
	Synonyms map[string]bool `json:"-"`
	Weight   float64         `json:"weight"`
}

// Chunk is owned by the Vector Index; the core reads it but never writes
// it. Embeddings are fixed-dimension dense vectors.
type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	EpisodeID   string    `json:"episode_id"`
	PodcastID   string    `json:"podcast_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"-"`
	Tags        []string  `json:"tags"`
	Language    string    `json:"language"`
	PodcastName string    `json:"podcast_name"`
	Category    Category  `json:"category"`
}

// SourceStage records which pipeline stage produced or last touched a
// Candidate, for trace purposes.
type SourceStage string

const (
	StageHybridSearch SourceStage = "hybrid_search"
	StageAugment      SourceStage = "augment"
	StageRerank       SourceStage = "rerank"
	StageCompress     SourceStage = "compress"
)

// Candidate is created by a searcher worker, mutated along the pipeline
// (reranked, compressed), and destroyed when the response is built.
type Candidate struct {
	ChunkID        string      `json:"chunk_id"`
	ChunkIndex     int         `json:"chunk_index"`
	EpisodeID      string      `json:"episode_id"`
	PodcastID      string      `json:"podcast_id"`
	Text           string      `json:"text"`
	SemanticScore  float64     `json:"semantic_score"`
	TagScore       float64     `json:"tag_score"`
	HybridScore    float64     `json:"hybrid_score"`
	Tags           []string    `json:"-"`
	MatchedTags    []string    `json:"matched_tags"`
	SourceStage    SourceStage `json:"source_stage"`
	Category       Category    `json:"category"`
	PodcastName    string      `json:"podcast_name"`
	RecencyScore   float64     `json:"recency_score,omitempty"`
	CompressedText string      `json:"-"`
}

// HybridScore computes alpha*semantic + (1-alpha)*tag, clamped to [0,1].
func HybridScore(alpha, semantic, tag float64) float64 {
	v := alpha*semantic + (1-alpha)*tag
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Episode is a summary view fetched by id for response shaping only. The
// core never writes episodes.
type Episode struct {
	EpisodeID   string   `json:"episode_id"`
	PodcastID   string   `json:"podcast_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AudioURI    string   `json:"audio_uri"`
	ImageURI    string   `json:"image_uri"`
	RSSID       string   `json:"rss_id"`
	Category    Category `json:"category"`
}

// InteractionAction is the set of user actions that feed the Collaborative
// Recommender.
type InteractionAction string

const (
	ActionLike   InteractionAction = "like"
	ActionUnlike InteractionAction = "unlike"
	ActionPlay   InteractionAction = "play"
	ActionSkip   InteractionAction = "skip"
)

// UserInteraction is one observed (user, episode) event.
type UserInteraction struct {
	UserID    string            `json:"user_id"`
	EpisodeID string            `json:"episode_id"`
	Action    InteractionAction `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	Weight    float64           `json:"weight"`
}

// ResponseSource distinguishes how a Response was produced so that clients
// can render appropriate UI.
type ResponseSource string

const (
	SourceRAG         ResponseSource = "rag"
	SourceWebFallback ResponseSource = "web_fallback"
	SourceDefault     ResponseSource = "default"
)

// RecommendedEpisode is the Gateway-facing shape of an Episode inside a
// Response.
type RecommendedEpisode struct {
	EpisodeID    string `json:"episode_id"`
	PodcastName  string `json:"podcast_name"`
	EpisodeTitle string `json:"episode_title"`
	AudioURI     string `json:"audio_uri"`
	ImageURI     string `json:"image_uri"`
}

// Response is the final answer emitted to the Gateway.
type Response struct {
	AnswerText      string               `json:"answer"`
	Recommendations []RecommendedEpisode `json:"recommendations"`
	Confidence      float64              `json:"confidence"`
	Source          ResponseSource       `json:"source"`
	TraceID         string               `json:"trace_id"`
}

const defaultApology = "I couldn't find a confident answer to that question yet. Please try rephrasing it."

// DefaultResponse builds the canonical {source=default} response emitted
// when both RAG confidence and web fallback confidence are insufficient.
func DefaultResponse(traceID string) Response {
	return Response{
		AnswerText:      defaultApology,
		Recommendations: []RecommendedEpisode{},
		Confidence:      0,
		Source:          SourceDefault,
		TraceID:         traceID,
	}
}
