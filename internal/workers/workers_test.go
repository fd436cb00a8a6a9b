package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// --- fakes ---------------------------------------------------------------

type fakeVocab struct {
	matches []interfaces.TagMatch
	overlap float64
}

func (f *fakeVocab) Match(string) []interfaces.TagMatch           { return f.matches }
func (f *fakeVocab) TagOverlap(a, b []string) float64             { return f.overlap }
func (f *fakeVocab) TagsByCategory(types.Category) []types.Tag    { return nil }

type fakeEmbedder struct {
	vec     []float32
	batch   [][]float32
	err     error
	delay   time.Duration
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.vec, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.batch != nil {
		return f.batch, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}
func (f *fakeEmbedder) Dimensions() int   { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string { return "fake" }

type fakeIndex struct {
	hits []types.Candidate
	err  error
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, filter interfaces.VectorFilter, k int, nprobe int) ([]types.Candidate, error) {
	return f.hits, f.err
}

type fakeNeighborLookup struct {
	neighbours []types.Chunk
	err        error
}

func (f *fakeNeighborLookup) NeighboringChunks(ctx context.Context, episodeID string, chunkIndex int, window int) ([]types.Chunk, error) {
	return f.neighbours, f.err
}

type fakeLLM struct {
	resp interfaces.LLMResponse
	err  error
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	return f.resp, f.err
}

func newExpertState(text string) *types.ExpertState {
	return types.NewExpertState(types.Query{ID: "q1", Text: text, Lang: "en"}, types.CategoryBusiness, types.NewTrace("t1", "q1"))
}

// --- Rewriter --------------------------------------------------------------

func TestRewriterExpandsSynonyms(t *testing.T) {
	vocab := &fakeVocab{matches: []interfaces.TagMatch{
		{Tag: types.Tag{Name: "startup", Category: types.CategoryBusiness, Synonyms: map[string]bool{"vc": true}}, Score: 0.9},
	}}
	r := NewRewriter(vocab)
	state := newExpertState("tell me about startup funding")

	err := r.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, state.Rewrite.RewrittenText, "startup")
	assert.Contains(t, state.Rewrite.RewrittenText, "vc")
	assert.Equal(t, types.CategoryBusiness, state.Rewrite.InferredDomain)
	assert.False(t, state.Rewrite.TimedOut)
}

func TestRewriterClassifiesIntent(t *testing.T) {
	vocab := &fakeVocab{}
	r := NewRewriter(vocab)

	state := newExpertState("can you recommend a podcast about AI")
	require.NoError(t, r.Run(context.Background(), state, 50*time.Millisecond))
	assert.Equal(t, "recommend", state.Rewrite.Intent)

	state2 := newExpertState("what is a venture fund")
	require.NoError(t, r.Run(context.Background(), state2, 50*time.Millisecond))
	assert.Equal(t, "explain", state2.Rewrite.Intent)

	state3 := newExpertState("how many episodes are there")
	require.NoError(t, r.Run(context.Background(), state3, 50*time.Millisecond))
	assert.Equal(t, "lookup", state3.Rewrite.Intent)
}

// --- HybridSearcher ----------------------------------------------------------

func TestHybridSearcherFusesScores(t *testing.T) {
	vocab := &fakeVocab{overlap: 0.5}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	index := &fakeIndex{hits: []types.Candidate{
		{ChunkID: "c1", SemanticScore: 0.8, Tags: []string{"ai"}},
		{ChunkID: "c2", SemanticScore: 0.4, Tags: []string{"ai"}},
	}}
	s := NewHybridSearcher(embedder, index, vocab, 0.7, 16)
	state := newExpertState("ai podcasts")

	err := s.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, state.Search.Candidates, 2)
	assert.Equal(t, "c1", state.Search.Candidates[0].ChunkID)
	assert.InDelta(t, 0.7*0.8+0.3*0.5, state.Search.Candidates[0].HybridScore, 1e-6)
}

func TestHybridSearcherTimesOut(t *testing.T) {
	vocab := &fakeVocab{}
	embedder := &fakeEmbedder{vec: []float32{1, 0}, delay: 50 * time.Millisecond}
	index := &fakeIndex{}
	s := NewHybridSearcher(embedder, index, vocab, 0.7, 16)
	state := newExpertState("slow query")

	err := s.Run(context.Background(), state, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, state.Search.TimedOut)
	assert.Empty(t, state.Search.Candidates)
}

// --- Reranker ----------------------------------------------------------------

func TestRerankerPenalizesSamePodcast(t *testing.T) {
	r := NewReranker(5)
	state := newExpertState("q")
	state.Search.Candidates = []types.Candidate{
		{ChunkID: "a", PodcastID: "p1", HybridScore: 0.9},
		{ChunkID: "b", PodcastID: "p1", HybridScore: 0.89},
		{ChunkID: "c", PodcastID: "p2", HybridScore: 0.85},
	}

	err := r.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, state.Rerank.Candidates, 3)
	// second p1 candidate absorbs the diversity penalty and should now
	// trail the p2 candidate despite a higher pre-rerank hybrid score.
	ids := []string{state.Rerank.Candidates[0].ChunkID, state.Rerank.Candidates[1].ChunkID, state.Rerank.Candidates[2].ChunkID}
	assert.Equal(t, "a", ids[0])
	assert.Equal(t, "c", ids[1])
	assert.Equal(t, "b", ids[2])
}

func TestRerankerFallsBackToSearchCandidatesOnTimeout(t *testing.T) {
	r := NewReranker(5)
	state := newExpertState("q")
	state.Search.Candidates = []types.Candidate{{ChunkID: "a", HybridScore: 0.5}}

	err := r.Run(context.Background(), state, 0)
	require.NoError(t, err)
	assert.True(t, state.Rerank.TimedOut)
	assert.Equal(t, state.Search.Candidates, state.Rerank.Candidates)
}

// --- Augmenter -----------------------------------------------------------

func TestAugmenterAppendsNeighbourText(t *testing.T) {
	lookup := &fakeNeighborLookup{neighbours: []types.Chunk{{ChunkID: "n1", Text: "extra context sentence."}}}
	a := NewAugmenter(lookup)
	state := types.NewPipelineState(types.Query{ID: "q1", Text: "q"}, "trace1")
	state.Merged = []types.Candidate{{ChunkID: "c1", EpisodeID: "e1", ChunkIndex: 3, Text: "original text."}}

	err := a.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, state.Augmented.Candidates, 1)
	assert.Contains(t, state.Augmented.Candidates[0].Text, "original text.")
	assert.Contains(t, state.Augmented.Candidates[0].Text, "extra context sentence.")
}

func TestAugmenterSurvivesLookupFailure(t *testing.T) {
	lookup := &fakeNeighborLookup{err: assertErr{}}
	a := NewAugmenter(lookup)
	state := types.NewPipelineState(types.Query{ID: "q1", Text: "q"}, "trace1")
	state.Merged = []types.Candidate{{ChunkID: "c1", EpisodeID: "e1", ChunkIndex: 1, Text: "kept as-is."}}

	err := a.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, state.Augmented.Candidates, 1)
	assert.Equal(t, "kept as-is.", state.Augmented.Candidates[0].Text)
}

type assertErr struct{}

func (assertErr) Error() string { return "lookup failed" }

// --- Compressor ----------------------------------------------------------

func TestCompressorDropsLowSimilaritySentences(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}, batch: [][]float32{{1, 0}, {0, 1}}}
	c := NewCompressor(embedder, 0.5, 2048)
	state := types.NewPipelineState(types.Query{ID: "q1", Text: "q"}, "trace1")
	state.Merged = []types.Candidate{{ChunkID: "c1", Text: "relevant sentence. unrelated sentence."}}

	err := c.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, state.Compressed.Context, "relevant sentence")
	assert.NotContains(t, state.Compressed.Context, "unrelated sentence")
}

// --- Answerer --------------------------------------------------------------

func TestAnswererUsesCompressedContext(t *testing.T) {
	llm := &fakeLLM{resp: interfaces.LLMResponse{Text: "here is your answer", Confidence: 0.9}}
	a := NewAnswerer(llm)
	state := types.NewPipelineState(types.Query{ID: "q1", Text: "what is x"}, "trace1")
	state.Compressed = types.CompressResult{Context: "x is a thing."}

	err := a.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "here is your answer", state.Answer.AnswerText)
	assert.InDelta(t, 0.9, state.Answer.Confidence, 1e-9)
}

func TestAnswererFallsBackWhenNoCompressedContext(t *testing.T) {
	var gotPrompt string
	llm := &llmCapture{resp: interfaces.LLMResponse{Text: "ok"}}
	a := NewAnswerer(llm)
	state := types.NewPipelineState(types.Query{ID: "q1", Text: "q"}, "trace1")
	state.Merged = []types.Candidate{{ChunkID: "c1", Text: "fallback text", HybridScore: 0.5}}

	err := a.Run(context.Background(), state, 50*time.Millisecond)
	require.NoError(t, err)
	gotPrompt = llm.lastUserPrompt
	assert.Contains(t, gotPrompt, "fallback text")
}

type llmCapture struct {
	resp           interfaces.LLMResponse
	lastUserPrompt string
}

func (l *llmCapture) Complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	l.lastUserPrompt = userPrompt
	return l.resp, nil
}
