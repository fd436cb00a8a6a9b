package workers

import (
	"context"
	"sort"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

const HybridSearcherThreshold = 0.7

const maxHybridCandidates = 8

// HybridSearcher is W2: dense ANN search fused with sparse tag matching
// into hybrid_score (§4.7, Invariant 1).
type HybridSearcher struct {
	embedder interfaces.EmbeddingClient
	index    interfaces.VectorIndexClient
	vocab    interfaces.TagVocabulary
	alpha    float64
	nprobe   int
}

var _ interfaces.ExpertWorker = (*HybridSearcher)(nil)

func NewHybridSearcher(embedder interfaces.EmbeddingClient, index interfaces.VectorIndexClient, vocab interfaces.TagVocabulary, alpha float64, nprobe int) *HybridSearcher {
	if nprobe <= 0 {
		nprobe = 16
	}
	return &HybridSearcher{embedder: embedder, index: index, vocab: vocab, alpha: alpha, nprobe: nprobe}
}

func (s *HybridSearcher) Name() types.EventType { return types.EventHybridSearch }
func (s *HybridSearcher) Threshold() float64    { return HybridSearcherThreshold }

func (s *HybridSearcher) Run(ctx context.Context, state *types.ExpertState, budget time.Duration) error {
	start := time.Now()
	var candidates []types.Candidate

	timedOut, err := withBudget(ctx, budget, func(callCtx context.Context) error {
		queryText := state.Rewrite.RewrittenText
		if queryText == "" {
			queryText = state.Query.Text
		}

		vec, err := s.embedder.Embed(callCtx, queryText)
		if err != nil {
			return err
		}

		queryTags := tagNames(s.vocab.Match(queryText))

		filter := interfaces.VectorFilter{Category: state.Category, Language: state.Query.Lang}
		hits, err := s.index.Search(callCtx, vec, filter, maxHybridCandidates*2, s.nprobe)
		if err != nil {
			return err
		}

		for _, c := range hits {
			c.MatchedTags = intersect(queryTags, c.Tags)
			c.TagScore = s.vocab.TagOverlap(queryTags, c.Tags)
			c.HybridScore = types.HybridScore(s.alpha, c.SemanticScore, c.TagScore)
			c.SourceStage = types.StageHybridSearch
			candidates = append(candidates, c)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].HybridScore > candidates[j].HybridScore })
		if len(candidates) > maxHybridCandidates {
			candidates = candidates[:maxHybridCandidates]
		}
		return nil
	})

	state.Search = types.SearchResult{Candidates: candidates}
	state.Search.Elapsed = time.Since(start)
	state.Search.TimedOut = timedOut
	state.Search.Confidence = bestScore(candidates)
	state.Trace.Append(types.TraceEntry{
		Stage: string(s.Name()), StartedAt: start, Elapsed: time.Since(start),
		OutputSize: len(candidates), TimedOut: timedOut,
	})
	if timedOut {
		workerWarn(ctx, s.Name(), "timed out after %s", budget)
		return nil
	}
	return err
}

func tagNames(matches []interfaces.TagMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Tag.Name)
	}
	return out
}

func intersect(a, b []string) []string {
	set := map[string]bool{}
	for _, t := range a {
		set[t] = true
	}
	var out []string
	for _, t := range b {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

func bestScore(candidates []types.Candidate) float64 {
	best := 0.0
	for _, c := range candidates {
		if c.HybridScore > best {
			best = c.HybridScore
		}
	}
	return best
}
