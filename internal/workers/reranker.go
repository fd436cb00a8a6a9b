package workers

import (
	"context"
	"sort"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

const RerankerThreshold = 0.8

const diversityPenalty = 0.05

// Reranker is W4: deterministic score re-weighting with a same-podcast
// diversity penalty (§4.7). A cross-encoder backend could satisfy the same
// ExpertWorker contract later without callers changing.
type Reranker struct {
	kR int
}

var _ interfaces.ExpertWorker = (*Reranker)(nil)

func NewReranker(kR int) *Reranker {
	if kR <= 0 {
		kR = 5
	}
	return &Reranker{kR: kR}
}

func (r *Reranker) Name() types.EventType { return types.EventRerank }
func (r *Reranker) Threshold() float64    { return RerankerThreshold }

func (r *Reranker) Run(ctx context.Context, state *types.ExpertState, budget time.Duration) error {
	start := time.Now()
	var reranked []types.Candidate

	timedOut, _ := withBudget(ctx, budget, func(callCtx context.Context) error {
		reranked = append(reranked, state.Search.Candidates...)

		seenPodcast := map[string]int{}
		for i := range reranked {
			c := &reranked[i]
			score := 0.6*c.HybridScore + 0.3*c.TagScore + 0.1*c.RecencyScore
			score -= diversityPenalty * float64(seenPodcast[c.PodcastID])
			c.HybridScore = clamp01(score)
			c.SourceStage = types.StageRerank
			seenPodcast[c.PodcastID]++
		}

		sort.Slice(reranked, func(i, j int) bool {
			if reranked[i].HybridScore != reranked[j].HybridScore {
				return reranked[i].HybridScore > reranked[j].HybridScore
			}
			return reranked[i].ChunkID < reranked[j].ChunkID
		})
		if len(reranked) > r.kR {
			reranked = reranked[:r.kR]
		}
		return nil
	})

	state.Rerank = types.RerankResult{Candidates: reranked}
	state.Rerank.Elapsed = time.Since(start)
	state.Rerank.TimedOut = timedOut
	state.Rerank.Confidence = bestScore(reranked)
	state.Trace.Append(types.TraceEntry{
		Stage: string(r.Name()), StartedAt: start, Elapsed: time.Since(start),
		InputSize: len(state.Search.Candidates), OutputSize: len(reranked), TimedOut: timedOut,
	})
	if timedOut {
		// §8 scenario 5: pipeline still produces a response using merged
		// (not reranked) candidates when W4 times out.
		state.Rerank.Candidates = state.Search.Candidates
		workerWarn(ctx, r.Name(), "timed out after %s, falling back to un-reranked candidates", budget)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
