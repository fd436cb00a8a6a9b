// Package experts implements the three Category Expert agents (C8): domain-
// scoped retrieval specialists sharing one W1→W2→W4 chain, parametrised by
// category filter (§4.8). Experts never call the LLM Client — they are pure
// retrieval and ranking specialists whose output feeds the Leader's merge
// step.
package experts

import (
	"context"
	"sort"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// Expert runs the strictly sequential W1→W2→W4 chain against one category
// filter. All three experts share this type; only the category differs.
type Expert struct {
	category Category
	rewriter interfaces.ExpertWorker
	searcher interfaces.ExpertWorker
	reranker interfaces.ExpertWorker
	budgets  func(types.EventType) time.Duration
}

// Category is a type alias kept local so call sites read `experts.Category`
// rather than reaching into internal/types for a single name.
type Category = types.Category

// New builds one Category Expert. budgets resolves a worker's wall-clock
// allowance (in cmd/server, the lookup built by provideStageBudget).
func New(category Category, rewriter, searcher, reranker interfaces.ExpertWorker, budgets func(types.EventType) time.Duration) *Expert {
	return &Expert{category: category, rewriter: rewriter, searcher: searcher, reranker: reranker, budgets: budgets}
}

// Run executes W1→W2→W4 in order over this expert's category filter and
// returns its scored candidate set. A failure in any worker still yields an
// ExpertResult — workers never abort the chain, they mark timed_out and
// degrade their own output (§4.7).
func (e *Expert) Run(ctx context.Context, q types.Query, trace *types.Trace) types.ExpertResult {
	state := types.NewExpertState(q, e.category, trace)

	_ = e.rewriter.Run(ctx, state, e.budgets(e.rewriter.Name()))
	_ = e.searcher.Run(ctx, state, e.budgets(e.searcher.Name()))
	_ = e.reranker.Run(ctx, state, e.budgets(e.reranker.Name()))

	candidates := state.Rerank.Candidates
	return types.ExpertResult{
		Candidates:       candidates,
		ExpertConfidence: top3Mean(candidates),
		Category:         e.category,
	}
}

// top3Mean is expert_confidence = mean(top3.hybrid_score) (§4.8 step 2).
func top3Mean(candidates []types.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	sorted := make([]types.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HybridScore > sorted[j].HybridScore })

	n := len(sorted)
	if n > 3 {
		n = 3
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += sorted[i].HybridScore
	}
	return sum / float64(n)
}
