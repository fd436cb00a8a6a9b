package experts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
)

type fakeWorker struct {
	name       types.EventType
	threshold  float64
	run        func(ctx context.Context, state *types.ExpertState, budget time.Duration) error
}

func (f *fakeWorker) Name() types.EventType { return f.name }
func (f *fakeWorker) Threshold() float64    { return f.threshold }
func (f *fakeWorker) Run(ctx context.Context, state *types.ExpertState, budget time.Duration) error {
	return f.run(ctx, state, budget)
}

func TestExpertRunProducesTop3MeanConfidence(t *testing.T) {
	rewriter := &fakeWorker{name: types.EventRewriteQuery, run: func(ctx context.Context, s *types.ExpertState, b time.Duration) error {
		return nil
	}}
	searcher := &fakeWorker{name: types.EventHybridSearch, run: func(ctx context.Context, s *types.ExpertState, b time.Duration) error {
		s.Search.Candidates = []types.Candidate{
			{ChunkID: "a", HybridScore: 0.9},
			{ChunkID: "b", HybridScore: 0.8},
			{ChunkID: "c", HybridScore: 0.7},
			{ChunkID: "d", HybridScore: 0.6},
		}
		return nil
	}}
	reranker := &fakeWorker{name: types.EventRerank, run: func(ctx context.Context, s *types.ExpertState, b time.Duration) error {
		s.Rerank.Candidates = s.Search.Candidates
		return nil
	}}

	e := New(types.CategoryBusiness, rewriter, searcher, reranker, func(types.EventType) time.Duration { return 100 * time.Millisecond })
	trace := types.NewTrace("t1", "q1")
	result := e.Run(context.Background(), types.Query{ID: "q1", Text: "q"}, trace)

	require.Len(t, result.Candidates, 4)
	assert.Equal(t, types.CategoryBusiness, result.Category)
	assert.InDelta(t, (0.9+0.8+0.7)/3, result.ExpertConfidence, 1e-9)
}

func TestExpertRunHandlesNoCandidates(t *testing.T) {
	noop := func(ctx context.Context, s *types.ExpertState, b time.Duration) error { return nil }
	rewriter := &fakeWorker{name: types.EventRewriteQuery, run: noop}
	searcher := &fakeWorker{name: types.EventHybridSearch, run: noop}
	reranker := &fakeWorker{name: types.EventRerank, run: noop}

	e := New(types.CategoryOther, rewriter, searcher, reranker, func(types.EventType) time.Duration { return 100 * time.Millisecond })
	trace := types.NewTrace("t1", "q1")
	result := e.Run(context.Background(), types.Query{ID: "q1", Text: "q"}, trace)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 0.0, result.ExpertConfidence)
}
