// Package leader implements the Leader/Orchestrator (C9): the top of the
// three-tier agent hierarchy. It classifies a query into one or more
// categories, dispatches the matching Category Experts concurrently, merges
// their candidates, runs the post-merge Worker chain (augment, compress,
// answer), derives episode recommendations, and applies the confidence gate
// that decides between a RAG answer, a Web-Search Fallback, and the default
// apology response (§4.9).
package leader

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// secondaryConfidenceGate and secondaryRatioGate implement §4.9 step 1's
// multi-category rule: a secondary category is dispatched alongside the
// primary when its confidence is at least this floor AND at least this
// fraction of the primary's confidence.
const (
	secondaryConfidenceGate = 0.4
	secondaryRatioGate      = 0.6
)

// ExpertFactory builds the Category Expert for one category. Experts are
// cheap to construct (they only close over shared worker instances), so the
// Leader builds one per dispatched category per request rather than holding
// a long-lived pool.
type ExpertFactory func(category types.Category) Expert

// Expert is the seam internal/experts.Expert satisfies; narrowed here so
// the Leader doesn't import the concrete package.
type Expert interface {
	Run(ctx context.Context, q types.Query, trace *types.Trace) types.ExpertResult
}

// MergeWorkers bundles the three post-merge Worker Agents (§4.9 steps 4-5).
type MergeWorkers struct {
	Augmenter  interfaces.MergeWorker
	Compressor interfaces.MergeWorker
	Answerer   interfaces.MergeWorker
}

// Config is the subset of top-level config the Leader needs, snapshotted
// per request so a mid-flight reload cannot change behaviour for an
// in-flight request (§5).
type Config struct {
	KMerge             int
	ConfidenceW1       float64
	ConfidenceW2       float64
	ThresholdRAG       float64
	ThresholdFallback  float64
	WebFallbackEnabled bool
	StageBudget        func(types.EventType) time.Duration
}

// Leader wires together the classifier, the expert factory, the post-merge
// workers, the recommender, and the web-search fallback.
type Leader struct {
	vocab      interfaces.TagVocabulary
	experts    ExpertFactory
	merge      MergeWorkers
	recommender interfaces.RecommenderService
	episodes   interfaces.EpisodeLookupRepository
	webSearch  interfaces.WebSearchClient
	cfg        Config
}

func New(vocab interfaces.TagVocabulary, experts ExpertFactory, merge MergeWorkers, recommender interfaces.RecommenderService, episodes interfaces.EpisodeLookupRepository, webSearch interfaces.WebSearchClient, cfg Config) *Leader {
	return &Leader{vocab: vocab, experts: experts, merge: merge, recommender: recommender, episodes: episodes, webSearch: webSearch, cfg: cfg}
}

// Handle runs the full seven-step Leader pipeline for one query and returns
// the final Response along with the Trace recorded for it.
func (l *Leader) Handle(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace) {
	state := types.NewPipelineState(q, traceID)
	state.ConfidenceThresholdRAG = l.cfg.ThresholdRAG
	state.ConfidenceThresholdFallback = l.cfg.ThresholdFallback
	state.WebFallbackEnabled = l.cfg.WebFallbackEnabled

	decision := l.classify(q)
	state.Decision = decision
	state.Trace.SetCategory(decision.Primary)
	state.State = types.StateClassified

	expertResults, err := l.dispatch(ctx, q, decision, state.Trace)
	if err != nil {
		return l.fallbackOrDefault(ctx, state, "expert dispatch failed")
	}
	for cat, res := range expertResults {
		state.ExpertResults[cat] = res
	}
	state.State = types.StateExpertsRan

	state.Merged = l.mergeCandidates(state.ExpertResults)
	state.State = types.StateMerged

	if err := l.merge.Augmenter.Run(ctx, state, l.cfg.StageBudget(types.EventAugment)); err != nil {
		return l.fallbackOrDefault(ctx, state, "augment failed")
	}
	if err := l.merge.Compressor.Run(ctx, state, l.cfg.StageBudget(types.EventCompress)); err != nil {
		return l.fallbackOrDefault(ctx, state, "compress failed")
	}
	if err := l.merge.Answerer.Run(ctx, state, l.cfg.StageBudget(types.EventAnswer)); err != nil {
		return l.fallbackOrDefault(ctx, state, "answer failed")
	}
	state.State = types.StateAnswered

	state.RecommendedEpisodeIDs = l.recommend(ctx, q, state.Merged)

	return l.gate(ctx, state)
}

// classify produces a CategoryDecision from the Tag Matcher's scores (§4.9
// step 1, §9 Open Question 1). Each matched tag votes for its own category
// with weight = match score; votes are summed and normalized so the
// strongest category's share becomes its confidence.
func (l *Leader) classify(q types.Query) types.CategoryDecision {
	matches := l.vocab.Match(q.Text)

	votes := map[types.Category]float64{}
	for _, m := range matches {
		votes[m.Tag.Category] += m.Score
	}
	if len(votes) == 0 {
		return types.CategoryDecision{Primary: types.CategoryOther}
	}

	type scored struct {
		cat   types.Category
		score float64
	}
	var ranked []scored
	var total float64
	for c, v := range votes {
		ranked = append(ranked, scored{c, v})
		total += v
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].cat < ranked[j].cat
	})

	primary := ranked[0]
	primaryConf := primary.score / total

	decision := types.CategoryDecision{Primary: primary.cat}
	for _, r := range ranked[1:] {
		conf := r.score / total
		if conf >= secondaryConfidenceGate && conf >= secondaryRatioGate*primaryConf {
			decision.Secondaries = append(decision.Secondaries, types.CategoryConfidence{Category: r.cat, Confidence: conf})
			decision.IsMulti = true
		}
	}
	return decision
}

// dispatch runs every selected Category Expert concurrently and collects
// their results keyed by category (§4.9 step 2, §5 "Experts run
// concurrently").
func (l *Leader) dispatch(ctx context.Context, q types.Query, decision types.CategoryDecision, trace *types.Trace) (map[types.Category]types.ExpertResult, error) {
	categories := decision.Categories()
	results := make([]types.ExpertResult, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range categories {
		i, cat := i, cat
		g.Go(func() error {
			expert := l.experts(cat)
			results[i] = expert.Run(gctx, q, trace)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[types.Category]types.ExpertResult, len(results))
	for _, r := range results {
		out[r.Category] = r
	}
	return out, nil
}

// mergeCandidates dedupes candidates by chunk_id, ranks by
// expert_confidence * hybrid_score, and keeps the top KMerge (§4.9 step 3).
func (l *Leader) mergeCandidates(results map[types.Category]types.ExpertResult) []types.Candidate {
	type scored struct {
		candidate types.Candidate
		rank      float64
	}

	seen := map[string]bool{}
	var all []scored
	// Iterate categories in a stable order (AllCategories) so identical
	// inputs produce identical merge output regardless of map iteration
	// order or goroutine completion order (§5 "deterministic order").
	for _, cat := range types.AllCategories() {
		res, ok := results[cat]
		if !ok {
			continue
		}
		for _, c := range res.Candidates {
			if seen[c.ChunkID] {
				continue
			}
			seen[c.ChunkID] = true
			all = append(all, scored{candidate: c, rank: res.ExpertConfidence * c.HybridScore})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].rank != all[j].rank {
			return all[i].rank > all[j].rank
		}
		return all[i].candidate.ChunkID < all[j].candidate.ChunkID
	})

	kMerge := l.cfg.KMerge
	if kMerge <= 0 {
		kMerge = 8
	}
	if len(all) > kMerge {
		all = all[:kMerge]
	}

	out := make([]types.Candidate, len(all))
	for i, s := range all {
		out[i] = s.candidate
	}
	return out
}

// recommend derives the final episode list (§4.9 step 6): up to 6
// episode_ids from merged candidates (deduped by episode, order preserved),
// optionally reordered by a 50/50 blend of retrieval rank and CF score when
// a user_id is present, bounded to between 1 and 3 entries whose final
// score clears 0.7.
func (l *Leader) recommend(ctx context.Context, q types.Query, merged []types.Candidate) []string {
	var episodeIDs []string
	seen := map[string]bool{}
	for _, c := range merged {
		if seen[c.EpisodeID] {
			continue
		}
		seen[c.EpisodeID] = true
		episodeIDs = append(episodeIDs, c.EpisodeID)
		if len(episodeIDs) >= 6 {
			break
		}
	}
	if len(episodeIDs) == 0 {
		return nil
	}

	retrievalRank := make(map[string]float64, len(episodeIDs))
	for i, id := range episodeIDs {
		retrievalRank[id] = 1 - float64(i)/float64(len(episodeIDs))
	}

	finalScore := retrievalRank
	if q.UserID != "" && l.recommender != nil {
		cf, err := l.recommender.Recommend(ctx, q.UserID, episodeIDs, len(episodeIDs))
		if err == nil {
			cfScore := make(map[string]float64, len(cf))
			for _, s := range cf {
				cfScore[s.EpisodeID] = s.Score
			}
			blended := make(map[string]float64, len(episodeIDs))
			for _, id := range episodeIDs {
				blended[id] = 0.5*retrievalRank[id] + 0.5*cfScore[id]
			}
			finalScore = blended
		}
	}

	sort.Slice(episodeIDs, func(i, j int) bool { return finalScore[episodeIDs[i]] > finalScore[episodeIDs[j]] })

	qualifying := 0
	for _, id := range episodeIDs {
		if finalScore[id] >= 0.7 {
			qualifying++
		}
	}
	if qualifying < 1 {
		qualifying = 1
	}
	if qualifying > 3 {
		qualifying = 3
	}
	if qualifying > len(episodeIDs) {
		qualifying = len(episodeIDs)
	}
	return episodeIDs[:qualifying]
}

// gate applies §4.9 step 7: the confidence gate deciding between RAG,
// Web-Search Fallback, and the default response.
func (l *Leader) gate(ctx context.Context, state *types.PipelineState) (types.Response, *types.Trace) {
	confidence := l.cfg.ConfidenceW1*state.BestHybridScore() + l.cfg.ConfidenceW2*state.Answer.Confidence

	if confidence >= l.cfg.ThresholdRAG {
		state.State = types.StateRAGOk
		return l.buildResponse(ctx, state, types.SourceRAG, confidence, state.Answer.AnswerText), state.Trace
	}

	if !l.cfg.WebFallbackEnabled || l.webSearch == nil {
		state.State = types.StateDefault
		return types.DefaultResponse(state.Trace.TraceID), state.Trace
	}

	outcome := l.webSearch.Search(ctx, state.Query.Text, 5, state.Query.Lang)
	if outcome.Confidence >= l.cfg.ThresholdFallback {
		state.State = types.StateFallbackOk
		return l.buildResponse(ctx, state, types.SourceWebFallback, outcome.Confidence, outcome.Summary), state.Trace
	}

	state.State = types.StateDefault
	return types.DefaultResponse(state.Trace.TraceID), state.Trace
}

// fallbackOrDefault handles any-stage-failure (§4.9: "Any stage failure
// transitions to FALLBACK (not DEFAULT) unless fallback is disabled").
func (l *Leader) fallbackOrDefault(ctx context.Context, state *types.PipelineState, reason string) (types.Response, *types.Trace) {
	logger.Warnf(ctx, "leader: %s, falling back", reason)
	state.Trace.Append(types.TraceEntry{Stage: "leader", FallbackReason: reason})

	if !l.cfg.WebFallbackEnabled || l.webSearch == nil {
		state.State = types.StateDefault
		return types.DefaultResponse(state.Trace.TraceID), state.Trace
	}

	outcome := l.webSearch.Search(ctx, state.Query.Text, 5, state.Query.Lang)
	if outcome.Confidence >= l.cfg.ThresholdFallback {
		state.State = types.StateFallbackOk
		return l.buildResponse(ctx, state, types.SourceWebFallback, outcome.Confidence, outcome.Summary), state.Trace
	}

	state.State = types.StateDefault
	return types.DefaultResponse(state.Trace.TraceID), state.Trace
}

func (l *Leader) buildResponse(ctx context.Context, state *types.PipelineState, source types.ResponseSource, confidence float64, answer string) types.Response {
	recs := l.resolveRecommendations(ctx, state.RecommendedEpisodeIDs, state.Merged)
	return types.Response{
		AnswerText:      answer,
		Recommendations: recs,
		Confidence:      confidence,
		Source:          source,
		TraceID:         state.Trace.TraceID,
	}
}

// resolveRecommendations fetches episode summary views for the final
// episode_ids and fills in podcast_name from whichever merged candidate
// belonged to that episode, since Episode itself only carries podcast_id.
func (l *Leader) resolveRecommendations(ctx context.Context, episodeIDs []string, merged []types.Candidate) []types.RecommendedEpisode {
	if len(episodeIDs) == 0 || l.episodes == nil {
		return []types.RecommendedEpisode{}
	}
	podcastNameByEpisode := map[string]string{}
	for _, c := range merged {
		if _, ok := podcastNameByEpisode[c.EpisodeID]; !ok {
			podcastNameByEpisode[c.EpisodeID] = c.PodcastName
		}
	}

	episodes, err := l.episodes.GetEpisodesByIDs(ctx, episodeIDs)
	if err != nil {
		logger.Warnf(ctx, "leader: episode lookup failed: %v", err)
		return []types.RecommendedEpisode{}
	}
	byID := make(map[string]types.Episode, len(episodes))
	for _, e := range episodes {
		byID[e.EpisodeID] = e
	}
	out := make([]types.RecommendedEpisode, 0, len(episodeIDs))
	for _, id := range episodeIDs {
		e, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, types.RecommendedEpisode{
			EpisodeID:    e.EpisodeID,
			PodcastName:  podcastNameByEpisode[e.EpisodeID],
			EpisodeTitle: e.Title,
			AudioURI:     e.AudioURI,
			ImageURI:     e.ImageURI,
		})
	}
	return out
}

