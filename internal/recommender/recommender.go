// Package recommender implements the Collaborative Recommender (C4):
// user-based kNN over cosine similarity of interaction vectors, with a
// popularity-based cold-start fallback. Shape (mutex-guarded model, atomic
// refresh, cold-start fallback) is grounded on the pack's matrix-
// factorization collaborative filter; the prediction algorithm itself is
// the user-based kNN variant this spec requires (§4.4, DESIGN.md Open
// Question 3).
package recommender

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// model is the precomputed state rebuilt wholesale on every Refresh and
// swapped in atomically so Recommend never observes a half-built model.
type model struct {
	ratings    map[string]map[string]float64 // user -> episode -> rating[0,5]
	userMean   map[string]float64
	popularity []types.EpisodePopularity // descending
	version    string
}

// Recommender is C4.
type Recommender struct {
	mu              sync.RWMutex
	cur             *model
	kCF             int
	minInteractions int
}

var _ interfaces.RecommenderService = (*Recommender)(nil)

// New constructs a Recommender with an empty model; call Refresh before
// serving traffic (an empty model degrades gracefully to "everyone is
// cold").
func New(kCF, minInteractions int) *Recommender {
	if kCF <= 0 {
		kCF = 10
	}
	if minInteractions <= 0 {
		minInteractions = 5
	}
	return &Recommender{
		cur:             &model{ratings: map[string]map[string]float64{}, userMean: map[string]float64{}},
		kCF:             kCF,
		minInteractions: minInteractions,
	}
}

// Refresh atomically replaces the internal matrix and its derived
// per-user means / popularity ranking (§4.4 "refresh(snapshot)").
func (r *Recommender) Refresh(ctx context.Context, snapshot *types.InteractionMatrix) error {
	if snapshot == nil {
		return apperrors.NewInvariantViolationError("recommender: nil snapshot")
	}

	m := &model{
		ratings:  snapshot.Ratings,
		userMean: map[string]float64{},
		version:  snapshot.Version,
	}
	if m.ratings == nil {
		m.ratings = map[string]map[string]float64{}
	}
	for u, row := range m.ratings {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if len(row) > 0 {
			m.userMean[u] = sum / float64(len(row))
		}
	}

	if len(snapshot.Popularity) > 0 {
		m.popularity = append([]types.EpisodePopularity(nil), snapshot.Popularity...)
	} else {
		m.popularity = derivePopularity(m.ratings)
	}
	sort.Slice(m.popularity, func(i, j int) bool { return m.popularity[i].Score > m.popularity[j].Score })

	r.mu.Lock()
	r.cur = m
	r.mu.Unlock()
	return nil
}

func derivePopularity(ratings map[string]map[string]float64) []types.EpisodePopularity {
	agg := map[string]float64{}
	counts := map[string]int{}
	for _, row := range ratings {
		for ep, v := range row {
			agg[ep] += v
			counts[ep]++
		}
	}
	out := make([]types.EpisodePopularity, 0, len(agg))
	for ep, sum := range agg {
		out = append(out, types.EpisodePopularity{EpisodeID: ep, Score: sum / float64(counts[ep])})
	}
	return out
}

// Recommend predicts scores for candidateEpisodeIDs and returns the top_k
// ranked by descending score (§4.4 "Public ops"). Unknown users are
// treated as cold; unknown episodes are silently filtered out — neither
// ever produces an error.
func (r *Recommender) Recommend(ctx context.Context, userID string, candidateEpisodeIDs []string, topK int) ([]types.RecommendationScore, error) {
	r.mu.RLock()
	m := r.cur
	r.mu.RUnlock()

	inModel := make(map[string]bool, len(m.popularity))
	for _, p := range m.popularity {
		inModel[p.EpisodeID] = true
	}
	candidates := make([]string, 0, len(candidateEpisodeIDs))
	for _, ep := range dedup(candidateEpisodeIDs) {
		if inModel[ep] {
			candidates = append(candidates, ep)
		}
	}

	row, known := m.ratings[userID]
	if !known || len(row) < r.minInteractions {
		return r.coldStart(m, candidates, topK), nil
	}

	neighbours := r.neighbours(m, userID)
	scores := make([]types.RecommendationScore, 0, len(candidates))
	for _, ep := range candidates {
		if existing, ok := row[ep]; ok {
			scores = append(scores, types.RecommendationScore{EpisodeID: ep, Score: rescale(existing)})
			continue
		}
		pred := predict(m, userID, ep, neighbours)
		scores = append(scores, types.RecommendationScore{EpisodeID: ep, Score: rescale(pred)})
	}
	sortScoresDesc(scores)
	return truncate(scores, topK), nil
}

type neighbour struct {
	userID     string
	similarity float64
}

// neighbours returns the kCF users most cosine-similar to userID's rating
// vector, restricted to users who co-rate at least one episode.
func (r *Recommender) neighbours(m *model, userID string) []neighbour {
	target := m.ratings[userID]
	var all []neighbour
	for other, row := range m.ratings {
		if other == userID {
			continue
		}
		sim := cosineSimilarity(target, row)
		if sim > 0 {
			all = append(all, neighbour{userID: other, similarity: sim})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].similarity > all[j].similarity })
	if len(all) > r.kCF {
		all = all[:r.kCF]
	}
	return all
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for ep, va := range a {
		na += va * va
		if vb, ok := b[ep]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// predict is the weighted-mean-minus-neighbour-mean estimator (§4.4 "Score
// prediction"), clamped to [0,5].
func predict(m *model, userID, episodeID string, neighbours []neighbour) float64 {
	userMean := m.userMean[userID]
	if len(neighbours) == 0 {
		return userMean
	}
	var weightedSum, weightTotal float64
	for _, nb := range neighbours {
		rating, ok := m.ratings[nb.userID][episodeID]
		if !ok {
			continue
		}
		weightedSum += nb.similarity * (rating - m.userMean[nb.userID])
		weightTotal += math.Abs(nb.similarity)
	}
	if weightTotal == 0 {
		return userMean
	}
	pred := userMean + weightedSum/weightTotal
	return clamp(pred, 0, 5)
}

// rescale linearly maps a [0,5] predicted rating to [0,1] (§4.4).
func rescale(rating float64) float64 { return clamp(rating, 0, 5) / 5 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// coldStart returns the global popularity ranking restricted to the
// candidate set (§4.4 "Cold-start policy").
func (r *Recommender) coldStart(m *model, candidates []string, topK int) []types.RecommendationScore {
	allowed := map[string]bool{}
	for _, c := range candidates {
		allowed[c] = true
	}
	var out []types.RecommendationScore
	for _, p := range m.popularity {
		if allowed[p.EpisodeID] {
			out = append(out, types.RecommendationScore{EpisodeID: p.EpisodeID, Score: rescale(p.Score)})
		}
	}
	// Any candidate with no popularity data gets a zero score at the tail,
	// ordered by episode id for determinism.
	seen := map[string]bool{}
	for _, o := range out {
		seen[o.EpisodeID] = true
	}
	var rest []string
	for _, c := range candidates {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, types.RecommendationScore{EpisodeID: c, Score: 0})
	}
	return truncate(out, topK)
}

func dedup(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sortScoresDesc(s []types.RecommendationScore) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].EpisodeID < s[j].EpisodeID
	})
}

func truncate(s []types.RecommendationScore, topK int) []types.RecommendationScore {
	if topK > 0 && len(s) > topK {
		return s[:topK]
	}
	return s
}
