package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podwise/hrap/internal/types"
)

// MatrixCacheKey is the shared Redis key the refresh worker writes its
// freshly built model to and every query-serving replica reads from: the
// Recommender's model lives in process memory (§3 "one version-tagged
// snapshot swapped in atomically"), but the scheduler that rebuilds it runs
// as a separate process, so the built snapshot has to cross a process
// boundary the same way the Web-Search Fallback's cache already does.
const MatrixCacheKey = "hrap:recommender:matrix"

// wireMatrix mirrors types.InteractionMatrix but with exported json tags
// on Ratings/Popularity: those fields are deliberately hidden from any
// HTTP response (the API never exposes the raw rating matrix), but the
// refresh worker and the query-serving process still need to exchange a
// freshly built matrix across process boundaries via a shared cache.
type wireMatrix struct {
	Version    string                        `json:"version"`
	BuiltAt    time.Time                     `json:"built_at"`
	Ratings    map[string]map[string]float64 `json:"ratings"`
	Popularity []types.EpisodePopularity     `json:"popularity"`
}

// EncodeMatrix serializes m for storage in the cross-process matrix cache.
func EncodeMatrix(m *types.InteractionMatrix) ([]byte, error) {
	return json.Marshal(wireMatrix{
		Version:    m.Version,
		BuiltAt:    m.BuiltAt,
		Ratings:    m.Ratings,
		Popularity: m.Popularity,
	})
}

// DecodeMatrix deserializes a matrix previously written by EncodeMatrix.
func DecodeMatrix(data []byte) (*types.InteractionMatrix, error) {
	var w wireMatrix
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &types.InteractionMatrix{
		Version:    w.Version,
		BuiltAt:    w.BuiltAt,
		Ratings:    w.Ratings,
		Popularity: w.Popularity,
	}, nil
}

// StoreMatrix publishes m to the shared cache. No TTL: the cache holds the
// single current model, not a request-scoped value, so it should persist
// until the next refresh overwrites it.
func StoreMatrix(ctx context.Context, client *redis.Client, m *types.InteractionMatrix) error {
	data, err := EncodeMatrix(m)
	if err != nil {
		return fmt.Errorf("recommender: encode matrix: %w", err)
	}
	return client.Set(ctx, MatrixCacheKey, data, 0).Err()
}

// LoadMatrix fetches the current published model, or (nil, nil) if the
// refresh worker hasn't published one yet.
func LoadMatrix(ctx context.Context, client *redis.Client) (*types.InteractionMatrix, error) {
	data, err := client.Get(ctx, MatrixCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("recommender: load matrix: %w", err)
	}
	return DecodeMatrix(data)
}

// actionWeight maps a raw interaction event to a base [0,5] rating before
// time decay, loosely mirroring implicit-feedback weighting schemes: a
// like counts as a strong positive signal, a play as a weaker one, a skip
// as mildly negative, and an unlike as a zero rating that is averaged in
// with the pair's other events (it lowers a prior like, it does not erase it).
func actionWeight(a types.InteractionAction) float64 {
	switch a {
	case types.ActionLike:
		return 5
	case types.ActionPlay:
		return 3
	case types.ActionSkip:
		return 1
	case types.ActionUnlike:
		return 0
	default:
		return 0
	}
}

// BuildInteractionMatrix aggregates raw interaction rows into the ratings
// snapshot Refresh expects, applying exponential recency decay with the
// given half-life (§4.4 "cf_halflife_days"): an interaction halfLifeDays
// old contributes half the weight of one recorded now. When multiple
// interactions exist for the same (user, episode) pair, their decayed
// weights are averaged by UserInteraction.Weight (the store's own
// confidence weighting), not summed, so a user who plays an episode twice
// doesn't out-rank one who liked it once.
func BuildInteractionMatrix(rows []types.UserInteraction, halfLifeDays float64, now time.Time, version string) *types.InteractionMatrix {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	lambda := math.Ln2 / halfLifeDays

	sums := map[string]map[string]float64{}
	weights := map[string]map[string]float64{}

	for _, r := range rows {
		ageDays := now.Sub(r.Timestamp).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Exp(-lambda * ageDays)
		w := r.Weight
		if w <= 0 {
			w = 1
		}
		rating := actionWeight(r.Action) * decay

		if sums[r.UserID] == nil {
			sums[r.UserID] = map[string]float64{}
			weights[r.UserID] = map[string]float64{}
		}
		sums[r.UserID][r.EpisodeID] += rating * w
		weights[r.UserID][r.EpisodeID] += w
	}

	ratings := make(map[string]map[string]float64, len(sums))
	for u, row := range sums {
		ratings[u] = make(map[string]float64, len(row))
		for ep, sum := range row {
			if wt := weights[u][ep]; wt > 0 {
				ratings[u][ep] = clampRating(sum / wt)
			}
		}
	}

	return &types.InteractionMatrix{
		Version:    version,
		BuiltAt:    now,
		Ratings:    ratings,
		Popularity: derivePopularity(ratings),
	}
}

func clampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}
