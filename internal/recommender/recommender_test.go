package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
)

func snapshot() *types.InteractionMatrix {
	return &types.InteractionMatrix{
		Version: "v1",
		Ratings: map[string]map[string]float64{
			"u1": {"E1": 5, "E2": 4},
			"u2": {"E1": 5, "E3": 3},
			"u3": {"E2": 1, "E3": 1},
		},
	}
}

func TestColdUserGetsPopularityRanking(t *testing.T) {
	r := New(10, 5)
	require.NoError(t, r.Refresh(context.Background(), snapshot()))

	scores, err := r.Recommend(context.Background(), "u_new", []string{"E1", "E2", "E3"}, 3)
	require.NoError(t, err)
	assert.Len(t, scores, 3)
	// E1 has the single highest average rating (5) among popular episodes.
	assert.Equal(t, "E1", scores[0].EpisodeID)
}

func TestKnownUserBelowMinInteractionsTreatedCold(t *testing.T) {
	r := New(10, 5)
	require.NoError(t, r.Refresh(context.Background(), snapshot()))

	scores, err := r.Recommend(context.Background(), "u1", []string{"E1", "E2", "E3"}, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, scores)
}

func TestUnknownEpisodeFilteredNotErrored(t *testing.T) {
	r := New(10, 1)
	require.NoError(t, r.Refresh(context.Background(), snapshot()))

	scores, err := r.Recommend(context.Background(), "u1", []string{"E1", "E2", "E999"}, 3)
	require.NoError(t, err)
	assert.Len(t, scores, 2) // E999 is not in the model and is dropped
}

func TestScoresAreWithinUnitRange(t *testing.T) {
	r := New(2, 1)
	require.NoError(t, r.Refresh(context.Background(), snapshot()))

	scores, err := r.Recommend(context.Background(), "u1", []string{"E1", "E2", "E3"}, 3)
	require.NoError(t, err)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
}
