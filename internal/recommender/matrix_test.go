package recommender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
)

func TestBuildInteractionMatrixAggregatesAndDecays(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	rows := []types.UserInteraction{
		{UserID: "u1", EpisodeID: "e1", Action: types.ActionLike, Timestamp: now, Weight: 1},
		{UserID: "u1", EpisodeID: "e1", Action: types.ActionLike, Timestamp: now.AddDate(0, 0, -30), Weight: 1},
		{UserID: "u2", EpisodeID: "e1", Action: types.ActionSkip, Timestamp: now, Weight: 1},
	}

	m := BuildInteractionMatrix(rows, 30, now, "v1")
	require.NotNil(t, m)
	assert.Equal(t, "v1", m.Version)
	assert.Equal(t, now, m.BuiltAt)

	u1e1 := m.Ratings["u1"]["e1"]
	assert.InDelta(t, 3.75, u1e1, 0.01) // (5*1 + 5*0.5) / 2
	assert.InDelta(t, 1.0, m.Ratings["u2"]["e1"], 0.01)

	require.Len(t, m.Popularity, 1)
	assert.Equal(t, "e1", m.Popularity[0].EpisodeID)
}

func TestBuildInteractionMatrixHandlesEmptyInput(t *testing.T) {
	m := BuildInteractionMatrix(nil, 30, time.Now(), "v0")
	assert.Empty(t, m.Ratings)
	assert.Empty(t, m.Popularity)
}

func TestEncodeDecodeMatrixRoundTrips(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	m := BuildInteractionMatrix([]types.UserInteraction{
		{UserID: "u1", EpisodeID: "e1", Action: types.ActionLike, Timestamp: now, Weight: 1},
	}, 30, now, "v1")

	data, err := EncodeMatrix(m)
	require.NoError(t, err)

	got, err := DecodeMatrix(data)
	require.NoError(t, err)
	assert.Equal(t, m.Version, got.Version)
	assert.True(t, m.BuiltAt.Equal(got.BuiltAt))
	assert.Equal(t, m.Ratings, got.Ratings)
	assert.Equal(t, m.Popularity, got.Popularity)
}

func TestActionWeightOrdering(t *testing.T) {
	assert.Greater(t, actionWeight(types.ActionLike), actionWeight(types.ActionPlay))
	assert.Greater(t, actionWeight(types.ActionPlay), actionWeight(types.ActionSkip))
	assert.Equal(t, 0.0, actionWeight(types.ActionUnlike))
}
