package interfaces

import (
	"context"

	"github.com/podwise/hrap/internal/types"
)

// RecommenderService is the Collaborative Recommender's public contract
// (§4.4). A GNN-based implementation may satisfy this same interface
// without the Leader or Gateway needing to change.
type RecommenderService interface {
	Recommend(ctx context.Context, userID string, candidateEpisodeIDs []string, topK int) ([]types.RecommendationScore, error)
	Refresh(ctx context.Context, snapshot *types.InteractionMatrix) error
}
