package interfaces

import (
	"context"

	"github.com/podwise/hrap/internal/types"
)

// EpisodeLookupRepository resolves episode ids to their summary view for
// response shaping (§6 "Episode lookup").
type EpisodeLookupRepository interface {
	GetEpisodesByIDs(ctx context.Context, ids []string) ([]types.Episode, error)
}

// UserInteractionStore supplies the batch dump of interaction rows the
// Recommender's refresh job consumes (§6 "User interaction store").
type UserInteractionStore interface {
	ListInteractionsSince(ctx context.Context, since int64) ([]types.UserInteraction, error)
}

// ObjectURIResolver turns a stored object key (episodes keep bare keys in
// audio_uri/image_uri, not public URLs) into a fetchable URL at response
// time, e.g. a short-lived presigned URL.
type ObjectURIResolver interface {
	PresignedURL(ctx context.Context, objectKey string) (string, error)
}

// ChunkNeighborLookup fetches chunks adjacent to a given chunk within the
// same episode, used by the Augmenter (W3) to pull extra context (§4.7).
// Implemented by the Vector Index Client's underlying store, since that is
// where chunk_index ordering lives.
type ChunkNeighborLookup interface {
	NeighboringChunks(ctx context.Context, episodeID string, chunkIndex int, window int) ([]types.Chunk, error)
}
