package interfaces

import (
	"context"

	"github.com/podwise/hrap/internal/types"
)

// VectorFilter is a conjunction over category/tags/language/podcast_id
// (§4.3, §6). All non-empty fields are AND-ed together; Tags is OR-ed
// internally (an IN predicate) then AND-ed with the rest.
type VectorFilter struct {
	Category  types.Category
	Tags      []string
	Language  string
	PodcastID string
}

// VectorIndexClient performs ANN search over chunk embeddings. Identical
// queries (same vector, filter, k, nprobe) must return identical orderings.
type VectorIndexClient interface {
	Search(ctx context.Context, vector []float32, filter VectorFilter, k int, nprobe int) ([]types.Candidate, error)
}
