package vectorindex

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// QdrantDriver implements VectorIndexClient against a Qdrant collection
// holding one point per Chunk, payload-indexed on category/language/
// podcast_id/tags (§4.3, grounded on the teacher's qdrant repository
// shape: one client, one collection name, payload carrying chunk/episode
// metadata alongside the vector).
type QdrantDriver struct {
	client     *qdrant.Client
	collection string
}

var _ interfaces.VectorIndexClient = (*QdrantDriver)(nil)
var _ interfaces.ChunkNeighborLookup = (*QdrantDriver)(nil)

// NewQdrantDriver dials addr (host:port) and targets collection.
func NewQdrantDriver(addr, collection string) (*QdrantDriver, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, apperrors.NewConfigError("vectorindex: invalid qdrant address", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, apperrors.NewConfigError("vectorindex: qdrant client init failed", err)
	}
	return &QdrantDriver{client: client, collection: collection}, nil
}

// Ping satisfies gateway.Pinger for the "vector_index" essential component.
func (d *QdrantDriver) Ping(ctx context.Context) error {
	_, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return apperrors.NewBackendUnavailableError("vectorindex: qdrant ping failed", err)
	}
	return nil
}

// Search performs ANN search over the collection filtered by category/tags/
// language/podcast_id, returning up to k candidates with semantic_score as
// cosine similarity in [0,1] (the collection is configured with Cosine
// distance, so Qdrant's native score is already in range).
func (d *QdrantDriver) Search(ctx context.Context, vector []float32, filter interfaces.VectorFilter, k int, nprobe int) ([]types.Candidate, error) {
	qf := buildQdrantFilter(filter)

	resp, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params: &qdrant.SearchParams{
			HnswEf: qdrant.PtrOf(uint64(nprobe)),
		},
	})
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("vectorindex: qdrant query failed", err)
	}

	out := make([]types.Candidate, 0, len(resp))
	for _, p := range resp {
		payload := p.GetPayload()
		out = append(out, types.Candidate{
			ChunkID:       stringField(payload, "chunk_id"),
			ChunkIndex:    int(intField(payload, "chunk_index")),
			EpisodeID:     stringField(payload, "episode_id"),
			PodcastID:     stringField(payload, "podcast_id"),
			PodcastName:   stringField(payload, "podcast_name"),
			Text:          stringField(payload, "text"),
			SemanticScore: clamp01(float64(p.GetScore())),
			Category:      types.Category(stringField(payload, "category")),
			Tags:          stringListField(payload, "tags"),
			SourceStage:   types.StageHybridSearch,
		})
	}
	return out, nil
}

func buildQdrantFilter(f interfaces.VectorFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.Category != "" {
		must = append(must, qdrant.NewMatch("category", string(f.Category)))
	}
	if f.Language != "" {
		must = append(must, qdrant.NewMatch("language", f.Language))
	}
	if f.PodcastID != "" {
		must = append(must, qdrant.NewMatch("podcast_id", f.PodcastID))
	}
	if len(f.Tags) > 0 {
		must = append(must, qdrant.NewMatchKeywords("tags", f.Tags...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func stringField(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func intField(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func stringListField(payload map[string]*qdrant.Value, key string) []string {
	v, ok := payload[key]
	if !ok || v.GetListValue() == nil {
		return nil
	}
	vals := v.GetListValue().GetValues()
	out := make([]string, 0, len(vals))
	for _, item := range vals {
		out = append(out, item.GetStringValue())
	}
	return out
}

// NeighboringChunks scrolls the collection for points in the same episode
// with chunk_index within window of chunkIndex, used by the Augmenter (W3).
// Qdrant has no native range-on-payload-plus-exact-match sort, so results
// are filtered by a payload range condition and sorted client-side.
func (d *QdrantDriver) NeighboringChunks(ctx context.Context, episodeID string, chunkIndex int, window int) ([]types.Chunk, error) {
	low := int64(chunkIndex - window)
	high := int64(chunkIndex + window)
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("episode_id", episodeID),
			qdrant.NewRange("chunk_index", &qdrant.Range{Gte: qdrant.PtrOf(float64(low)), Lte: qdrant.PtrOf(float64(high))}),
		},
	}
	resp, err := d.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: d.collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(2*window + 1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("vectorindex: qdrant scroll failed", err)
	}

	out := make([]types.Chunk, 0, len(resp))
	for _, p := range resp {
		payload := p.GetPayload()
		idx := int(intField(payload, "chunk_index"))
		if idx == chunkIndex {
			continue
		}
		out = append(out, types.Chunk{
			ChunkID:     stringField(payload, "chunk_id"),
			EpisodeID:   stringField(payload, "episode_id"),
			PodcastID:   stringField(payload, "podcast_id"),
			ChunkIndex:  idx,
			Text:        stringField(payload, "text"),
			PodcastName: stringField(payload, "podcast_name"),
			Category:    types.Category(stringField(payload, "category")),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return "", 0, fmt.Errorf("expected host:port, got %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("expected host:port, got %q", addr)
	}
	return host, port, nil
}
