package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// PgVectorDriver implements VectorIndexClient against a Postgres table with
// a pgvector column, for deployments that prefer one datastore over a
// separate Qdrant service.
type PgVectorDriver struct {
	db    *gorm.DB
	table string
}

var _ interfaces.VectorIndexClient = (*PgVectorDriver)(nil)
var _ interfaces.ChunkNeighborLookup = (*PgVectorDriver)(nil)

// NewPgVectorDriver wraps an existing gorm connection. table must have
// columns: chunk_id, episode_id, podcast_id, podcast_name, text, category,
// language, tags (text[]), embedding (vector).
func NewPgVectorDriver(db *gorm.DB, table string) *PgVectorDriver {
	return &PgVectorDriver{db: db, table: table}
}

// Ping satisfies gateway.Pinger for the "vector_index" essential component.
func (d *PgVectorDriver) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return apperrors.NewBackendUnavailableError("vectorindex: pgvector connection unavailable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.NewBackendUnavailableError("vectorindex: pgvector ping failed", err)
	}
	return nil
}

// Search runs a cosine-distance nearest-neighbour query. nprobe is passed
// through as the transaction-local ivfflat.probes setting so repeated identical
// queries are nprobe-stable (§4.3 "Guarantees").
func (d *PgVectorDriver) Search(ctx context.Context, vector []float32, filter interfaces.VectorFilter, k int, nprobe int) ([]types.Candidate, error) {
	where, args, err := buildWhereClause(filter)
	if err != nil {
		return nil, apperrors.NewInvariantViolationError(err.Error())
	}

	query := fmt.Sprintf(
		`SELECT chunk_id, chunk_index, episode_id, podcast_id, podcast_name, text, category,
		        array_to_string(tags, ',') AS tags_csv,
		        1 - (embedding <=> ?) AS semantic_score
		 FROM %s
		 WHERE %s
		 ORDER BY embedding <=> ?
		 LIMIT ?`, d.table, where)

	qvec := pgvector.NewVector(vector)
	allArgs := append([]interface{}{qvec}, args...)
	allArgs = append(allArgs, qvec, k)

	var rows []struct {
		ChunkID       string
		ChunkIndex    int
		EpisodeID     string
		PodcastID     string
		PodcastName   string
		Text          string
		Category      string
		TagsCSV       string
		SemanticScore float64
	}
	// SET LOCAL only lasts for the enclosing transaction, so the setting and
	// the query share one.
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL ivfflat.probes = %d", nprobe)).Error; err != nil {
			return apperrors.NewBackendUnavailableError("vectorindex: failed to set ivfflat.probes", err)
		}
		if err := tx.Raw(query, allArgs...).Scan(&rows).Error; err != nil {
			return apperrors.NewBackendUnavailableError("vectorindex: pgvector query failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Candidate{
			ChunkID:       r.ChunkID,
			ChunkIndex:    r.ChunkIndex,
			EpisodeID:     r.EpisodeID,
			PodcastID:     r.PodcastID,
			PodcastName:   r.PodcastName,
			Text:          r.Text,
			Category:      types.Category(r.Category),
			Tags:          splitCSV(r.TagsCSV),
			SemanticScore: clamp01(r.SemanticScore),
			SourceStage:   types.StageHybridSearch,
		})
	}
	return out, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// NeighboringChunks fetches chunks from the same episode within chunk_index
// window of chunkIndex, used by the Augmenter (W3).
func (d *PgVectorDriver) NeighboringChunks(ctx context.Context, episodeID string, chunkIndex int, window int) ([]types.Chunk, error) {
	var rows []struct {
		ChunkID     string
		EpisodeID   string
		PodcastID   string
		ChunkIndex  int
		Text        string
		Language    string
		PodcastName string
		Category    string
	}
	query := fmt.Sprintf(
		`SELECT chunk_id, episode_id, podcast_id, chunk_index, text, language, podcast_name, category
		 FROM %s
		 WHERE episode_id = ? AND chunk_index BETWEEN ? AND ? AND chunk_index != ?
		 ORDER BY chunk_index`, d.table)
	if err := d.db.WithContext(ctx).Raw(query, episodeID, chunkIndex-window, chunkIndex+window, chunkIndex).Scan(&rows).Error; err != nil {
		return nil, apperrors.NewBackendUnavailableError("vectorindex: neighboring chunk lookup failed", err)
	}
	out := make([]types.Chunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Chunk{
			ChunkID: r.ChunkID, EpisodeID: r.EpisodeID, PodcastID: r.PodcastID,
			ChunkIndex: r.ChunkIndex, Text: r.Text, Language: r.Language,
			PodcastName: r.PodcastName, Category: types.Category(r.Category),
		})
	}
	return out, nil
}
