// Package postgres adapts gorm-backed repositories to HRAP's storage ports
// (§6 "Episode lookup", "User interaction store"), grounded on the
// teacher's gorm repository shape (application/repository/custom_agent.go).
package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// episodeRow is the gorm model backing the episodes table. Column names
// follow the Episode JSON tags so the same table can be populated by
// whatever out-of-scope ingestion pipeline produces episode metadata.
type episodeRow struct {
	EpisodeID   string `gorm:"column:episode_id;primaryKey"`
	PodcastID   string `gorm:"column:podcast_id"`
	Title       string `gorm:"column:title"`
	Description string `gorm:"column:description"`
	AudioURI    string `gorm:"column:audio_uri"`
	ImageURI    string `gorm:"column:image_uri"`
	RSSID       string `gorm:"column:rss_id"`
	Category    string `gorm:"column:category"`
}

func (episodeRow) TableName() string { return "episodes" }

func (r episodeRow) toEpisode() types.Episode {
	return types.Episode{
		EpisodeID:   r.EpisodeID,
		PodcastID:   r.PodcastID,
		Title:       r.Title,
		Description: r.Description,
		AudioURI:    r.AudioURI,
		ImageURI:    r.ImageURI,
		RSSID:       r.RSSID,
		Category:    types.ParseCategory(r.Category),
	}
}

// EpisodeRepository implements interfaces.EpisodeLookupRepository.
type EpisodeRepository struct {
	db *gorm.DB
}

func NewEpisodeRepository(db *gorm.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

var _ interfaces.EpisodeLookupRepository = (*EpisodeRepository)(nil)

// GetEpisodesByIDs fetches the summary view for ids, silently dropping
// unknown ids rather than erroring (§4.9 recommend step never assumes every
// candidate episode still exists in the catalog).
func (r *EpisodeRepository) GetEpisodesByIDs(ctx context.Context, ids []string) ([]types.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []episodeRow
	if err := r.db.WithContext(ctx).Where("episode_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Episode, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEpisode())
	}
	return out, nil
}
