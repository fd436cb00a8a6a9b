package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// interactionRow is the gorm model backing the user_interactions table.
type interactionRow struct {
	UserID    string    `gorm:"column:user_id"`
	EpisodeID string    `gorm:"column:episode_id"`
	Action    string    `gorm:"column:action"`
	Timestamp time.Time `gorm:"column:timestamp"`
	Weight    float64   `gorm:"column:weight"`
}

func (interactionRow) TableName() string { return "user_interactions" }

func (r interactionRow) toInteraction() types.UserInteraction {
	return types.UserInteraction{
		UserID:    r.UserID,
		EpisodeID: r.EpisodeID,
		Action:    types.InteractionAction(r.Action),
		Timestamp: r.Timestamp,
		Weight:    r.Weight,
	}
}

// InteractionStore implements interfaces.UserInteractionStore, feeding the
// Collaborative Recommender's periodic refresh job (§4.4).
type InteractionStore struct {
	db *gorm.DB
}

func NewInteractionStore(db *gorm.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

var _ interfaces.UserInteractionStore = (*InteractionStore)(nil)

// ListInteractionsSince returns every interaction row recorded at or after
// since (a Unix timestamp in seconds; the refresh job passes 0 to read
// every row).
func (s *InteractionStore) ListInteractionsSince(ctx context.Context, since int64) ([]types.UserInteraction, error) {
	var rows []interactionRow
	cutoff := time.Unix(since, 0)
	if err := s.db.WithContext(ctx).Where("timestamp >= ?", cutoff).Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.UserInteraction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toInteraction())
	}
	return out, nil
}
