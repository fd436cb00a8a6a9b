package websearch

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// tempState is the scratch payload persisted under tempStateKey, tracking
// URLs already surfaced to a session so a repeated fallback call in the
// same conversation doesn't re-emit duplicates.
type tempState struct {
	SeenURLs map[string]bool `json:"seen_urls"`
}

// StateService implements interfaces.WebSearchStateService on top of Redis,
// grounded on the teacher's web_search_state.go (same marshal/unmarshal-to-
// a-Redis-key shape, narrowed to the one field HRAP's fallback path needs).
type StateService struct {
	redis *redis.Client
}

var _ interfaces.WebSearchStateService = (*StateService)(nil)

func NewStateService(redisClient *redis.Client) *StateService {
	return &StateService{redis: redisClient}
}

func (s *StateService) GetWebSearchTempState(ctx context.Context, sessionID string) (map[string]bool, bool) {
	data, err := s.redis.Get(ctx, tempStateKey(sessionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var st tempState
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warnf(ctx, "websearch: failed to unmarshal temp state for session %s: %v", sessionID, err)
		return nil, false
	}
	return st.SeenURLs, true
}

func (s *StateService) SaveWebSearchTempState(ctx context.Context, sessionID string, seenURLs map[string]bool) {
	data, err := json.Marshal(tempState{SeenURLs: seenURLs})
	if err != nil {
		logger.Warnf(ctx, "websearch: failed to marshal temp state for session %s: %v", sessionID, err)
		return
	}
	if err := s.redis.Set(ctx, tempStateKey(sessionID), data, 0).Err(); err != nil {
		logger.Warnf(ctx, "websearch: failed to save temp state for session %s: %v", sessionID, err)
	}
}

func (s *StateService) DeleteWebSearchTempState(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, tempStateKey(sessionID)).Err()
}
