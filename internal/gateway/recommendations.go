package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/types"
)

const defaultRecommendationsTopK = 6

// recommendationItem is the GET /recommendations response shape, matching
// the episode fields the Leader already returns inside Response (§6).
type recommendationItem struct {
	EpisodeID    string  `json:"episode_id"`
	PodcastName  string  `json:"podcast_name"`
	EpisodeTitle string  `json:"episode_title"`
	AudioURI     string  `json:"audio_uri"`
	ImageURI     string  `json:"image_uri"`
	Score        float64 `json:"score"`
}

// RecommendationsResponse godoc
// @Summary      Direct collaborative-filtering recommendations
// @Description  Skips retrieval entirely; recommends straight from the Collaborative Recommender
// @Tags         recommendations
// @Produce      json
// @Param        user_id   query     string  false  "opaque user identifier"
// @Param        category  query     string  false  "category filter"
// @Param        top_k     query     int     false  "max results (default 6)"
// @Success      200       {object}  map[string][]recommendationItem
// @Router       /recommendations [get]
func (g *Gateway) handleRecommendations(c *gin.Context) {
	if g.recommender == nil {
		c.Error(apperrors.NewConfigError("recommendations endpoint not wired", nil))
		return
	}
	ctx := c.Request.Context()

	userID := c.Query("user_id")
	rawCategory := c.Query("category")
	var category types.Category
	var filterByCategory bool
	if rawCategory != "" {
		category = types.ParseCategory(rawCategory)
		filterByCategory = true
	}
	topK := defaultRecommendationsTopK
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Error(apperrors.NewInputError("top_k must be a positive integer"))
			return
		}
		topK = n
	}

	scores, err := g.recommender.Recommend(ctx, userID, nil, topK)
	if err != nil {
		c.Error(apperrors.NewBackendUnavailableError("recommender unavailable", err))
		return
	}

	ids := make([]string, 0, len(scores))
	scoreByEpisode := make(map[string]float64, len(scores))
	for _, s := range scores {
		ids = append(ids, s.EpisodeID)
		scoreByEpisode[s.EpisodeID] = s.Score
	}

	var episodes []types.Episode
	if g.episodes != nil && len(ids) > 0 {
		episodes, err = g.episodes.GetEpisodesByIDs(ctx, ids)
		if err != nil {
			c.Error(apperrors.NewBackendUnavailableError("episode lookup unavailable", err))
			return
		}
	}
	episodeByID := make(map[string]types.Episode, len(episodes))
	for _, e := range episodes {
		episodeByID[e.EpisodeID] = e
	}

	items := make([]recommendationItem, 0, len(ids))
	for _, id := range ids {
		e := episodeByID[id]
		if filterByCategory && e.Category != category {
			continue
		}
		items = append(items, recommendationItem{
			EpisodeID: id,
			// Episode carries only podcast_id; the podcast display name lives
			// on Candidate, which this CF-only path never produces.
			PodcastName:  "",
			EpisodeTitle: e.Title,
			AudioURI:     g.resolveObjectURI(ctx, e.AudioURI),
			ImageURI:     g.resolveImageURI(ctx, e.ImageURI),
			Score:        scoreByEpisode[id],
		})
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": items})
}
