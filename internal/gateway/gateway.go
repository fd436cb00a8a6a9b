// Package gateway implements the Request Gateway (C11): the HTTP boundary
// that validates incoming queries, assigns trace ids, hands requests to the
// Pipeline Runner, and shapes the Leader's Response into the §6 JSON body.
package gateway

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/config"
	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
	"github.com/podwise/hrap/internal/utils"
)

// PipelineRunner is the seam internal/pipeline.Runner satisfies.
type PipelineRunner interface {
	Run(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace)
}

// userIDPattern bounds the optional user_id field to a conservative opaque
// identifier shape; HRAP treats it as just a key into the interaction
// store, never as an authorization subject (§9 Non-goals).
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Gateway wires the Pipeline Runner, the Collaborative Recommender, and the
// health-checkable backends behind the three HTTP endpoints in §6.
type Gateway struct {
	runner      PipelineRunner
	recommender interfaces.RecommenderService
	episodes    interfaces.EpisodeLookupRepository
	objectURIs  interfaces.ObjectURIResolver
	health      *healthRegistry
	cfg         config.GatewayConfig
	jwtSecret   []byte
}

// New constructs a Gateway. recommender/episodes/objectURIs may be nil if
// the corresponding surface is not wired for this deployment: GET
// /recommendations requires recommender, episode enrichment requires
// episodes, and presigned media links require objectURIs.
func New(
	runner PipelineRunner,
	recommender interfaces.RecommenderService,
	episodes interfaces.EpisodeLookupRepository,
	objectURIs interfaces.ObjectURIResolver,
	cfg config.GatewayConfig,
	components map[string]Pinger,
) *Gateway {
	return &Gateway{
		runner:      runner,
		recommender: recommender,
		episodes:    episodes,
		objectURIs:  objectURIs,
		health:      newHealthRegistry(components),
		cfg:         cfg,
		jwtSecret:   []byte(cfg.JWTSecret),
	}
}

// RegisterRoutes mounts the Gateway's handlers and middleware onto r.
func (g *Gateway) RegisterRoutes(r *gin.Engine) {
	r.Use(apperrors.GinMiddleware())
	r.Use(g.rateLimitMiddleware())

	r.POST("/query", g.handleQuery)
	r.GET("/health", g.handleHealth)
	r.GET("/recommendations", g.handleRecommendations)
}

// queryRequest is the POST /query request body (§6).
type queryRequest struct {
	Text      string `json:"text" binding:"required"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Lang      string `json:"lang"`
}

// QueryResponse godoc
// @Summary      Answer a query
// @Description  Runs text through the HRAP retrieval-and-answer pipeline
// @Tags         query
// @Accept       json
// @Produce      json
// @Param        request  body      queryRequest   true  "query body"
// @Success      200      {object}  types.Response
// @Failure      400      {object}  map[string]string
// @Failure      408      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Failure      503      {object}  map[string]string
// @Router       /query [post]
func (g *Gateway) handleQuery(c *gin.Context) {
	ctx := c.Request.Context()

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInputError(err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.Error(apperrors.NewInputError("text must not be empty"))
		return
	}
	if len(req.Text) > g.cfg.LQMax {
		c.Error(apperrors.NewInputError("text exceeds maximum query length"))
		return
	}
	cleaned, ok := utils.ValidateInput(req.Text)
	if !ok {
		c.Error(apperrors.NewInputError("text contains control characters or disallowed markup"))
		return
	}
	req.Text = cleaned
	if req.UserID != "" && !userIDPattern.MatchString(req.UserID) {
		c.Error(apperrors.NewInputError("user_id has an invalid shape"))
		return
	}
	if req.UserID == "" {
		req.UserID = bearerUserID(c, g.jwtSecret)
	}

	traceID := uuid.NewString()
	q := types.Query{
		ID:         uuid.NewString(),
		Text:       req.Text,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Lang:       req.Lang,
		ReceivedAt: time.Now(),
	}

	logger.Infof(ctx, "gateway: dispatching query trace=%s", traceID)
	resp, trace := g.runner.Run(ctx, q, traceID)
	if err := errorFor(resp, trace); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// errorFor classifies a default-apology Response against its trace: a
// "pipeline" stage entry means T_req itself expired (§6 "408 only if nothing
// at all is available"), while a "leader" stage entry means a genuine stage
// failure left fallback unavailable or insufficient (§6 "LLM pool entirely
// unavailable + web fallback disabled -> 503"). No matching entry means the
// confidence gate simply didn't clear its threshold, which is still a 200.
func errorFor(resp types.Response, trace *types.Trace) error {
	if resp.Source != types.SourceDefault || trace == nil {
		return nil
	}
	for _, e := range trace.Entries() {
		if e.FallbackReason == "" {
			continue
		}
		switch e.Stage {
		case "pipeline":
			return apperrors.NewTimeoutError(e.FallbackReason)
		case "leader":
			return apperrors.NewBackendUnavailableError(e.FallbackReason, nil)
		}
	}
	return nil
}

// resolveObjectURI presigns a stored object key, falling back to the raw
// key on resolver error or when no resolver is wired: a broken media link
// is preferable to failing the whole recommendations response.
func (g *Gateway) resolveObjectURI(ctx context.Context, objectKey string) string {
	if g.objectURIs == nil || objectKey == "" {
		return objectKey
	}
	resolved, err := g.objectURIs.PresignedURL(ctx, objectKey)
	if err != nil || resolved == "" {
		return objectKey
	}
	return resolved
}

// resolveImageURI presigns objectKey like resolveObjectURI, then drops the
// result if it doesn't come back looking like an http(s) image URL: a
// blank cover image is preferable to forwarding a malformed or unsafe link
// to a client.
func (g *Gateway) resolveImageURI(ctx context.Context, objectKey string) string {
	resolved := g.resolveObjectURI(ctx, objectKey)
	if resolved == "" || !utils.IsValidImageURL(resolved) {
		return ""
	}
	return resolved
}

// bearerUserID recovers an opaque user_id claim from an "Authorization:
// Bearer <jwt>" header when the request body didn't supply one directly.
// Parse failures are silently ignored: an absent/invalid token just means
// an anonymous query, never a rejected one (user_id is opaque, not an
// authorization subject).
func bearerUserID(c *gin.Context, secret []byte) string {
	if len(secret) == 0 {
		return ""
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return ""
	}
	sub, _ := claims["user_id"].(string)
	return sub
}
