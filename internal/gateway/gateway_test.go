package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/config"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	resp  types.Response
	trace *types.Trace
}

func (f *fakeRunner) Run(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace) {
	return f.resp, f.trace
}

type fakeRecommender struct {
	scores []types.RecommendationScore
	err    error
}

func (f *fakeRecommender) Recommend(ctx context.Context, userID string, ids []string, topK int) ([]types.RecommendationScore, error) {
	return f.scores, f.err
}
func (f *fakeRecommender) Refresh(ctx context.Context, snapshot *types.InteractionMatrix) error {
	return nil
}

type fakeEpisodes struct {
	episodes map[string]types.Episode
}

func (f *fakeEpisodes) GetEpisodesByIDs(ctx context.Context, ids []string) ([]types.Episode, error) {
	var out []types.Episode
	for _, id := range ids {
		if e, ok := f.episodes[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestGateway(runner PipelineRunner, rec *fakeRecommender, eps *fakeEpisodes) *Gateway {
	cfg := config.GatewayConfig{LQMax: 2000, QPSCeilingPerClient: 0}
	var r interfaces.RecommenderService
	if rec != nil {
		r = rec
	}
	var e interfaces.EpisodeLookupRepository
	if eps != nil {
		e = eps
	}
	return New(runner, r, e, nil, cfg, nil)
}

func setupRouter(g *Gateway) *gin.Engine {
	r := gin.New()
	g.RegisterRoutes(r)
	return r
}

func TestHandleQueryRejectsEmptyText(t *testing.T) {
	g := newTestGateway(&fakeRunner{}, nil, nil)
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": ""})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQueryRejectsOversizedText(t *testing.T) {
	g := newTestGateway(&fakeRunner{}, nil, nil)
	g.cfg.LQMax = 5
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": "way too long"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQueryReturnsLeaderResponse(t *testing.T) {
	resp := types.Response{Source: types.SourceRAG, AnswerText: "the answer", Confidence: 0.9}
	g := newTestGateway(&fakeRunner{resp: resp, trace: types.NewTrace("t1", "q1")}, nil, nil)
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": "what is compound interest"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out types.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "the answer", out.AnswerText)
}

func TestHandleQueryReturns503WhenStageFailedAndFallbackUnavailable(t *testing.T) {
	trace := types.NewTrace("t1", "q1")
	trace.Append(types.TraceEntry{Stage: "leader", FallbackReason: "answer failed"})
	resp := types.DefaultResponse("t1")
	g := newTestGateway(&fakeRunner{resp: resp, trace: trace}, nil, nil)
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": "anything"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleQueryRejectsMaliciousText(t *testing.T) {
	g := newTestGateway(&fakeRunner{}, nil, nil)
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": "<script>alert(1)</script>"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQueryReturns408WhenRequestBudgetExpires(t *testing.T) {
	trace := types.NewTrace("t1", "q1")
	trace.Append(types.TraceEntry{Stage: "pipeline", FallbackReason: "request budget exceeded"})
	resp := types.DefaultResponse("t1")
	g := newTestGateway(&fakeRunner{resp: resp, trace: trace}, nil, nil)
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": "anything"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
}

func TestHandleQueryReturns200ForLowConfidenceDefault(t *testing.T) {
	resp := types.DefaultResponse("t1")
	g := newTestGateway(&fakeRunner{resp: resp, trace: types.NewTrace("t1", "q1")}, nil, nil)
	r := setupRouter(g)

	body, _ := json.Marshal(map[string]string{"text": "anything"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleHealthReportsDegradedOnNonEssentialDown(t *testing.T) {
	g := New(&fakeRunner{}, nil, nil, nil, config.GatewayConfig{LQMax: 2000}, map[string]Pinger{
		"web_search": pingerFunc(func(ctx context.Context) error { return assert.AnError }),
		"llm":        pingerFunc(func(ctx context.Context) error { return nil }),
	})
	r := setupRouter(g)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestHandleHealthReturns503OnEssentialDown(t *testing.T) {
	g := New(&fakeRunner{}, nil, nil, nil, config.GatewayConfig{LQMax: 2000}, map[string]Pinger{
		"vector_index": pingerFunc(func(ctx context.Context) error { return assert.AnError }),
	})
	r := setupRouter(g)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleRecommendationsReturnsEpisodeDetails(t *testing.T) {
	rec := &fakeRecommender{scores: []types.RecommendationScore{{EpisodeID: "e1", Score: 0.8}}}
	eps := &fakeEpisodes{episodes: map[string]types.Episode{"e1": {EpisodeID: "e1", Title: "Ep 1"}}}
	g := newTestGateway(&fakeRunner{}, rec, eps)
	r := setupRouter(g)

	req := httptest.NewRequest(http.MethodGet, "/recommendations?user_id=u1&top_k=3", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string][]recommendationItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body["recommendations"], 1)
	assert.Equal(t, "Ep 1", body["recommendations"][0].EpisodeTitle)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
