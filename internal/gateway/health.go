package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by any backend client the Gateway should report on in
// GET /health. It is defined here, not on the backend ports themselves,
// because liveness-probing is a Gateway concern, not a retrieval one.
type Pinger interface {
	Ping(ctx context.Context) error
}

// essentialComponents names the backends whose absence degrades the whole
// service rather than just one feature (§6 "degraded when any non-essential
// backend is down but LLM+Vector Index are up").
var essentialComponents = map[string]bool{
	"llm":          true,
	"vector_index": true,
}

type healthRegistry struct {
	components map[string]Pinger
}

func newHealthRegistry(components map[string]Pinger) *healthRegistry {
	if components == nil {
		components = map[string]Pinger{}
	}
	return &healthRegistry{components: components}
}

// check pings every registered component and reports overall status. The
// closed status set is {healthy, degraded} per §6; an essential backend
// being down still reports "degraded" in the body but surfaces as a 503 so
// orchestrator liveness probes still fail over correctly.
func (h *healthRegistry) check(ctx context.Context) (status string, essentialDown bool, components map[string]string) {
	components = make(map[string]string, len(h.components))
	status = "healthy"

	for name, pinger := range h.components {
		if err := pinger.Ping(ctx); err != nil {
			components[name] = "down"
			status = "degraded"
			if essentialComponents[name] {
				essentialDown = true
			}
			continue
		}
		components[name] = "up"
	}
	return status, essentialDown, components
}

// HealthResponse godoc
// @Summary      Report process and backend health
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (g *Gateway) handleHealth(c *gin.Context) {
	status, essentialDown, components := g.health.check(c.Request.Context())
	code := http.StatusOK
	if essentialDown {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}
