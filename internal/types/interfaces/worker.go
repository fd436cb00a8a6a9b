package interfaces

import (
	"context"
	"time"

	"github.com/podwise/hrap/internal/types"
)

// ExpertWorker is the shared interface for W1/W2/W4, the strictly
// sequential chain run inside one Category Expert (§4.7, §4.8, §9 "small
// sealed set of agent variants"). Run MUST honour budget and mark its
// output timed_out rather than block past it.
type ExpertWorker interface {
	Name() types.EventType
	Threshold() float64
	Run(ctx context.Context, state *types.ExpertState, budget time.Duration) error
}

// MergeWorker is the shared interface for W3/W5/W6, run once by the Leader
// after expert results are merged (§4.9 steps 4-5).
type MergeWorker interface {
	Name() types.EventType
	Threshold() float64
	Run(ctx context.Context, state *types.PipelineState, budget time.Duration) error
}

// WebSearchStateService persists the temporary scratch state a fallback
// search session accumulates (seen URLs, spun-up temp knowledge ids) across
// repeated calls for the same session, mirroring a short-lived cache rather
// than durable storage.
type WebSearchStateService interface {
	GetWebSearchTempState(ctx context.Context, sessionID string) (seenURLs map[string]bool, ok bool)
	SaveWebSearchTempState(ctx context.Context, sessionID string, seenURLs map[string]bool)
	DeleteWebSearchTempState(ctx context.Context, sessionID string) error
}
