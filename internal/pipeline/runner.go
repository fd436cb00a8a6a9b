// Package pipeline implements the Pipeline Runner (C10): the structured-
// concurrency scope that bounds one request's entire lifetime. It enforces
// the overall request budget T_req, cancels every in-flight worker the
// moment the caller disconnects or the budget expires, and otherwise
// delegates the seven-step orchestration to the Leader (§4.10).
package pipeline

import (
	"context"
	"time"

	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types"
)

// LeaderHandler is the seam internal/leader.Leader satisfies.
type LeaderHandler interface {
	Handle(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace)
}

// Runner owns the per-request goroutine scope. One Runner is shared across
// requests; each call to Run creates its own cancellable child scope so
// that one slow request's budget expiry never affects another.
type Runner struct {
	leader LeaderHandler
	tReq   time.Duration
}

func New(leader LeaderHandler, tReq time.Duration) *Runner {
	if tReq <= 0 {
		tReq = 30 * time.Second
	}
	return &Runner{leader: leader, tReq: tReq}
}

// Run executes one query end to end. If ctx is cancelled (client
// disconnect) or T_req expires first, the Leader's in-flight goroutines are
// cancelled via the derived context and the default response is returned
// with a fresh trace holding one "pipeline" entry that records the expired
// budget; the Leader's partial trace is not returned (§5 "A disconnected
// client triggers cancellation of all outstanding children").
func (r *Runner) Run(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace) {
	scopeCtx, cancel := context.WithTimeout(ctx, r.tReq)
	defer cancel()

	type result struct {
		resp  types.Response
		trace *types.Trace
	}
	done := make(chan result, 1)

	go func() {
		resp, trace := r.leader.Handle(scopeCtx, q, traceID)
		done <- result{resp, trace}
	}()

	select {
	case res := <-done:
		return res.resp, res.trace
	case <-scopeCtx.Done():
		logger.Warnf(ctx, "pipeline: request %s exceeded T_req=%s", traceID, r.tReq)
		trace := types.NewTrace(traceID, q.ID)
		trace.Append(types.TraceEntry{Stage: "pipeline", FallbackReason: "request budget exceeded"})
		return types.DefaultResponse(traceID), trace
	}
}
