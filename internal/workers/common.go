// Package workers implements the six stateless single-task Worker Agents
// (C7): query rewriter, hybrid searcher, augmenter, reranker, compressor,
// answerer. Each honours a caller-supplied budget and marks its output
// timed_out rather than block past it (§4.7). Grounded on the teacher's
// chat_pipline plugin shape, generalized from an event-bus chain-of-
// responsibility into a small sealed set of Worker variants (§9).
package workers

import (
	"context"
	"time"

	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types"
)

func workerInfo(ctx context.Context, name types.EventType, format string, args ...interface{}) {
	logger.Infof(ctx, "[Worker:"+string(name)+"] "+format, args...)
}

func workerWarn(ctx context.Context, name types.EventType, format string, args ...interface{}) {
	logger.Warnf(ctx, "[Worker:"+string(name)+"] "+format, args...)
}

// withBudget runs fn with a derived context bounded by budget, returning
// whether the budget was exceeded before fn finished.
func withBudget(ctx context.Context, budget time.Duration, fn func(context.Context) error) (timedOut bool, err error) {
	callCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err = <-done:
		return false, err
	case <-callCtx.Done():
		return true, callCtx.Err()
	}
}
