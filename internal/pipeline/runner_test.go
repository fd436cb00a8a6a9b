package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/podwise/hrap/internal/types"
)

type fakeLeader struct {
	delay time.Duration
	resp  types.Response
}

func (f *fakeLeader) Handle(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
	}
	return f.resp, types.NewTrace(traceID, q.ID)
}

func TestRunReturnsLeaderResponseWithinBudget(t *testing.T) {
	leader := &fakeLeader{resp: types.Response{Source: types.SourceRAG, AnswerText: "ok"}}
	r := New(leader, time.Second)

	resp, trace := r.Run(context.Background(), types.Query{ID: "q1"}, "t1")
	assert.Equal(t, types.SourceRAG, resp.Source)
	assert.NotNil(t, trace)
}

func TestRunReturnsDefaultWhenBudgetExceeded(t *testing.T) {
	leader := &fakeLeader{delay: 50 * time.Millisecond, resp: types.Response{Source: types.SourceRAG}}
	r := New(leader, 5*time.Millisecond)

	resp, trace := r.Run(context.Background(), types.Query{ID: "q1"}, "t1")
	assert.Equal(t, types.SourceDefault, resp.Source)
	entries := trace.Entries()
	assert.Equal(t, "pipeline", entries[0].Stage)
}
