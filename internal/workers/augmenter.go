package workers

import (
	"context"
	"strings"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

const AugmenterThreshold = 0.5

// augmentWindow is how many chunks on either side of a candidate's
// chunk_index the Augmenter pulls in (§4.7: "same episode, adjacent
// indices").
const augmentWindow = 1

// maxAugmentChars caps how much neighbouring text gets appended per
// candidate so one chatty episode cannot blow the compressor's input size.
const maxAugmentChars = 1200

// Augmenter is W3: pulls neighbouring same-episode chunks into each merged
// candidate's context before compression (§4.7, §4.9 step 4). It runs once,
// after merge, across every surviving candidate, so it is a MergeWorker
// rather than an ExpertWorker.
type Augmenter struct {
	lookup interfaces.ChunkNeighborLookup
}

var _ interfaces.MergeWorker = (*Augmenter)(nil)

func NewAugmenter(lookup interfaces.ChunkNeighborLookup) *Augmenter {
	return &Augmenter{lookup: lookup}
}

func (a *Augmenter) Name() types.EventType { return types.EventAugment }
func (a *Augmenter) Threshold() float64    { return AugmenterThreshold }

func (a *Augmenter) Run(ctx context.Context, state *types.PipelineState, budget time.Duration) error {
	start := time.Now()
	var augmented []types.Candidate

	timedOut, err := withBudget(ctx, budget, func(callCtx context.Context) error {
		augmented = make([]types.Candidate, len(state.Merged))
		copy(augmented, state.Merged)

		for i := range augmented {
			c := &augmented[i]
			neighbours, err := a.lookup.NeighboringChunks(callCtx, c.EpisodeID, c.ChunkIndex, augmentWindow)
			if err != nil {
				// A single candidate's neighbour lookup failing is not fatal;
				// it just keeps that candidate's original text (§8: partial
				// worker failure does not abort the pipeline).
				workerWarn(ctx, a.Name(), "neighbour lookup failed for chunk %s: %v", c.ChunkID, err)
				continue
			}
			c.Text = appendNeighbours(c.Text, neighbours)
			c.SourceStage = types.StageAugment
		}
		return nil
	})

	state.Augmented = types.AugmentResult{Candidates: augmented}
	state.Augmented.Elapsed = time.Since(start)
	state.Augmented.TimedOut = timedOut
	state.Augmented.Confidence = state.BestHybridScore()
	state.Trace.Append(types.TraceEntry{
		Stage: string(a.Name()), StartedAt: start, Elapsed: time.Since(start),
		InputSize: len(state.Merged), OutputSize: len(augmented), TimedOut: timedOut,
	})
	if timedOut {
		// Fall back to the un-augmented merged candidates, same posture as
		// W4's timeout handling: degrade the stage, not the response.
		state.Augmented.Candidates = state.Merged
		workerWarn(ctx, a.Name(), "timed out after %s, using un-augmented candidates", budget)
		return nil
	}
	return err
}

func appendNeighbours(text string, neighbours []types.Chunk) string {
	if len(neighbours) == 0 {
		return text
	}
	limit := len(text) + maxAugmentChars
	var b strings.Builder
	b.WriteString(text)
	for _, n := range neighbours {
		if b.Len() >= limit {
			break
		}
		b.WriteString(" ")
		b.WriteString(n.Text)
	}
	out := b.String()
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
