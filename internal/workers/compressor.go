package workers

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

const CompressorThreshold = 0.85

var sentenceSplit = regexp.MustCompile(`(?:[.!?]|[。！？])\s*`)

// Compressor is W5: an extractive summarizer. Each candidate's text is
// split into sentences; sentences whose embedding similarity to the query
// falls below theta are dropped, and the survivors are concatenated up to
// lCtx tokens (approximated as whitespace-separated words, §4.7).
type Compressor struct {
	embedder interfaces.EmbeddingClient
	theta    float64
	lCtx     int
}

var _ interfaces.MergeWorker = (*Compressor)(nil)

func NewCompressor(embedder interfaces.EmbeddingClient, theta float64, lCtx int) *Compressor {
	if lCtx <= 0 {
		lCtx = 2048
	}
	return &Compressor{embedder: embedder, theta: theta, lCtx: lCtx}
}

func (c *Compressor) Name() types.EventType { return types.EventCompress }
func (c *Compressor) Threshold() float64    { return CompressorThreshold }

func (c *Compressor) Run(ctx context.Context, state *types.PipelineState, budget time.Duration) error {
	start := time.Now()
	var context_ string

	source := state.Augmented.Candidates
	if len(source) == 0 {
		source = state.Merged
	}

	timedOut, err := withBudget(ctx, budget, func(callCtx context.Context) error {
		queryVec, err := c.embedder.Embed(callCtx, state.Query.Text)
		if err != nil {
			return err
		}

		var kept []string
		tokenBudget := c.lCtx
		for _, cand := range source {
			if tokenBudget <= 0 {
				break
			}
			sentences := splitSentences(cand.Text)
			if len(sentences) == 0 {
				continue
			}
			vecs, err := c.embedder.EmbedBatch(callCtx, sentences)
			if err != nil {
				return err
			}
			for i, s := range sentences {
				if tokenBudget <= 0 {
					break
				}
				if cosine(queryVec, vecs[i]) < c.theta {
					continue
				}
				n := countWords(s)
				if n > tokenBudget {
					continue
				}
				kept = append(kept, s)
				tokenBudget -= n
			}
		}
		context_ = strings.Join(kept, " ")
		return nil
	})

	state.Compressed = types.CompressResult{Context: context_}
	state.Compressed.Elapsed = time.Since(start)
	state.Compressed.TimedOut = timedOut
	state.Compressed.Confidence = compressConfidence(context_, source)
	state.Trace.Append(types.TraceEntry{
		Stage: string(c.Name()), StartedAt: start, Elapsed: time.Since(start),
		InputSize: len(source), OutputSize: len(context_), TimedOut: timedOut,
	})
	if timedOut {
		// No compressed context beats a stale partial one; the Answerer
		// falls back to the raw top candidate text when context is empty.
		workerWarn(ctx, c.Name(), "timed out after %s", budget)
		return nil
	}
	return err
}

func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func compressConfidence(context_ string, candidates []types.Candidate) float64 {
	if context_ == "" {
		return 0
	}
	return bestScore(candidates)
}
