package workers

import (
	"context"
	"strings"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

const RewriterThreshold = 0.6

// Rewriter is W1: synonym expansion from the Tag Vocabulary plus an
// intent label from a small closed set (§4.7).
type Rewriter struct {
	vocab interfaces.TagVocabulary
}

var _ interfaces.ExpertWorker = (*Rewriter)(nil)

func NewRewriter(vocab interfaces.TagVocabulary) *Rewriter {
	return &Rewriter{vocab: vocab}
}

func (r *Rewriter) Name() types.EventType { return types.EventRewriteQuery }
func (r *Rewriter) Threshold() float64    { return RewriterThreshold }

var intentKeywords = map[string][]string{
	"recommend": {"recommend", "suggest", "推薦", "推荐"},
	"explain":   {"what is", "explain", "什麼", "什么", "怎麼", "怎么"},
	"compare":   {"vs", "versus", "compare", "比較", "比较"},
}

func (r *Rewriter) Run(ctx context.Context, state *types.ExpertState, budget time.Duration) error {
	start := time.Now()
	timedOut, err := withBudget(ctx, budget, func(callCtx context.Context) error {
		matches := r.vocab.Match(state.Query.Text)

		var expansions []string
		seen := map[string]bool{}
		for _, m := range matches {
			if !seen[m.Tag.Name] {
				seen[m.Tag.Name] = true
				expansions = append(expansions, m.Tag.Name)
			}
			for syn := range m.Tag.Synonyms {
				if !seen[syn] {
					seen[syn] = true
					expansions = append(expansions, syn)
				}
			}
		}

		domain := state.Category
		if domain == "" && len(matches) > 0 {
			domain = matches[0].Tag.Category
		}

		state.Rewrite = types.RewriteResult{
			RewrittenText:    buildRewrittenText(state.Query.Text, expansions),
			Expansions:       expansions,
			DetectedEntities: detectEntities(matches),
			InferredDomain:   domain,
			Intent:           classifyIntent(state.Query.Text),
		}
		state.Rewrite.Confidence = rewriteConfidence(matches)
		return nil
	})

	state.Rewrite.Elapsed = time.Since(start)
	state.Rewrite.TimedOut = timedOut
	state.Trace.Append(types.TraceEntry{
		Stage: string(r.Name()), StartedAt: start, Elapsed: time.Since(start),
		InputSize: 1, OutputSize: len(state.Rewrite.Expansions), TimedOut: timedOut,
	})
	if timedOut {
		workerWarn(ctx, r.Name(), "timed out after %s", budget)
		return nil
	}
	return err
}

func buildRewrittenText(text string, expansions []string) string {
	if len(expansions) == 0 {
		return text
	}
	return text + " " + strings.Join(expansions, " ")
}

func detectEntities(matches []interfaces.TagMatch) []string {
	var out []string
	for _, m := range matches {
		out = append(out, m.Tag.Name)
	}
	return out
}

func rewriteConfidence(matches []interfaces.TagMatch) float64 {
	if len(matches) == 0 {
		return 0.4
	}
	best := matches[0].Score
	return 0.5 + 0.5*best
}

// classifyIntent picks the first matching label from intentKeywords, falling
// back to "lookup" when the query carries none of the closed-set cues.
func classifyIntent(text string) string {
	lower := strings.ToLower(text)
	for _, label := range []string{"recommend", "explain", "compare"} {
		for _, kw := range intentKeywords[label] {
			if strings.Contains(lower, kw) {
				return label
			}
		}
	}
	return "lookup"
}
