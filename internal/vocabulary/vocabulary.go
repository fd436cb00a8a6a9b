// Package vocabulary implements the Tag Vocabulary & Matcher (C1): a closed
// set of category->tag->synonym mappings, loaded once at boot and served
// read-mostly via atomic pointer swap so no reader ever takes a lock (§5).
package vocabulary

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/yanyiwu/gojieba"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// Row is one line of the static vocabulary source.
type Row struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Synonyms []string `yaml:"synonyms"`
	Weight   float64  `yaml:"weight"`
}

type snapshot struct {
	tagsByCategory map[types.Category][]types.Tag
	byCanonical    map[string]types.Tag // canonical name (lowercased) -> Tag
	synonymIndex   map[string]types.Tag // synonym (lowercased) -> Tag
}

// Vocabulary is C1. It holds its current snapshot behind an atomic.Pointer
// so Match/TagOverlap never block on a concurrent reload.
type Vocabulary struct {
	current *atomic.Pointer[snapshot]
	tok     *gojieba.Jieba
}

var _ interfaces.TagVocabulary = (*Vocabulary)(nil)

// New creates an empty Vocabulary. Call Load before serving traffic.
func New() *Vocabulary {
	v := &Vocabulary{current: &atomic.Pointer[snapshot]{}, tok: gojieba.NewJieba()}
	v.current.Store(&snapshot{
		tagsByCategory: map[types.Category][]types.Tag{},
		byCanonical:    map[string]types.Tag{},
		synonymIndex:   map[string]types.Tag{},
	})
	return v
}

// Close releases the CJK tokenizer's native resources.
func (v *Vocabulary) Close() { v.tok.Free() }

// Load parses rows (e.g. read from a YAML file) and atomically swaps them
// in as the current snapshot. It fails with a ConfigError on duplicate
// synonym or malformed row (§4.1), leaving the previous snapshot untouched.
func (v *Vocabulary) Load(rows []Row) error {
	snap := &snapshot{
		tagsByCategory: map[types.Category][]types.Tag{},
		byCanonical:    map[string]types.Tag{},
		synonymIndex:   map[string]types.Tag{},
	}

	for _, r := range rows {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return apperrors.NewConfigError("vocabulary: row with empty tag name", nil)
		}
		cat := types.ParseCategory(r.Category)
		syns := make(map[string]bool, len(r.Synonyms))
		for _, s := range r.Synonyms {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, exists := snap.synonymIndex[s]; exists {
				return apperrors.NewConfigError(
					fmt.Sprintf("vocabulary: duplicate synonym %q", s), nil)
			}
			syns[s] = true
		}
		tag := types.Tag{Name: name, Category: cat, Synonyms: syns, Weight: r.Weight}

		key := strings.ToLower(name)
		if _, exists := snap.byCanonical[key]; exists {
			return apperrors.NewConfigError(fmt.Sprintf("vocabulary: duplicate tag name %q", name), nil)
		}
		snap.byCanonical[key] = tag
		for s := range syns {
			snap.synonymIndex[s] = tag
		}
		snap.tagsByCategory[cat] = append(snap.tagsByCategory[cat], tag)
	}

	v.current.Store(snap)
	return nil
}

// LoadYAML is a convenience wrapper around Load for a YAML-encoded row list.
func (v *Vocabulary) LoadYAML(data []byte) error {
	var rows []Row
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return apperrors.NewConfigError("vocabulary: malformed source", err)
	}
	return v.Load(rows)
}

// Match scores every tag in the vocabulary against the tokens found in
// queryText (§4.1 algorithm): exact canonical-name match contributes 1.0,
// synonym match contributes 0.8, per-tag score is the max of the two. CJK
// tokenization is handled by gojieba so Chinese queries segment correctly;
// Latin-script input is additionally split on whitespace/punctuation.
func (v *Vocabulary) Match(queryText string) []interfaces.TagMatch {
	snap := v.current.Load()
	tokens := v.tokenize(queryText)
	if len(tokens) == 0 {
		return nil
	}

	type acc struct {
		tag     types.Tag
		score   float64
		matched map[string]bool
	}
	best := map[string]*acc{}

	consider := func(key string, tag types.Tag, token string, score float64) {
		a, ok := best[key]
		if !ok {
			a = &acc{tag: tag, matched: map[string]bool{}}
			best[key] = a
		}
		if score > a.score {
			a.score = score
		}
		a.matched[token] = true
	}

	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if tag, ok := snap.byCanonical[low]; ok {
			consider(strings.ToLower(tag.Name), tag, tok, 1.0)
		}
		if tag, ok := snap.synonymIndex[low]; ok {
			consider(strings.ToLower(tag.Name), tag, tok, 0.8)
		}
	}

	out := make([]interfaces.TagMatch, 0, len(best))
	for _, a := range best {
		matched := make([]string, 0, len(a.matched))
		for t := range a.matched {
			matched = append(matched, t)
		}
		sort.Strings(matched)
		out = append(out, interfaces.TagMatch{Tag: a.tag, Score: a.score, MatchedTokens: matched})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Tag.Name < out[j].Tag.Name
	})
	return out
}

// tokenize splits queryText into candidate tokens via CJK segmentation and
// simple Latin-script word splitting.
func (v *Vocabulary) tokenize(queryText string) []string {
	segmented := v.tok.CutAll(queryText)
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range segmented {
		add(s)
	}
	for _, field := range strings.FieldsFunc(queryText, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) {
		add(field)
	}
	return out
}

// TagOverlap computes the Jaccard similarity of two tag-name sets, result
// in [0,1]. tag_overlap(X,X)=1, tag_overlap(X,∅)=0 (§8).
func (v *Vocabulary) TagOverlap(tagsA, tagsB []string) float64 {
	if len(tagsA) == 0 && len(tagsB) == 0 {
		return 0
	}
	setA := toSet(tagsA)
	setB := toSet(tagsB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tags []string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[strings.ToLower(t)] = true
	}
	return m
}

// TagsByCategory returns all tags loaded under the given category.
func (v *Vocabulary) TagsByCategory(c types.Category) []types.Tag {
	snap := v.current.Load()
	return snap.tagsByCategory[c]
}
