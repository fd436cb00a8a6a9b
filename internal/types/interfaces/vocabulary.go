package interfaces

import "github.com/podwise/hrap/internal/types"

// TagMatch is one scored tag match against a query (§4.1).
type TagMatch struct {
	Tag            types.Tag
	Score          float64
	MatchedTokens  []string
}

// TagVocabulary is C1's contract: load once at boot (hot-reload permitted
// but atomic), then serve match/tag_overlap queries without taking a lock.
type TagVocabulary interface {
	Match(queryText string) []TagMatch
	TagOverlap(tagsA, tagsB []string) float64
	TagsByCategory(c types.Category) []types.Tag
}
