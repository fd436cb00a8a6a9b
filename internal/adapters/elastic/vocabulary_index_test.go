package elastic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

type fakeMeta struct {
	overlap       float64
	byCategory    []types.Tag
	overlapCalled bool
	catCalled     bool
}

func (f *fakeMeta) Match(string) []interfaces.TagMatch { return nil }

func (f *fakeMeta) TagOverlap(tagsA, tagsB []string) float64 {
	f.overlapCalled = true
	return f.overlap
}

func (f *fakeMeta) TagsByCategory(c types.Category) []types.Tag {
	f.catCalled = true
	return f.byCategory
}

func TestNewReturnsIndexWithMetaDelegate(t *testing.T) {
	meta := &fakeMeta{overlap: 0.5, byCategory: []types.Tag{{Name: "tech"}}}
	idx, err := New([]string{"http://localhost:9200"}, "tags", meta)
	require.NoError(t, err)

	assert.Equal(t, 0.5, idx.TagOverlap([]string{"a"}, []string{"b"}))
	assert.True(t, meta.overlapCalled)

	got := idx.TagsByCategory(types.CategoryBusiness)
	assert.True(t, meta.catCalled)
	assert.Equal(t, meta.byCategory, got)
}
