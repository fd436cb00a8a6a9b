package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRows() []Row {
	return []Row{
		{Name: "investing", Category: "business", Synonyms: []string{"投資理財", "invest"}, Weight: 1.0},
		{Name: "english", Category: "education", Synonyms: []string{"商業英文"}, Weight: 1.0},
	}
}

func TestLoadRejectsDuplicateSynonym(t *testing.T) {
	v := New()
	defer v.Close()
	rows := []Row{
		{Name: "a", Category: "business", Synonyms: []string{"x"}},
		{Name: "b", Category: "education", Synonyms: []string{"x"}},
	}
	err := v.Load(rows)
	require.Error(t, err)
}

func TestMatchExactAndSynonym(t *testing.T) {
	v := New()
	defer v.Close()
	require.NoError(t, v.Load(testRows()))

	matches := v.Match("我想學習投資理財")
	require.NotEmpty(t, matches)
	assert.Equal(t, "investing", matches[0].Tag.Name)
	assert.InDelta(t, 0.8, matches[0].Score, 1e-9)
}

func TestMatchEmptyOnNoToken(t *testing.T) {
	v := New()
	defer v.Close()
	require.NoError(t, v.Load(testRows()))
	matches := v.Match("zzzzzzzz completely unrelated")
	assert.Empty(t, matches)
}

func TestTagOverlapJaccard(t *testing.T) {
	v := New()
	defer v.Close()
	assert.Equal(t, 1.0, v.TagOverlap([]string{"a", "b"}, []string{"a", "b"}))
	assert.Equal(t, 0.0, v.TagOverlap([]string{"a", "b"}, nil))
	assert.InDelta(t, 1.0/3.0, v.TagOverlap([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}
