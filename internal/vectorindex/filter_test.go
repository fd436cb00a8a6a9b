package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

func TestBuildWhereClauseEqualityAndIN(t *testing.T) {
	clause, args, err := buildWhereClause(interfaces.VectorFilter{
		Category:  types.CategoryBusiness,
		Language:  "zh",
		PodcastID: "p1",
		Tags:      []string{"investing", "stocks"},
	})
	require.NoError(t, err)
	assert.Contains(t, clause, "category = $1")
	assert.Contains(t, clause, "tags &&")
	assert.Len(t, args, 5)
}

func TestBuildWhereClauseEmptyFilter(t *testing.T) {
	clause, args, err := buildWhereClause(interfaces.VectorFilter{})
	require.NoError(t, err)
	assert.Equal(t, "true", clause)
	assert.Empty(t, args)
}

func TestValidateFilterGrammarRejectsOR(t *testing.T) {
	err := validateFilterGrammar("category = 'business' OR category = 'education'")
	assert.Error(t, err)
}

func TestValidateFilterGrammarRejectsSubquery(t *testing.T) {
	err := validateFilterGrammar("category IN (SELECT category FROM other_table)")
	assert.Error(t, err)
}
