package vectorindex

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types/interfaces"
)

func TestBuildQdrantFilterCombinesConditions(t *testing.T) {
	f := buildQdrantFilter(interfaces.VectorFilter{
		Category:  "business",
		Language:  "zh",
		PodcastID: "p1",
		Tags:      []string{"investing", "stocks"},
	})
	require.NotNil(t, f)
	assert.Len(t, f.Must, 4)
}

func TestBuildQdrantFilterEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, buildQdrantFilter(interfaces.VectorFilter{}))
}

func TestStringFieldMissingKeyReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", stringField(map[string]*qdrant.Value{}, "chunk_id"))
}

func TestStringFieldReturnsValue(t *testing.T) {
	payload := map[string]*qdrant.Value{"chunk_id": qdrant.NewValueString("c1")}
	assert.Equal(t, "c1", stringField(payload, "chunk_id"))
}

func TestIntFieldMissingKeyReturnsZero(t *testing.T) {
	assert.Equal(t, int64(0), intField(map[string]*qdrant.Value{}, "chunk_index"))
}

func TestStringListFieldMissingKeyReturnsNil(t *testing.T) {
	assert.Nil(t, stringListField(map[string]*qdrant.Value{}, "tags"))
}

func TestClamp01BoundsValue(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.42, clamp01(0.42))
}

func TestSplitHostPortParsesAddress(t *testing.T) {
	host, port, err := splitHostPort("localhost:6334")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6334, port)
}

func TestSplitHostPortRejectsMalformed(t *testing.T) {
	_, _, err := splitHostPort("not-a-host-port")
	assert.Error(t, err)
}
