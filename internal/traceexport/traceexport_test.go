package traceexport

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
)

func TestRecordFromTraceSummarizesEntries(t *testing.T) {
	trace := types.NewTrace("t1", "q1")
	trace.SetCategory(types.CategoryBusiness)
	trace.Append(types.TraceEntry{Stage: "rewrite", TimedOut: true})
	trace.Append(types.TraceEntry{Stage: "leader", FallbackReason: "answer failed"})

	r := recordFromTrace(trace)
	assert.Equal(t, "t1", r.TraceID)
	assert.Equal(t, "business", r.Category)
	assert.Equal(t, int64(2), r.StageCount)
	assert.Equal(t, int64(1), r.TimedOutCount)
	assert.Equal(t, int64(1), r.FallbackCount)
}

func TestExporterFlushWritesParquetFile(t *testing.T) {
	dir := t.TempDir()
	exp, err := NewExporter(dir)
	require.NoError(t, err)

	exp.Append(types.NewTrace("t1", "q1"))
	exp.Append(types.NewTrace("t2", "q2"))
	require.NoError(t, exp.Flush())

	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExporterFlushIsNoOpWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	exp, err := NewExporter(dir)
	require.NoError(t, err)

	require.NoError(t, exp.Flush())

	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, matches, 0)
}
