// Package traceexport is a read-only ops/debugging surface: completed
// Trace records are appended to a Parquet file and queryable ad hoc
// through an embedded DuckDB connection (§6.1). It never sits on the
// request hot path — the Leader and Pipeline Runner know nothing about it.
package traceexport

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/parquet-go/parquet-go"

	"github.com/podwise/hrap/internal/types"
)

// Record is the flattened, Parquet-friendly projection of one Trace. Only
// the fields useful for ad hoc ops queries are kept; per-stage detail stays
// in the in-process Trace and is not exported.
type Record struct {
	TraceID       string  `parquet:"trace_id"`
	QueryID       string  `parquet:"query_id"`
	Category      string  `parquet:"category"`
	StageCount    int64   `parquet:"stage_count"`
	TotalElapsed  float64 `parquet:"total_elapsed_seconds"`
	TimedOutCount int64   `parquet:"timed_out_count"`
	FallbackCount int64   `parquet:"fallback_count"`
}

// recordFromTrace projects a Trace down to its exportable summary.
func recordFromTrace(t *types.Trace) Record {
	r := Record{TraceID: t.TraceID, QueryID: t.QueryID, Category: string(t.Category())}
	for _, e := range t.Entries() {
		r.StageCount++
		r.TotalElapsed += e.Elapsed.Seconds()
		if e.TimedOut {
			r.TimedOutCount++
		}
		if e.FallbackReason != "" {
			r.FallbackCount++
		}
	}
	return r
}

// Exporter batches Trace summaries and flushes them to their own Parquet
// file under dir. Parquet's row-group/footer layout has no cheap
// single-row append, so rather than rewrite one growing file on every
// call, each Flush writes a new file; Querier reads the whole directory
// with DuckDB's glob support in read_parquet().
type Exporter struct {
	mu      sync.Mutex
	dir     string
	buf     []Record
	flushed atomic.Int64
}

// NewExporter points an Exporter at dir, creating it if absent.
func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("traceexport: mkdir %s: %w", dir, err)
	}
	return &Exporter{dir: dir}, nil
}

// Append buffers one Trace's summary record.
func (e *Exporter) Append(t *types.Trace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf = append(e.buf, recordFromTrace(t))
}

// Flush writes every buffered record to a new Parquet file and clears the
// buffer. Callers (typically a periodic ticker) decide the flush cadence.
func (e *Exporter) Flush() error {
	e.mu.Lock()
	pending := e.buf
	e.buf = nil
	e.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	name := fmt.Sprintf("traces-%d-%d.parquet", time.Now().UnixNano(), e.flushed.Add(1))
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("traceexport: create %s: %w", path, err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[Record](f)
	if _, err := w.Write(pending); err != nil {
		return fmt.Errorf("traceexport: write %s: %w", path, err)
	}
	return w.Close()
}

// Querier runs ad hoc SQL against exported trace files through an embedded
// DuckDB connection, using DuckDB's native read_parquet() table function
// rather than importing rows into a DuckDB-managed table.
type Querier struct {
	db *sql.DB
}

// NewQuerier opens an in-process DuckDB connection (no server, no file —
// ":memory:" — since the data of interest lives in the Parquet file itself).
func NewQuerier() (*Querier, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("traceexport: open duckdb: %w", err)
	}
	return &Querier{db: db}, nil
}

// Close releases the DuckDB connection.
func (q *Querier) Close() error { return q.db.Close() }

// QueryParquet runs a SQL query against every Parquet file under dir, with
// read_parquet('dir/*.parquet') substituted for the literal token "$source"
// in query — callers never interpolate the path themselves, avoiding SQL
// injection through a user-controlled directory path.
func (q *Querier) QueryParquet(ctx context.Context, dir, query string) (*sql.Rows, error) {
	quoted := strings.ReplaceAll(filepath.Join(dir, "*.parquet"), "'", "''")
	source := fmt.Sprintf("read_parquet('%s')", quoted)
	return q.db.QueryContext(ctx, strings.ReplaceAll(query, "$source", source))
}
