// Package vector provides the vector side of the lakehouse: a single
// embeddings table spanning all categories, brute-force cosine search below
// the index threshold, and an IVF index above it. The embedding dimension is
// frozen at first insert; a mismatch afterwards is a fatal invariant
// violation.
package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/metrics"
)

// ErrDimensionMismatch reports an insert whose vector length differs from
// the frozen table dimension. This is a programming error, not a recoverable
// condition.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DefaultIndexThreshold is the row count at which the IVF index is built.
const DefaultIndexThreshold = 256

// Store is the vector lakehouse backend.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger

	mu             sync.Mutex
	dim            int
	index          *ivfIndex
	indexThreshold int
}

// Option configures a Store.
type Option func(*Store)

// WithIndexThreshold overrides the row count that triggers index builds.
func WithIndexThreshold(n int) Option {
	return func(s *Store) { s.indexThreshold = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or opens the vector store under dir.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating vector root %s; %w", dir, err)
	}
	dbPath := filepath.Join(dir, "embeddings.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening vector store; %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring vector store; %w", err)
		}
	}

	s := &Store{
		db:             db,
		dbPath:         dbPath,
		logger:         slog.Default(),
		indexThreshold: DefaultIndexThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadDimension(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dimension returns the frozen embedding dimension, or 0 before the first
// insert.
func (s *Store) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embeddings (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			filename TEXT,
			category TEXT,
			text TEXT,
			vector BLOB NOT NULL,
			ordinal INTEGER,
			char_count INTEGER,
			customer_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_category ON embeddings(category)`,
		`CREATE TABLE IF NOT EXISTS vector_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating vector store; %w", err)
		}
	}
	return nil
}

func (s *Store) loadDimension(ctx context.Context) error {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM vector_meta WHERE key = 'dimension'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading vector dimension; %w", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parsing stored vector dimension %q; %w", value, err)
	}
	s.dim = dim
	return nil
}

// Append merge-writes embedding records and rebuilds the index when the row
// count crosses the threshold. The first record freezes the dimension.
func (s *Store) Append(ctx context.Context, customerID string, records []document.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(records[0].Vector)
		if s.dim == 0 {
			return fmt.Errorf("first embedding record carries an empty vector")
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO vector_meta (key, value) VALUES ('dimension', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			strconv.Itoa(s.dim)); err != nil {
			return fmt.Errorf("persisting vector dimension; %w", err)
		}
	}

	for _, rec := range records {
		if len(rec.Vector) != s.dim {
			return fmt.Errorf("%w: table dimension %d, record %s has %d",
				ErrDimensionMismatch, s.dim, rec.ChunkID, len(rec.Vector))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning vector append; %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (chunk_id, document_id, filename, category, text, vector, ordinal, char_count, customer_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				document_id = excluded.document_id,
				filename = excluded.filename,
				category = excluded.category,
				text = excluded.text,
				vector = excluded.vector,
				ordinal = excluded.ordinal,
				char_count = excluded.char_count,
				customer_id = excluded.customer_id`,
			rec.ChunkID, rec.DocumentID, rec.Filename, string(rec.Category),
			rec.Text, encodeVector(rec.Vector), rec.Ordinal, rec.CharCount,
			customerID)
		if err != nil {
			return fmt.Errorf("upserting embedding %s; %w", rec.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector append; %w", err)
	}
	metrics.VectorRecordsWritten.Add(float64(len(records)))

	return s.maybeRebuildIndex(ctx)
}

// maybeRebuildIndex rebuilds the IVF index when the row count is at or above
// the threshold, and drops it otherwise. Callers hold s.mu.
func (s *Store) maybeRebuildIndex(ctx context.Context) error {
	count, err := s.countLocked(ctx)
	if err != nil {
		return err
	}
	if count < s.indexThreshold {
		s.index = nil
		return nil
	}

	ids, vectors, err := s.allVectorsLocked(ctx)
	if err != nil {
		return err
	}
	s.index = buildIVF(ids, vectors, s.dim)
	metrics.VectorIndexBuilds.Inc()
	s.logger.Debug("rebuilt vector index",
		"rows", count, "partitions", s.index.nlist, "subvectors", s.index.subvectors)
	return nil
}

func (s *Store) countLocked(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting embeddings; %w", err)
	}
	return count, nil
}

// Count returns the total number of embedding rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(ctx)
}

func (s *Store) allVectorsLocked(ctx context.Context) ([]string, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk_id, vector FROM embeddings")
	if err != nil {
		return nil, nil, fmt.Errorf("loading vectors; %w", err)
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		vectors = append(vectors, decodeVector(blob))
	}
	return ids, vectors, rows.Err()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// Hit is one search result.
type Hit struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Category   document.Category
	Text       string
	Ordinal    int
	Score      float32
}

// Search returns the top-k rows nearest the query by cosine similarity,
// optionally restricted to one category. The customer predicate is always
// applied. The index is an optimization; results fall back to an exact scan
// when the shortlist comes up short.
func (s *Store) Search(ctx context.Context, customerID string, query []float32, topK int, category document.Category) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && len(query) != s.dim {
		return nil, fmt.Errorf("%w: table dimension %d, query has %d",
			ErrDimensionMismatch, s.dim, len(query))
	}

	if s.index != nil {
		nprobe := s.index.nlist / 4
		shortlist := s.index.probe(query, nprobe)
		hits, err := s.scoreIDs(ctx, customerID, query, shortlist, topK, category)
		if err != nil {
			return nil, err
		}
		if len(hits) >= topK {
			return hits, nil
		}
	}

	return s.scoreAll(ctx, customerID, query, topK, category)
}

func (s *Store) scoreIDs(ctx context.Context, customerID string, query []float32, ids []string, topK int, category document.Category) ([]Hit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var hits []Hit
	// Chunked IN clauses keep the statement size bounded.
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		part, err := s.scoreBatch(ctx, customerID, query, ids[start:end], category)
		if err != nil {
			return nil, err
		}
		hits = append(hits, part...)
	}
	return topHits(hits, topK), nil
}

func (s *Store) scoreBatch(ctx context.Context, customerID string, query []float32, ids []string, category document.Category) ([]Hit, error) {
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	stmt := "SELECT chunk_id, document_id, filename, category, text, vector, ordinal FROM embeddings WHERE chunk_id IN (" +
		joinComma(placeholders) + ") AND (customer_id = ? OR customer_id IS NULL)"
	args = append(args, customerID)
	if category != "" {
		stmt += " AND category = ?"
		args = append(args, string(category))
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("scoring shortlist; %w", err)
	}
	defer rows.Close()
	return scanAndScore(rows, query)
}

func (s *Store) scoreAll(ctx context.Context, customerID string, query []float32, topK int, category document.Category) ([]Hit, error) {
	stmt := "SELECT chunk_id, document_id, filename, category, text, vector, ordinal FROM embeddings WHERE (customer_id = ? OR customer_id IS NULL)"
	args := []any{customerID}
	if category != "" {
		stmt += " AND category = ?"
		args = append(args, string(category))
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning embeddings; %w", err)
	}
	defer rows.Close()

	hits, err := scanAndScore(rows, query)
	if err != nil {
		return nil, err
	}
	return topHits(hits, topK), nil
}

func scanAndScore(rows *sql.Rows, query []float32) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var h Hit
		var cat string
		var blob []byte
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Filename, &cat, &h.Text, &blob, &h.Ordinal); err != nil {
			return nil, err
		}
		h.Category = document.Category(cat)
		h.Score = dot(decodeVector(blob), query)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func topHits(hits []Hit, topK int) []Hit {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// DeleteByDocument removes every embedding of one document.
func (s *Store) DeleteByDocument(ctx context.Context, customerID, documentID string) (int64, error) {
	return s.delete(ctx,
		"DELETE FROM embeddings WHERE document_id = ? AND (customer_id = ? OR customer_id IS NULL)",
		documentID, customerID)
}

// DeleteByCategory removes every embedding of one category.
func (s *Store) DeleteByCategory(ctx context.Context, customerID string, category document.Category) (int64, error) {
	return s.delete(ctx,
		"DELETE FROM embeddings WHERE category = ? AND (customer_id = ? OR customer_id IS NULL)",
		string(category), customerID)
}

func (s *Store) delete(ctx context.Context, stmt string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings; %w", err)
	}
	deleted, _ := result.RowsAffected()

	if deleted > 0 {
		if err := s.maybeRebuildIndex(ctx); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Compact reclaims space after deletes.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing vector store; %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("compacting vector store; %w", err)
	}
	return nil
}
