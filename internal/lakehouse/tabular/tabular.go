// Package tabular provides the SQLite-backed tabular side of the lakehouse:
// per-category document and chunk tables, the declared standard tables, and
// merge-mode appends with schema evolution. Writers to the same table
// serialize on a single connection; readers get projected row iterators with
// the customer predicate always injected.
package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/metrics"
)

// Store is the tabular lakehouse backend.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger

	// mu serializes DDL; row writes already serialize on the single
	// connection.
	mu sync.Mutex
}

// Open creates or opens the tabular store under dir.
func Open(ctx context.Context, dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating tabular root %s; %w", dir, err)
	}
	dbPath := filepath.Join(dir, "tabular.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening tabular store; %w", err)
	}

	// Serialize access to avoid SQLite write contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring tabular store; %w", err)
		}
	}

	s := &Store{db: db, dbPath: dbPath, logger: logger}
	if err := s.createStandardTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// standardTables are the declared product-data shapes. All value columns are
// TEXT; validation happens at the structured-extractor boundary.
var standardTables = map[string]string{
	"products": `CREATE TABLE IF NOT EXISTS products (
		gtin TEXT PRIMARY KEY,
		sku TEXT, name TEXT, description TEXT, brand TEXT,
		manufacturer TEXT, category TEXT, price TEXT, currency TEXT,
		unit TEXT, stock_quantity TEXT, image_url TEXT,
		metadata TEXT, customer_id TEXT,
		created_at TEXT, updated_at TEXT
	)`,
	"syndication_products": `CREATE TABLE IF NOT EXISTS syndication_products (
		id TEXT PRIMARY KEY,
		gtin TEXT, title TEXT, description TEXT, brand TEXT,
		price TEXT, currency TEXT, channel TEXT, status TEXT,
		metadata TEXT, customer_id TEXT, created_at TEXT
	)`,
	"data_quality_audit": `CREATE TABLE IF NOT EXISTS data_quality_audit (
		id TEXT PRIMARY KEY,
		gtin TEXT, check_name TEXT, status TEXT, details TEXT,
		source_file TEXT, checked_at TEXT,
		metadata TEXT, customer_id TEXT
	)`,
}

// tablePrimaryKeys maps every known table to its merge key.
var tablePrimaryKeys = map[string]string{
	"products":             "gtin",
	"syndication_products": "id",
	"data_quality_audit":   "id",
}

func (s *Store) createStandardTables(ctx context.Context) error {
	names := make([]string, 0, len(standardTables))
	for name := range standardTables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := s.db.ExecContext(ctx, standardTables[name]); err != nil {
			return fmt.Errorf("creating table %s; %w", name, err)
		}
	}
	return nil
}

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// EnsureCategoryTables creates <category>_documents and <category>_chunks.
func (s *Store) EnsureCategoryTables(ctx context.Context, category document.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !tableNameRe.MatchString(string(category)) {
		return fmt.Errorf("invalid category table prefix %q", category)
	}

	docs := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_documents (
		id TEXT PRIMARY KEY,
		path TEXT, filename TEXT, category TEXT, text TEXT,
		chunk_count INTEGER, size INTEGER,
		modified_at TEXT, ingested_at TEXT,
		mime_type TEXT, extension TEXT,
		metadata TEXT, customer_id TEXT
	)`, category)
	if _, err := s.db.ExecContext(ctx, docs); err != nil {
		return fmt.Errorf("creating %s_documents; %w", category, err)
	}

	chunks := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT, ordinal INTEGER, text TEXT,
		char_count INTEGER, word_count INTEGER,
		customer_id TEXT
	)`, category)
	if _, err := s.db.ExecContext(ctx, chunks); err != nil {
		return fmt.Errorf("creating %s_chunks; %w", category, err)
	}
	return nil
}

// Append merge-writes rows into a table keyed by its primary key. New
// columns in the batch are added to the table schema first; the customer id
// is injected into every row.
func (s *Store) Append(ctx context.Context, table, customerID string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	pk, err := s.primaryKeyOf(table)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.evolveSchema(ctx, table, rows); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append to %s; %w", table, err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		normalized := make(map[string]any, len(row)+1)
		for col, value := range row {
			normalized[strings.ToLower(col)] = value
		}
		normalized["customer_id"] = customerID
		if err := upsertRow(ctx, tx, table, pk, normalized); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append to %s; %w", table, err)
	}

	metrics.TabularRowsWritten.WithLabelValues(table).Add(float64(len(rows)))
	return nil
}

func (s *Store) primaryKeyOf(table string) (string, error) {
	if pk, ok := tablePrimaryKeys[table]; ok {
		return pk, nil
	}
	if strings.HasSuffix(table, "_documents") || strings.HasSuffix(table, "_chunks") {
		return "id", nil
	}
	return "", fmt.Errorf("unknown table %q", table)
}

// evolveSchema adds columns present in the batch but missing from the table.
func (s *Store) evolveSchema(ctx context.Context, table string, rows []map[string]any) error {
	existing, err := s.columnsOf(ctx, table)
	if err != nil {
		return err
	}

	missing := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			col = strings.ToLower(col)
			if !existing[col] && tableNameRe.MatchString(col) {
				missing[col] = true
			}
		}
	}

	cols := make([]string, 0, len(missing))
	for col := range missing {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", table, col)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s to %s; %w", col, table, err)
		}
		s.logger.Debug("schema evolved", "table", table, "column", col)
	}
	return nil
}

func (s *Store) columnsOf(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("inspecting table %s; %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspecting table %s; %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, rows.Err()
}

func upsertRow(ctx context.Context, tx *sql.Tx, table, pk string, row map[string]any) error {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols))
	values := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = "?"
		values[i] = row[col]
		if col != pk {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		pk,
		strings.Join(updates, ", "))

	if _, err := tx.ExecContext(ctx, stmt, values...); err != nil {
		return fmt.Errorf("upserting into %s; %w", table, err)
	}
	return nil
}

// AppendDocuments merge-writes document rows for one category.
func (s *Store) AppendDocuments(ctx context.Context, customerID string, category document.Category, files []*document.FileDescriptor) error {
	if len(files) == 0 {
		return nil
	}
	if err := s.EnsureCategoryTables(ctx, category); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	rows := make([]map[string]any, 0, len(files))
	for _, fd := range files {
		rows = append(rows, map[string]any{
			"id":          fd.ID,
			"path":        fd.Path,
			"filename":    fd.Name,
			"category":    string(category),
			"text":        fd.Text,
			"chunk_count": len(fd.Chunks),
			"size":        fd.Size,
			"modified_at": fd.ModTime.UTC().Format(time.RFC3339),
			"ingested_at": now,
			"mime_type":   fd.MIMEType,
			"extension":   fd.Extension,
			"metadata":    encodeMetadata(fd.Metadata),
		})
	}
	return s.Append(ctx, fmt.Sprintf("%s_documents", category), customerID, rows)
}

// AppendChunks merge-writes chunk rows for one category.
func (s *Store) AppendChunks(ctx context.Context, customerID string, category document.Category, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.EnsureCategoryTables(ctx, category); err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{
			"id":          c.ID,
			"document_id": c.DocumentID,
			"ordinal":     c.Ordinal,
			"text":        c.Text,
			"char_count":  c.CharCount,
			"word_count":  c.WordCount,
		})
	}
	return s.Append(ctx, fmt.Sprintf("%s_chunks", category), customerID, rows)
}
