package tabular

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Compact reclaims free pages and truncates the WAL.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing; %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("compacting; %w", err)
	}
	return nil
}

// Vacuum removes rows of one table older than the retention window and
// reclaims the space. Only tables carrying a timestamp column support
// retention.
func (s *Store) Vacuum(ctx context.Context, table string, retention time.Duration) (int64, error) {
	existing, err := s.columnsOf(ctx, table)
	if err != nil {
		return 0, err
	}

	column := ""
	for _, candidate := range []string{"ingested_at", "checked_at", "created_at"} {
		if existing[candidate] {
			column = candidate
			break
		}
	}
	if column == "" {
		return 0, fmt.Errorf("table %s has no retention timestamp column", table)
	}

	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", table, column)
	result, err := s.db.ExecContext(ctx, stmt, cutoff)
	if err != nil {
		return 0, fmt.Errorf("vacuuming %s; %w", table, err)
	}
	deleted, _ := result.RowsAffected()

	if deleted > 0 {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			return deleted, fmt.Errorf("reclaiming space after vacuum of %s; %w", table, err)
		}
	}
	return deleted, nil
}

// DocumentTables lists the per-category document tables present.
func (s *Store) DocumentTables(ctx context.Context) ([]string, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, t := range tables {
		if strings.HasSuffix(t, "_documents") {
			out = append(out, t)
		}
	}
	return out, nil
}
