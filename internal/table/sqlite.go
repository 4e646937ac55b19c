package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bids-indexer/internal/logging"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/schema"
)

const sqliteTimeout = 30 * time.Second

// SQLiteSink persists rows into a single sqlite table named files,
// unique by (dataset_id, path). Re-runs upsert in place, so uniqueness
// holds across incremental runs, and prune runs delete by key.
type SQLiteSink struct {
	db       *sql.DB
	entities []string
	upsert   string
}

// NewSQLiteSink opens the database file, creating it and its schema if
// needed. When the naming schema has grown since the table was created,
// the missing entity columns are added in place.
func NewSQLiteSink(ctx context.Context, dbPath string, ix *schema.Index) (*SQLiteSink, error) {
	keys := ix.Canonical()
	if err := checkEntityColumns(keys); err != nil {
		return nil, err
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, sqliteTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The sink is the only writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db, entities: keys}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	s.upsert = s.buildUpsert()

	logging.Info("SQLite index at %s ready (%d entity columns)", dbPath, len(keys))
	return s, nil
}

func (s *SQLiteSink) initialize(ctx context.Context) error {
	var entityCols strings.Builder
	for _, k := range s.entities {
		fmt.Fprintf(&entityCols, "\t\t%s TEXT,\n", quoteIdent(k))
	}

	schemaSQL := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset_id TEXT NOT NULL,
		path TEXT NOT NULL,
		dataset_name TEXT,
		dataset_type TEXT,
		root TEXT NOT NULL,
` + entityCols.String() + `		datatype TEXT,
		suffix TEXT NOT NULL,
		ext TEXT NOT NULL,
		meta TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		mtime INTEGER NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(dataset_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_files_dataset ON files(dataset_id);
	CREATE INDEX IF NOT EXISTS idx_files_suffix ON files(suffix);
	CREATE INDEX IF NOT EXISTS idx_files_datatype ON files(datatype);
	`
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	return s.ensureEntityColumns(ctx)
}

// ensureEntityColumns adds entity columns introduced by a newer naming
// schema to an existing table. Prior rows keep NULL in the new columns;
// nothing is rewritten.
func (s *SQLiteSink) ensureEntityColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('files')`)
	if err != nil {
		return fmt.Errorf("failed to inspect table columns: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range s.entities {
		if existing[k] {
			continue
		}
		logging.Info("Migrating index: adding entity column %s", k)
		if _, err := s.db.ExecContext(ctx, "ALTER TABLE files ADD COLUMN "+quoteIdent(k)+" TEXT"); err != nil {
			return fmt.Errorf("failed to add column %s: %w", k, err)
		}
	}
	return nil
}

func (s *SQLiteSink) buildUpsert() string {
	cols := []string{"dataset_id", "path", "dataset_name", "dataset_type", "root"}
	for _, k := range s.entities {
		cols = append(cols, quoteIdent(k))
	}
	cols = append(cols, "datatype", "suffix", "ext", "meta", "size", "mtime")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	sets := make([]string, 0, len(cols))
	for _, c := range cols[2:] {
		sets = append(sets, c+" = excluded."+c)
	}
	sets = append(sets, "updated_at = strftime('%s', 'now')")

	return "INSERT INTO files (" + strings.Join(cols, ", ") + ", updated_at)\n" +
		"VALUES (" + placeholders + ", strftime('%s', 'now'))\n" +
		"ON CONFLICT(dataset_id, path) DO UPDATE SET\n\t" + strings.Join(sets, ",\n\t")
}

// WriteRows upserts a batch of rows inside one transaction.
func (s *SQLiteSink) WriteRows(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	if err := s.endBatch(tx, s.writeBatch(ctx, tx, rows)); err != nil {
		return err
	}

	metrics.SinkRowsWritten.WithLabelValues("sqlite").Add(float64(len(rows)))
	metrics.SinkBatchesWritten.WithLabelValues("sqlite").Inc()
	metrics.SinkWriteDuration.WithLabelValues("sqlite").Observe(time.Since(start).Seconds())
	logging.Debug("Upserted %d rows in %v", len(rows), time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *SQLiteSink) writeBatch(ctx context.Context, tx *sql.Tx, rows []Row) error {
	stmt, err := tx.PrepareContext(ctx, s.upsert)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		meta, err := EncodeMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("row %s: %w", r.Key(), err)
		}

		args := make([]any, 0, len(s.entities)+11)
		args = append(args, r.DatasetID, r.RelativePath,
			nullable(r.DatasetName), nullable(r.DatasetType), r.DatasetRoot)
		for _, k := range s.entities {
			args = append(args, nullable(r.Entities[k]))
		}
		args = append(args, nullable(r.Datatype), r.Suffix, r.Extension,
			nullable(meta), r.Size, r.ModTime.UnixNano())

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert %s: %w", r.Key(), err)
		}
	}
	return nil
}

// DeleteRows removes rows by key inside one transaction. Used for
// prune runs after the merger has identified removed files.
func (s *SQLiteSink) DeleteRows(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete batch: %w", err)
	}
	err = s.endBatch(tx, func() error {
		stmt, err := tx.PrepareContext(ctx, "DELETE FROM files WHERE dataset_id = ? AND path = ?")
		if err != nil {
			return fmt.Errorf("prepare delete: %w", err)
		}
		defer stmt.Close()
		for _, k := range keys {
			if _, err := stmt.ExecContext(ctx, k.DatasetID, k.RelativePath); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	}())
	if err != nil {
		return err
	}

	logging.Info("Pruned %d removed rows from the index", len(keys))
	return nil
}

// endBatch commits on success and rolls back on failure, preserving
// the original error.
func (s *SQLiteSink) endBatch(tx *sql.Tx, err error) error {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
