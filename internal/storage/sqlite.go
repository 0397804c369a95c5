package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// maxParams keeps IN lists under SQLite's default host parameter limit.
const maxParams = 500

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s, err := newWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.path = dbPath
	return s, nil
}

func newWithDB(db *sql.DB) (*SQLiteStorage, error) {
	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		model TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (model, text_hash)
	);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		status TEXT NOT NULL,
		matched INTEGER NOT NULL,
		score REAL NOT NULL,
		record_index INTEGER NOT NULL,
		mode TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queries_created_at ON queries(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path, empty for databases not opened from a file.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// GetEmbeddings returns the stored vectors for the given hashes. Missing hashes are absent from the map.
func (s *SQLiteStorage) GetEmbeddings(ctx context.Context, modelID string, textHashes []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(textHashes))
	for start := 0; start < len(textHashes); start += maxParams {
		end := min(start+maxParams, len(textHashes))
		batch := textHashes[start:end]

		args := make([]any, 0, len(batch)+1)
		args = append(args, modelID)
		for _, h := range batch {
			args = append(args, h)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		rows, err := s.db.QueryContext(ctx,
			`SELECT text_hash, dims, vector FROM embeddings
			 WHERE model = ? AND text_hash IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query embeddings: %w", err)
		}
		for rows.Next() {
			var (
				hash string
				dims int
				blob []byte
			)
			if err := rows.Scan(&hash, &dims, &blob); err != nil {
				rows.Close()
				return nil, err
			}
			vec, err := decodeVector(blob, dims)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("embedding %s: %w", hash, err)
			}
			out[hash] = vec
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PutEmbeddings stores vectors in one transaction, replacing existing rows.
func (s *SQLiteStorage) PutEmbeddings(ctx context.Context, modelID string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO embeddings (model, text_hash, dims, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for hash, vec := range vectors {
		if _, err := stmt.ExecContext(ctx, modelID, hash, len(vec), encodeVector(vec)); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}
	return tx.Commit()
}

// CountEmbeddings returns the number of stored vectors for modelID, or for all models when empty.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context, modelID string) (int64, error) {
	var count int64
	var err error
	if modelID == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings WHERE model = ?", modelID).Scan(&count)
	}
	return count, err
}

// RecordQuery appends q to the query log, assigning an ID and timestamp when unset.
func (s *SQLiteStorage) RecordQuery(ctx context.Context, q *models.QueryLog) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, query, status, matched, score, record_index, mode, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Query, string(q.Status), q.Matched, q.Score, q.RecordIndex, q.Mode, q.LatencyMS, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// RecentQueries returns up to limit log entries, newest first.
func (s *SQLiteStorage) RecentQueries(ctx context.Context, limit int) ([]*models.QueryLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, status, matched, score, record_index, mode, latency_ms, created_at
		 FROM queries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.QueryLog
	for rows.Next() {
		var q models.QueryLog
		var status string
		if err := rows.Scan(&q.ID, &q.Query, &status, &q.Matched, &q.Score, &q.RecordIndex, &q.Mode, &q.LatencyMS, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.Status = models.AnswerStatus(status)
		out = append(out, &q)
	}
	return out, rows.Err()
}

// QueryStats counts logged queries by status.
func (s *SQLiteStorage) QueryStats(ctx context.Context) (*QueryStats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM queries GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &QueryStats{ByStatus: make(map[models.AnswerStatus]int64)}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.ByStatus[models.AnswerStatus(status)] = n
		stats.Total += n
	}
	return stats, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
