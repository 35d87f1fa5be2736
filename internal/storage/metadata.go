package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// ErrTranscriptNotFound is returned when no archived transcript matches a job id.
var ErrTranscriptNotFound = errors.New("transcript not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	// Create table if not exists
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		request_name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		gdrive_url TEXT,
		local_path TEXT NOT NULL,
		language TEXT,
		created_at DATETIME NOT NULL,
		duration REAL,
		word_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON transcripts(created_at);
	CREATE INDEX IF NOT EXISTS idx_request_name ON transcripts(request_name);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveTranscript saves transcript metadata to the database
func (mdb *MetadataDB) SaveTranscript(ctx context.Context, rec types.TranscriptRecord) error {
	query := `
	INSERT INTO transcripts (job_id, request_name, source_type, gdrive_url, local_path, language, created_at, duration, word_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := mdb.db.ExecContext(ctx, query, rec.JobID, rec.RequestName, rec.SourceType, rec.GDriveURL,
		rec.LocalPath, rec.Language, createdAt.UTC(), rec.Duration, rec.WordCount)
	if err != nil {
		return fmt.Errorf("failed to save transcript metadata: %w", err)
	}

	return nil
}

const selectTranscript = `
	SELECT job_id, request_name, source_type, COALESCE(gdrive_url, ''), local_path, COALESCE(language, ''),
		created_at, COALESCE(duration, 0), COALESCE(word_count, 0)
	FROM transcripts`

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row scanner) (types.TranscriptRecord, error) {
	var rec types.TranscriptRecord
	err := row.Scan(&rec.JobID, &rec.RequestName, &rec.SourceType, &rec.GDriveURL, &rec.LocalPath,
		&rec.Language, &rec.CreatedAt, &rec.Duration, &rec.WordCount)
	return rec, err
}

// GetTranscript retrieves transcript metadata by job ID
func (mdb *MetadataDB) GetTranscript(ctx context.Context, jobID string) (types.TranscriptRecord, error) {
	row := mdb.db.QueryRowContext(ctx, selectTranscript+` WHERE job_id = ?`, jobID)

	rec, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TranscriptRecord{}, fmt.Errorf("%w: %s", ErrTranscriptNotFound, jobID)
	}
	if err != nil {
		return types.TranscriptRecord{}, fmt.Errorf("failed to get transcript: %w", err)
	}
	return rec, nil
}

// ListTranscripts returns the most recent transcripts first
func (mdb *MetadataDB) ListTranscripts(ctx context.Context, limit int) ([]types.TranscriptRecord, error) {
	rows, err := mdb.db.QueryContext(ctx, selectTranscript+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := []types.TranscriptRecord{}
	for rows.Next() {
		rec, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		transcripts = append(transcripts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}

	return transcripts, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
