// Package archive persists detected candidates to SQLite so repeated
// runs can be compared and already-seen events can be recognized.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/newsradar/migrations"

	_ "modernc.org/sqlite"

	"github.com/edgard/newsradar/internal/model"
)

// Record is a persisted candidate row. Payload holds the full candidate
// as JSON; the extracted columns exist for querying.
type Record struct {
	ID         int64     `db:"id"`
	DedupGroup string    `db:"dedup_group"`
	Headline   string    `db:"headline"`
	Hotness    float64   `db:"hotness"`
	WhyNow     string    `db:"why_now"`
	Payload    string    `db:"payload"`
	DetectedAt time.Time `db:"detected_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// Candidate decodes the stored payload.
func (r *Record) Candidate() (*model.Candidate, error) {
	cand := &model.Candidate{}
	if err := json.Unmarshal([]byte(r.Payload), cand); err != nil {
		return nil, fmt.Errorf("decode candidate payload: %w", err)
	}
	return cand, nil
}

// Store defines the persistence operations the pipeline uses.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveCandidates persists one detection run's candidates in a single
	// transaction. Re-detections of a group at the same instant are
	// ignored rather than duplicated.
	SaveCandidates(ctx context.Context, candidates []*model.Candidate, detectedAt time.Time) error

	// RecentCandidates returns the latest records whose detection time is
	// at or after the cutoff, hottest first.
	RecentCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*Record, error)

	// LastSeen returns the most recent detection time for a dedup group,
	// or the zero time when the group has never been stored.
	LastSeen(ctx context.Context, dedupGroup string) (time.Time, error)

	// Close releases the underlying connection pool.
	Close() error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the SQLite archive at path, applies migrations, and
// returns a ready Store.
func Open(path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("connect to archive: %w", err)
	}

	// SQLite does not support concurrent writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing archive after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("Archive opened", "path", path)
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "archive"),
	}, nil
}

func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveCandidates(ctx context.Context, candidates []*model.Candidate, detectedAt time.Time) error {
	if len(candidates) == 0 {
		return nil
	}
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "Failed to roll back candidate save", "error", rollbackErr)
			}
		}
	}()

	now := time.Now().UTC()
	for _, cand := range candidates {
		payload, err := json.Marshal(cand)
		if err != nil {
			return fmt.Errorf("encode candidate %s: %w", cand.DedupGroup, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidates (dedup_group, headline, hotness, why_now, payload, detected_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (dedup_group, detected_at) DO NOTHING`,
			cand.DedupGroup, cand.Headline, cand.Hotness, cand.WhyNow, string(payload), detectedAt, now)
		if err != nil {
			return fmt.Errorf("insert candidate %s: %w", cand.DedupGroup, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candidate save: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Candidates archived", "count", len(candidates), "detected_at", detectedAt)
	return nil
}

func (s *sqlxStore) RecentCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []*Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, dedup_group, headline, hotness, why_now, payload, detected_at, created_at
		FROM candidates
		WHERE detected_at >= ?
		ORDER BY hotness DESC, detected_at DESC
		LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent candidates: %w", err)
	}
	return records, nil
}

func (s *sqlxStore) LastSeen(ctx context.Context, dedupGroup string) (time.Time, error) {
	var last time.Time
	err := s.db.GetContext(ctx, &last, `
		SELECT detected_at FROM candidates
		WHERE dedup_group = ?
		ORDER BY detected_at DESC
		LIMIT 1`, dedupGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last seen: %w", err)
	}
	return last, nil
}

func (s *sqlxStore) Close() error {
	return s.db.Close()
}
