// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/nbackt/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const highscoreKey = "highscore"

// Store wraps SQLite access for rounds and preferences.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY,
			round_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			n_back INTEGER NOT NULL,
			length INTEGER NOT NULL,
			alphabet INTEGER NOT NULL,
			interval_ms INTEGER NOT NULL,
			score INTEGER NOT NULL,
			user_matches INTEGER NOT NULL,
			actual_matches INTEGER NOT NULL,
			presses INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_ended_at ON rounds(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_mode_n ON rounds(mode, n_back);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Highscore returns the stored highscore, or 0 when none was saved yet.
func (s *Store) Highscore(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, highscoreKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid stored highscore %q: %w", raw, err)
	}
	return v, nil
}

// SaveHighscore overwrites the stored highscore.
func (s *Store) SaveHighscore(ctx context.Context, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		highscoreKey, strconv.Itoa(score))
	return err
}

// ResetHighscore removes the stored highscore.
func (s *Store) ResetHighscore(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, highscoreKey)
	return err
}

// RecordRound stores a finished round.
func (s *Store) RecordRound(ctx context.Context, round model.RoundStats) error {
	_, err := s.InsertRound(ctx, round)
	return err
}

// InsertRound stores a finished round and returns its row ID.
func (s *Store) InsertRound(ctx context.Context, round model.RoundStats) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rounds (round_id, started_at, ended_at, mode, n_back, length, alphabet, interval_ms, score, user_matches, actual_matches, presses)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		round.RoundID,
		round.StartedAt.Format(time.RFC3339Nano),
		round.EndedAt.Format(time.RFC3339Nano),
		string(round.Mode),
		round.NBack,
		round.Length,
		round.Alphabet,
		round.IntervalMs,
		round.Score,
		round.UserMatches,
		round.ActualMatches,
		round.Presses,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRounds returns rounds filtered by stats config, oldest first.
func (s *Store) ListRounds(ctx context.Context, cfg model.StatsConfig) ([]model.RoundAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Mode != "" {
		clauses = append(clauses, "mode = ?")
		args = append(args, string(cfg.Mode))
	}
	if cfg.NBack > 0 {
		clauses = append(clauses, "n_back = ?")
		args = append(args, cfg.NBack)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, round_id, ended_at, mode, n_back, length, score, user_matches, actual_matches, presses
		FROM rounds
		WHERE %s
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var rounds []model.RoundAggregate
	for rows.Next() {
		var agg model.RoundAggregate
		var endedAt, mode string
		if err := rows.Scan(&agg.ID, &agg.RoundID, &endedAt, &mode, &agg.NBack, &agg.Length, &agg.Score, &agg.UserMatches, &agg.ActualMatches, &agg.Presses); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		agg.Mode = model.Mode(mode)
		rounds = append(rounds, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rounds, nil
}

// ListModeAggregates groups rounds by mode and n-back distance.
func (s *Store) ListModeAggregates(ctx context.Context, roundIDs []int64) ([]model.ModeAggregate, error) {
	if len(roundIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(roundIDs))
	args := make([]any, len(roundIDs))
	for i, id := range roundIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT mode, n_back, COUNT(*) AS rounds, MAX(score) AS best, SUM(score) AS total,
		SUM(user_matches) AS user_matches, SUM(actual_matches) AS actual_matches
		FROM rounds
		WHERE id IN (%s)
		GROUP BY mode, n_back
		ORDER BY mode, n_back`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ModeAggregate
	for rows.Next() {
		var agg model.ModeAggregate
		var mode string
		if err := rows.Scan(&mode, &agg.NBack, &agg.Rounds, &agg.BestScore, &agg.TotalScore, &agg.UserMatches, &agg.ActualMatches); err != nil {
			return nil, err
		}
		agg.Mode = model.Mode(mode)
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
