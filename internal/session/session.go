// Package session tracks dashboard client activity for the Scheduler's
// cleanup and revocation jobs (spec §4.6). It deliberately carries no
// credentials, tokens, or verification logic — Telegram Login and session
// signing are out of scope (spec §1) and live at the HTTP boundary, if at
// all. This is bookkeeping only: when was a dashboard token last seen, and
// should it be dropped.
//
// Shape borrowed from the teacher's auth.SessionStore (upsert + row count +
// bulk delete over a single table), minus SSO/token-refresh concerns.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists dashboard_sessions rows.
type Store struct {
	db *sql.DB
}

// NewStore builds a session Store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Touch records activity for token, creating the row on first sight.
func (s *Store) Touch(ctx context.Context, token string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dashboard_sessions (token, created_at, last_seen_at, revoked)
		VALUES (?, ?, ?, FALSE)
		ON CONFLICT (token) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`, token, now, now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// CleanupIdle deletes sessions whose last_seen_at is older than maxIdle.
// This is the 10-minute session/cache cleanup job.
func (s *Store) CleanupIdle(ctx context.Context, maxIdle time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxIdle).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_sessions WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup idle sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RevokeInactive marks sessions unseen for longer than inactiveFor as
// revoked rather than deleting them outright, so a later audit can still
// see who was cut off. This is the 24h inactive-user-revocation job.
func (s *Store) RevokeInactive(ctx context.Context, inactiveFor time.Duration) (int64, error) {
	cutoff := time.Now().Add(-inactiveFor).UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE dashboard_sessions SET revoked = TRUE
		WHERE last_seen_at < ? AND NOT revoked
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("revoke inactive sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ActiveCount returns the number of non-revoked sessions.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboard_sessions WHERE NOT revoked`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}
