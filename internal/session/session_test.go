package session

import (
	"context"
	"testing"
	"time"

	"salesanalytics/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestTouch_CreatesThenUpdatesLastSeen(t *testing.T) {
	st := testStore(t)
	s := NewStore(st.DB())
	ctx := context.Background()

	if err := s.Touch(ctx, "tok-1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	n, err := s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("ActiveCount = %d, want 1", n)
	}

	if err := s.Touch(ctx, "tok-1"); err != nil {
		t.Fatalf("Touch (repeat): %v", err)
	}
	n, err = s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("ActiveCount after repeat touch = %d, want 1 (upsert, not insert)", n)
	}
}

func TestCleanupIdle_RemovesOnlyStaleSessions(t *testing.T) {
	st := testStore(t)
	s := NewStore(st.DB())
	ctx := context.Background()

	seedAt(t, ctx, st, "fresh", time.Now().Add(-1*time.Minute))
	seedAt(t, ctx, st, "stale", time.Now().Add(-1*time.Hour))

	n, err := s.CleanupIdle(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("CleanupIdle: %v", err)
	}
	if n != 1 {
		t.Fatalf("CleanupIdle removed %d, want 1", n)
	}
	active, err := s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if active != 1 {
		t.Fatalf("ActiveCount after cleanup = %d, want 1 (the fresh session)", active)
	}
}

func TestRevokeInactive_MarksRatherThanDeletes(t *testing.T) {
	st := testStore(t)
	s := NewStore(st.DB())
	ctx := context.Background()

	seedAt(t, ctx, st, "ancient", time.Now().Add(-60*24*time.Hour))
	seedAt(t, ctx, st, "recent", time.Now().Add(-time.Hour))

	n, err := s.RevokeInactive(ctx, 45*24*time.Hour)
	if err != nil {
		t.Fatalf("RevokeInactive: %v", err)
	}
	if n != 1 {
		t.Fatalf("RevokeInactive marked %d, want 1", n)
	}

	active, err := s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if active != 1 {
		t.Fatalf("ActiveCount after revocation = %d, want 1 (revoked rows stay in the table)", active)
	}

	var total int
	if err := st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboard_sessions`).Scan(&total); err != nil {
		t.Fatalf("count all rows: %v", err)
	}
	if total != 2 {
		t.Errorf("total rows = %d, want 2 (revocation does not delete)", total)
	}
}

func seedAt(t *testing.T, ctx context.Context, st *store.Store, token string, lastSeen time.Time) {
	t.Helper()
	_, err := st.DB().ExecContext(ctx, `
		INSERT INTO dashboard_sessions (token, created_at, last_seen_at, revoked)
		VALUES (?, ?, ?, FALSE)
	`, token, lastSeen, lastSeen)
	if err != nil {
		t.Fatalf("seed session %s: %v", token, err)
	}
}
