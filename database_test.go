package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddBattleStatsAccumulates(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreatePlayer("gunner", "", "hash")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}

	if err := db.AddBattleStats(id, 3, 1, 10, 5, 120.5); err != nil {
		t.Fatalf("first battle flush: %v", err)
	}
	if err := db.AddBattleStats(id, 2, 0, 4, 2, 30); err != nil {
		t.Fatalf("second battle flush: %v", err)
	}

	stats, err := db.GetStats(id)
	if err != nil || stats == nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Kills != 5 || stats.Deaths != 1 {
		t.Errorf("expected 5 kills / 1 death, got %d/%d", stats.Kills, stats.Deaths)
	}
	if stats.ShotsFired != 14 || stats.ShotsOnTank != 7 {
		t.Errorf("expected 14 shots / 7 on tank, got %d/%d", stats.ShotsFired, stats.ShotsOnTank)
	}
	if stats.Playtime != 150.5 {
		t.Errorf("expected 150.5s playtime, got %v", stats.Playtime)
	}
}

func TestGuestExcludedFromLeaderboard(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreatePlayer("ace", "", "hash")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	db.AddBattleStats(id, 5, 0, 10, 8, 60)

	gid, err := db.CreateGuest("Guest_test")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	db.AddBattleStats(gid, 9, 0, 9, 9, 60)

	entries, err := db.GetLeaderboard("kills", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("guests must not rank, expected 1 entry, got %d", len(entries))
	}
	if entries[0].Username != "ace" {
		t.Errorf("expected ace on top, got %q", entries[0].Username)
	}
}

func TestRecorderPersistsSessionEvents(t *testing.T) {
	db := openTestDB(t)
	rec := NewCombatRecorder(db)

	rec.TrackSessionStart("s1", "gunner", "M4A1")
	rec.TrackSessionEnd("s1", BattleTally{Kills: 2, ShotsFired: 5, Playtime: 42})
	rec.Stop() // drains and flushes what is queued

	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM combat_events WHERE session_id = ?", "s1",
	).Scan(&count)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 session events, got %d", count)
	}
}

func TestAuthGuestIssuesToken(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db)

	id, username, token, err := auth.Guest()
	if err != nil {
		t.Fatalf("guest: %v", err)
	}
	if id == 0 || token == "" {
		t.Fatal("guest must get an account id and a token")
	}
	if !strings.HasPrefix(username, "Guest_") {
		t.Errorf("unexpected guest name %q", username)
	}

	pid, usr, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate guest token: %v", err)
	}
	if pid != id || usr != username {
		t.Errorf("token claims (%d, %q) do not match the account (%d, %q)", pid, usr, id, username)
	}

	stats, err := db.GetStats(id)
	if err != nil || stats == nil {
		t.Fatal("guest accounts should start with a zeroed stats row")
	}
}
