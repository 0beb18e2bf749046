package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/okian/xpboard/internal/adapters/repository"
	"github.com/okian/xpboard/internal/domain/model"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "xpboard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "xpboard.db")
	first, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.SaveProgress(context.Background(), model.UserProgress{UserID: "u1", XP: 10, Level: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.GetProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.XP != 10 {
		t.Fatalf("xp = %d, want 10", got.XP)
	}
}

func TestProgressRoundTripAndRanking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)

	if _, err := store.GetProgress(ctx, "nobody"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	records := []model.UserProgress{
		{UserID: "c", XP: 50, Level: 1, Username: "carol"},
		{UserID: "a", XP: 700, Level: 3, Username: "alice"},
		{UserID: "b", XP: 700, Level: 3, Username: "bob"},
		{UserID: "d", XP: 5, Level: 1, Username: "dave"},
	}
	for _, r := range records {
		if err := store.SaveProgress(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.UserID, err)
		}
	}
	// overwrite keeps one row per user
	if err := store.SaveProgress(ctx, model.UserProgress{UserID: "d", XP: 60, Level: 1, Username: "dave2"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if n := store.Count(ctx); n != 4 {
		t.Fatalf("count = %d, want 4", n)
	}

	top, err := store.TopN(ctx, 3)
	if err != nil {
		t.Fatalf("top n: %v", err)
	}
	want := []string{"a", "b", "d"}
	for i, id := range want {
		if top[i].UserID != id || top[i].Rank != i+1 {
			t.Fatalf("top[%d] = %+v, want %s at rank %d", i, top[i], id, i+1)
		}
	}
	if top[2].Username != "dave2" {
		t.Fatalf("username = %q, want dave2", top[2].Username)
	}

	for i, id := range []string{"a", "b", "d", "c"} {
		entry, err := store.Rank(ctx, id)
		if err != nil {
			t.Fatalf("rank %s: %v", id, err)
		}
		if entry.Rank != i+1 {
			t.Fatalf("rank %s = %d, want %d", id, entry.Rank, i+1)
		}
	}

	if _, err := store.TopN(ctx, 0); !errors.Is(err, repository.ErrInvalidLimit) {
		t.Fatalf("expected invalid limit, got %v", err)
	}
}

func TestInsertEntryIsInsertIfAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)

	first := model.StarboardEntry{SourceMessageID: "m1", PromotedMessageID: "p1", StarCount: 3, AuthorID: "u1", SourceChannelID: "c1"}
	got, err := store.InsertEntry(ctx, first)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got != first {
		t.Fatalf("got %+v, want %+v", got, first)
	}

	got, err = store.InsertEntry(ctx, model.StarboardEntry{SourceMessageID: "m1", PromotedMessageID: "p2", StarCount: 4})
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if got.PromotedMessageID != "p1" {
		t.Fatalf("promoted id = %q, want p1", got.PromotedMessageID)
	}

	if err := store.UpdateStarCount(ctx, "m1", 7); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = store.GetEntry(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StarCount != 7 || got.PromotedMessageID != "p1" || got.SourceChannelID != "c1" {
		t.Fatalf("unexpected entry %+v", got)
	}

	if err := store.UpdateStarCount(ctx, "missing", 1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)

	if _, err := store.LoadSettings(ctx); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	in := model.DefaultSettings()
	in.Starboard.Enabled = true
	in.Starboard.ChannelID = "stars"
	in.LevelRoles[5] = "roleA"
	in.LevelRoles[10] = "roleB"
	in.RoleNames["roleA"] = "Regular"
	in.IgnoredChannels = []string{"spam"}
	if err := store.SaveSettings(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !out.Starboard.Enabled || out.Starboard.ChannelID != "stars" || out.Starboard.Threshold != 3 {
		t.Fatalf("starboard = %+v", out.Starboard)
	}
	if out.LevelRoles[10] != "roleB" || out.RoleNames["roleA"] != "Regular" || !out.IsIgnored("spam") {
		t.Fatalf("tables = %+v", out)
	}

	in.IgnoredChannels = nil
	if err := store.SaveSettings(ctx, in); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	out, err = store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(out.IgnoredChannels) != 0 {
		t.Fatalf("ignored = %v, want empty", out.IgnoredChannels)
	}
}

func TestApplyMigrationsRunsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	fsys := fstest.MapFS{
		"0002_extra.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE extra (id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE extra;\n")},
	}
	if err := applyMigrations(ctx, store.sqlDB, fsys); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// a second run would fail on CREATE TABLE if it were not skipped
	if err := applyMigrations(ctx, store.sqlDB, fsys); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	applied, err := isApplied(ctx, store.sqlDB, "0002_extra.sql")
	if err != nil || !applied {
		t.Fatalf("applied = %v, err = %v", applied, err)
	}
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	got := upSection("-- +migrate Up\nA;\n-- +migrate Down\nB;\n")
	if got != "\nA;\n" {
		t.Fatalf("up = %q", got)
	}
	if upSection("C;") != "C;" {
		t.Fatal("content without markers should be returned whole")
	}
}
