package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
	tu "github.com/desertthunder/prematch/internal/testing"
)

func collectCandidates(t *testing.T, repo *ReleaseRepository, sel HashSelection) []models.HashCandidate {
	t.Helper()

	var got []models.HashCandidate
	err := repo.EachHashCandidate(context.Background(), sel, func(c models.HashCandidate) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to stream candidates: %v", err)
	}
	return got
}

func TestReleaseRepositoryHashCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("Base predicate", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)

		eligible := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "eligible", IsHashed: true})
		viaFile := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "via-file"})
		tu.InsertReleaseFile(t, db, viaFile, "abc.rar", 100, true)

		unpublished := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "unpublished", IsHashed: true, NZBStatus: 2})
		exhausted := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "exhausted", IsHashed: true, DehashStatus: -6})
		resolved := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "resolved", IsHashed: true, DehashStatus: 1})
		plain := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "plain"})
		tu.InsertReleaseFile(t, db, plain, "plain.nfo", 10, false)

		got := collectCandidates(t, repo, HashSelection{Floor: -6})
		ids := map[int64]bool{}
		for _, c := range got {
			ids[c.ReleaseID] = true
		}

		for _, id := range []int64{eligible, viaFile} {
			if !ids[id] {
				t.Errorf("release %d should be selected", id)
			}
		}
		for _, id := range []int64{unpublished, exhausted, resolved, plain} {
			if ids[id] {
				t.Errorf("release %d should not be selected", id)
			}
		}

		n, err := repo.CountHashCandidates(ctx, HashSelection{Floor: -6})
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != len(got) {
			t.Errorf("count %d does not match streamed rows %d", n, len(got))
		}
	})

	t.Run("Floor boundary", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)

		tt := []struct {
			status int
			want   bool
		}{
			{status: 0, want: true},
			{status: -1, want: true},
			{status: -5, want: true},
			{status: -6, want: false},
			{status: 1, want: false},
		}

		ids := make(map[int64]int)
		for _, tc := range tt {
			ids[tu.InsertRelease(t, db, tu.ReleaseRow{Name: "r", IsHashed: true, DehashStatus: tc.status})] = tc.status
		}

		seen := map[int]bool{}
		for _, c := range collectCandidates(t, repo, HashSelection{Floor: -6}) {
			seen[ids[c.ReleaseID]] = true
		}

		for _, tc := range tt {
			if seen[tc.status] != tc.want {
				t.Errorf("status %d: selected=%v, want %v", tc.status, seen[tc.status], tc.want)
			}
		}
	})

	t.Run("Files ordered by size descending within a release", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)

		first := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "first", IsHashed: true})
		tu.InsertReleaseFile(t, db, first, "small.nfo", 10, false)
		tu.InsertReleaseFile(t, db, first, "large.mkv", 1000, false)
		second := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "second", IsHashed: true})
		tu.InsertReleaseFile(t, db, second, "only.rar", 50, false)

		got := collectCandidates(t, repo, HashSelection{Floor: -6})
		want := []string{"large.mkv", "small.nfo", "only.rar"}
		if len(got) != len(want) {
			t.Fatalf("expected %d rows, got %d", len(want), len(got))
		}
		for i, name := range want {
			if got[i].FileName != name {
				t.Errorf("row %d: expected %s, got %s", i, name, got[i].FileName)
			}
		}
	})

	t.Run("Window filters", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)
		now := time.Now().UTC()

		recent := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "recent", IsHashed: true, GroupID: 7, AddDate: now.Add(-time.Hour)})
		old := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "old", IsHashed: true, GroupID: 7, AddDate: now.Add(-5 * time.Hour)})
		otherGroup := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "other", IsHashed: true, GroupID: 8, AddDate: now.Add(-time.Hour)})
		renamed := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "renamed", IsHashed: true, CategoryID: 20, IsRenamed: true})
		misc := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "misc", IsHashed: true, CategoryID: 20})
		matched := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "matched", IsHashed: true, CategoryID: 2000, PreDBID: 3})

		tt := []struct {
			name string
			sel  HashSelection
			want []int64
		}{
			{
				name: "recent in group",
				sel:  HashSelection{Floor: -6, AddedAfter: now.Add(-3 * time.Hour), GroupID: 7, RequireUnrenamed: true},
				want: []int64{recent},
			},
			{
				name: "recent any group",
				sel:  HashSelection{Floor: -6, AddedAfter: now.Add(-3 * time.Hour), RequireUnrenamed: true},
				want: []int64{recent, otherGroup, misc, matched},
			},
			{
				name: "category",
				sel:  HashSelection{Floor: -6, Categories: []int{10, 20}, RequireUnrenamed: true},
				want: []int64{recent, old, otherGroup, misc},
			},
			{
				name: "retry",
				sel:  HashSelection{Floor: -6, RequireUnmatched: true},
				want: []int64{recent, old, otherGroup, renamed, misc},
			},
			{
				name: "category with no categories",
				sel:  HashSelection{Floor: -6, ByCategory: true, RequireUnrenamed: true},
				want: []int64{},
			},
			{
				name: "limit",
				sel:  HashSelection{Floor: -6, Limit: 2},
				want: []int64{recent, old},
			},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				got := collectCandidates(t, repo, tc.sel)
				if len(got) != len(tc.want) {
					t.Fatalf("expected %d rows, got %d: %+v", len(tc.want), len(got), got)
				}
				for i, id := range tc.want {
					if got[i].ReleaseID != id {
						t.Errorf("row %d: expected release %d, got %d", i, id, got[i].ReleaseID)
					}
				}

				n, err := repo.CountHashCandidates(ctx, tc.sel)
				if err != nil {
					t.Fatalf("failed to count: %v", err)
				}
				if n != len(tc.want) {
					t.Errorf("expected count %d, got %d", len(tc.want), n)
				}
			})
		}
	})

	t.Run("Callback error stops the stream", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)

		tu.InsertRelease(t, db, tu.ReleaseRow{Name: "a", IsHashed: true})
		tu.InsertRelease(t, db, tu.ReleaseRow{Name: "b", IsHashed: true})

		stop := errors.New("stop")
		calls := 0
		err := repo.EachHashCandidate(ctx, HashSelection{Floor: -6}, func(models.HashCandidate) error {
			calls++
			return stop
		})
		if !errors.Is(err, stop) {
			t.Errorf("expected callback error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("Closed database is a store error", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)
		db.Close()

		if _, err := repo.CountHashCandidates(ctx, HashSelection{Floor: -6}); !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestReleaseRepositorySingleConnection(t *testing.T) {
	ctx := context.Background()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	repo := NewReleaseRepository(db)

	called := false
	err = repo.EachHashCandidate(ctx, HashSelection{Floor: -6}, func(models.HashCandidate) error {
		called = true
		return nil
	})
	if !errors.Is(err, shared.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from hash stream, got %v", err)
	}

	err = repo.EachUnmatched(ctx, UnmatchedSelection{}, func(models.UnmatchedRelease) error {
		called = true
		return nil
	})
	if !errors.Is(err, shared.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from unmatched stream, got %v", err)
	}
	if called {
		t.Error("callback should not run on a single-connection pool")
	}
}

func TestReleaseRepositoryUnmatched(t *testing.T) {
	ctx := context.Background()
	db := tu.NewTestDB(t)
	repo := NewReleaseRepository(db)
	now := time.Now().UTC()

	fresh := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "Fresh", GroupID: 1, AddDate: now.Add(-time.Hour)})
	stale := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "Stale", GroupID: 2, AddDate: now.Add(-72 * time.Hour)})
	tu.InsertRelease(t, db, tu.ReleaseRow{Name: "Matched", PreDBID: 9})

	tt := []struct {
		name string
		sel  UnmatchedSelection
		want []int64
	}{
		{name: "all", sel: UnmatchedSelection{}, want: []int64{fresh, stale}},
		{name: "recent days", sel: UnmatchedSelection{AddedAfter: now.Add(-24 * time.Hour)}, want: []int64{fresh}},
		{name: "group", sel: UnmatchedSelection{GroupID: 2}, want: []int64{stale}},
		{name: "limit", sel: UnmatchedSelection{Limit: 1}, want: []int64{fresh}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var got []int64
			err := repo.EachUnmatched(ctx, tc.sel, func(u models.UnmatchedRelease) error {
				got = append(got, u.ID)
				return nil
			})
			if err != nil {
				t.Fatalf("failed to stream: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("expected %v, got %v", tc.want, got)
				}
			}

			n, err := repo.CountUnmatched(ctx, tc.sel)
			if err != nil {
				t.Fatalf("failed to count: %v", err)
			}
			if n != len(tc.want) {
				t.Errorf("expected count %d, got %d", len(tc.want), n)
			}
		})
	}
}

func TestReleaseRepositoryWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("SetPreDBID never overwrites", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)
		id := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "r"})

		written, err := repo.SetPreDBID(ctx, id, 5)
		if err != nil || !written {
			t.Fatalf("expected first write, got %v %v", written, err)
		}

		written, err = repo.SetPreDBID(ctx, id, 5)
		if err != nil || written {
			t.Errorf("repeating the write should be a no-op, got %v %v", written, err)
		}

		written, err = repo.SetPreDBID(ctx, id, 6)
		if err != nil || written {
			t.Errorf("a different entry should not overwrite, got %v %v", written, err)
		}

		if got := tu.GetReleaseState(t, db, id).PreDBID; got != 5 {
			t.Errorf("expected predb id 5, got %d", got)
		}
	})

	t.Run("ApplyHashMatch", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)
		id := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "hashed", IsHashed: true, DehashStatus: -2})

		update := models.HashMatchUpdate{ReleaseID: id, PreDBID: 4, SearchName: "Canonical.Title", CategoryID: 2000}
		written, err := repo.ApplyHashMatch(ctx, update)
		if err != nil || !written {
			t.Fatalf("expected write, got %v %v", written, err)
		}

		state := tu.GetReleaseState(t, db, id)
		want := tu.ReleaseState{SearchName: "Canonical.Title", CategoryID: 2000, IsRenamed: true, DehashStatus: 1, PreDBID: 4}
		if state != want {
			t.Errorf("expected %+v, got %+v", want, state)
		}

		update.PreDBID = 8
		update.SearchName = "Other.Title"
		written, err = repo.ApplyHashMatch(ctx, update)
		if err != nil || written {
			t.Errorf("a different entry should not be applied, got %v %v", written, err)
		}
		if got := tu.GetReleaseState(t, db, id); got != want {
			t.Errorf("release changed by guarded write: %+v", got)
		}
	})

	t.Run("DecrementDehashStatus stops at the floor", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)

		tt := []struct {
			name    string
			start   int
			want    int
			written bool
		}{
			{name: "unattempted", start: 0, want: -1, written: true},
			{name: "retrying", start: -1, want: -2, written: true},
			{name: "last retry", start: -5, want: -6, written: true},
			{name: "at floor", start: -6, want: -6, written: false},
			{name: "below floor", start: -9, want: -9, written: false},
			{name: "resolved", start: 1, want: 1, written: false},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				id := tu.InsertRelease(t, db, tu.ReleaseRow{Name: tc.name, DehashStatus: tc.start})

				written, err := repo.DecrementDehashStatus(ctx, id, -6)
				if err != nil {
					t.Fatalf("failed to decrement: %v", err)
				}
				if written != tc.written {
					t.Errorf("expected written=%v, got %v", tc.written, written)
				}
				if got := tu.GetReleaseState(t, db, id).DehashStatus; got != tc.want {
					t.Errorf("expected status %d, got %d", tc.want, got)
				}
			})
		}
	})

	t.Run("MarkDehashResolved keeps the link", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)
		id := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "r", DehashStatus: -3, PreDBID: 2})

		if _, err := repo.MarkDehashResolved(ctx, id); err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		state := tu.GetReleaseState(t, db, id)
		if state.DehashStatus != 1 || state.PreDBID != 2 {
			t.Errorf("unexpected state %+v", state)
		}
	})

	t.Run("Get includes files", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewReleaseRepository(db)
		id := tu.InsertRelease(t, db, tu.ReleaseRow{Name: "with-files"})
		tu.InsertReleaseFile(t, db, id, "a.nfo", 1, false)
		tu.InsertReleaseFile(t, db, id, "b.mkv", 9, true)

		rel, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("failed to get release: %v", err)
		}
		if len(rel.Files) != 2 || rel.Files[0].Name != "b.mkv" || !rel.Files[0].IsHashed {
			t.Errorf("unexpected files %+v", rel.Files)
		}
		if rel.Matched() {
			t.Error("release should not be matched")
		}

		if _, err := repo.Get(ctx, id+100); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
