package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
	tu "github.com/desertthunder/prematch/internal/testing"
)

func TestPreDBRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create indexes title hashes", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		entry := &models.PreDBEntry{Title: "Some.Release.PROPER", Source: "test"}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}
		if entry.ID == 0 {
			t.Fatal("entry ID should be set after creation")
		}
		if entry.Created.IsZero() {
			t.Error("created should default to now")
		}

		for _, hash := range TitleHashes(entry.Title) {
			got, err := repo.GetByHash(ctx, strings.ToUpper(hash))
			if err != nil {
				t.Fatalf("hash %s should resolve: %v", hash, err)
			}
			if got.ID != entry.ID {
				t.Errorf("hash %s resolved to %d, expected %d", hash, got.ID, entry.ID)
			}
		}
	})

	t.Run("Create rejects empty title", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		err := repo.Create(ctx, &models.PreDBEntry{Title: "  "})
		if !errors.Is(err, shared.ErrInvalidEntry) {
			t.Errorf("expected ErrInvalidEntry, got %v", err)
		}
	})

	t.Run("Point lookups", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		id := tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Movie.2024.1080p.BluRay-GRP", Filename: "grp-movie1080", Nuked: 2})

		tt := []struct {
			name   string
			lookup func() (*models.PreDBEntry, error)
		}{
			{name: "by id", lookup: func() (*models.PreDBEntry, error) { return repo.Get(ctx, id) }},
			{name: "by title", lookup: func() (*models.PreDBEntry, error) { return repo.GetByTitle(ctx, "Movie.2024.1080p.BluRay-GRP") }},
			{name: "by filename", lookup: func() (*models.PreDBEntry, error) { return repo.GetByFilename(ctx, "grp-movie1080") }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				entry, err := tc.lookup()
				if err != nil {
					t.Fatalf("lookup failed: %v", err)
				}
				if entry.ID != id {
					t.Errorf("expected id %d, got %d", id, entry.ID)
				}
				if entry.Nuked != models.NukeNuked {
					t.Errorf("expected nuked status, got %s", entry.Nuked)
				}
			})
		}
	})

	t.Run("Lookups report not found", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		tt := []struct {
			name string
			err  error
		}{
			{name: "id", err: func() error { _, err := repo.Get(ctx, 42); return err }()},
			{name: "title", err: func() error { _, err := repo.GetByTitle(ctx, "missing"); return err }()},
			{name: "filename", err: func() error { _, err := repo.GetByFilename(ctx, "missing"); return err }()},
			{name: "empty filename", err: func() error { _, err := repo.GetByFilename(ctx, ""); return err }()},
			{name: "hash", err: func() error { _, err := repo.GetByHash(ctx, strings.Repeat("a", 32)); return err }()},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				if !errors.Is(tc.err, shared.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", tc.err)
				}
			})
		}
	})

	t.Run("List matches every search term, newest first", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		older := tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Foo.Bar.2019", Created: base})
		newer := tu.InsertPreDB(t, db, tu.PreDBRow{Title: "bar.and.foo.2020", Created: base.Add(time.Hour)})
		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Foo.Only", Created: base.Add(2 * time.Hour)})
		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Bar.Only", Created: base.Add(3 * time.Hour)})

		page, err := repo.List(ctx, ListOptions{Search: "foo bar", Limit: 10})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}

		if page.Total != 2 {
			t.Errorf("expected total 2, got %d", page.Total)
		}
		if len(page.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(page.Entries))
		}
		if page.Entries[0].ID != newer || page.Entries[1].ID != older {
			t.Errorf("expected [%d %d], got [%d %d]", newer, older, page.Entries[0].ID, page.Entries[1].ID)
		}
	})

	t.Run("List paginates", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		for i := range 5 {
			tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Show.S01E0" + string(rune('1'+i)), Created: base.Add(time.Duration(i) * time.Minute)})
		}

		page, err := repo.List(ctx, ListOptions{Offset: 2, Limit: 2})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if page.Total != 5 {
			t.Errorf("expected total 5, got %d", page.Total)
		}
		if len(page.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(page.Entries))
		}
		if page.Entries[0].Title != "Show.S01E03" {
			t.Errorf("expected Show.S01E03 first on the second page, got %s", page.Entries[0].Title)
		}

		page, err = repo.List(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if page.Limit != DefaultPageSize {
			t.Errorf("expected default limit %d, got %d", DefaultPageSize, page.Limit)
		}
	})

	t.Run("List escapes wildcards", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "100%_Pure"})
		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "100.Pure"})

		n, err := repo.Count(ctx, "100%_")
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 literal match, got %d", n)
		}
	})

	t.Run("List includes a matched release guid", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		id := tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Linked.Title"})
		tu.InsertRelease(t, db, tu.ReleaseRow{GUID: "guid-1", Name: "x", PreDBID: id})

		page, err := repo.List(ctx, ListOptions{Search: "linked"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(page.Entries) != 1 || page.Entries[0].ReleaseGUID != "guid-1" {
			t.Errorf("expected release guid guid-1, got %+v", page.Entries)
		}
	})

	t.Run("Listing cache", func(t *testing.T) {
		db := tu.NewTestDB(t)
		cache := NewListingCache(time.Minute)
		repo := NewPreDBRepository(db).WithCache(cache)

		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Cached.One"})

		first, err := repo.List(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		first.Entries[0].Title = "Edited.Before.Caching"

		// Rows inserted behind the repository's back are not visible until the cache is flushed.
		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Cached.Two"})
		page, err := repo.List(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if page.Total != 1 {
			t.Errorf("expected cached total 1, got %d", page.Total)
		}

		page.Entries[0].Title = "Edited.By.Caller"
		again, err := repo.List(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if again.Entries[0].Title != "Cached.One" {
			t.Errorf("cached entry changed through a returned page: %q", again.Entries[0].Title)
		}

		if _, err := repo.GetByTitle(ctx, "Cached.Two"); err != nil {
			t.Errorf("point lookups should bypass the cache: %v", err)
		}

		if err := repo.Create(ctx, &models.PreDBEntry{Title: "Cached.Three"}); err != nil {
			t.Fatalf("failed to create: %v", err)
		}
		if cache.Len() != 0 {
			t.Errorf("expected cache to be flushed after create, has %d items", cache.Len())
		}

		page, err = repo.List(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if page.Total != 3 {
			t.Errorf("expected total 3 after flush, got %d", page.Total)
		}
	})
}

func TestPreDBImportCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("Imports rows and skips existing titles", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPreDBRepository(db)

		tu.InsertPreDB(t, db, tu.PreDBRow{Title: "Already.Here"})

		input := `title,filename,source,category,created,nuked,nukereason
Album-Artist-2024-GRP,artist-album,srrdb,MP3,2024-05-01 10:00:00,,
Already.Here,,,,,,
Bad.Rip-GRP,,predb,XVID,2024-05-02T10:00:00Z,nuked,bad.audio
`
		n, err := repo.ImportCSV(ctx, strings.NewReader(input))
		if err != nil {
			t.Fatalf("failed to import: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 inserted rows, got %d", n)
		}

		entry, err := repo.GetByTitle(ctx, "Bad.Rip-GRP")
		if err != nil {
			t.Fatalf("imported entry should exist: %v", err)
		}
		if entry.Nuked != models.NukeNuked || entry.NukeReason != "bad.audio" {
			t.Errorf("unexpected nuke fields: %s %q", entry.Nuked, entry.NukeReason)
		}

		if _, err := repo.GetByHash(ctx, TitleHashes("Album-Artist-2024-GRP")[2]); err != nil {
			t.Errorf("imported entries should be hash indexed: %v", err)
		}
	})

	t.Run("Rejects invalid rows", func(t *testing.T) {
		tt := []struct {
			name  string
			input string
		}{
			{name: "empty title", input: ",file\n"},
			{name: "bad created", input: "Title,,,,yesterday\n"},
			{name: "bad nuke status", input: "Title,,,,,sometimes\n"},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				db := tu.NewTestDB(t)
				repo := NewPreDBRepository(db)

				_, err := repo.ImportCSV(ctx, strings.NewReader(tc.input))
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}

				n, err := repo.Count(ctx, "")
				if err != nil {
					t.Fatalf("failed to count: %v", err)
				}
				if n != 0 {
					t.Errorf("failed import should not leave rows, found %d", n)
				}
			})
		}
	})
}

func TestTitleHashes(t *testing.T) {
	hashes := TitleHashes("abc")

	tt := []struct {
		name string
		got  string
		want string
	}{
		{name: "md5", got: hashes[0], want: "900150983cd24fb0d6963f7d28e17f72"},
		{name: "md5 of md5", got: hashes[1], want: "ec0405c5aef93e771cd80e0db180b88b"},
		{name: "sha1", got: hashes[2], want: "a9993e364706816aba3e25717850c26c9cd0d89d"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, tc.got)
			}
		})
	}
}
