// package testing contains shared testing utilities
package testing

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/prematch/internal/shared"
)

// NewTestDB opens a migrated SQLite database in a temporary directory.
//
// A file is used instead of ":memory:" so a streaming reader and a writer can hold separate connections.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 4, 2)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// PreDBRow describes a predb row inserted by [InsertPreDB].
type PreDBRow struct {
	Title    string
	Filename string
	Source   string
	Category string
	Nuked    int
	Created  time.Time
}

// InsertPreDB writes a predb row without indexing its hashes and returns its id.
func InsertPreDB(t *testing.T, db *sql.DB, row PreDBRow) int64 {
	t.Helper()

	if row.Created.IsZero() {
		row.Created = time.Now().UTC()
	}
	res, err := db.Exec(
		`INSERT INTO predb (title, filename, source, category, nuked, created) VALUES (?, ?, ?, ?, ?, ?)`,
		row.Title, row.Filename, row.Source, row.Category, row.Nuked, row.Created,
	)
	if err != nil {
		t.Fatalf("failed to insert predb row %q: %v", row.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read predb id: %v", err)
	}
	return id
}

// InsertPreDBHash indexes hash for the predb row id.
func InsertPreDBHash(t *testing.T, db *sql.DB, hash string, predbID int64) {
	t.Helper()

	if _, err := db.Exec(`INSERT INTO predb_hashes (hash, predb_id) VALUES (?, ?)`, hash, predbID); err != nil {
		t.Fatalf("failed to insert predb hash: %v", err)
	}
}

// ReleaseRow describes a releases row inserted by [InsertRelease].
//
// NZBStatus defaults to 1 and CategoryID to 10 when left zero.
type ReleaseRow struct {
	GUID         string
	Name         string
	SearchName   string
	CategoryID   int
	GroupID      int64
	AddDate      time.Time
	NZBStatus    int
	IsRenamed    bool
	IsHashed     bool
	DehashStatus int
	PreDBID      int64
}

// InsertRelease writes a releases row and returns its id.
func InsertRelease(t *testing.T, db *sql.DB, row ReleaseRow) int64 {
	t.Helper()

	if row.GUID == "" {
		row.GUID = shared.GenerateID()
	}
	if row.AddDate.IsZero() {
		row.AddDate = time.Now().UTC()
	}
	if row.NZBStatus == 0 {
		row.NZBStatus = 1
	}
	if row.CategoryID == 0 {
		row.CategoryID = 10
	}
	if row.SearchName == "" {
		row.SearchName = row.Name
	}

	res, err := db.Exec(`
		INSERT INTO releases (
			guid, name, searchname, categories_id, groups_id, adddate,
			nzbstatus, isrenamed, ishashed, dehashstatus, predb_id
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.GUID, row.Name, row.SearchName, row.CategoryID, row.GroupID, row.AddDate,
		row.NZBStatus, row.IsRenamed, row.IsHashed, row.DehashStatus, row.PreDBID,
	)
	if err != nil {
		t.Fatalf("failed to insert release %q: %v", row.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read release id: %v", err)
	}
	return id
}

// InsertReleaseFile attaches a file to a release and returns its id.
func InsertReleaseFile(t *testing.T, db *sql.DB, releaseID int64, name string, size int64, hashed bool) int64 {
	t.Helper()

	res, err := db.Exec(
		`INSERT INTO release_files (releases_id, name, size, ishashed) VALUES (?, ?, ?, ?)`,
		releaseID, name, size, hashed,
	)
	if err != nil {
		t.Fatalf("failed to insert release file %q: %v", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read release file id: %v", err)
	}
	return id
}

// ReleaseState is the subset of a releases row the matchers write.
type ReleaseState struct {
	SearchName   string
	CategoryID   int
	IsRenamed    bool
	DehashStatus int
	PreDBID      int64
}

// GetReleaseState reads back the matcher-owned columns of a release.
func GetReleaseState(t *testing.T, db *sql.DB, releaseID int64) ReleaseState {
	t.Helper()

	var s ReleaseState
	err := db.QueryRow(
		`SELECT searchname, categories_id, isrenamed, dehashstatus, predb_id FROM releases WHERE id = ?`,
		releaseID,
	).Scan(&s.SearchName, &s.CategoryID, &s.IsRenamed, &s.DehashStatus, &s.PreDBID)
	if err != nil {
		t.Fatalf("failed to read release %d: %v", releaseID, err)
	}
	return s
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
