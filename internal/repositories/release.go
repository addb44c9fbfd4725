package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
)

// HashSelection is the predicate of one hash correlation pass.
//
// Every selection is limited to published releases whose dehash status lies in (Floor, 0]
// and where the release or one of its files is flagged as hashed.
type HashSelection struct {
	Floor            int
	AddedAfter       time.Time // zero selects any add date
	GroupID          int64     // 0 selects every group
	Categories       []int     // empty selects every category unless ByCategory is set
	ByCategory       bool      // restrict to Categories, so an empty list selects nothing
	RequireUnrenamed bool
	RequireUnmatched bool
	Limit            int // 0 means no limit
}

// UnmatchedSelection is the predicate of one direct title pass.
type UnmatchedSelection struct {
	AddedAfter time.Time // zero selects any add date
	GroupID    int64     // 0 selects every group
	Limit      int       // 0 means no limit
}

// ReleaseRepository streams release rows to the matchers and applies their idempotent writes.
//
// Releases are created by the collection stage; this repository never inserts or deletes them.
type ReleaseRepository struct {
	db *sql.DB
}

// NewReleaseRepository creates a new ReleaseRepository with the given database connection
func NewReleaseRepository(db *sql.DB) *ReleaseRepository {
	return &ReleaseRepository{db: db}
}

func storeErr(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", shared.ErrStoreUnavailable, action, err)
}

// streamable reports whether the pool can keep a cursor open while the callback writes.
func (r *ReleaseRepository) streamable() error {
	if r.db.Stats().MaxOpenConnections == 1 {
		return fmt.Errorf("%w: streaming needs at least two database connections", shared.ErrStoreUnavailable)
	}
	return nil
}

// Get retrieves a release and its files by id.
func (r *ReleaseRepository) Get(ctx context.Context, id int64) (*models.Release, error) {
	query := `
		SELECT id, guid, name, searchname, categories_id, groups_id, adddate, size,
			nzbstatus, isrenamed, ishashed, dehashstatus, predb_id
		FROM releases
		WHERE id = ?
	`

	var rel models.Release
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rel.ID, &rel.GUID, &rel.Name, &rel.SearchName, &rel.CategoryID, &rel.GroupID,
		&rel.AddDate, &rel.Size, &rel.NZBStatus, &rel.IsRenamed, &rel.IsHashed,
		&rel.DehashStatus, &rel.PreDBID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("release %d %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("failed to scan release", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, releases_id, name, size, ishashed FROM release_files WHERE releases_id = ? ORDER BY size DESC, id ASC`, id)
	if err != nil {
		return nil, storeErr("failed to query release files", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.ReleaseFile
		if err := rows.Scan(&f.ID, &f.ReleaseID, &f.Name, &f.Size, &f.IsHashed); err != nil {
			return nil, storeErr("failed to scan release file", err)
		}
		rel.Files = append(rel.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("release file iteration", err)
	}

	return &rel, nil
}

func (s HashSelection) query(columns string) (string, []any) {
	var b strings.Builder
	args := []any{models.NZBStatusPublished, s.Floor}

	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(`
		FROM releases r
		LEFT JOIN release_files rf ON rf.releases_id = r.id
		WHERE r.nzbstatus = ?
			AND r.dehashstatus > ? AND r.dehashstatus <= 0
			AND (r.ishashed = 1 OR rf.ishashed = 1)`)

	if s.RequireUnrenamed {
		b.WriteString(" AND r.isrenamed = 0")
	}
	if s.RequireUnmatched {
		b.WriteString(" AND r.predb_id = 0")
	}
	if !s.AddedAfter.IsZero() {
		b.WriteString(" AND r.adddate > ?")
		args = append(args, s.AddedAfter.UTC())
	}
	if s.GroupID > 0 {
		b.WriteString(" AND r.groups_id = ?")
		args = append(args, s.GroupID)
	}
	if s.ByCategory && len(s.Categories) == 0 {
		b.WriteString(" AND 0")
	}
	if len(s.Categories) > 0 {
		b.WriteString(" AND r.categories_id IN (?" + strings.Repeat(", ?", len(s.Categories)-1) + ")")
		for _, c := range s.Categories {
			args = append(args, c)
		}
	}

	b.WriteString(" ORDER BY r.id ASC, rf.size DESC, rf.id ASC")
	if s.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, s.Limit)
	}
	return b.String(), args
}

// CountHashCandidates returns how many rows [ReleaseRepository.EachHashCandidate] would visit for sel.
func (r *ReleaseRepository) CountHashCandidates(ctx context.Context, sel HashSelection) (int, error) {
	inner, args := sel.query("r.id")

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ("+inner+")", args...).Scan(&n); err != nil {
		return 0, storeErr("failed to count hash candidates", err)
	}
	return n, nil
}

// EachHashCandidate streams the release/file rows selected by sel to fn, one row at a time.
//
// Rows are ordered by release id, then by file size descending. An error returned by fn stops the
// stream and is returned unchanged.
func (r *ReleaseRepository) EachHashCandidate(ctx context.Context, sel HashSelection, fn func(models.HashCandidate) error) error {
	query, args := sel.query(`r.id, r.name, r.searchname, r.categories_id, r.groups_id,
		r.dehashstatus, r.predb_id, rf.name`)

	if err := r.streamable(); err != nil {
		return err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storeErr("failed to query hash candidates", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c        models.HashCandidate
			fileName sql.NullString
		)
		if err := rows.Scan(&c.ReleaseID, &c.Name, &c.SearchName, &c.CategoryID, &c.GroupID,
			&c.DehashStatus, &c.PreDBID, &fileName); err != nil {
			return storeErr("failed to scan hash candidate", err)
		}
		c.FileName = fileName.String

		if err := fn(c); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storeErr("hash candidate iteration", err)
	}
	return nil
}

func (s UnmatchedSelection) query(columns string) (string, []any) {
	query := "SELECT " + columns + " FROM releases r WHERE r.predb_id = 0"
	var args []any

	if !s.AddedAfter.IsZero() {
		query += " AND r.adddate > ?"
		args = append(args, s.AddedAfter.UTC())
	}
	if s.GroupID > 0 {
		query += " AND r.groups_id = ?"
		args = append(args, s.GroupID)
	}
	query += " ORDER BY r.id ASC"
	if s.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, s.Limit)
	}
	return query, args
}

// CountUnmatched returns how many releases [ReleaseRepository.EachUnmatched] would visit for sel.
func (r *ReleaseRepository) CountUnmatched(ctx context.Context, sel UnmatchedSelection) (int, error) {
	inner, args := sel.query("r.id")

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ("+inner+")", args...).Scan(&n); err != nil {
		return 0, storeErr("failed to count unmatched releases", err)
	}
	return n, nil
}

// EachUnmatched streams releases without a PreDB link to fn in id order.
func (r *ReleaseRepository) EachUnmatched(ctx context.Context, sel UnmatchedSelection, fn func(models.UnmatchedRelease) error) error {
	query, args := sel.query("r.id, r.searchname")

	if err := r.streamable(); err != nil {
		return err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storeErr("failed to query unmatched releases", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UnmatchedRelease
		if err := rows.Scan(&u.ID, &u.SearchName); err != nil {
			return storeErr("failed to scan unmatched release", err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storeErr("unmatched release iteration", err)
	}
	return nil
}

func (r *ReleaseRepository) exec(ctx context.Context, action, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, storeErr(action, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("failed to get affected rows", err)
	}
	return n > 0, nil
}

// SetPreDBID links an unmatched release to a PreDB entry.
//
// An existing link is never replaced, so repeating the call is a no-op. Reports whether the row was written.
func (r *ReleaseRepository) SetPreDBID(ctx context.Context, releaseID, predbID int64) (bool, error) {
	return r.exec(ctx, "failed to set predb id",
		`UPDATE releases SET predb_id = ? WHERE id = ? AND predb_id = 0`,
		predbID, releaseID)
}

// ApplyHashMatch writes a resolved hash match: PreDB link, canonical searchname, category, renamed flag
// and a resolved dehash status.
//
// The write only happens while the release is unlinked or already linked to the same entry.
// Reports whether the guard held.
func (r *ReleaseRepository) ApplyHashMatch(ctx context.Context, u models.HashMatchUpdate) (bool, error) {
	return r.exec(ctx, "failed to apply hash match", `
		UPDATE releases
		SET predb_id = ?, searchname = ?, categories_id = ?, isrenamed = 1, dehashstatus = ?
		WHERE id = ? AND predb_id IN (0, ?)`,
		u.PreDBID, u.SearchName, u.CategoryID, models.DehashResolved, u.ReleaseID, u.PreDBID)
}

// MarkDehashResolved concludes the hash path for a release without touching its PreDB link.
func (r *ReleaseRepository) MarkDehashResolved(ctx context.Context, releaseID int64) (bool, error) {
	return r.exec(ctx, "failed to resolve dehash status",
		`UPDATE releases SET dehashstatus = ? WHERE id = ? AND dehashstatus <= 0`,
		models.DehashResolved, releaseID)
}

// DecrementDehashStatus records a failed hash lookup by moving the dehash status one step toward floor.
//
// Releases already at the floor, or resolved, are left unchanged.
func (r *ReleaseRepository) DecrementDehashStatus(ctx context.Context, releaseID int64, floor int) (bool, error) {
	return r.exec(ctx, "failed to decrement dehash status", `
		UPDATE releases
		SET dehashstatus = MAX(dehashstatus - 1, ?)
		WHERE id = ? AND dehashstatus > ? AND dehashstatus <= 0`,
		floor, releaseID, floor)
}
