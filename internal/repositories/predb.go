package repositories

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
)

// DefaultPageSize is used by [PreDBRepository.List] when no limit is given.
const DefaultPageSize = 25

// ListOptions selects one page of a PreDB listing.
type ListOptions struct {
	Offset int
	Limit  int
	Search string // whitespace separated terms, all of which must appear in the title
}

func (o ListOptions) normalized() ListOptions {
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	o.Search = strings.Join(shared.SearchTerms(o.Search), " ")
	return o
}

// PreDBRepository reads and writes PreDB entries and their hash index.
//
// Point lookups always query the database. Listings and counts go through the optional [ListingCache].
type PreDBRepository struct {
	db    *sql.DB
	cache *ListingCache
}

// NewPreDBRepository creates a new PreDBRepository with the given database connection
func NewPreDBRepository(db *sql.DB) *PreDBRepository {
	return &PreDBRepository{db: db}
}

// WithCache attaches a listing cache and returns the repository.
func (r *PreDBRepository) WithCache(cache *ListingCache) *PreDBRepository {
	r.cache = cache
	return r
}

const predbColumns = `p.id, p.title, p.filename, p.source, p.category, p.nuked, p.nukereason, p.created`

// Get retrieves a PreDB entry by id.
func (r *PreDBRepository) Get(ctx context.Context, id int64) (*models.PreDBEntry, error) {
	query := `SELECT ` + predbColumns + ` FROM predb p WHERE p.id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByTitle retrieves the entry whose title equals title exactly.
func (r *PreDBRepository) GetByTitle(ctx context.Context, title string) (*models.PreDBEntry, error) {
	query := `SELECT ` + predbColumns + ` FROM predb p WHERE p.title = ? LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, title))
}

// GetByFilename retrieves the oldest entry whose filename equals filename exactly.
func (r *PreDBRepository) GetByFilename(ctx context.Context, filename string) (*models.PreDBEntry, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: empty filename", shared.ErrNotFound)
	}
	query := `SELECT ` + predbColumns + ` FROM predb p WHERE p.filename = ? ORDER BY p.id ASC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, filename))
}

// GetByHash resolves a hex digest through the hash index. The lookup is case-insensitive.
func (r *PreDBRepository) GetByHash(ctx context.Context, hash string) (*models.PreDBEntry, error) {
	query := `
		SELECT ` + predbColumns + `
		FROM predb_hashes h
		JOIN predb p ON p.id = h.predb_id
		WHERE h.hash = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, strings.ToLower(hash)))
}

// List returns one page of entries ordered by creation time, newest first.
//
// Every search term must appear in the title. Matching is a case-insensitive substring match.
func (r *PreDBRepository) List(ctx context.Context, opts ListOptions) (*models.PreDBPage, error) {
	opts = opts.normalized()

	if page, ok := r.cache.Page(opts); ok {
		return page, nil
	}

	total, err := r.Count(ctx, opts.Search)
	if err != nil {
		return nil, err
	}

	where, args := searchClause(opts.Search)
	query := `
		SELECT ` + predbColumns + `,
			(SELECT r.guid FROM releases r WHERE r.predb_id = p.id ORDER BY r.id LIMIT 1)
		FROM predb p` + where + `
		ORDER BY p.created DESC, p.id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query predb: %v", shared.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	page := &models.PreDBPage{Entries: []*models.PreDBEntry{}, Total: total, Offset: opts.Offset, Limit: opts.Limit}
	for rows.Next() {
		var guid sql.NullString
		entry, err := scanEntry(rows, &guid)
		if err != nil {
			return nil, err
		}
		entry.ReleaseGUID = guid.String
		page.Entries = append(page.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	r.cache.SetPage(opts, page)
	return page, nil
}

// Count returns the number of entries matching search, with the same term semantics as [PreDBRepository.List].
func (r *PreDBRepository) Count(ctx context.Context, search string) (int, error) {
	search = strings.Join(shared.SearchTerms(search), " ")
	if n, ok := r.cache.Count(search); ok {
		return n, nil
	}

	where, args := searchClause(search)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predb p`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count predb: %v", shared.ErrStoreUnavailable, err)
	}

	r.cache.SetCount(search, n)
	return n, nil
}

// Create inserts entry and indexes the digests of its title.
//
// The entry's ID and Created fields are filled in.
func (r *PreDBRepository) Create(ctx context.Context, entry *models.PreDBEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidEntry, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit predb entry: %w", err)
	}

	r.cache.Flush()
	return nil
}

// ImportCSV loads entries from CSV rows of
// "title,filename,source,category,created,nuked,nukereason" and returns how many were inserted.
//
// A leading header row is skipped. Titles that already exist are left untouched.
// Trailing columns may be omitted. Created accepts RFC 3339 or "2006-01-02 15:04:05" and defaults to now.
func (r *PreDBRepository) ImportCSV(ctx context.Context, in io.Reader) (int, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidInput, line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "title") {
			continue
		}

		entry, err := entryFromRecord(record)
		if err != nil {
			return 0, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidInput, line, err)
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM predb WHERE title = ?`, entry.Title).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("failed to check existing title: %w", err)
		}
		if exists > 0 {
			continue
		}

		if err := insertEntry(ctx, tx, entry); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	r.cache.Flush()
	return inserted, nil
}

func entryFromRecord(record []string) (*models.PreDBEntry, error) {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	entry := &models.PreDBEntry{
		Title:      field(0),
		Filename:   field(1),
		Source:     field(2),
		Category:   field(3),
		NukeReason: field(6),
	}

	if created := field(4); created != "" {
		t, err := parseCreated(created)
		if err != nil {
			return nil, err
		}
		entry.Created = t
	}

	nuked, err := models.ParseNukeStatus(field(5))
	if err != nil {
		return nil, err
	}
	entry.Nuked = nuked

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

func parseCreated(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized created time %q", v)
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry *models.PreDBEntry) error {
	if entry.Created.IsZero() {
		entry.Created = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO predb (title, filename, source, category, nuked, nukereason, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Title, entry.Filename, entry.Source, entry.Category,
		int(entry.Nuked), entry.NukeReason, entry.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert predb entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read predb id: %w", err)
	}
	entry.ID = id

	for _, hash := range TitleHashes(entry.Title) {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO predb_hashes (hash, predb_id) VALUES (?, ?)`, hash, id); err != nil {
			return fmt.Errorf("failed to index predb hash: %w", err)
		}
	}
	return nil
}

// TitleHashes returns the lower-case hex digests indexed for a title: md5, md5 of the md5 hex, and sha1.
func TitleHashes(title string) []string {
	md5sum := md5.Sum([]byte(title))
	first := hex.EncodeToString(md5sum[:])
	double := md5.Sum([]byte(first))
	sha := sha1.Sum([]byte(title))
	return []string{first, hex.EncodeToString(double[:]), hex.EncodeToString(sha[:])}
}

// searchClause builds a WHERE clause requiring every term of search in the title.
func searchClause(search string) (string, []any) {
	terms := shared.SearchTerms(search)
	if len(terms) == 0 {
		return "", nil
	}

	conds := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, term := range terms {
		conds[i] = `p.title LIKE ? ESCAPE '\'`
		args[i] = "%" + escapeLike(term) + "%"
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, extra ...any) (*models.PreDBEntry, error) {
	var (
		entry models.PreDBEntry
		nuked int
	)
	dest := append([]any{
		&entry.ID, &entry.Title, &entry.Filename, &entry.Source,
		&entry.Category, &nuked, &entry.NukeReason, &entry.Created,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	entry.Nuked = models.NukeStatus(nuked)
	entry.Created = entry.Created.UTC()
	return &entry, nil
}

// scanOne scans a single [sql.Row] into a [models.PreDBEntry]
func (r *PreDBRepository) scanOne(row *sql.Row) (*models.PreDBEntry, error) {
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("predb entry %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan predb entry: %v", shared.ErrStoreUnavailable, err)
	}
	return entry, nil
}
