package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
)

// WritePolicy decides whether matchers persist their outcome.
type WritePolicy int

const (
	DryPreview WritePolicy = iota // report what would change, write nothing
	Apply                         // persist every outcome
)

func (p WritePolicy) String() string {
	switch p {
	case DryPreview:
		return "dry-preview"
	case Apply:
		return "apply"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseWritePolicy accepts "apply" or "dry-preview" (also "dry" and "preview").
func ParseWritePolicy(v string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "apply":
		return Apply, nil
	case "dry-preview", "dry", "preview":
		return DryPreview, nil
	default:
		return DryPreview, fmt.Errorf("%w: unknown write policy %q", shared.ErrInvalidArgument, v)
	}
}

// ReleaseWriter applies hash outcomes to releases. Every method must be safe to repeat.
type ReleaseWriter interface {
	ApplyHashMatch(ctx context.Context, u models.HashMatchUpdate) (bool, error)
	MarkDehashResolved(ctx context.Context, releaseID int64) (bool, error)
	DecrementDehashStatus(ctx context.Context, releaseID int64, floor int) (bool, error)
}

// Outcome classifies a hash attempt.
type Outcome int

const (
	OutcomeMatched  Outcome = iota // resolved to the entry the release is (now) linked to
	OutcomeConflict                // resolved, but the release is linked to another entry
	OutcomeMissed                  // the digest is not in the index
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeConflict:
		return "conflict"
	case OutcomeMissed:
		return "missed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// HashResult describes one hash attempt.
type HashResult struct {
	Outcome    Outcome
	PreDBID    int64
	Title      string
	CategoryID int
	Changed    bool // the release changed, or would under [DryPreview]
}

// ChangedCount is 1 when the release changed and 0 otherwise.
func (r HashResult) ChangedCount() int {
	if r.Changed {
		return 1
	}
	return 0
}

// HashMatcher resolves digests through the PreDB hash index and records the outcome on the release.
type HashMatcher struct {
	predb       PreDBLookup
	writer      ReleaseWriter
	categorizer Categorizer
	floor       int
}

// NewHashMatcher creates a HashMatcher. floor is the exhaustion value of the dehash status and must be negative.
//
// A nil categorizer keeps release categories unchanged.
func NewHashMatcher(predb PreDBLookup, writer ReleaseWriter, categorizer Categorizer, floor int) *HashMatcher {
	if categorizer == nil {
		categorizer = KeepCategory
	}
	return &HashMatcher{predb: predb, writer: writer, categorizer: categorizer, floor: floor}
}

// Floor returns the dehash status at which a release is exhausted.
func (m *HashMatcher) Floor() int { return m.floor }

// Match resolves hash for candidate c.
//
// On a hit the release is linked to the entry, renamed to its title and recategorized, unless it is already linked
// to a different entry; that conflict only concludes the hash attempt. On a miss the dehash status moves one step
// toward the floor. Nothing is written under [DryPreview].
func (m *HashMatcher) Match(ctx context.Context, hash string, c models.HashCandidate, policy WritePolicy) (HashResult, error) {
	entry, err := m.predb.GetByHash(ctx, hash)
	if errors.Is(err, shared.ErrNotFound) {
		if policy == Apply {
			if _, err := m.writer.DecrementDehashStatus(ctx, c.ReleaseID, m.floor); err != nil {
				return HashResult{}, err
			}
		}
		return HashResult{Outcome: OutcomeMissed}, nil
	}
	if err != nil {
		return HashResult{}, err
	}

	if strings.TrimSpace(entry.Title) == "" {
		return HashResult{}, fmt.Errorf("%w: predb %d has an empty title", shared.ErrInvalidEntry, entry.ID)
	}

	if c.PreDBID != 0 && c.PreDBID != entry.ID {
		return m.conflict(ctx, c, entry, policy)
	}

	result := HashResult{
		Outcome:    OutcomeMatched,
		PreDBID:    entry.ID,
		Title:      entry.Title,
		CategoryID: m.categorizer.Categorize(entry.Title, c.CategoryID),
		Changed:    c.PreDBID == 0 || c.SearchName != entry.Title,
	}
	if policy != Apply {
		return result, nil
	}

	written, err := m.writer.ApplyHashMatch(ctx, models.HashMatchUpdate{
		ReleaseID:  c.ReleaseID,
		PreDBID:    entry.ID,
		SearchName: entry.Title,
		CategoryID: result.CategoryID,
	})
	if err != nil {
		return HashResult{}, err
	}
	if !written {
		// Linked elsewhere since the row was read.
		return m.conflict(ctx, c, entry, policy)
	}
	return result, nil
}

func (m *HashMatcher) conflict(ctx context.Context, c models.HashCandidate, entry *models.PreDBEntry, policy WritePolicy) (HashResult, error) {
	if policy == Apply {
		if _, err := m.writer.MarkDehashResolved(ctx, c.ReleaseID); err != nil {
			return HashResult{}, err
		}
	}
	return HashResult{Outcome: OutcomeConflict, PreDBID: entry.ID, Title: entry.Title, CategoryID: c.CategoryID}, nil
}
