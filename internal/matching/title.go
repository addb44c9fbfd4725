package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
)

// Method identifies how a release was matched.
type Method string

const (
	MethodTitle    Method = "title"
	MethodFilename Method = "filename"
	MethodHash     Method = "hash"
)

// PreDBLookup is the subset of the PreDB repository used by the matchers.
//
// Implementations must not serve these from a cache and return an error wrapping shared.ErrNotFound on a miss.
type PreDBLookup interface {
	GetByTitle(ctx context.Context, title string) (*models.PreDBEntry, error)
	GetByFilename(ctx context.Context, filename string) (*models.PreDBEntry, error)
	GetByHash(ctx context.Context, hash string) (*models.PreDBEntry, error)
}

// TitleStrategy is one exact lookup attempted by [TitleMatcher].
type TitleStrategy struct {
	Method Method
	Lookup func(ctx context.Context, predb PreDBLookup, name string) (*models.PreDBEntry, error)
}

var (
	ExactTitle = TitleStrategy{
		Method: MethodTitle,
		Lookup: func(ctx context.Context, predb PreDBLookup, name string) (*models.PreDBEntry, error) {
			return predb.GetByTitle(ctx, name)
		},
	}
	ExactFilename = TitleStrategy{
		Method: MethodFilename,
		Lookup: func(ctx context.Context, predb PreDBLookup, name string) (*models.PreDBEntry, error) {
			return predb.GetByFilename(ctx, name)
		},
	}
)

// DefaultTitleStrategies tries the title before the filename.
var DefaultTitleStrategies = []TitleStrategy{ExactTitle, ExactFilename}

// TitleMatch is a successful title or filename lookup.
type TitleMatch struct {
	PreDBID int64
	Title   string // canonical PreDB title
	Method  Method
}

// TitleMatcher resolves a cleaned release name to a PreDB entry.
type TitleMatcher struct {
	predb      PreDBLookup
	strategies []TitleStrategy
}

// NewTitleMatcher creates a TitleMatcher over strategies, or [DefaultTitleStrategies] when none are given.
func NewTitleMatcher(predb PreDBLookup, strategies ...TitleStrategy) *TitleMatcher {
	if len(strategies) == 0 {
		strategies = DefaultTitleStrategies
	}
	return &TitleMatcher{predb: predb, strategies: strategies}
}

// Match returns the first strategy hit for name, or nil when nothing matches.
//
// An empty name never reaches the store.
func (m *TitleMatcher) Match(ctx context.Context, name string) (*TitleMatch, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	for _, s := range m.strategies {
		entry, err := s.Lookup(ctx, m.predb, name)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s lookup: %w", s.Method, err)
		}
		return &TitleMatch{PreDBID: entry.ID, Title: entry.Title, Method: s.Method}, nil
	}
	return nil, nil
}
