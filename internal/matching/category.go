package matching

import (
	"github.com/moistari/rls"

	"github.com/desertthunder/prematch/internal/shared"
)

// Categorizer picks the category of a release renamed to title.
type Categorizer interface {
	Categorize(title string, current int) int
}

// CategorizerFunc adapts a function to [Categorizer].
type CategorizerFunc func(title string, current int) int

func (f CategorizerFunc) Categorize(title string, current int) int { return f(title, current) }

// KeepCategory leaves the release category unchanged.
var KeepCategory = CategorizerFunc(func(_ string, current int) int { return current })

// ReleaseTypeCategorizer parses a scene title and maps the detected release type to a category id.
//
// Titles whose type cannot be detected keep their current category.
type ReleaseTypeCategorizer struct {
	ids map[rls.Type]int
}

// NewReleaseTypeCategorizer builds a categorizer from the configured category ids. Zero ids are ignored.
func NewReleaseTypeCategorizer(cfg shared.CategoriesConfig) *ReleaseTypeCategorizer {
	ids := map[rls.Type]int{
		rls.Movie:     cfg.Movie,
		rls.Episode:   cfg.TV,
		rls.Series:    cfg.TV,
		rls.Music:     cfg.Music,
		rls.Audiobook: cfg.Audiobook,
		rls.Book:      cfg.Book,
		rls.Comic:     cfg.Book,
		rls.Magazine:  cfg.Book,
		rls.App:       cfg.App,
		rls.Game:      cfg.Game,
	}
	for t, id := range ids {
		if id == 0 {
			delete(ids, t)
		}
	}
	return &ReleaseTypeCategorizer{ids: ids}
}

func (c *ReleaseTypeCategorizer) Categorize(title string, current int) int {
	r := rls.ParseString(title)
	if id, ok := c.ids[r.Type]; ok {
		return id
	}
	return current
}
