package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/prematch/internal/models"
)

var _ list.Item = entryItem{}

// entryItem wraps [models.PreDBEntry] to implement [list.Item].
type entryItem struct {
	entry *models.PreDBEntry
}

func (i entryItem) FilterValue() string { return i.entry.Title }
func (i entryItem) Title() string       { return i.entry.Title }
func (i entryItem) Description() string {
	desc := humanize.Time(i.entry.Created)
	if i.entry.Category != "" {
		desc = fmt.Sprintf("%s • %s", i.entry.Category, desc)
	}
	if i.entry.Nuked != models.NukeNone {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Nuked)
	}
	if i.entry.ReleaseGUID != "" {
		desc = fmt.Sprintf("%s • matched", desc)
	}
	return desc
}
