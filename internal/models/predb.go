package models

import (
	"fmt"
	"strings"
	"time"
)

// NukeStatus is the PreDB quality flag of an entry.
type NukeStatus int

const (
	NukeNone    NukeStatus = iota // not nuked
	NukeUnnuked                   // nuke was lifted
	NukeNuked                     // nuked
	NukeModnuke                   // nuke reason was modified
	NukeRenuked                   // nuked again after an unnuke
	NukeOldnuke                   // nuked for being old
)

func (s NukeStatus) String() string {
	switch s {
	case NukeNone:
		return "none"
	case NukeUnnuked:
		return "unnuked"
	case NukeNuked:
		return "nuked"
	case NukeModnuke:
		return "modnuke"
	case NukeRenuked:
		return "renuked"
	case NukeOldnuke:
		return "oldnuke"
	default:
		return fmt.Sprintf("nuke(%d)", int(s))
	}
}

// Valid reports whether s is one of the known statuses.
func (s NukeStatus) Valid() bool {
	return s >= NukeNone && s <= NukeOldnuke
}

// ParseNukeStatus accepts either the status name or its numeric value.
func ParseNukeStatus(v string) (NukeStatus, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return NukeNone, nil
	}
	for s := NukeNone; s <= NukeOldnuke; s++ {
		if v == s.String() || v == fmt.Sprint(int(s)) {
			return s, nil
		}
	}
	return NukeNone, fmt.Errorf("unknown nuke status %q", v)
}

// PreDBEntry is a canonical release title known ahead of or alongside the release itself.
type PreDBEntry struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Filename   string     `json:"filename,omitempty"`
	Source     string     `json:"source,omitempty"`
	Category   string     `json:"category,omitempty"`
	Created    time.Time  `json:"created"`
	Nuked      NukeStatus `json:"nuked"`
	NukeReason string     `json:"nuke_reason,omitempty"`

	// ReleaseGUID is the guid of one release matched to this entry, filled by listings only.
	ReleaseGUID string `json:"release_guid,omitempty"`
}

// Validate checks that the entry can be stored and matched against.
func (p *PreDBEntry) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !p.Nuked.Valid() {
		return fmt.Errorf("invalid nuke status %d", p.Nuked)
	}
	return nil
}

// PreDBPage is one page of a PreDB listing along with the total count for the same filter.
type PreDBPage struct {
	Entries []*PreDBEntry `json:"entries"`
	Total   int           `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
}
