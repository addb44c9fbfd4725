package models

import "time"

// NZBStatusPublished marks a release whose NZB has been generated.
const NZBStatusPublished = 1

// DehashResolved is written once a hash attempt concluded with a PreDB hit.
const DehashResolved = 1

// Release is an aggregated download unit built from newsgroup posts.
//
// DehashStatus counts hash attempts: 0 means not yet attempted, negative values count failed lookups
// down to the configured floor, and [DehashResolved] marks a concluded lookup.
type Release struct {
	ID           int64
	GUID         string
	Name         string
	SearchName   string
	CategoryID   int
	GroupID      int64
	AddDate      time.Time
	Size         int64
	NZBStatus    int
	IsRenamed    bool
	IsHashed     bool
	DehashStatus int
	PreDBID      int64
	Files        []ReleaseFile
}

// Matched reports whether the release is linked to a PreDB entry.
func (r *Release) Matched() bool {
	return r.PreDBID > 0
}

// ReleaseFile is a file listed in a release's NZB.
type ReleaseFile struct {
	ID        int64
	ReleaseID int64
	Name      string
	Size      int64
	IsHashed  bool
}

// HashCandidate is one row of the release/file join scanned by the hash correlation pass.
//
// A release with N files yields N candidates; FileName is empty for releases without files.
type HashCandidate struct {
	ReleaseID    int64
	Name         string
	SearchName   string
	CategoryID   int
	GroupID      int64
	DehashStatus int
	PreDBID      int64
	FileName     string
}

// UnmatchedRelease is a release without a PreDB link, as scanned by the direct title pass.
type UnmatchedRelease struct {
	ID         int64
	SearchName string
}

// HashMatchUpdate carries the fields written when a hash resolves to a PreDB entry.
type HashMatchUpdate struct {
	ReleaseID  int64
	PreDBID    int64
	SearchName string
	CategoryID int
}
