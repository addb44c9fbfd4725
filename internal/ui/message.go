package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPageFetched MsgKind = iota
	MsgProgressUpdate
	MsgRunComplete
)

type pageFetched struct {
	page *models.PreDBPage
	err  error
}

type runComplete struct {
	summaries []*tasks.MatchSummary
	err       error
}

// pageFetchedMsg is the constructor for [MsgPageFetched]
func pageFetchedMsg(page *models.PreDBPage, err error) Msg {
	return Msg{kind: MsgPageFetched, data: pageFetched{page, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(summaries []*tasks.MatchSummary, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{summaries, err}}
}
