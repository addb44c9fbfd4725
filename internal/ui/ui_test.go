package ui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/tasks"
)

type fakeLister struct {
	entries []*models.PreDBEntry
	calls   []repositories.ListOptions
	err     error
}

func (f *fakeLister) List(_ context.Context, opts repositories.ListOptions) (*models.PreDBPage, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	end := min(opts.Offset+opts.Limit, len(f.entries))
	start := min(opts.Offset, end)
	return &models.PreDBPage{Entries: f.entries[start:end], Total: len(f.entries), Offset: opts.Offset, Limit: opts.Limit}, nil
}

func newLister(n int) *fakeLister {
	f := &fakeLister{}
	for i := range n {
		f.entries = append(f.entries, &models.PreDBEntry{ID: int64(i + 1), Title: fmt.Sprintf("Release.%02d-GRP", i+1), Created: time.Now()})
	}
	return f
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// send applies msg and returns the resulting command.
func send(t *testing.T, m *Model, msg tea.Msg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(msg)
	return cmd
}

func loaded(t *testing.T, lister *fakeLister, run RunFunc) *Model {
	t.Helper()
	m := NewModel(context.Background(), lister, run)
	send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	send(t, m, m.Init()())
	require.NotNil(t, m.page)
	return m
}

func TestBrowse(t *testing.T) {
	t.Run("Pages forward and back", func(t *testing.T) {
		lister := newLister(30)
		m := loaded(t, lister, nil)
		assert.Contains(t, m.View(), "PreDB 1-25 of 30")

		cmd := send(t, m, keyMsg("n"))
		require.NotNil(t, cmd)
		send(t, m, cmd())
		assert.Equal(t, 25, m.offset)
		assert.Contains(t, m.View(), "PreDB 26-30 of 30")

		assert.Nil(t, send(t, m, keyMsg("n")), "no page past the end")

		cmd = send(t, m, keyMsg("p"))
		require.NotNil(t, cmd)
		send(t, m, cmd())
		assert.Zero(t, m.offset)
	})

	t.Run("Search resets the offset", func(t *testing.T) {
		lister := newLister(30)
		m := loaded(t, lister, nil)
		send(t, m, send(t, m, keyMsg("n"))())

		send(t, m, keyMsg("/"))
		assert.True(t, m.searching)
		for _, r := range "foo bar" {
			send(t, m, keyMsg(string(r)))
		}
		cmd := send(t, m, keyMsg("enter"))
		require.NotNil(t, cmd)
		send(t, m, cmd())

		last := lister.calls[len(lister.calls)-1]
		assert.Equal(t, "foo bar", last.Search)
		assert.Zero(t, last.Offset)
		assert.False(t, m.searching)
	})

	t.Run("Detail view", func(t *testing.T) {
		m := loaded(t, newLister(3), nil)

		send(t, m, keyMsg("enter"))
		assert.Equal(t, DetailView, m.view)
		assert.Contains(t, m.View(), "Release.01-GRP")

		send(t, m, keyMsg("esc"))
		assert.Equal(t, BrowseView, m.view)
	})

	t.Run("Fetch error is shown and dismissed", func(t *testing.T) {
		lister := &fakeLister{err: errors.New("store unavailable")}
		m := NewModel(context.Background(), lister, nil)
		send(t, m, m.Init()())

		assert.Contains(t, m.View(), "store unavailable")
		send(t, m, keyMsg("esc"))
		assert.NoError(t, m.err)
	})

	t.Run("Correlate needs a runner", func(t *testing.T) {
		m := loaded(t, newLister(1), nil)
		send(t, m, keyMsg("c"))
		assert.Equal(t, BrowseView, m.view)
	})
}

func TestRunFlow(t *testing.T) {
	var gotPolicy matching.WritePolicy
	run := func(ctx context.Context, policy matching.WritePolicy, progress chan<- tasks.ProgressUpdate) ([]*tasks.MatchSummary, error) {
		gotPolicy = policy
		progress <- tasks.ProgressUpdate{Phase: tasks.Correlate, Step: 1, Total: 2, Message: "[1/2] Some.Release"}
		return []*tasks.MatchSummary{{
			RunCounts: models.RunCounts{Total: 2, Checked: 2, Changed: 1},
			Driver:    tasks.DriverCorrelate, Mode: "recent", Policy: policy,
		}}, nil
	}

	m := loaded(t, newLister(2), run)
	send(t, m, keyMsg("c"))
	require.Equal(t, ConfirmView, m.view)

	cmd := send(t, m, keyMsg("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, RunView, m.view)

	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		if u, ok := msg.(Msg); ok && u.kind == MsgProgressUpdate {
			send(t, m, msg)
			assert.Contains(t, m.View(), "Hash correlation (1/2)")
			cmd = waitForProgress(m.updates, m.done)
			continue
		}
		send(t, m, msg)
		cmd = nil
	}

	assert.Equal(t, matching.DryPreview, gotPolicy)
	require.Equal(t, ResultView, m.view)
	assert.Contains(t, m.View(), "Dry preview: 1 would change")

	cmd = send(t, m, keyMsg("r"))
	require.NotNil(t, cmd)
	assert.Equal(t, BrowseView, m.view)
}

func TestRunFailure(t *testing.T) {
	run := func(context.Context, matching.WritePolicy, chan<- tasks.ProgressUpdate) ([]*tasks.MatchSummary, error) {
		return nil, errors.New("store unavailable")
	}

	m := loaded(t, newLister(1), run)
	send(t, m, keyMsg("c"))
	cmd := send(t, m, keyMsg("a"))
	send(t, m, cmd())

	assert.Equal(t, ResultView, m.view)
	assert.Equal(t, matching.Apply, m.policy)
	assert.Contains(t, m.View(), "Run failed: store unavailable")
}
