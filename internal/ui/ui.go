package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/prematch/internal/formatter"
	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	DetailView
	ConfirmView
	RunView
	ResultView
)

// PreDBLister pages through PreDB entries.
type PreDBLister interface {
	List(ctx context.Context, opts repositories.ListOptions) (*models.PreDBPage, error)
}

// RunFunc starts the correlation passes offered by the TUI and reports progress through the channel.
type RunFunc func(ctx context.Context, policy matching.WritePolicy, progress chan<- tasks.ProgressUpdate) ([]*tasks.MatchSummary, error)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	predb     PreDBLister
	run       RunFunc
	width     int
	height    int
	entries   list.Model
	page      *models.PreDBPage
	pageSize  int
	offset    int
	search    string
	searching bool
	input     textinput.Model
	selected  *models.PreDBEntry
	policy    matching.WritePolicy
	bar       progress.Model
	progress  tasks.ProgressUpdate
	updates   chan tasks.ProgressUpdate
	done      chan runComplete
	summaries []*tasks.MatchSummary
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model browsing predb and running correlation passes through run.
func NewModel(ctx context.Context, predb PreDBLister, run RunFunc) *Model {
	entries := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	entries.Title = "PreDB"
	entries.SetFilteringEnabled(false)
	entries.SetShowHelp(false)

	input := textinput.New()
	input.Placeholder = "space separated terms"
	input.Prompt = "/ "

	return &Model{
		ctx:      ctx,
		view:     BrowseView,
		predb:    predb,
		run:      run,
		entries:  entries,
		pageSize: repositories.DefaultPageSize,
		input:    input,
		bar:      progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching the first page of entries.
func (m *Model) Init() tea.Cmd {
	return m.fetchPage()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.entries.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = min(max(msg.Width-8, 10), 80)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.back) && m.err != nil && m.view != ResultView {
			m.err = nil
			return m, nil
		}
		switch m.view {
		case BrowseView:
			return m.handleBrowseKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == BrowseView {
		m.entries, cmd = m.entries.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPageFetched:
		data := msg.data.(pageFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.page = data.page
		items := make([]list.Item, len(data.page.Entries))
		for i, entry := range data.page.Entries {
			items[i] = entryItem{entry: entry}
		}
		cmd := m.entries.SetItems(items)
		m.entries.Select(0)
		m.entries.Title = m.listTitle()
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.updates, m.done)

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.summaries = data.summaries
		m.err = data.err
		m.view = ResultView
		m.updates, m.done = nil, nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + styles.help.Render("esc to dismiss • q to quit")
	}

	switch m.view {
	case BrowseView:
		return m.renderBrowse()
	case DetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter":
			m.searching = false
			m.input.Blur()
			m.search = strings.TrimSpace(m.input.Value())
			m.offset = 0
			return m, m.fetchPage()
		case "esc":
			m.searching = false
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		m.searching = true
		m.input.SetValue(m.search)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.next):
		if m.page != nil && m.offset+m.pageSize < m.page.Total {
			m.offset += m.pageSize
			return m, m.fetchPage()
		}
		return m, nil
	case key.Matches(msg, m.keys.prev):
		if m.offset > 0 {
			m.offset = max(m.offset-m.pageSize, 0)
			return m, m.fetchPage()
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.entries.SelectedItem().(entryItem); ok {
			m.selected = item.entry
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.run):
		if m.run != nil {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = BrowseView
		m.selected = nil
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.back):
		m.view = BrowseView
		return m, nil
	case key.Matches(msg, m.keys.apply):
		m.policy = matching.Apply
	case key.Matches(msg, m.keys.dry):
		m.policy = matching.DryPreview
	default:
		return m, nil
	}

	m.view = RunView
	m.progress = tasks.ProgressUpdate{}
	return m, m.startRun()
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = BrowseView
		m.summaries = nil
		m.err = nil
		return m, m.fetchPage()
	}
	return m, nil
}

func (m *Model) fetchPage() tea.Cmd {
	predb, ctx := m.predb, m.ctx
	opts := repositories.ListOptions{Offset: m.offset, Limit: m.pageSize, Search: m.search}

	return func() tea.Msg {
		page, err := predb.List(ctx, opts)
		return pageFetchedMsg(page, err)
	}
}

func (m *Model) startRun() tea.Cmd {
	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan runComplete, 1)
	m.updates, m.done = updates, done
	run, ctx, policy := m.run, m.ctx, m.policy

	go func() {
		summaries, err := run(ctx, policy, updates)
		done <- runComplete{summaries: summaries, err: err}
		close(updates)
	}()

	return waitForProgress(updates, done)
}

// waitForProgress relays one update, or the run result once the channel is closed.
func waitForProgress(updates <-chan tasks.ProgressUpdate, done <-chan runComplete) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			result := <-done
			return runCompleteMsg(result.summaries, result.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) listTitle() string {
	if m.page == nil {
		return "PreDB"
	}
	start := m.page.Offset
	if len(m.page.Entries) > 0 {
		start++
	}
	title := fmt.Sprintf("PreDB %d-%d of %s", start, m.page.Offset+len(m.page.Entries), humanize.Comma(int64(m.page.Total)))
	if m.search != "" {
		title += fmt.Sprintf(" matching %q", m.search)
	}
	return title
}

func (m *Model) renderBrowse() string {
	var footer string
	if m.searching {
		footer = m.input.View()
	} else {
		footer = m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.next, m.keys.prev, m.keys.search, m.keys.run, m.keys.quit})
	}
	return fmt.Sprintf("%s\n\n%s", m.entries.View(), footer)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	e := m.selected

	var b strings.Builder
	b.WriteString(styles.title.Render(e.Title))
	b.WriteString("\n")
	row := func(label, value string) {
		if value != "" {
			b.WriteString(styles.label.Render(label) + value + "\n")
		}
	}
	row("ID", fmt.Sprint(e.ID))
	row("Filename", e.Filename)
	row("Source", e.Source)
	row("Category", e.Category)
	row("Created", fmt.Sprintf("%s (%s)", e.Created.UTC().Format("2006-01-02 15:04:05"), humanize.Time(e.Created)))
	if e.Nuked != models.NukeNone {
		b.WriteString(styles.label.Render("Nuked") + styles.warn.Render(e.Nuked.String()) + "\n")
		row("Reason", e.NukeReason)
	}
	row("Release", e.ReleaseGUID)

	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Run correlation?")
	info := "Runs the global stage: hash correlation over the other categories and every unlinked release, then a direct title backfill.\n" +
		"A dry preview reports what would change without writing anything."

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.apply, m.keys.dry, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render(fmt.Sprintf("Correlating (%s)", m.policy))

	var phase string
	switch m.progress.Phase {
	case tasks.CountCandidates:
		phase = "Counting candidates..."
	case tasks.Correlate:
		phase = fmt.Sprintf("Hash correlation (%s/%s)", humanize.Comma(int64(m.progress.Step)), humanize.Comma(int64(m.progress.Total)))
	case tasks.Backfill:
		phase = fmt.Sprintf("Title backfill (%s/%s)", humanize.Comma(int64(m.progress.Step)), humanize.Comma(int64(m.progress.Total)))
	default:
		phase = "Processing..."
	}

	percent := 0.0
	if m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, phase, m.bar.ViewAs(percent), styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v", m.err)) + "\n\n" + helpView
	}

	changed := 0
	for _, s := range m.summaries {
		changed += s.Changed
	}

	title := styles.ok.Render(fmt.Sprintf("✓ Run complete: %s changed", humanize.Comma(int64(changed))))
	if m.policy == matching.DryPreview {
		title = styles.ok.Render(fmt.Sprintf("✓ Dry preview: %s would change", humanize.Comma(int64(changed))))
	}

	var table strings.Builder
	formatter.SummaryTable(&table, m.summaries...)

	return fmt.Sprintf("%s\n\n%s\n%s", title, table.String(), helpView)
}
