// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a small workflow around the PreDB and the matching engine:
//  1. [BrowseView] : Page through PreDB entries, newest first, with a server-side search
//  2. [DetailView] : Inspect one entry
//  3. [ConfirmView] : Choose dry preview or apply before a correlation run
//  4. [RunView] : Monitor real-time progress of the run
//  5. [ResultView] : Display the summary of every pass
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the MatchEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, n/p, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
