package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"github.com/desertthunder/prematch/internal/tasks"
)

// isTerminal reports whether w writes to an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// watchProgress prints updates from the returned channel until it is closed; the returned wait function blocks until
// the last update is printed.
//
// On a terminal row updates redraw one status line at most ten times a second. Otherwise they are written as
// separate lines every few seconds so logs stay readable.
func (r *Runner) watchProgress() (chan tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})

	tty := isTerminal(r.output)
	rows := rate.Sometimes{First: 1, Interval: 5 * time.Second}
	if tty {
		rows = rate.Sometimes{Interval: 100 * time.Millisecond}
	}

	go func() {
		defer close(done)
		pending := false

		for update := range updates {
			switch update.Phase {
			case tasks.Correlate, tasks.Backfill:
				if update.Data == nil {
					rows.Do(func() {
						if tty {
							r.writePlain("\r\033[K%s %s/%s", update.Phase, humanize.Comma(int64(update.Step)), humanize.Comma(int64(update.Total)))
							pending = true
						} else {
							r.writePlain("%s\n", update.Message)
						}
					})
					continue
				}
			}

			if pending {
				r.writePlain("\r\033[K")
				pending = false
			}
			r.writePlain("%s\n", progressLine(update))
		}
		if pending {
			r.writePlain("\r\033[K")
		}
	}()

	return updates, func() {
		close(updates)
		<-done
	}
}

func progressLine(update tasks.ProgressUpdate) string {
	switch update.Phase {
	case tasks.StageStart:
		return fmt.Sprintf("▶ %s", update.Message)
	case tasks.StageDone:
		return fmt.Sprintf("✓ %s", update.Message)
	case tasks.CountCandidates:
		return fmt.Sprintf("• %s", update.Message)
	default:
		return fmt.Sprintf("  %s", update.Message)
	}
}
