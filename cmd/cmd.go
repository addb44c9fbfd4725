// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func policyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "apply",
		Usage: "Write matches to the store (default is a dry preview)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand handles setup operations for the configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the default configuration file",
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// predbCommand handles PreDB browsing and loading.
func predbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "predb",
		Aliases: []string{"pre"},
		Usage:   "Browse and load PreDB entries",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List entries, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "search",
						Aliases: []string{"q"},
						Usage:   "Space separated terms that must all appear in the title",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of entries to skip",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to return",
						Value: 25,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, csv, md, txt or json",
						Value:   "table",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the listing to a file instead of stdout",
					},
				},
				Action: r.PreDBList,
			},
			{
				Name:  "show",
				Usage: "Show one entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PreDBShow,
			},
			{
				Name:  "add",
				Usage: "Add an entry and index its hashes",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filename", Usage: "Obfuscated filename announced with the release"},
					&cli.StringFlag{Name: "source", Usage: "Where the entry came from"},
					&cli.StringFlag{Name: "category", Usage: "Free-form PreDB category"},
					&cli.StringFlag{Name: "nuked", Usage: "Nuke status: none, unnuked, nuked, modnuke, renuked or oldnuke"},
					&cli.StringFlag{Name: "reason", Usage: "Nuke reason"},
				},
				Action: r.PreDBAdd,
			},
			{
				Name:  "import",
				Usage: "Import entries from a CSV file (title,filename,source,category,created,nuked,nukereason)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.PreDBImport,
			},
		},
	}
}

// matchCommand runs a single matching pass.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Run a single matching pass",
		Commands: []*cli.Command{
			{
				Name:  "correlate",
				Usage: "Resolve content hashes embedded in release and file names",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "window",
						Aliases: []string{"w"},
						Usage:   "Selection window: recent, category or retry",
						Value:   "recent",
					},
					&cli.Int64Flag{
						Name:    "group",
						Aliases: []string{"g"},
						Usage:   "Restrict the recent window to one group id",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of rows to visit (0 for no limit)",
					},
					policyFlag(),
					jsonFlag(),
				},
				Action: r.MatchCorrelate,
			},
			{
				Name:  "backfill",
				Usage: "Link unmatched releases whose searchname equals a PreDB title or filename",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "days",
						Aliases: []string{"d"},
						Usage:   "Only releases added in the last N days (0 for all)",
					},
					&cli.Int64Flag{
						Name:    "group",
						Aliases: []string{"g"},
						Usage:   "Restrict to one group id",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of releases to visit (0 for no limit)",
					},
					policyFlag(),
					jsonFlag(),
				},
				Action: r.MatchBackfill,
			},
		},
	}
}

// stageCommand runs the per-group or global matching stage.
func stageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "stage",
		Usage:     "Run the matching stage for one or more groups, or the global stage (Stage7b)",
		ArgsUsage: "<group id>... | Stage7b",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of groups processed concurrently",
				Value:   1,
			},
			policyFlag(),
		},
		Action: r.Stage,
	}
}

// runsCommand shows the match run history.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Match run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "driver", Usage: "Filter by driver: correlate or backfill"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status: running, completed or failed"},
					&cli.Int64Flag{Name: "group", Usage: "Filter by group id"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: 20},
					jsonFlag(),
				},
				Action: r.RunsList,
			},
		},
	}
}

// serveCommand starts the read-only PreDB web service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the PreDB browse API and metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (defaults to server.host)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (defaults to server.port)"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive browsing and matching.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for browsing the PreDB and running correlation",
		Action:  r.TUI,
	}
}
