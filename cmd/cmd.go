// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// withJSON appends the --json and --pretty output flags to flags.
func withJSON(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	)
}

// setupCommand handles database setup operations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, then initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles TIDAL authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the TIDAL session",
		Commands: []*cli.Command{
			{
				Name:  "device",
				Usage: "Sign in with a device code shown on this screen",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Print the code and poll without the interactive view",
					},
				},
				Action: r.AuthDevice,
			},
			{
				Name:  "pkce",
				Usage: "Sign in through the browser using a local callback server",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultOAuthTimeout,
					},
				},
				Action: r.AuthPKCE,
			},
			{
				Name:   "status",
				Usage:  "Show the session state for the current user",
				Flags:  withJSON(),
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored TIDAL session",
				Action: r.AuthLogout,
			},
		},
	}
}

// syncCommand pulls TIDAL state into the local library.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror TIDAL playlists into the local library",
		Commands: []*cli.Command{
			{
				Name:   "all",
				Usage:  "Mirror every playlist plus favorites and mixes",
				Flags:  withJSON(),
				Action: r.SyncAll,
			},
			{
				Name:  "playlist",
				Usage: "Re-mirror one linked local playlist",
				Flags: withJSON(&cli.Int64Flag{
					Name:     "id",
					Usage:    "Local playlist ID",
					Required: true,
				}),
				Action: r.SyncPlaylist,
			},
			{
				Name:   "favorites",
				Usage:  "Mirror favorite tracks into the favorites playlist",
				Flags:  withJSON(),
				Action: r.SyncFavorites,
			},
			{
				Name:   "mixes",
				Usage:  "Mirror the union of mix playlists",
				Flags:  withJSON(),
				Action: r.SyncMixes,
			},
		},
	}
}

// songsCommand edits playlist membership and song metadata.
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Search, add, remove and refresh songs",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search the TIDAL catalog for tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: withJSON(&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of tracks to return",
					Value: 10,
				}),
				Action: r.SongsSearch,
			},
			{
				Name:  "add",
				Usage: "Append a TIDAL track to a local playlist and push it upstream",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Flags: withJSON(&cli.Int64Flag{
					Name:     "playlist",
					Aliases:  []string{"p"},
					Usage:    "Local playlist ID",
					Required: true,
				}),
				Action: r.SongsAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a TIDAL track from a local playlist and push the removal upstream",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Local playlist ID",
						Required: true,
					},
				},
				Action: r.SongsRemove,
			},
			{
				Name:  "refresh",
				Usage: "Re-fetch a song's metadata from TIDAL",
				Flags: withJSON(&cli.Int64Flag{
					Name:     "id",
					Usage:    "Local song ID",
					Required: true,
				}),
				Action: r.SongsRefresh,
			},
		},
	}
}

// playlistsCommand reads and exports the local library.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Local playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List local playlists",
				Flags:  withJSON(),
				Action: r.PlaylistsList,
			},
			{
				Name:  "show",
				Usage: "Show a local playlist with its songs in order",
				Flags: withJSON(&cli.Int64Flag{
					Name:     "id",
					Usage:    "Local playlist ID",
					Required: true,
				}),
				Action: r.PlaylistsShow,
			},
			{
				Name:  "create",
				Usage: "Create a local-only playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: withJSON(&cli.StringFlag{
					Name:  "description",
					Usage: "Playlist description",
				}),
				Action: r.PlaylistsCreate,
			},
			{
				Name:  "export",
				Usage: "Export local playlists to files",
				Flags: withJSON(
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Local playlist IDs to export (default: all)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: json, csv, markdown, txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: tidx_export_{timestamp})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent export workers",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "covers",
						Usage: "Download cover art for markdown exports",
					},
				),
				Action: r.PlaylistsExport,
			},
		},
	}
}

// tuiCommand launches the library browser.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse and sync the local library interactively",
		Action: r.TUI,
	}
}
