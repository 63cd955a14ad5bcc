// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the configuration file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize configuration and database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SetupDatabase,
	}
}

// loginCommand signs a local account in
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in to a local account (created on first use)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Display name for a newly created account",
			},
		},
		Action: r.Login,
	}
}

// logoutCommand signs the current account out
func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out of the current account",
		Action: r.Logout,
	}
}

// statusCommand reports the session state
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show session, account link, and backup status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// spotifyCommand handles Spotify account linking
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:   "link",
				Usage:  "Link a Spotify account using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SpotifyLink,
			},
			{
				Name:   "unlink",
				Usage:  "Unlink the Spotify account and discard its credential",
				Action: r.SpotifyUnlink,
			},
			{
				Name:  "profile",
				Usage: "Show the linked Spotify account profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SpotifyProfile,
			},
		},
	}
}

// backupCommand manages the cached playlist backups
func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "backup",
		Aliases: []string{"b"},
		Usage:   "Playlist backup operations",
		Commands: []*cli.Command{
			{
				Name:   "refresh",
				Usage:  "Re-fetch every playlist and update the local backups",
				Action: r.BackupRefresh,
			},
			{
				Name:  "list",
				Usage: "List cached playlist backups",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "List remote playlists instead of cached backups",
					},
				},
				Action: r.BackupList,
			},
			{
				Name:  "show",
				Usage: "Show the tracks of one cached backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.BackupShow,
			},
			{
				Name:  "add",
				Usage: "Back up a single remote playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
				},
				Action: r.BackupAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a playlist from the local backups",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
				},
				Action: r.BackupRemove,
			},
			{
				Name:  "export",
				Usage: "Export a cached backup to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: csv, markdown, or text",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file or directory path",
					},
				},
				Action: r.BackupExport,
			},
		},
	}
}

// snapshotCommand manages point-in-time playlist snapshots
func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Aliases: []string{"snap"},
		Usage:   "Playlist snapshot operations",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Freeze a snapshot of a cached backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
				},
				Action: r.SnapshotCreate,
			},
			{
				Name:  "list",
				Usage: "List the snapshots of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SnapshotList,
			},
			{
				Name:  "delete",
				Usage: "Delete one snapshot",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "snapshot",
						Aliases:  []string{"s"},
						Usage:    "Snapshot ID",
						Required: true,
					},
				},
				Action: r.SnapshotDelete,
			},
			{
				Name:  "restore",
				Usage: "Restore a snapshot as a new Spotify playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "snapshot",
						Aliases:  []string{"s"},
						Usage:    "Snapshot ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Name for the restored playlist",
					},
				},
				Action: r.SnapshotRestore,
			},
		},
	}
}

// uiCommand launches the interactive backup browser
func uiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "ui",
		Usage:  "Launch the interactive backup browser",
		Action: r.UI,
	}
}
