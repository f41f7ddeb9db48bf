package command

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"stocktool/internal/config"
	"stocktool/internal/httpx"
	"stocktool/internal/shellcache"
)

func init() {
	RegisterCommand(&PrewarmShell{})
}

// PrewarmShell installs and activates the shell cache into a leveldb
// directory so a server started on it serves the shell without a network
// round trip.
type PrewarmShell struct {
	Out io.Writer

	config  string
	origin  string
	dir     string
	version string
}

func (s *PrewarmShell) Command() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "prewarm the app-shell cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a `config.json` or config.toml file",
				Destination: &s.config,
			},
			&cli.StringFlag{
				Name:        "origin",
				Usage:       "app-shell `origin`, e.g. https://stocks.example.com",
				Destination: &s.origin,
			},
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "leveldb `directory`",
				Destination: &s.dir,
			},
			&cli.StringFlag{
				Name:        "cache-version",
				Usage:       "cache `version`, e.g. v2",
				Destination: &s.version,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(s.config)
			if err != nil {
				return err
			}
			shell := cfg.Shell
			shell.Enabled = true
			shell.Storage = config.StorageLevelDB
			if s.origin != "" {
				shell.Origin = s.origin
			}
			if s.dir != "" {
				shell.Dir = s.dir
			}
			if s.version != "" {
				shell.Version = s.version
			}
			if err := shell.Validate(); err != nil {
				return err
			}

			store, err := shellcache.NewStorage(shell)
			if err != nil {
				return err
			}
			defer store.Close()

			worker, err := shellcache.New(shell, store, httpx.New(cfg.Server.RequestTimeout()))
			if err != nil {
				return err
			}
			if err := worker.Start(ctx); err != nil {
				return err
			}

			names, err := store.Names()
			if err != nil {
				return err
			}
			bucket, err := store.Open(worker.CacheName())
			if err != nil {
				return err
			}
			keys, err := bucket.Keys()
			if err != nil {
				return err
			}
			zap.L().Info("shell cache ready",
				zap.String("dir", shell.Dir),
				zap.Strings("buckets", names),
				zap.Int("entries", len(keys)),
			)

			out := output(s.Out)
			fmt.Fprintf(out, "%s (%d entries)\n", worker.CacheName(), len(keys))
			for _, key := range keys {
				fmt.Fprintf(out, "  %s\n", key)
			}
			return nil
		},
	}
}
