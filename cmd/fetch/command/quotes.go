package command

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"stocktool/internal/aggregate"
	"stocktool/internal/config"
	"stocktool/internal/provider/factory"
)

func init() {
	RegisterCommand(&FetchQuotes{})
}

// FetchQuotes prints the aggregate quotes array once.
type FetchQuotes struct {
	Out io.Writer

	config   string
	provider string
	symbols  string
	history  bool
}

func (f *FetchQuotes) Command() *cli.Command {
	return &cli.Command{
		Name:    "quotes",
		Aliases: []string{"q"},
		Usage:   "fetch the configured symbols and print the JSON array",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a `config.json` or config.toml file",
				Destination: &f.config,
			},
			&cli.StringFlag{
				Name:        "provider",
				Aliases:     []string{"p"},
				Usage:       "upstream provider: finnhub, alphavantage, yahoo or scrape",
				Destination: &f.provider,
			},
			&cli.StringFlag{
				Name:        "symbols",
				Aliases:     []string{"s"},
				Usage:       "comma-separated `symbols`, e.g. AAPL,NVDA",
				Destination: &f.symbols,
			},
			&cli.BoolFlag{
				Name:        "history",
				Usage:       "include the historical price series",
				Destination: &f.history,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(f.config)
			if err != nil {
				return err
			}
			f.apply(&cfg.Quotes)

			p, err := factory.NewFromConfig(cfg.Quotes)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout())
			defer cancel()

			results, err := aggregate.New(cfg.Quotes, p).Collect(ctx)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Failed() {
					failed++
				}
			}
			zap.L().Info("quotes fetched",
				zap.String("provider", p.Name()),
				zap.Int("symbols", len(results)),
				zap.Int("failed", failed),
			)

			out := output(f.Out)
			enc := sonic.ConfigStd.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return fmt.Errorf("encoding quotes: %w", err)
			}
			return nil
		},
	}
}

func (f *FetchQuotes) apply(q *config.Quotes) {
	if f.provider != "" {
		q.Provider = strings.ToLower(strings.TrimSpace(f.provider))
		q.CachePolicy = config.DefaultCachePolicy(q.Provider)
	}
	if f.symbols != "" {
		q.Symbols = config.SplitCSV(f.symbols)
	}
	if f.history {
		q.History = true
	}
}
