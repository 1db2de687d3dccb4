package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdSearch() *cli.Command {
	var cfgPath string
	var topK int

	return &cli.Command{
		Name:      "search",
		Usage:     "Search indexed transcripts from the command line",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			configFlag(&cfgPath),
			&cli.IntFlag{
				Name:        "k",
				Usage:       "Number of results to return",
				Destination: &topK,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.Args().First()
			if query == "" {
				return goerr.New("query argument is required")
			}

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return goerr.Wrap(err, "loading config failed")
			}
			manager, err := newManager(cfg)
			if err != nil {
				return err
			}

			k := topK
			if k <= 0 {
				k = cfg.Search.TopK
			}
			results, err := manager.Search(ctx, query, k)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No results. Index some videos first with `ytrag index <url>`.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%.3f] %s (%.0fs-%.0fs)\n   %s\n   %s\n",
					i+1, r.Score, r.VideoTitle, r.StartTime, r.EndTime, r.URL, r.Text)
			}
			return nil
		},
	}
}
