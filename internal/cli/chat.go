package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"ytrag/internal/tui"
)

func cmdChat() *cli.Command {
	var cfgPath string

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactively search indexed transcripts in the terminal",
		Flags: []cli.Flag{configFlag(&cfgPath)},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return goerr.Wrap(err, "loading config failed")
			}
			manager, err := newManager(cfg)
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("%d chunks indexed in %s", manager.Count(), cfg.Storage.IndexDir)
			m := tui.New(manager, summary, cfg.Search.TopK)
			if _, err := tea.NewProgram(m).Run(); err != nil {
				return goerr.Wrap(err, "TUI failed")
			}
			return nil
		},
	}
}
