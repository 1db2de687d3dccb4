package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdIndex() *cli.Command {
	var cfgPath string

	return &cli.Command{
		Name:      "index",
		Usage:     "Fetch a video's transcript and add it to the search index",
		ArgsUsage: "<video-url>",
		Flags:     []cli.Flag{configFlag(&cfgPath)},
		Action: func(ctx context.Context, c *cli.Command) error {
			videoURL := c.Args().First()
			if videoURL == "" {
				return goerr.New("video URL argument is required")
			}

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return goerr.Wrap(err, "loading config failed")
			}
			manager, err := newManager(cfg)
			if err != nil {
				return err
			}
			yt := newYouTubeClient(cfg)

			video, err := yt.FetchVideoInfo(ctx, videoURL)
			if err != nil {
				return err
			}
			transcript, err := yt.FetchTranscript(ctx, video.VideoID)
			if err != nil {
				return err
			}

			before := manager.Count()
			if _, err := manager.IndexTranscript(ctx, video, transcript); err != nil {
				return err
			}
			fmt.Printf("Indexed %q (%s): %d chunks, %d total\n",
				video.Title, video.VideoID, manager.Count()-before, manager.Count())
			return nil
		},
	}
}
