package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/progress"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List archive contents or preview a compressed payload",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "source",
			UsageText: "The archive or compressed file to inspect",
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Source format; derived from the source when omitted",
		},
		&cli.IntFlag{
			Name:    "preview-length",
			Aliases: []string{"p"},
			Usage:   "Maximum decompressed bytes to preview for single-stream formats (default 1000)",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		source := command.StringArg("source")
		if source == "" {
			return fmt.Errorf("no source provided")
		}

		d, _ := newDispatcher(logger)
		tracker := progress.NewTracker(newProgressSink(ctx), 0)

		resp := d.Dispatch(ctx, v1.Request{
			Operation:     v1.OperationList,
			Format:        command.String("format"),
			SourcePath:    source,
			PreviewLength: int(command.Int("preview-length")),
		}, tracker)

		if resp.IsError {
			return printResponse(resp)
		}

		fmt.Println(resp.Content.Text)
		if entries, ok := resp.Content.Data["entries"].([]engine.ArchiveEntry); ok {
			for _, entry := range entries {
				if entry.IsDirectory {
					fmt.Printf("  %s\n", entry.Name)
				} else {
					fmt.Printf("  %s (%d bytes)\n", entry.Name, entry.Size)
				}
			}
		}
		if preview, ok := resp.Content.Data["preview"].(string); ok && preview != "" {
			fmt.Println(preview)
		}
		return nil
	},
}
