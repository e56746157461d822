package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/progress"
)

var decompressCommand = &cli.Command{
	Name:    "decompress",
	Aliases: []string{"extract"},
	Usage:   "Decompress or extract an archive",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "source",
			UsageText: "The archive to decompress",
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Source format; derived from the source when omitted",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: the source's parent directory)",
		},
		&cli.IntFlag{
			Name:    "strip-components",
			Aliases: []string{"s"},
			Usage:   "Discard this many leading path segments on extraction",
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
			Operation:       v1.OperationDecompress,
			Format:          command.String("format"),
			SourcePath:      source,
			OutputDirectory: command.String("output-dir"),
			StripComponents: int(command.Int("strip-components")),
		}, tracker)

		return printResponse(resp)
	},
}
