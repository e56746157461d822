package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/progress"
)

var compressCommand = &cli.Command{
	Name:  "compress",
	Usage: "Compress a file or directory",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "source",
			UsageText: "The file or directory to compress",
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Target format (e.g. gzip, zstd, lz4, tar.gz, zip); derived from the source when omitted",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: the source's parent directory)",
		},
		&cli.StringFlag{
			Name:    "output-name",
			Aliases: []string{"n"},
			Usage:   "Output file name (default: derived from the source)",
		},
		&cli.IntFlag{
			Name:    "level",
			Aliases: []string{"L"},
			Usage:   "Compression level, 1 (fastest) to 9 (smallest); default 6",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		source := command.StringArg("source")
		if source == "" {
			return fmt.Errorf("no source provided")
		}

		format := command.String("format")
		if format == "" {
			return fmt.Errorf("no format provided (see 'packkit formats')")
		}

		d, _ := newDispatcher(logger)
		tracker := progress.NewTracker(newProgressSink(ctx), 0)

		resp := d.Dispatch(ctx, v1.Request{
			Operation:        v1.OperationCompress,
			Format:           format,
			SourcePath:       source,
			OutputDirectory:  command.String("output-dir"),
			OutputFileName:   command.String("output-name"),
			CompressionLevel: int(command.Int("level")),
		}, tracker)

		return printResponse(resp)
	},
}
