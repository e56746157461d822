package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/packkit/packkit/internal/runner"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run a batch job file of archive operations",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to run",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		jobFilename := command.StringArg("job")
		if jobFilename == "" {
			return fmt.Errorf("no job file provided")
		}

		jobFile, err := os.ReadFile(jobFilename)
		if err != nil {
			return fmt.Errorf("failed to read job file: %w", err)
		}

		job, err := runner.ParseJob(jobFile)
		if err != nil {
			return fmt.Errorf("failed to parse job: %w", err)
		}

		d, _ := newDispatcher(logger)
		r := runner.New(logger.Named("runner"), job, d)

		responses, err := r.Run(ctx)
		for _, resp := range responses {
			if resp.IsError {
				fmt.Printf("✗ %s\n", resp.Error.Message)
			} else {
				fmt.Printf("✓ %s\n", resp.Content.Text)
			}
		}
		if err != nil {
			return fmt.Errorf("failed to run job: %w", err)
		}

		return nil
	},
}
