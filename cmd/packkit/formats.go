package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

var formatsCommand = &cli.Command{
	Name:  "formats",
	Usage: "List registered archive/compression formats",
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		_, registry := newDispatcher(logger)

		for _, name := range registry.Formats() {
			handler, err := registry.ResolveByFormat(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %s\n", name, strings.Join(handler.Extensions(), ", "))
		}
		return nil
	},
}
