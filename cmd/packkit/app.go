package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/dispatcher"
	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/engine/formats"
	"github.com/packkit/packkit/internal/progress"
)

// newDispatcher builds the registry with every built-in format and wires it
// into a dispatcher over the real filesystem.
func newDispatcher(logger *zap.Logger) (*dispatcher.Dispatcher, *engine.Registry) {
	fs := afero.NewOsFs()
	registry := engine.NewRegistry(logger.Named("registry"))
	formats.RegisterBuiltins(registry, fs, logger)
	return dispatcher.New(registry, fs, logger), registry
}

// newProgressSink renders progress to stderr on interactive terminals and
// discards it otherwise.
func newProgressSink(ctx context.Context) progress.Sink {
	if !isInteractive(ctx) {
		return nil
	}
	return func(ev progress.Event) {
		if ev.Percent >= 0 {
			fmt.Fprintf(os.Stderr, "\r%-12s %3d%% (%d bytes)", ev.Stage, ev.Percent, ev.BytesProcessed)
		} else {
			fmt.Fprintf(os.Stderr, "\r%-12s %d bytes", ev.Stage, ev.BytesProcessed)
		}
		if ev.Stage == progress.StageComplete {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// printResponse writes the outcome to stdout and converts failures into a
// command error so the process exits nonzero.
func printResponse(resp v1.Response) error {
	if resp.IsError {
		if resp.Error.Details != "" {
			return fmt.Errorf("%s (%s)", resp.Error.Message, resp.Error.Details)
		}
		return errors.New(resp.Error.Message)
	}
	fmt.Println(resp.Content.Text)
	return nil
}
