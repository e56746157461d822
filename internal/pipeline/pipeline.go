// Package pipeline implements the chunked read→transform→write execution
// model shared by every format handler. One Pipeline drives one operation
// through its stages and accounts bytes on a progress tracker.
package pipeline

import (
	"context"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/progress"
)

// Stage identifies the pipeline's position in its state machine.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageOpening      Stage = "opening"
	StageTransferring Stage = "transferring"
	StageFlushing     Stage = "flushing"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
	StageCancelled    Stage = "cancelled"
)

// DefaultChunkSize bounds a single transfer step.
const DefaultChunkSize = 64 * 1024

// Pipeline is single-use: it drives exactly one operation. Cancellation is
// cooperative and observed at chunk boundaries, never preemptively.
type Pipeline struct {
	fs        afero.Fs
	logger    *zap.Logger
	chunkSize int
	stage     Stage
}

func New(fs afero.Fs, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		fs:        fs,
		logger:    logger,
		chunkSize: DefaultChunkSize,
		stage:     StageIdle,
	}
}

// Stage returns the pipeline's current stage.
func (p *Pipeline) Stage() Stage {
	return p.stage
}

// Opening marks the stream-opening stage.
func (p *Pipeline) Opening() {
	p.stage = StageOpening
}

// Transfer copies src to dst in bounded chunks, adding each chunk to the
// tracker. Context and tracker cancellation are checked before every chunk.
func (p *Pipeline) Transfer(ctx context.Context, dst io.Writer, src io.Reader, tracker *progress.Tracker) (int64, error) {
	n, _, err := p.transfer(ctx, dst, src, -1, tracker)
	return n, err
}

// TransferLimited copies at most limit bytes from src to dst, then stops
// pulling even if the source has more data. The returned flag reports whether
// the source was truncated. Deliberate early termination, not an error.
func (p *Pipeline) TransferLimited(ctx context.Context, dst io.Writer, src io.Reader, limit int64, tracker *progress.Tracker) (int64, bool, error) {
	return p.transfer(ctx, dst, src, limit, tracker)
}

func (p *Pipeline) transfer(ctx context.Context, dst io.Writer, src io.Reader, limit int64, tracker *progress.Tracker) (int64, bool, error) {
	p.stage = StageTransferring

	buf := make([]byte, p.chunkSize)
	var written int64

	for limit < 0 || written < limit {
		if err := ctx.Err(); err != nil {
			p.stage = StageCancelled
			return written, false, err
		}
		if tracker.Cancelled() {
			p.stage = StageCancelled
			return written, false, progress.ErrCancelled
		}

		chunk := buf
		if limit >= 0 && limit-written < int64(len(chunk)) {
			chunk = chunk[:limit-written]
		}

		n, readErr := src.Read(chunk)
		if n > 0 {
			if _, err := dst.Write(chunk[:n]); err != nil {
				p.stage = StageFailed
				return written, false, engine.NewIOError("failed to write to destination", err)
			}
			written += int64(n)
			tracker.Add(uint64(n))
		}
		if readErr == io.EOF {
			return written, false, nil
		}
		if readErr != nil {
			p.stage = StageFailed
			return written, false, engine.NewIOError("failed to read from source", readErr)
		}
	}

	// Cap reached. Probe one byte to learn whether the source had more.
	probe := make([]byte, 1)
	n, err := src.Read(probe)
	if n > 0 {
		return written, true, nil
	}
	if err != nil && err != io.EOF {
		p.stage = StageFailed
		return written, false, engine.NewIOError("failed to read from source", err)
	}
	return written, false, nil
}

// Flush runs the given finalizers in order, ensuring buffered bytes are
// durably written before sizes are reported.
func (p *Pipeline) Flush(finalizers ...func() error) error {
	p.stage = StageFlushing
	for _, fn := range finalizers {
		if err := fn(); err != nil {
			p.stage = StageFailed
			return engine.NewIOError("failed to flush destination", err)
		}
	}
	return nil
}

// Complete marks the terminal success stage.
func (p *Pipeline) Complete() {
	p.stage = StageComplete
}

// Fail marks the terminal failure stage and returns err unchanged, so call
// sites can fail in a single expression.
func (p *Pipeline) Fail(err error) error {
	if p.stage != StageCancelled {
		p.stage = StageFailed
	}
	return err
}

// RemovePartial deletes a partially written destination after failure or
// cancellation. Best effort; the pipeline never deletes anything else.
func (p *Pipeline) RemovePartial(path string) {
	if path == "" {
		return
	}
	if err := p.fs.Remove(path); err != nil {
		p.logger.Warn("failed to remove partial output",
			zap.String("path", path), zap.Error(err))
	}
}
