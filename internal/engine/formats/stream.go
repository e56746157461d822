package formats

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/pipeline"
	"github.com/packkit/packkit/internal/progress"
)

// streamCodec adapts one compression library into the pipeline's stages.
type streamCodec interface {
	NewReader(r io.Reader) (io.ReadCloser, error)
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
}

// StreamHandler implements the format contract for single-stream codecs.
// One instance per format, parameterized by its codec.
type StreamHandler struct {
	fs     afero.Fs
	logger *zap.Logger
	name   string
	exts   []string
	magics [][]byte
	codec  streamCodec
}

func newStreamHandler(fs afero.Fs, logger *zap.Logger, name string, exts []string, magics [][]byte, codec streamCodec) *StreamHandler {
	return &StreamHandler{
		fs:     fs,
		logger: logger.Named(name),
		name:   name,
		exts:   exts,
		magics: magics,
		codec:  codec,
	}
}

func (h *StreamHandler) FormatName() string {
	return h.name
}

func (h *StreamHandler) Extensions() []string {
	return h.exts
}

// ValidSource accepts a matching extension, or a matching magic prefix for
// paths without one.
func (h *StreamHandler) ValidSource(path string) bool {
	if hasAnyExtension(path, h.exts) {
		return true
	}
	return matchesMagic(h.fs, path, h.magics...)
}

func (h *StreamHandler) Compress(ctx context.Context, sourcePath, targetPath string, opts engine.CompressionOptions, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := opts.ApplyDefaults(); err != nil {
		return nil, err
	}
	info, err := statSourceFile(h.fs, sourcePath)
	if err != nil {
		return nil, err
	}

	tracker.SetTotal(uint64(info.Size()))
	tracker.Start("compress")

	p := pipeline.New(h.fs, h.logger)
	p.Opening()

	src, err := h.fs.Open(sourcePath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to open %q", sourcePath), err))
	}
	defer src.Close()

	dst, err := h.fs.Create(targetPath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create %q", targetPath), err))
	}

	encoder, err := h.codec.NewWriter(dst, opts.Level)
	if err != nil {
		dst.Close()
		p.RemovePartial(targetPath)
		return nil, p.Fail(engine.NewIOError("failed to initialize encoder", err))
	}

	if _, err := p.Transfer(ctx, encoder, src, tracker); err != nil {
		encoder.Close()
		dst.Close()
		p.RemovePartial(targetPath)
		return nil, p.Fail(err)
	}

	if err := p.Flush(encoder.Close, dst.Close); err != nil {
		p.RemovePartial(targetPath)
		return nil, err
	}

	outInfo, err := h.fs.Stat(targetPath)
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("failed to stat %q", targetPath), err)
	}

	p.Complete()
	ratio := pipeline.ShrinkRatio(outInfo.Size(), info.Size())
	tracker.Complete(fmt.Sprintf("compressed %s", filepath.Base(sourcePath)))

	h.logger.Info("compressed file",
		zap.String("source", sourcePath),
		zap.String("target", targetPath),
		zap.Int64("original_size", info.Size()),
		zap.Int64("compressed_size", outInfo.Size()))

	return &engine.Summary{
		Message: fmt.Sprintf("Compressed %s (%s) to %s (%s, %.1f%% of original)",
			filepath.Base(sourcePath), formatBytes(info.Size()),
			filepath.Base(targetPath), formatBytes(outInfo.Size()), ratio),
		Data: map[string]any{
			"outputPath":       targetPath,
			"originalSize":     info.Size(),
			"compressedSize":   outInfo.Size(),
			"compressionRatio": fmt.Sprintf("%.1f%%", ratio),
		},
	}, nil
}

func (h *StreamHandler) Decompress(ctx context.Context, sourcePath, targetDir string, opts engine.DecompressionOptions, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := opts.ApplyDefaults(); err != nil {
		return nil, err
	}
	info, err := statSourceFile(h.fs, sourcePath)
	if err != nil {
		return nil, err
	}

	tracker.Start("decompress")

	targetPath := filepath.Join(targetDir, strippedName(sourcePath, h.exts))

	p := pipeline.New(h.fs, h.logger)
	p.Opening()

	src, err := h.fs.Open(sourcePath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to open %q", sourcePath), err))
	}
	defer src.Close()

	decoder, err := h.codec.NewReader(src)
	if err != nil {
		return nil, p.Fail(&engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q is not valid %s data", sourcePath, h.name),
			Err:     err,
		})
	}
	defer decoder.Close()

	dst, err := h.fs.Create(targetPath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create %q", targetPath), err))
	}

	written, err := p.Transfer(ctx, dst, decoder, tracker)
	if err != nil {
		dst.Close()
		p.RemovePartial(targetPath)
		return nil, p.Fail(err)
	}

	if err := p.Flush(dst.Close); err != nil {
		p.RemovePartial(targetPath)
		return nil, err
	}

	p.Complete()
	ratio := pipeline.ExpandRatio(written, info.Size())
	tracker.Complete(fmt.Sprintf("decompressed %s", filepath.Base(sourcePath)))

	h.logger.Info("decompressed file",
		zap.String("source", sourcePath),
		zap.String("target", targetPath),
		zap.Int64("compressed_size", info.Size()),
		zap.Int64("decompressed_size", written))

	return &engine.Summary{
		Message: fmt.Sprintf("Decompressed %s (%s) to %s (%s, %+.1f%% expansion)",
			filepath.Base(sourcePath), formatBytes(info.Size()),
			filepath.Base(targetPath), formatBytes(written), ratio),
		Data: map[string]any{
			"outputPath":       targetPath,
			"compressedSize":   info.Size(),
			"decompressedSize": written,
			"expansionRatio":   fmt.Sprintf("%+.1f%%", ratio),
		},
	}, nil
}

// ListContents decompresses up to PreviewLength bytes into a bounded
// in-memory sink and reports whether the payload was truncated.
func (h *StreamHandler) ListContents(ctx context.Context, sourcePath string, opts engine.ListOptions, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := opts.ApplyDefaults(); err != nil {
		return nil, err
	}
	info, err := statSourceFile(h.fs, sourcePath)
	if err != nil {
		return nil, err
	}

	tracker.Start("list")

	p := pipeline.New(h.fs, h.logger)
	p.Opening()

	src, err := h.fs.Open(sourcePath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to open %q", sourcePath), err))
	}
	defer src.Close()

	decoder, err := h.codec.NewReader(src)
	if err != nil {
		return nil, p.Fail(&engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q is not valid %s data", sourcePath, h.name),
			Err:     err,
		})
	}
	defer decoder.Close()

	var preview bytes.Buffer
	n, truncated, err := p.TransferLimited(ctx, &preview, decoder, int64(opts.PreviewLength), tracker)
	if err != nil {
		return nil, p.Fail(err)
	}

	p.Complete()
	tracker.Complete(fmt.Sprintf("previewed %s", filepath.Base(sourcePath)))

	suffix := ""
	if truncated {
		suffix = " (truncated)"
	}
	return &engine.Summary{
		Message: fmt.Sprintf("Preview of %s: %d bytes%s", filepath.Base(sourcePath), n, suffix),
		Data: map[string]any{
			"preview":        preview.String(),
			"previewLength":  n,
			"isTruncated":    truncated,
			"compressedSize": info.Size(),
		},
	}, nil
}
