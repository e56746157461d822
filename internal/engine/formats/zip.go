package formats

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/pipeline"
	"github.com/packkit/packkit/internal/progress"
)

// ZipHandler implements the format contract for zip archives.
type ZipHandler struct {
	fs     afero.Fs
	logger *zap.Logger
}

func NewZipHandler(fs afero.Fs, logger *zap.Logger) *ZipHandler {
	return &ZipHandler{fs: fs, logger: logger.Named("zip")}
}

func (h *ZipHandler) FormatName() string {
	return "zip"
}

func (h *ZipHandler) Extensions() []string {
	return []string{".zip"}
}

func (h *ZipHandler) ValidSource(path string) bool {
	if hasAnyExtension(path, h.Extensions()) {
		return true
	}
	return matchesMagic(h.fs, path, magicZip)
}

func (h *ZipHandler) Compress(ctx context.Context, sourcePath, targetPath string, opts engine.CompressionOptions, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := opts.ApplyDefaults(); err != nil {
		return nil, err
	}
	info, err := statSource(h.fs, sourcePath)
	if err != nil {
		return nil, err
	}

	entries, total, err := collectTreeEntries(h.fs, h.logger, sourcePath, info)
	if err != nil {
		return nil, err
	}

	tracker.SetTotal(uint64(total))
	tracker.Start("compress")

	p := pipeline.New(h.fs, h.logger)
	p.Opening()

	dst, err := h.fs.Create(targetPath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create %q", targetPath), err))
	}

	zw := zip.NewWriter(dst)
	level := opts.Level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	fail := func(err error) (*engine.Summary, error) {
		zw.Close()
		dst.Close()
		p.RemovePartial(targetPath)
		return nil, p.Fail(err)
	}

	fileCount := 0
	for _, entry := range entries {
		header, err := zip.FileInfoHeader(entry.info)
		if err != nil {
			return fail(engine.NewIOError(fmt.Sprintf("failed to build header for %q", entry.path), err))
		}
		header.Name = entry.name
		if entry.info.IsDir() {
			header.Name += "/"
		} else {
			header.Method = zip.Deflate
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			return fail(engine.NewIOError(fmt.Sprintf("failed to create entry %q", entry.name), err))
		}
		if entry.info.IsDir() {
			continue
		}

		f, err := h.fs.Open(entry.path)
		if err != nil {
			return fail(engine.NewIOError(fmt.Sprintf("failed to open %q", entry.path), err))
		}
		if _, err := p.Transfer(ctx, w, f, tracker); err != nil {
			f.Close()
			return fail(err)
		}
		f.Close()
		fileCount++
	}

	if err := p.Flush(zw.Close, dst.Close); err != nil {
		p.RemovePartial(targetPath)
		return nil, err
	}

	outInfo, err := h.fs.Stat(targetPath)
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("failed to stat %q", targetPath), err)
	}

	p.Complete()
	ratio := pipeline.ShrinkRatio(outInfo.Size(), total)
	tracker.Complete(fmt.Sprintf("archived %s", filepath.Base(sourcePath)))

	h.logger.Info("created archive",
		zap.String("source", sourcePath),
		zap.String("target", targetPath),
		zap.Int("files", fileCount),
		zap.Int64("archive_size", outInfo.Size()))

	return &engine.Summary{
		Message: fmt.Sprintf("Archived %s (%d files, %s) to %s (%s, %.1f%% of original)",
			filepath.Base(sourcePath), fileCount, formatBytes(total),
			filepath.Base(targetPath), formatBytes(outInfo.Size()), ratio),
		Data: map[string]any{
			"outputPath":       targetPath,
			"fileCount":        fileCount,
			"originalSize":     total,
			"compressedSize":   outInfo.Size(),
			"compressionRatio": fmt.Sprintf("%.1f%%", ratio),
		},
	}, nil
}

func (h *ZipHandler) openReader(sourcePath string, size int64) (afero.File, *zip.Reader, error) {
	src, err := h.fs.Open(sourcePath)
	if err != nil {
		return nil, nil, engine.NewIOError(fmt.Sprintf("failed to open %q", sourcePath), err)
	}
	zr, err := zip.NewReader(src, size)
	if err != nil {
		src.Close()
		return nil, nil, &engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q is not a valid zip archive", sourcePath),
			Err:     err,
		}
	}
	return src, zr, nil
}

func (h *ZipHandler) Decompress(ctx context.Context, sourcePath, targetDir string, opts engine.DecompressionOptions, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := opts.ApplyDefaults(); err != nil {
		return nil, err
	}
	info, err := statSourceFile(h.fs, sourcePath)
	if err != nil {
		return nil, err
	}

	var total uint64
	tracker.Start("decompress")

	p := pipeline.New(h.fs, h.logger)
	p.Opening()

	src, zr, err := h.openReader(sourcePath, info.Size())
	if err != nil {
		return nil, p.Fail(err)
	}
	defer src.Close()

	for _, f := range zr.File {
		total += f.UncompressedSize64
	}
	tracker.SetTotal(total)

	var written int64
	extracted := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, p.Fail(err)
		}
		if tracker.Cancelled() {
			return nil, p.Fail(progress.ErrCancelled)
		}

		name, err := stripEntryName(f.Name, opts.StripComponents)
		if err != nil {
			return nil, p.Fail(err)
		}
		if name == "" {
			continue
		}
		entryPath := filepath.Join(targetDir, filepath.FromSlash(name))

		if f.FileInfo().IsDir() {
			if err := h.fs.MkdirAll(entryPath, f.Mode().Perm()); err != nil {
				return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create directory %q", entryPath), err))
			}
			continue
		}

		if err := h.fs.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create directory for %q", entryPath), err))
		}

		rc, err := f.Open()
		if err != nil {
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to open entry %q", f.Name), err))
		}
		out, err := h.fs.OpenFile(entryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
		if err != nil {
			rc.Close()
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create %q", entryPath), err))
		}
		n, err := p.Transfer(ctx, out, rc, tracker)
		rc.Close()
		if err != nil {
			out.Close()
			p.RemovePartial(entryPath)
			return nil, p.Fail(err)
		}
		if err := out.Close(); err != nil {
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to close %q", entryPath), err))
		}
		written += n
		extracted++
	}

	p.Complete()
	ratio := pipeline.ExpandRatio(written, info.Size())
	tracker.Complete(fmt.Sprintf("extracted %s", filepath.Base(sourcePath)))

	h.logger.Info("extracted archive",
		zap.String("source", sourcePath),
		zap.String("target_dir", targetDir),
		zap.Int("files", extracted),
		zap.Int64("decompressed_size", written))

	return &engine.Summary{
		Message: fmt.Sprintf("Extracted %d files from %s to %s (%s, %+.1f%% expansion)",
			extracted, filepath.Base(sourcePath), targetDir, formatBytes(written), ratio),
		Data: map[string]any{
			"outputDirectory":  targetDir,
			"fileCount":        extracted,
			"compressedSize":   info.Size(),
			"decompressedSize": written,
			"expansionRatio":   fmt.Sprintf("%+.1f%%", ratio),
		},
	}, nil
}

func (h *ZipHandler) ListContents(ctx context.Context, sourcePath string, opts engine.ListOptions, tracker *progress.Tracker) (*engine.Summary, error) {
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

	src, zr, err := h.openReader(sourcePath, info.Size())
	if err != nil {
		return nil, p.Fail(err)
	}
	defer src.Close()

	var entries []engine.ArchiveEntry
	var total int64
	for _, f := range zr.File {
		if tracker.Cancelled() {
			return nil, p.Fail(progress.ErrCancelled)
		}
		entries = append(entries, engine.ArchiveEntry{
			Name:        f.Name,
			Size:        f.UncompressedSize64,
			IsDirectory: f.FileInfo().IsDir(),
		})
		if !f.FileInfo().IsDir() {
			total += int64(f.UncompressedSize64)
		}
	}

	p.Complete()
	tracker.Complete(fmt.Sprintf("listed %s", filepath.Base(sourcePath)))

	return &engine.Summary{
		Message: fmt.Sprintf("%s contains %d entries (%s uncompressed)",
			filepath.Base(sourcePath), len(entries), formatBytes(total)),
		Data: map[string]any{
			"entries":        entries,
			"entryCount":     len(entries),
			"totalSize":      total,
			"compressedSize": info.Size(),
		},
	}, nil
}
