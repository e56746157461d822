package formats

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/pipeline"
	"github.com/packkit/packkit/internal/progress"
)

// TarballHandler implements the format contract for compressed tar archives.
// The compression layer is pluggable; tar.gz and tar.zst share this type.
type TarballHandler struct {
	fs     afero.Fs
	logger *zap.Logger
	name   string
	exts   []string
	magics [][]byte
	codec  streamCodec
}

// NewTarGzHandler returns the gzip-compressed tarball handler.
func NewTarGzHandler(fs afero.Fs, logger *zap.Logger) *TarballHandler {
	return &TarballHandler{
		fs:     fs,
		logger: logger.Named("tar.gz"),
		name:   "tar.gz",
		exts:   []string{".tar.gz", ".tgz"},
		magics: [][]byte{magicGzip},
		codec:  gzipCodec{},
	}
}

// NewTarZstHandler returns the zstandard-compressed tarball handler.
func NewTarZstHandler(fs afero.Fs, logger *zap.Logger) *TarballHandler {
	return &TarballHandler{
		fs:     fs,
		logger: logger.Named("tar.zst"),
		name:   "tar.zst",
		exts:   []string{".tar.zst"},
		magics: [][]byte{magicZstd},
		codec:  zstdCodec{},
	}
}

func (h *TarballHandler) FormatName() string {
	return h.name
}

func (h *TarballHandler) Extensions() []string {
	return h.exts
}

func (h *TarballHandler) ValidSource(p string) bool {
	if hasAnyExtension(p, h.exts) {
		return true
	}
	return false
}

func (h *TarballHandler) Compress(ctx context.Context, sourcePath, targetPath string, opts engine.CompressionOptions, tracker *progress.Tracker) (*engine.Summary, error) {
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

	compressor, err := h.codec.NewWriter(dst, opts.Level)
	if err != nil {
		dst.Close()
		p.RemovePartial(targetPath)
		return nil, p.Fail(engine.NewIOError("failed to initialize compressor", err))
	}
	tw := tar.NewWriter(compressor)

	fileCount := 0
	for _, entry := range entries {
		header, err := tar.FileInfoHeader(entry.info, "")
		if err != nil {
			tw.Close()
			compressor.Close()
			dst.Close()
			p.RemovePartial(targetPath)
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to build header for %q", entry.path), err))
		}
		header.Name = entry.name
		if entry.info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			tw.Close()
			compressor.Close()
			dst.Close()
			p.RemovePartial(targetPath)
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to write header for %q", entry.name), err))
		}
		if entry.info.IsDir() {
			continue
		}

		f, err := h.fs.Open(entry.path)
		if err != nil {
			tw.Close()
			compressor.Close()
			dst.Close()
			p.RemovePartial(targetPath)
			return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to open %q", entry.path), err))
		}
		if _, err := p.Transfer(ctx, tw, f, tracker); err != nil {
			f.Close()
			tw.Close()
			compressor.Close()
			dst.Close()
			p.RemovePartial(targetPath)
			return nil, p.Fail(err)
		}
		f.Close()
		fileCount++
	}

	if err := p.Flush(tw.Close, compressor.Close, dst.Close); err != nil {
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

// stripEntryName applies strip-components and validates the entry path.
// Returns "" when the entry is consumed entirely by stripping.
func stripEntryName(name string, strip int) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if clean == "." {
		return "", nil
	}
	segments := strings.Split(clean, "/")
	for _, s := range segments {
		if s == ".." {
			return "", &engine.Error{
				Kind:    engine.KindTraversal,
				Message: fmt.Sprintf("archive entry %q contains a parent-directory segment", name),
			}
		}
	}
	if len(segments) <= strip {
		return "", nil
	}
	return path.Join(segments[strip:]...), nil
}

func (h *TarballHandler) Decompress(ctx context.Context, sourcePath, targetDir string, opts engine.DecompressionOptions, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := opts.ApplyDefaults(); err != nil {
		return nil, err
	}
	info, err := statSourceFile(h.fs, sourcePath)
	if err != nil {
		return nil, err
	}

	tracker.Start("decompress")

	p := pipeline.New(h.fs, h.logger)
	p.Opening()

	src, err := h.fs.Open(sourcePath)
	if err != nil {
		return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to open %q", sourcePath), err))
	}
	defer src.Close()

	decompressor, err := h.codec.NewReader(src)
	if err != nil {
		return nil, p.Fail(&engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q is not a valid %s archive", sourcePath, h.name),
			Err:     err,
		})
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)

	var written int64
	extracted := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, p.Fail(err)
		}
		if tracker.Cancelled() {
			return nil, p.Fail(progress.ErrCancelled)
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, p.Fail(&engine.Error{
				Kind:    engine.KindFormatMismatch,
				Message: fmt.Sprintf("%q is not a valid %s archive", sourcePath, h.name),
				Err:     err,
			})
		}

		name, err := stripEntryName(header.Name, opts.StripComponents)
		if err != nil {
			return nil, p.Fail(err)
		}
		if name == "" {
			continue
		}
		entryPath := filepath.Join(targetDir, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := h.fs.MkdirAll(entryPath, header.FileInfo().Mode().Perm()); err != nil {
				return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create directory %q", entryPath), err))
			}
		case tar.TypeReg:
			if err := h.fs.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
				return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create directory for %q", entryPath), err))
			}
			f, err := h.fs.OpenFile(entryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, header.FileInfo().Mode().Perm())
			if err != nil {
				return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to create %q", entryPath), err))
			}
			n, err := p.Transfer(ctx, f, tr, tracker)
			if err != nil {
				f.Close()
				p.RemovePartial(entryPath)
				return nil, p.Fail(err)
			}
			if err := f.Close(); err != nil {
				return nil, p.Fail(engine.NewIOError(fmt.Sprintf("failed to close %q", entryPath), err))
			}
			written += n
			extracted++
		default:
			// Symlinks and specials are not extracted.
			h.logger.Warn("skipping unsupported entry type",
				zap.String("entry", header.Name), zap.Uint8("type", header.Typeflag))
		}
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

func (h *TarballHandler) ListContents(ctx context.Context, sourcePath string, opts engine.ListOptions, tracker *progress.Tracker) (*engine.Summary, error) {
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

	decompressor, err := h.codec.NewReader(src)
	if err != nil {
		return nil, p.Fail(&engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q is not a valid %s archive", sourcePath, h.name),
			Err:     err,
		})
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)

	var entries []engine.ArchiveEntry
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, p.Fail(err)
		}
		if tracker.Cancelled() {
			return nil, p.Fail(progress.ErrCancelled)
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, p.Fail(&engine.Error{
				Kind:    engine.KindFormatMismatch,
				Message: fmt.Sprintf("%q is not a valid %s archive", sourcePath, h.name),
				Err:     err,
			})
		}

		entries = append(entries, engine.ArchiveEntry{
			Name:        header.Name,
			Size:        uint64(header.Size),
			IsDirectory: header.Typeflag == tar.TypeDir,
		})
		total += header.Size
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
