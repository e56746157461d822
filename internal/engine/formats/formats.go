// Package formats provides the built-in archive/compression format handlers:
// single-stream codecs (gzip, zstd, lz4), tarball archives (tar.gz, tar.zst)
// and general-purpose zip archives.
package formats

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
)

// statSourceFile validates that path exists and is a regular file before any
// stream is opened.
func statSourceFile(fs afero.Fs, path string) (os.FileInfo, error) {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return nil, &engine.Error{
			Kind:    engine.KindNotFound,
			Message: fmt.Sprintf("source %q does not exist", path),
		}
	}
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("failed to stat %q", path), err)
	}
	if info.IsDir() {
		return nil, &engine.Error{
			Kind:    engine.KindValidation,
			Message: fmt.Sprintf("source %q is a directory, expected a file", path),
		}
	}
	return info, nil
}

// statSource validates that path exists, file or directory.
func statSource(fs afero.Fs, path string) (os.FileInfo, error) {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return nil, &engine.Error{
			Kind:    engine.KindNotFound,
			Message: fmt.Sprintf("source %q does not exist", path),
		}
	}
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("failed to stat %q", path), err)
	}
	return info, nil
}

// treeEntry is one filesystem object queued for archiving.
type treeEntry struct {
	name string
	path string
	info os.FileInfo
}

// collectTreeEntries walks the source and returns the entries to archive. A
// directory source is rooted under its own base name so extraction recreates
// one top-level directory. Symlinks and specials are skipped.
func collectTreeEntries(fs afero.Fs, logger *zap.Logger, sourcePath string, info os.FileInfo) ([]treeEntry, int64, error) {
	rootName := filepath.Base(sourcePath)

	if !info.IsDir() {
		return []treeEntry{{name: rootName, path: sourcePath, info: info}}, info.Size(), nil
	}

	var entries []treeEntry
	var total int64
	err := afero.Walk(fs, sourcePath, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourcePath, p)
		if err != nil {
			return err
		}
		name := rootName
		if rel != "." {
			name = path.Join(rootName, filepath.ToSlash(rel))
		}
		if !fi.Mode().IsRegular() && !fi.IsDir() {
			logger.Warn("skipping irregular file", zap.String("path", p))
			return nil
		}
		entries = append(entries, treeEntry{name: name, path: p, info: fi})
		if fi.Mode().IsRegular() {
			total += fi.Size()
		}
		return nil
	})
	if err != nil {
		return nil, 0, engine.NewIOError(fmt.Sprintf("failed to walk %q", sourcePath), err)
	}
	return entries, total, nil
}

// hasAnyExtension reports whether path ends with one of exts, case-insensitively.
func hasAnyExtension(path string, exts []string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range exts {
		if strings.HasSuffix(base, ext) && base != ext {
			return true
		}
	}
	return false
}

// matchesMagic reports whether the file at path starts with one of the given
// byte prefixes. Used as a content-sniffing fallback for paths without a
// recognizable extension.
func matchesMagic(fs afero.Fs, path string, magics ...[]byte) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	longest := 0
	for _, m := range magics {
		if len(m) > longest {
			longest = len(m)
		}
	}

	head := make([]byte, longest)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	head = head[:n]

	for _, m := range magics {
		if len(head) >= len(m) && string(head[:len(m)]) == string(m) {
			return true
		}
	}
	return false
}

// strippedName derives the decompressed output name for a single-stream
// source by removing the format's suffix. Sources without a recognized
// suffix keep their name with ".out" appended, so nothing is overwritten.
func strippedName(path string, exts []string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) && lower != ext {
			return base[:len(base)-len(ext)]
		}
	}
	return base + ".out"
}

// formatBytes renders a human-readable size, as shown in operation summaries.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
