package engine

import (
	"context"

	"github.com/packkit/packkit/internal/progress"
)

// FormatHandler is the contract every archive/compression format satisfies.
//
// All three operations validate the source's existence and type before any
// stream is opened and are safe to invoke concurrently for different source
// paths; handlers hold no per-operation mutable state.
type FormatHandler interface {
	// FormatName returns the registry key for this format, e.g. "gzip".
	FormatName() string

	// Extensions returns the file extensions this format claims, primary
	// extension first, e.g. [".tar.gz", ".tgz"].
	Extensions() []string

	// ValidSource reports whether path plausibly holds this format. The
	// default check is extension-based; formats without a reliable extension
	// may sniff content instead.
	ValidSource(path string) bool

	// Compress writes a compressed rendition of sourcePath to targetPath.
	Compress(ctx context.Context, sourcePath, targetPath string, opts CompressionOptions, tracker *progress.Tracker) (*Summary, error)

	// Decompress expands sourcePath into targetDir.
	Decompress(ctx context.Context, sourcePath, targetDir string, opts DecompressionOptions, tracker *progress.Tracker) (*Summary, error)

	// ListContents enumerates archive entries or returns a bounded preview of
	// the decompressed payload for single-stream formats.
	ListContents(ctx context.Context, sourcePath string, opts ListOptions, tracker *progress.Tracker) (*Summary, error)
}
