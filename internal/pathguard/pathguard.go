// Package pathguard normalizes and validates filesystem paths for archive
// operations. Every source and destination path crosses this gate before any
// stream is opened.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/packkit/packkit/internal/engine"
)

// Normalize cleans path and rejects any parent-directory segment in the
// cleaned form. The check is textual and deliberately conservative: "a/../b"
// cleans to "b" and passes, but "../b" keeps its ".." and is rejected even
// when it would resolve inside an allowed directory.
func Normalize(path string) (string, error) {
	if path == "" {
		return "", &engine.Error{Kind: engine.KindValidation, Message: "path must not be empty"}
	}

	clean := filepath.Clean(path)
	for _, segment := range strings.Split(filepath.ToSlash(clean), "/") {
		if segment == ".." {
			return "", &engine.Error{
				Kind:    engine.KindTraversal,
				Message: fmt.Sprintf("path %q contains a parent-directory segment", path),
			}
		}
	}

	return clean, nil
}

// ResolveOutputPath derives the destination path for a compress operation.
// When outputDir is empty the source's parent directory is used; when
// outputFileName is empty, "<sourceBase><defaultExt>" is derived. An explicit
// outputFileName must be a bare name without path separators.
func ResolveOutputPath(sourcePath, outputDir, outputFileName, defaultExt string) (string, error) {
	source, err := Normalize(sourcePath)
	if err != nil {
		return "", err
	}

	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	dir, err = Normalize(dir)
	if err != nil {
		return "", err
	}

	name := outputFileName
	if name == "" {
		name = filepath.Base(source) + defaultExt
	} else if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		return "", &engine.Error{
			Kind:    engine.KindValidation,
			Message: fmt.Sprintf("output file name %q must not contain path separators", name),
		}
	}

	return filepath.Join(dir, name), nil
}

// EnsureDirectory creates path and any missing parents. It is idempotent and
// fails if path exists and is not a directory. It never deletes or overwrites.
func EnsureDirectory(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return &engine.Error{
			Kind:    engine.KindIO,
			Message: fmt.Sprintf("path %q exists and is not a directory", path),
		}
	case !os.IsNotExist(err):
		return &engine.Error{
			Kind:    engine.KindIO,
			Message: fmt.Sprintf("failed to stat %q", path),
			Err:     err,
		}
	}

	if err := fs.MkdirAll(path, 0o755); err != nil {
		return &engine.Error{
			Kind:    engine.KindIO,
			Message: fmt.Sprintf("failed to create directory %q", path),
			Err:     err,
		}
	}
	return nil
}
