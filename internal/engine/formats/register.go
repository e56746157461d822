package formats

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
)

// RegisterBuiltins registers every built-in format handler. Single-stream
// codecs come first so content sniffing prefers the cheaper formats.
func RegisterBuiltins(r *engine.Registry, fs afero.Fs, logger *zap.Logger) {
	r.Register(NewGzipHandler(fs, logger))
	r.Register(NewZstdHandler(fs, logger))
	r.Register(NewLZ4Handler(fs, logger))
	r.Register(NewTarGzHandler(fs, logger))
	r.Register(NewTarZstHandler(fs, logger))
	r.Register(NewZipHandler(fs, logger))
}
