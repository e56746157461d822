package formats

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
	magicZip  = []byte{'P', 'K', 0x03, 0x04}
)

// NewGzipHandler returns the gzip single-stream handler.
func NewGzipHandler(fs afero.Fs, logger *zap.Logger) *StreamHandler {
	return newStreamHandler(fs, logger, "gzip", []string{".gz"}, [][]byte{magicGzip}, gzipCodec{})
}

// NewZstdHandler returns the zstandard single-stream handler.
func NewZstdHandler(fs afero.Fs, logger *zap.Logger) *StreamHandler {
	return newStreamHandler(fs, logger, "zstd", []string{".zst"}, [][]byte{magicZstd}, zstdCodec{})
}

// NewLZ4Handler returns the lz4 single-stream handler.
func NewLZ4Handler(fs afero.Fs, logger *zap.Logger) *StreamHandler {
	return newStreamHandler(fs, logger, "lz4", []string{".lz4"}, [][]byte{magicLZ4}, lz4Codec{})
}

type gzipCodec struct{}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func (gzipCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, level)
}

type zstdCodec struct{}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (zstdCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
}

type lz4Codec struct{}

// lz4Levels maps the 1..9 option range onto lz4's level set, fastest first.
var lz4Levels = [9]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level2,
	lz4.Level3,
	lz4.Level4,
	lz4.Level5,
	lz4.Level6,
	lz4.Level7,
	lz4.Level8,
	lz4.Level9,
}

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lz4Codec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4Levels[level-1])); err != nil {
		return nil, err
	}
	return zw, nil
}
