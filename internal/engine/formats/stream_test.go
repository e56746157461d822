package formats

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/progress"
)

func streamHandlers(fs afero.Fs) map[string]*StreamHandler {
	logger := zap.NewNop()
	return map[string]*StreamHandler{
		"gzip": NewGzipHandler(fs, logger),
		"zstd": NewZstdHandler(fs, logger),
		"lz4":  NewLZ4Handler(fs, logger),
	}
}

func TestStreamHandler_RoundTrip(t *testing.T) {
	content := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 100)

	for name, handler := range streamHandlers(afero.NewMemMapFs()) {
		t.Run(name, func(t *testing.T) {
			fs := handler.fs
			require.NoError(t, fs.MkdirAll("data", 0o755))
			require.NoError(t, fs.MkdirAll("out", 0o755))
			require.NoError(t, afero.WriteFile(fs, "data/input.txt", []byte(content), 0o644))

			ext := handler.Extensions()[0]
			compressed := "data/input.txt" + ext

			summary, err := handler.Compress(t.Context(), "data/input.txt", compressed, engine.CompressionOptions{}, nil)
			require.NoError(t, err)
			assert.Contains(t, summary.Data, "compressionRatio")
			assert.EqualValues(t, int64(len(content)), summary.Data["originalSize"])

			exists, err := afero.Exists(fs, compressed)
			require.NoError(t, err)
			require.True(t, exists)

			summary, err = handler.Decompress(t.Context(), compressed, "out", engine.DecompressionOptions{}, nil)
			require.NoError(t, err)
			assert.Contains(t, summary.Data, "expansionRatio")

			got, err := afero.ReadFile(fs, "out/input.txt")
			require.NoError(t, err)
			assert.Equal(t, content, string(got), "round trip must reproduce the source byte for byte")
		})
	}
}

func TestStreamHandler_CompressionLevels(t *testing.T) {
	content := strings.Repeat("abcabcabc", 2000)

	for name, handler := range streamHandlers(afero.NewMemMapFs()) {
		t.Run(name, func(t *testing.T) {
			fs := handler.fs
			require.NoError(t, afero.WriteFile(fs, "input.txt", []byte(content), 0o644))

			for _, level := range []int{1, 9} {
				target := "input.txt" + handler.Extensions()[0]
				_, err := handler.Compress(t.Context(), "input.txt", target, engine.CompressionOptions{Level: level}, nil)
				require.NoError(t, err, "level %d", level)
				require.NoError(t, fs.Remove(target))
			}

			_, err := handler.Compress(t.Context(), "input.txt", "input.txt.bad", engine.CompressionOptions{Level: 10}, nil)
			require.Error(t, err)
			assert.Equal(t, engine.KindValidation, engine.KindOf(err))
		})
	}
}

func TestStreamHandler_ListPreview(t *testing.T) {
	content := strings.Repeat("x", 50)

	tests := []struct {
		name          string
		previewLength int
		wantLen       int
		wantTruncated bool
	}{
		{
			name:          "payload larger than preview",
			previewLength: 10,
			wantLen:       10,
			wantTruncated: true,
		},
		{
			name:          "payload smaller than preview",
			previewLength: 100,
			wantLen:       50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			handler := NewGzipHandler(fs, zap.NewNop())

			require.NoError(t, afero.WriteFile(fs, "payload.txt", []byte(content), 0o644))
			_, err := handler.Compress(t.Context(), "payload.txt", "payload.txt.gz", engine.CompressionOptions{}, nil)
			require.NoError(t, err)

			summary, err := handler.ListContents(t.Context(), "payload.txt.gz", engine.ListOptions{PreviewLength: tt.previewLength}, nil)
			require.NoError(t, err)

			assert.Equal(t, content[:tt.wantLen], summary.Data["preview"])
			assert.EqualValues(t, tt.wantLen, summary.Data["previewLength"])
			assert.Equal(t, tt.wantTruncated, summary.Data["isTruncated"])
		})
	}
}

func TestStreamHandler_DecompressInvalidData(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewGzipHandler(fs, zap.NewNop())

	require.NoError(t, afero.WriteFile(fs, "garbage.gz", []byte("this is not gzip data"), 0o644))

	_, err := handler.Decompress(t.Context(), "garbage.gz", ".", engine.DecompressionOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, engine.KindFormatMismatch, engine.KindOf(err))
}

func TestStreamHandler_MissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewGzipHandler(fs, zap.NewNop())

	_, err := handler.Compress(t.Context(), "missing.txt", "missing.txt.gz", engine.CompressionOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))

	exists, statErr := afero.Exists(fs, "missing.txt.gz")
	require.NoError(t, statErr)
	assert.False(t, exists, "no output is created for a missing source")
}

func TestStreamHandler_CancelRemovesPartialOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewGzipHandler(fs, zap.NewNop())

	content := strings.Repeat("payload", 100*1024)
	require.NoError(t, afero.WriteFile(fs, "big.txt", []byte(content), 0o644))

	tracker := progress.NewTracker(nil, 0)
	tracker.Cancel()

	_, err := handler.Compress(t.Context(), "big.txt", "big.txt.gz", engine.CompressionOptions{}, tracker)
	require.Error(t, err)
	assert.Equal(t, engine.KindCancelled, engine.KindOf(err))

	exists, statErr := afero.Exists(fs, "big.txt.gz")
	require.NoError(t, statErr)
	assert.False(t, exists, "partial output is removed on cancellation")
}

func TestStreamHandler_MonotonicProgress(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewGzipHandler(fs, zap.NewNop())

	content := strings.Repeat("progress", 64*1024)
	require.NoError(t, afero.WriteFile(fs, "input.txt", []byte(content), 0o644))

	var events []progress.Event
	tracker := progress.NewTracker(func(ev progress.Event) { events = append(events, ev) }, 0)

	_, err := handler.Compress(t.Context(), "input.txt", "input.txt.gz", engine.CompressionOptions{}, tracker)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := -1
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percent, last)
		last = ev.Percent
	}
	final := events[len(events)-1]
	assert.Equal(t, 100, final.Percent)
	assert.Equal(t, progress.StageComplete, final.Stage)
}

func TestStreamHandler_ValidSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewGzipHandler(fs, zap.NewNop())

	assert.True(t, handler.ValidSource("file.txt.gz"))
	assert.True(t, handler.ValidSource("FILE.TXT.GZ"))
	assert.False(t, handler.ValidSource("file.txt"))

	// Extensionless gzip data is recognized by its magic bytes.
	require.NoError(t, afero.WriteFile(fs, "blob", []byte{0x1f, 0x8b, 0x08, 0x00}, 0o644))
	assert.True(t, handler.ValidSource("blob"))
}

func TestStrippedName(t *testing.T) {
	exts := []string{".gz"}
	assert.Equal(t, "input.txt", strippedName("data/input.txt.gz", exts))
	assert.Equal(t, "archive.out", strippedName("archive", exts))
	assert.Equal(t, ".gz.out", strippedName(".gz", exts))
}
