package formats

import (
	"archive/tar"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/engine"
)

func writeTree(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func TestTarballHandler_RoundTrip(t *testing.T) {
	for _, format := range []string{"tar.gz", "tar.zst"} {
		t.Run(format, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			logger := zap.NewNop()

			var handler *TarballHandler
			if format == "tar.gz" {
				handler = NewTarGzHandler(fs, logger)
			} else {
				handler = NewTarZstHandler(fs, logger)
			}

			files := map[string]string{
				"project/readme.md":  "hello",
				"project/src/a.go":   "package a",
				"project/src/b/c.go": "package b",
			}
			writeTree(t, fs, files)

			archive := "project" + handler.Extensions()[0]
			summary, err := handler.Compress(t.Context(), "project", archive, engine.CompressionOptions{}, nil)
			require.NoError(t, err)
			assert.EqualValues(t, 3, summary.Data["fileCount"])

			_, err = handler.Decompress(t.Context(), archive, "out", engine.DecompressionOptions{}, nil)
			require.NoError(t, err)

			for name, content := range files {
				got, err := afero.ReadFile(fs, "out/"+name)
				require.NoError(t, err, "file %s", name)
				assert.Equal(t, content, string(got), "file %s", name)
			}
		})
	}
}

func TestTarballHandler_SingleFileSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewTarGzHandler(fs, zap.NewNop())

	require.NoError(t, afero.WriteFile(fs, "notes.txt", []byte("just one file"), 0o644))

	_, err := handler.Compress(t.Context(), "notes.txt", "notes.tar.gz", engine.CompressionOptions{}, nil)
	require.NoError(t, err)

	_, err = handler.Decompress(t.Context(), "notes.tar.gz", "out", engine.DecompressionOptions{}, nil)
	require.NoError(t, err)

	got, err := afero.ReadFile(fs, "out/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "just one file", string(got))
}

func TestTarballHandler_StripComponents(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewTarGzHandler(fs, zap.NewNop())

	writeTree(t, fs, map[string]string{
		"project/src/main.go": "package main",
	})

	_, err := handler.Compress(t.Context(), "project", "project.tar.gz", engine.CompressionOptions{}, nil)
	require.NoError(t, err)

	summary, err := handler.Decompress(t.Context(), "project.tar.gz", "out", engine.DecompressionOptions{StripComponents: 1}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Data["fileCount"])

	got, err := afero.ReadFile(fs, "out/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", string(got))

	// The stripped top-level directory is not recreated.
	exists, err := afero.Exists(fs, "out/project")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTarballHandler_List(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewTarGzHandler(fs, zap.NewNop())

	writeTree(t, fs, map[string]string{
		"project/a.txt": "aaaa",
		"project/b.txt": "bb",
	})

	_, err := handler.Compress(t.Context(), "project", "project.tar.gz", engine.CompressionOptions{}, nil)
	require.NoError(t, err)

	summary, err := handler.ListContents(t.Context(), "project.tar.gz", engine.ListOptions{}, nil)
	require.NoError(t, err)

	entries, ok := summary.Data["entries"].([]engine.ArchiveEntry)
	require.True(t, ok)
	assert.Len(t, entries, 3, "directory entry plus two files")
	assert.EqualValues(t, 6, summary.Data["totalSize"])
}

// maliciousTarGz builds an archive containing an entry that escapes the
// extraction directory.
func maliciousTarGz(t *testing.T, fs afero.Fs, path string) {
	t.Helper()

	f, err := fs.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../evil.txt",
		Mode: 0o644,
		Size: 4,
	}))
	_, err = tw.Write([]byte("evil"))
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestTarballHandler_RejectsTraversalEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewTarGzHandler(fs, zap.NewNop())

	maliciousTarGz(t, fs, "malicious.tar.gz")

	_, err := handler.Decompress(t.Context(), "malicious.tar.gz", "out", engine.DecompressionOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, engine.KindTraversal, engine.KindOf(err))

	exists, statErr := afero.Exists(fs, "evil.txt")
	require.NoError(t, statErr)
	assert.False(t, exists, "no file escapes the extraction directory")
}

func TestTarballHandler_InvalidArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	handler := NewTarGzHandler(fs, zap.NewNop())

	require.NoError(t, afero.WriteFile(fs, "bogus.tar.gz", []byte("not an archive"), 0o644))

	_, err := handler.ListContents(t.Context(), "bogus.tar.gz", engine.ListOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, engine.KindFormatMismatch, engine.KindOf(err))
}

func TestStripEntryName(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		strip   int
		want    string
		wantErr bool
	}{
		{name: "no strip", entry: "project/a.txt", want: "project/a.txt"},
		{name: "strip one", entry: "project/a.txt", strip: 1, want: "a.txt"},
		{name: "strip consumes entry", entry: "project", strip: 1, want: ""},
		{name: "absolute entry is relativized", entry: "/etc/passwd", want: "etc/passwd"},
		{name: "parent segment rejected", entry: "../evil", wantErr: true},
		{name: "nested parent segment rejected", entry: "a/../../evil", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stripEntryName(tt.entry, tt.strip)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, engine.KindTraversal, engine.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
