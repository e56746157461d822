package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/packkit/packkit/internal/progress"
)

// fakeHandler is a minimal FormatHandler for registry tests.
type fakeHandler struct {
	name  string
	exts  []string
	valid bool
}

func (h *fakeHandler) FormatName() string      { return h.name }
func (h *fakeHandler) Extensions() []string    { return h.exts }
func (h *fakeHandler) ValidSource(string) bool { return h.valid }

func (h *fakeHandler) Compress(context.Context, string, string, CompressionOptions, *progress.Tracker) (*Summary, error) {
	return &Summary{Message: h.name}, nil
}

func (h *fakeHandler) Decompress(context.Context, string, string, DecompressionOptions, *progress.Tracker) (*Summary, error) {
	return &Summary{Message: h.name}, nil
}

func (h *fakeHandler) ListContents(context.Context, string, ListOptions, *progress.Tracker) (*Summary, error) {
	return &Summary{Message: h.name}, nil
}

func TestRegistry_ResolveByFormat_CaseInsensitive(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	handler := &fakeHandler{name: "gzip", exts: []string{".gz"}}
	r.Register(handler)

	for _, name := range []string{"gzip", "GZIP", "GzIp"} {
		got, err := r.ResolveByFormat(name)
		require.NoError(t, err, "resolve %q", name)
		assert.Same(t, handler, got)
	}
}

func TestRegistry_ResolveByFormat_Unknown(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(&fakeHandler{name: "gzip", exts: []string{".gz"}})

	_, err := r.ResolveByFormat("rar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip", "message lists known formats")
	assert.Equal(t, KindFormatMismatch, KindOf(err))
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	first := &fakeHandler{name: "zip", exts: []string{".zip"}}
	second := &fakeHandler{name: "zip", exts: []string{".zip"}}

	r.Register(first)
	r.Register(second)

	got, err := r.ResolveByFormat("zip")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.HandlerCount())
}

func TestRegistry_ResolveByExtension(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	gz := &fakeHandler{name: "gzip", exts: []string{".gz"}}
	targz := &fakeHandler{name: "tar.gz", exts: []string{".tar.gz", ".tgz"}}
	r.Register(gz)
	r.Register(targz)

	tests := []struct {
		path string
		want *fakeHandler
	}{
		{"data/file.txt.gz", gz},
		{"data/backup.tar.gz", targz},
		{"backup.tgz", targz},
		{"BACKUP.TAR.GZ", targz},
	}
	for _, tt := range tests {
		got, ok := r.ResolveByExtension(tt.path)
		require.True(t, ok, "resolve %q", tt.path)
		assert.Same(t, tt.want, got, "resolve %q", tt.path)
	}

	_, ok := r.ResolveByExtension("plain.txt")
	assert.False(t, ok)
	_, ok = r.ResolveByExtension("noextension")
	assert.False(t, ok)
}

func TestRegistry_ResolveByContent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	reject := &fakeHandler{name: "zstd", exts: []string{".zst"}}
	accept := &fakeHandler{name: "gzip", exts: []string{".gz"}, valid: true}
	acceptLater := &fakeHandler{name: "lz4", exts: []string{".lz4"}, valid: true}

	r.Register(reject)
	r.Register(accept)
	r.Register(acceptLater)

	got, ok := r.ResolveByContent("mystery.bin")
	require.True(t, ok)
	assert.Same(t, accept, got, "first accepting handler in registration order wins")
}

func TestRegistry_Formats(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(&fakeHandler{name: "zstd", exts: []string{".zst"}})
	r.Register(&fakeHandler{name: "gzip", exts: []string{".gz"}})

	assert.Equal(t, []string{"gzip", "zstd"}, r.Formats())
	assert.Equal(t, 2, r.HandlerCount())
}
