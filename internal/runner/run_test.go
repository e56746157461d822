package runner

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/dispatcher"
	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/engine/formats"
)

func newTestRunner(t *testing.T, job v1.Job) (*Runner, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger := zap.NewNop()
	registry := engine.NewRegistry(logger)
	formats.RegisterBuiltins(registry, fs, logger)
	return New(logger, job, dispatcher.New(registry, fs, logger)), fs
}

func TestParseJob(t *testing.T) {
	data := []byte(`
kind: ArchiveJob
metadata:
  name: nightly-backup
spec:
  requests:
    - operation: compress
      format: tar.gz
      sourcePath: /srv/data
      compressionLevel: 9
    - operation: list
      format: tar.gz
      sourcePath: /srv/data.tar.gz
`)

	job, err := ParseJob(data)
	require.NoError(t, err)
	assert.Equal(t, "nightly-backup", job.Metadata.Name)
	require.Len(t, job.Spec.Requests, 2)
	assert.Equal(t, v1.OperationCompress, job.Spec.Requests[0].Operation)
	assert.Equal(t, 9, job.Spec.Requests[0].CompressionLevel)
}

func TestParseJob_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "wrong kind",
			data: "kind: OtherJob\nmetadata:\n  name: x\nspec:\n  requests:\n    - operation: list\n      sourcePath: y\n",
		},
		{
			name: "no requests",
			data: "kind: ArchiveJob\nmetadata:\n  name: x\nspec:\n  requests: []\n",
		},
		{
			name: "bad operation",
			data: "kind: ArchiveJob\nmetadata:\n  name: x\nspec:\n  requests:\n    - operation: explode\n      sourcePath: y\n",
		},
		{
			name: "not yaml",
			data: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJob([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestRunner_Run(t *testing.T) {
	job := v1.Job{
		Kind:     "ArchiveJob",
		Metadata: v1.Metadata{Name: "test"},
		Spec: v1.JobSpec{
			Requests: []v1.Request{
				{Operation: v1.OperationCompress, Format: "gzip", SourcePath: "input.txt"},
				{Operation: v1.OperationList, Format: "gzip", SourcePath: "input.txt.gz", PreviewLength: 5},
			},
		},
	}

	r, fs := newTestRunner(t, job)
	require.NoError(t, afero.WriteFile(fs, "input.txt", []byte(strings.Repeat("data ", 20)), 0o644))

	responses, err := r.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.False(t, responses[0].IsError)
	assert.False(t, responses[1].IsError)
	assert.Equal(t, "data ", responses[1].Content.Data["preview"])
}

func TestRunner_StopsOnFirstFailure(t *testing.T) {
	job := v1.Job{
		Kind:     "ArchiveJob",
		Metadata: v1.Metadata{Name: "test"},
		Spec: v1.JobSpec{
			Requests: []v1.Request{
				{Operation: v1.OperationCompress, Format: "gzip", SourcePath: "missing.txt"},
				{Operation: v1.OperationCompress, Format: "gzip", SourcePath: "also-never-tried.txt"},
			},
		},
	}

	r, _ := newTestRunner(t, job)

	responses, err := r.Run(t.Context())
	require.Error(t, err)
	assert.Len(t, responses, 1, "the second request is never dispatched")
}

func TestRunner_ContinueOnError(t *testing.T) {
	job := v1.Job{
		Kind:     "ArchiveJob",
		Metadata: v1.Metadata{Name: "test"},
		Spec: v1.JobSpec{
			ContinueOnError: true,
			Requests: []v1.Request{
				{Operation: v1.OperationCompress, Format: "gzip", SourcePath: "missing.txt"},
				{Operation: v1.OperationCompress, Format: "gzip", SourcePath: "input.txt"},
			},
		},
	}

	r, fs := newTestRunner(t, job)
	require.NoError(t, afero.WriteFile(fs, "input.txt", []byte("present"), 0o644))

	responses, err := r.Run(t.Context())
	require.Error(t, err, "the overall job still reports the failure")
	require.Len(t, responses, 2)
	assert.True(t, responses[0].IsError)
	assert.False(t, responses[1].IsError)
}
