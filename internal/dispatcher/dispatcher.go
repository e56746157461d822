// Package dispatcher validates operation requests, resolves the format
// handler, applies the path-safety gate and normalizes results. It is the
// single entry point for all archive operations.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/engine"
	"github.com/packkit/packkit/internal/pathguard"
	"github.com/packkit/packkit/internal/progress"
)

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// Dispatcher is state-free per call; the registry it reads is populated
// before any dispatch and never mutated afterward.
type Dispatcher struct {
	registry *engine.Registry
	fs       afero.Fs
	logger   *zap.Logger
}

func New(registry *engine.Registry, fs afero.Fs, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, fs: fs, logger: logger.Named("dispatcher")}
}

// Dispatch executes one request and returns the normalized response. No error
// crosses this boundary: handler failures, validation failures and handler
// panics all come back as failure responses. The tracker receives progress
// events and carries the caller's cancellation signal; it may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req v1.Request, tracker *progress.Tracker) (resp v1.Response) {
	logger := d.logger.With(
		zap.String("operation", req.Operation),
		zap.String("format", req.Format),
		zap.String("source", req.SourcePath))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			resp = v1.Failure(fmt.Sprintf("internal error during %s", req.Operation), "")
		}
	}()

	summary, err := d.dispatch(ctx, req, tracker)
	if err != nil {
		logger.Warn("operation failed",
			zap.String("kind", string(engine.KindOf(err))), zap.Error(err))
		return failureFrom(err)
	}

	logger.Info("operation succeeded")
	return v1.Success(summary.Message, summary.Data)
}

func (d *Dispatcher) dispatch(ctx context.Context, req v1.Request, tracker *progress.Tracker) (*engine.Summary, error) {
	if err := requestValidator.Struct(req); err != nil {
		return nil, &engine.Error{Kind: engine.KindValidation, Message: "invalid request", Err: err}
	}

	sourcePath, err := pathguard.Normalize(req.SourcePath)
	if err != nil {
		return nil, err
	}

	var handler engine.FormatHandler
	if req.Format != "" {
		handler, err = d.registry.ResolveByFormat(req.Format)
		if err != nil {
			return nil, err
		}
	}

	info, err := d.fs.Stat(sourcePath)
	if os.IsNotExist(err) {
		return nil, &engine.Error{
			Kind:    engine.KindNotFound,
			Message: fmt.Sprintf("source %q does not exist", sourcePath),
		}
	}
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("failed to stat %q", sourcePath), err)
	}

	if handler == nil {
		var ok bool
		handler, ok = d.registry.ResolveByExtension(sourcePath)
		if !ok {
			handler, ok = d.registry.ResolveByContent(sourcePath)
		}
		if !ok {
			return nil, &engine.Error{
				Kind: engine.KindFormatMismatch,
				Message: fmt.Sprintf("unable to determine format of %q (known formats: %v)",
					sourcePath, d.registry.Formats()),
			}
		}
	}

	switch req.Operation {
	case v1.OperationCompress:
		return d.compress(ctx, req, handler, sourcePath, tracker)
	case v1.OperationDecompress:
		return d.decompress(ctx, req, handler, sourcePath, info.IsDir(), tracker)
	case v1.OperationList:
		return d.list(ctx, req, handler, sourcePath, info.IsDir(), tracker)
	default:
		return nil, &engine.Error{
			Kind:    engine.KindValidation,
			Message: fmt.Sprintf("unknown operation %q", req.Operation),
		}
	}
}

func (d *Dispatcher) compress(ctx context.Context, req v1.Request, handler engine.FormatHandler, sourcePath string, tracker *progress.Tracker) (*engine.Summary, error) {
	primaryExt := handler.Extensions()[0]
	targetPath, err := pathguard.ResolveOutputPath(sourcePath, req.OutputDirectory, req.OutputFileName, primaryExt)
	if err != nil {
		return nil, err
	}

	// An explicit output name is an intentional overwrite candidate and
	// bypasses this check.
	if req.OutputFileName == "" {
		if _, err := d.fs.Stat(targetPath); err == nil {
			return nil, &engine.Error{
				Kind:    engine.KindExistingOutput,
				Message: fmt.Sprintf("output %q already exists", targetPath),
			}
		}
	}

	if err := pathguard.EnsureDirectory(d.fs, filepath.Dir(targetPath)); err != nil {
		return nil, err
	}

	opts := engine.CompressionOptions{
		Level:           req.CompressionLevel,
		OutputDirectory: req.OutputDirectory,
		OutputFileName:  req.OutputFileName,
	}
	return handler.Compress(ctx, sourcePath, targetPath, opts, tracker)
}

func (d *Dispatcher) decompress(ctx context.Context, req v1.Request, handler engine.FormatHandler, sourcePath string, isDir bool, tracker *progress.Tracker) (*engine.Summary, error) {
	if isDir {
		return nil, &engine.Error{
			Kind:    engine.KindValidation,
			Message: fmt.Sprintf("source %q is a directory, expected a file", sourcePath),
		}
	}
	if !handler.ValidSource(sourcePath) {
		return nil, &engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q does not look like %s data", sourcePath, handler.FormatName()),
		}
	}

	targetDir := req.OutputDirectory
	if targetDir == "" {
		targetDir = filepath.Dir(sourcePath)
	}
	targetDir, err := pathguard.Normalize(targetDir)
	if err != nil {
		return nil, err
	}
	if err := pathguard.EnsureDirectory(d.fs, targetDir); err != nil {
		return nil, err
	}

	opts := engine.DecompressionOptions{
		StripComponents: req.StripComponents,
		OutputDirectory: targetDir,
	}
	return handler.Decompress(ctx, sourcePath, targetDir, opts, tracker)
}

func (d *Dispatcher) list(ctx context.Context, req v1.Request, handler engine.FormatHandler, sourcePath string, isDir bool, tracker *progress.Tracker) (*engine.Summary, error) {
	if isDir {
		return nil, &engine.Error{
			Kind:    engine.KindValidation,
			Message: fmt.Sprintf("source %q is a directory, expected a file", sourcePath),
		}
	}
	if !handler.ValidSource(sourcePath) {
		return nil, &engine.Error{
			Kind:    engine.KindFormatMismatch,
			Message: fmt.Sprintf("%q does not look like %s data", sourcePath, handler.FormatName()),
		}
	}

	opts := engine.ListOptions{PreviewLength: req.PreviewLength}
	return handler.ListContents(ctx, sourcePath, opts, tracker)
}

// failureFrom maps an error into the client-facing failure shape. Details
// carry the flattened cause chain only; stack-like diagnostics stay in
// operator logs.
func failureFrom(err error) v1.Response {
	var opErr *engine.Error
	if errors.As(err, &opErr) {
		details := ""
		if opErr.Err != nil {
			details = opErr.Err.Error()
		}
		return v1.Failure(opErr.Message, details)
	}
	return v1.Failure(err.Error(), "")
}
