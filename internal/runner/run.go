// Package runner executes batch job files: an ordered list of archive
// operation requests dispatched sequentially.
package runner

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	v1 "github.com/packkit/packkit/apis/v1"
	"github.com/packkit/packkit/internal/dispatcher"
	"github.com/packkit/packkit/internal/progress"
)

var jobValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseJob parses a YAML (or JSON) job file and validates it. It returns a
// validated Job or an error if parsing or validation fails.
func ParseJob(data []byte) (v1.Job, error) {
	var job v1.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.Job{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	if err := jobValidator.Struct(job); err != nil {
		return v1.Job{}, fmt.Errorf("failed to validate job: %w", err)
	}

	return job, nil
}

type Runner struct {
	logger     *zap.Logger
	job        v1.Job
	dispatcher *dispatcher.Dispatcher
}

func New(logger *zap.Logger, job v1.Job, d *dispatcher.Dispatcher) *Runner {
	return &Runner{logger: logger, job: job, dispatcher: d}
}

// Run dispatches every request of the job in order. It stops on the first
// failed request unless the job sets continueOnError, and reports how many
// requests failed either way.
func (r *Runner) Run(ctx context.Context) ([]v1.Response, error) {
	r.logger.Info("running job",
		zap.String("job_name", r.job.Metadata.Name),
		zap.Int("requests", len(r.job.Spec.Requests)))

	responses := make([]v1.Response, 0, len(r.job.Spec.Requests))
	failed := 0

	for i, req := range r.job.Spec.Requests {
		if err := ctx.Err(); err != nil {
			return responses, fmt.Errorf("context cancelled while running job at request %d: %w", i, err)
		}

		logger := r.logger.With(
			zap.Int("request", i),
			zap.String("operation", req.Operation),
			zap.String("source", req.SourcePath))

		tracker := progress.NewTracker(func(ev progress.Event) {
			logger.Debug("progress",
				zap.String("stage", ev.Stage),
				zap.Uint64("bytes", ev.BytesProcessed),
				zap.Int("percent", ev.Percent))
		}, 0)

		resp := r.dispatcher.Dispatch(ctx, req, tracker)
		responses = append(responses, resp)

		if resp.IsError {
			failed++
			logger.Error("request failed", zap.String("message", resp.Error.Message))
			if !r.job.Spec.ContinueOnError {
				return responses, fmt.Errorf("request %d (%s %s) failed: %s",
					i, req.Operation, req.SourcePath, resp.Error.Message)
			}
			continue
		}
		logger.Info("request succeeded", zap.String("message", resp.Content.Text))
	}

	if failed > 0 {
		return responses, fmt.Errorf("%d of %d requests failed", failed, len(r.job.Spec.Requests))
	}
	return responses, nil
}
