package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"codebuild-action/internal/models"
	"codebuild-action/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

// ErrBuildFailed is returned by Outcome for any status other than SUCCEEDED.
var ErrBuildFailed = errors.New("build did not succeed")

const stopTimeout = 30 * time.Second

// LogArchive reads build logs that CodeBuild wrote to S3
type LogArchive interface {
	ReadBuildLog(ctx context.Context, location, buildID string) (io.ReadCloser, error)
}

// Runner starts a build and waits for it to finish
type Runner struct {
	starter BuildStarter
	waiter  *Waiter
	archive LogArchive
	out     io.Writer
	stop    bool
	logger  *logger.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLogArchive relays S3 build logs for builds without a CloudWatch stream.
func WithLogArchive(archive LogArchive, out io.Writer) RunnerOption {
	return func(r *Runner) {
		r.archive = archive
		r.out = out
	}
}

// WithStopOnCancel stops the remote build when the context is cancelled or
// the wait times out.
func WithStopOnCancel(stop bool) RunnerOption {
	return func(r *Runner) {
		r.stop = stop
	}
}

// NewRunner creates a Runner
func NewRunner(starter BuildStarter, waiter *Waiter, log *logger.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.Nop()
	}

	r := &Runner{
		starter: starter,
		waiter:  waiter,
		out:     io.Discard,
		stop:    true,
		logger:  log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the build described by req and returns its final record. When
// the build was started but waiting failed, the last known record is
// returned together with the error.
func (r *Runner) Run(ctx context.Context, req models.BuildRequest) (*cbtypes.Build, error) {
	log := r.logger.WithProject(req.ProjectName)

	started, err := r.starter.StartBuild(ctx, req)
	if err != nil {
		return nil, err
	}
	log = log.WithBuildID(aws.ToString(started.Id))
	log.Info().Msg("Waiting for build to complete")

	final, err := r.waiter.Wait(ctx, started)
	if err != nil {
		if final == nil {
			final = started
		}
		if r.stop && (ctx.Err() != nil || errors.Is(err, ErrWaitTimeout)) {
			r.stopBuild(aws.ToString(started.Id), log)
		}
		return final, err
	}

	if err := r.relayArchivedLog(ctx, final); err != nil {
		log.Warn().Err(err).Msg("Failed to read build log from S3")
	}

	log.Info().
		Str("build_status", string(final.BuildStatus)).
		Msg("Build complete")

	return final, nil
}

func (r *Runner) stopBuild(buildID string, log *logger.Logger) {
	// The caller's context is already done.
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if _, err := r.starter.StopBuild(ctx, buildID); err != nil {
		log.Error().Err(err).Msg("Failed to stop build")
		return
	}
	log.Info().Msg("Build stopped")
}

// relayArchivedLog copies the S3 log of builds that had no CloudWatch stream.
func (r *Runner) relayArchivedLog(ctx context.Context, build *cbtypes.Build) error {
	if r.archive == nil || build.Logs == nil || logReference(build).Present() {
		return nil
	}

	s3Logs := build.Logs.S3Logs
	if s3Logs == nil || s3Logs.Status != cbtypes.LogsConfigStatusTypeEnabled || aws.ToString(s3Logs.Location) == "" {
		return nil
	}

	body, err := r.archive.ReadBuildLog(ctx, *s3Logs.Location, aws.ToString(build.Id))
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(r.out, body); err != nil {
		return fmt.Errorf("failed to relay build log: %w", err)
	}
	return nil
}

// Outcome returns nil for a succeeded build and an ErrBuildFailed wrapper
// naming the status otherwise.
func Outcome(build *cbtypes.Build) error {
	if Succeeded(build) {
		return nil
	}
	if build == nil {
		return ErrBuildFailed
	}

	status := string(build.BuildStatus)
	if status == "" {
		status = "UNKNOWN"
	}
	if phase := failedPhase(build); phase != "" {
		return fmt.Errorf("%w: %s finished with status %s in phase %s", ErrBuildFailed, aws.ToString(build.Id), status, phase)
	}
	return fmt.Errorf("%w: %s finished with status %s", ErrBuildFailed, aws.ToString(build.Id), status)
}

func failedPhase(build *cbtypes.Build) string {
	for _, phase := range build.Phases {
		switch phase.PhaseStatus {
		case cbtypes.StatusTypeFailed, cbtypes.StatusTypeFault, cbtypes.StatusTypeTimedOut:
			return string(phase.PhaseType)
		}
	}
	return ""
}
