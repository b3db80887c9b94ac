package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"codebuild-action/internal/models"
	"codebuild-action/pkg/logger"

	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/aws/smithy-go"
)

var (
	ErrBuildNotFound  = errors.New("build not found")
	ErrMissingBuildID = errors.New("build has no id")
	ErrWaitTimeout    = errors.New("timed out waiting for build")
)

// Clock abstracts time so the poll loop can be driven in tests
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns a Clock backed by the time package
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaiterConfig controls the poll cadence
type WaiterConfig struct {
	// Interval is the pause between polls.
	Interval time.Duration
	// BackOff is added to Interval every time AWS throttles a request.
	BackOff time.Duration
	// Timeout bounds the total wait. Zero waits until the build ends.
	Timeout time.Duration
}

// Waiter polls a build until it has ended and its log stream is drained
type Waiter struct {
	service BuildService
	clock   Clock
	out     io.Writer
	cfg     WaiterConfig
	logger  *logger.Logger
}

// NewWaiter creates a Waiter. Log messages are written to out, one per line.
func NewWaiter(service BuildService, clock Clock, out io.Writer, cfg WaiterConfig, log *logger.Logger) *Waiter {
	if clock == nil {
		clock = RealClock()
	}
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Waiter{
		service: service,
		clock:   clock,
		out:     out,
		cfg:     cfg,
		logger:  log,
	}
}

// Wait blocks until the build has an end time and a log fetch comes back
// empty, relaying log events as they arrive. build is the record returned
// when the build was started; the log stream to read on each poll is taken
// from the record fetched on the previous poll.
func (w *Waiter) Wait(ctx context.Context, build *cbtypes.Build) (*cbtypes.Build, error) {
	if build == nil || build.Id == nil {
		return nil, ErrMissingBuildID
	}
	buildID := *build.Id
	log := w.logger.WithBuildID(buildID)

	start := w.clock.Now()
	interval := w.cfg.Interval
	current := build
	var nextToken *string

	for attempt := 1; ; attempt++ {
		fetched, page, err := w.poll(ctx, buildID, logReference(current), nextToken)
		switch {
		case err == nil:
			if page.NextToken != nil {
				nextToken = page.NextToken
			}
			w.emit(page.Events)
			if fetched.EndTime != nil && len(page.Events) == 0 {
				log.Debug().
					Int("poll_attempt", attempt).
					Str("build_status", string(fetched.BuildStatus)).
					Msg("Build finished")
				return fetched, nil
			}
			current = fetched
		case isThrottling(err):
			interval += w.cfg.BackOff
			log.Warn().
				Err(err).
				Dur("interval", interval).
				Msg("Request throttled, backing off")
		default:
			return nil, err
		}

		log.Debug().
			Int("poll_attempt", attempt).
			Str("build_status", string(current.BuildStatus)).
			Msg("Build still running")

		if w.cfg.Timeout > 0 && w.clock.Now().Sub(start) >= w.cfg.Timeout {
			return current, fmt.Errorf("%w %s after %s", ErrWaitTimeout, buildID, w.cfg.Timeout)
		}

		if err := w.clock.Sleep(ctx, interval); err != nil {
			return current, fmt.Errorf("stopped waiting for build %s: %w", buildID, err)
		}
	}
}

// poll fetches the build record and, when ref names a stream, the next page
// of its log events.
func (w *Waiter) poll(ctx context.Context, buildID string, ref models.LogReference, nextToken *string) (*cbtypes.Build, *models.LogPage, error) {
	build, err := w.service.GetBuild(ctx, buildID)
	if err != nil {
		return nil, nil, err
	}
	if !ref.Present() {
		return build, &models.LogPage{}, nil
	}

	page, err := w.service.GetLogEvents(ctx, ref, nextToken)
	if err != nil {
		return nil, nil, err
	}
	if page == nil {
		page = &models.LogPage{}
	}
	return build, page, nil
}

func (w *Waiter) emit(events []string) {
	for _, message := range events {
		fmt.Fprintln(w.out, strings.TrimRight(message, " \t\r\n"))
	}
}

func isThrottling(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "Throttling", "TooManyRequestsException", "RequestLimitExceeded":
		return true
	}
	return false
}

// Succeeded reports whether a finished build succeeded
func Succeeded(build *cbtypes.Build) bool {
	return build != nil && build.BuildStatus == cbtypes.StatusTypeSucceeded
}
