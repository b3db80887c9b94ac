package builder

import (
	"context"
	"time"

	"codebuild-action/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

const (
	testBuildID = "buildID"
	nullArn     = "arn:aws:logs:us-west-2:111122223333:log-group:null:log-stream:null"
	logsArn     = "arn:aws:logs:us-west-2:111122223333:log-group:/aws/codebuild/CloudWatchLogGroup:log-stream:1234abcd-12ab-34cd-56ef-1234567890ab"
)

type reply struct {
	build *cbtypes.Build
	err   error
}

type logReply struct {
	page *models.LogPage
	err  error
}

// fakeService replays canned build and log replies in order. Log replies are
// indexed by the build poll they belong to, like the wait loop pairs them.
type fakeService struct {
	builds   []reply
	logs     []logReply
	polls    int
	logCalls []models.LogReference
	tokens   []*string
	cancelAt int
	cancel   context.CancelFunc
}

func (f *fakeService) GetBuild(ctx context.Context, buildID string) (*cbtypes.Build, error) {
	f.polls++
	if f.cancel != nil && f.polls == f.cancelAt {
		f.cancel()
	}
	r := f.builds[min(f.polls, len(f.builds))-1]
	return r.build, r.err
}

func (f *fakeService) GetLogEvents(ctx context.Context, ref models.LogReference, nextToken *string) (*models.LogPage, error) {
	f.logCalls = append(f.logCalls, ref)
	f.tokens = append(f.tokens, nextToken)
	if f.polls-1 >= len(f.logs) {
		return &models.LogPage{}, nil
	}
	r := f.logs[f.polls-1]
	return r.page, r.err
}

// fakeClock advances its own time on Sleep and records every pause.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func build(arn string, ended bool) *cbtypes.Build {
	b := &cbtypes.Build{
		Id:          aws.String(testBuildID),
		BuildStatus: cbtypes.StatusTypeInProgress,
		Logs:        &cbtypes.LogsLocation{CloudWatchLogsArn: aws.String(arn)},
	}
	if ended {
		b.EndTime = aws.Time(time.Date(2020, 1, 1, 0, 5, 0, 0, time.UTC))
		b.BuildStatus = cbtypes.StatusTypeSucceeded
	}
	return b
}

func events(messages ...string) logReply {
	return logReply{page: &models.LogPage{Events: messages}}
}
