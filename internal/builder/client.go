package builder

import (
	"context"
	"encoding/json"
	"fmt"

	"codebuild-action/internal/models"
	"codebuild-action/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

// Client talks to AWS CodeBuild and CloudWatch Logs
type Client struct {
	logger   *logger.Logger
	cbClient CodeBuildAPI
	cwClient CloudWatchLogsAPI
}

// NewClient creates a Client from an AWS configuration
func NewClient(cfg aws.Config, log *logger.Logger) *Client {
	return NewClientFromAPIs(
		codebuild.NewFromConfig(cfg),
		cloudwatchlogs.NewFromConfig(cfg),
		log,
	)
}

// NewClientFromAPIs creates a Client from already constructed SDK clients
func NewClientFromAPIs(cb CodeBuildAPI, cw CloudWatchLogsAPI, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithField("component", "codebuild_client")
	log.Debug().Msg("Initializing CodeBuild client")

	return &Client{
		logger:   log,
		cbClient: cb,
		cwClient: cw,
	}
}

// StartBuild starts a CodeBuild build
func (c *Client) StartBuild(ctx context.Context, req models.BuildRequest) (*cbtypes.Build, error) {
	c.logger.Debug().
		Str("project_name", req.ProjectName).
		Str("source_location", req.SourceLocationOverride).
		Int("env_vars", len(req.EnvironmentVariablesOverride)).
		Msg("Starting CodeBuild build")

	input := StartBuildInput(req)

	if e := c.logger.Trace(); e.Enabled() {
		inputJSON, _ := json.MarshalIndent(input, "", "  ")
		e.RawJSON("build_input", inputJSON).Msg("CodeBuild start build input")
	}

	resp, err := c.cbClient.StartBuild(ctx, input)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("project_name", req.ProjectName).
			Msg("Failed to start CodeBuild build")
		return nil, fmt.Errorf("failed to start CodeBuild build: %w", err)
	}

	if resp.Build == nil || resp.Build.Id == nil {
		return nil, fmt.Errorf("received nil build ID from CodeBuild")
	}

	c.logger.Info().
		Str("build_id", *resp.Build.Id).
		Str("build_arn", aws.ToString(resp.Build.Arn)).
		Msg("Build started")

	return resp.Build, nil
}

// StopBuild asks CodeBuild to stop a running build
func (c *Client) StopBuild(ctx context.Context, buildID string) (*cbtypes.Build, error) {
	c.logger.Info().
		Str("build_id", buildID).
		Msg("Stopping CodeBuild build")

	resp, err := c.cbClient.StopBuild(ctx, &codebuild.StopBuildInput{
		Id: aws.String(buildID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stop build %s: %w", buildID, err)
	}

	return resp.Build, nil
}

// GetBuild fetches the current record of a build
func (c *Client) GetBuild(ctx context.Context, buildID string) (*cbtypes.Build, error) {
	resp, err := c.cbClient.BatchGetBuilds(ctx, &codebuild.BatchGetBuildsInput{
		Ids: []string{buildID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get build status: %w", err)
	}

	if len(resp.Builds) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, buildID)
	}

	build := resp.Builds[0]

	c.logger.Debug().
		Str("build_id", buildID).
		Str("build_status", string(build.BuildStatus)).
		Str("current_phase", aws.ToString(build.CurrentPhase)).
		Msg("Build status update")

	return &build, nil
}

// GetLogEvents reads the next page of a log stream, oldest first. An empty
// reference returns an empty page.
func (c *Client) GetLogEvents(ctx context.Context, ref models.LogReference, nextToken *string) (*models.LogPage, error) {
	if !ref.Present() {
		return &models.LogPage{}, nil
	}

	out, err := c.cwClient.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  ref.GroupName,
		LogStreamName: ref.StreamName,
		StartFromHead: aws.Bool(true),
		NextToken:     nextToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get log events from %s/%s: %w",
			aws.ToString(ref.GroupName), aws.ToString(ref.StreamName), err)
	}

	page := &models.LogPage{
		NextToken: out.NextForwardToken,
	}
	for _, event := range out.Events {
		if event.Message != nil {
			page.Events = append(page.Events, *event.Message)
		}
	}

	return page, nil
}
