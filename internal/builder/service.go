package builder

import (
	"context"

	"codebuild-action/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

// BuildService is what the poll loop needs from AWS
type BuildService interface {
	GetBuild(ctx context.Context, buildID string) (*cbtypes.Build, error)
	GetLogEvents(ctx context.Context, ref models.LogReference, nextToken *string) (*models.LogPage, error)
}

// BuildStarter starts and stops builds
type BuildStarter interface {
	StartBuild(ctx context.Context, req models.BuildRequest) (*cbtypes.Build, error)
	StopBuild(ctx context.Context, buildID string) (*cbtypes.Build, error)
}

// CodeBuildAPI is the subset of the CodeBuild client used by Client
type CodeBuildAPI interface {
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	StopBuild(ctx context.Context, params *codebuild.StopBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StopBuildOutput, error)
	BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
}

// CloudWatchLogsAPI is the subset of the CloudWatch Logs client used by Client
type CloudWatchLogsAPI interface {
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}
