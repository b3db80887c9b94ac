package builder

import (
	"strings"

	"codebuild-action/internal/models"

	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

const (
	logGroupMarker  = ":log-group:"
	logStreamMarker = ":log-stream:"
	nullSegment     = "null"
)

// ParseLogName extracts the log group and stream from a CloudWatch Logs ARN
// such as
//
//	arn:aws:logs:us-west-2:111122223333:log-group:/aws/codebuild/Group:log-stream:1234abcd
//
// CodeBuild reports "null" for both names while logging is not set up yet;
// that, and anything unparseable, yields an empty reference.
func ParseLogName(arn string) models.LogReference {
	idx := strings.LastIndex(arn, logGroupMarker)
	if idx < 0 {
		return models.LogReference{}
	}

	group, stream, ok := strings.Cut(arn[idx+len(logGroupMarker):], logStreamMarker)
	if !ok || group == "" || stream == "" || group == nullSegment || stream == nullSegment {
		return models.LogReference{}
	}

	return models.LogReference{
		GroupName:  &group,
		StreamName: &stream,
	}
}

func logReference(build *cbtypes.Build) models.LogReference {
	if build == nil || build.Logs == nil || build.Logs.CloudWatchLogsArn == nil {
		return models.LogReference{}
	}
	return ParseLogName(*build.Logs.CloudWatchLogsArn)
}
