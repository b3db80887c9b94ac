package builder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"codebuild-action/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// awsHandler answers JSON protocol calls keyed by their X-Amz-Target.
type awsHandler struct {
	t         *testing.T
	responses map[string]string
	status    map[string]int
	requests  map[string]map[string]interface{}
}

func (h *awsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")

	body, err := io.ReadAll(r.Body)
	assert.NoError(h.t, err)
	var decoded map[string]interface{}
	assert.NoError(h.t, json.Unmarshal(body, &decoded))
	h.requests[target] = decoded

	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	if code, ok := h.status[target]; ok {
		w.WriteHeader(code)
	}
	io.WriteString(w, h.responses[target])
}

func newTestClient(t *testing.T, h *awsHandler) *Client {
	h.t = t
	h.requests = map[string]map[string]interface{}{}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	creds := credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")
	cb := codebuild.New(codebuild.Options{
		Region:           "us-west-2",
		Credentials:      creds,
		BaseEndpoint:     aws.String(srv.URL),
		RetryMaxAttempts: 1,
	})
	cw := cloudwatchlogs.New(cloudwatchlogs.Options{
		Region:           "us-west-2",
		Credentials:      creds,
		BaseEndpoint:     aws.String(srv.URL),
		RetryMaxAttempts: 1,
	})
	return NewClientFromAPIs(cb, cw, nil)
}

func TestClientStartBuild(t *testing.T) {
	h := &awsHandler{responses: map[string]string{
		"CodeBuild_20161006.StartBuild": `{"build":{"id":"project_name:1234","arn":"arn:aws:codebuild:us-west-2:111122223333:build/project_name:1234","buildStatus":"IN_PROGRESS"}}`,
	}}
	client := newTestClient(t, h)

	req := models.BuildRequest{
		ProjectName:            projectName,
		SourceVersion:          sha,
		SourceTypeOverride:     models.SourceTypeGitHub,
		SourceLocationOverride: "https://github.com/owner/repo.git",
		EnvironmentVariablesOverride: []models.EnvVar{
			{Name: "GITHUB_SHA", Value: sha, Type: models.EnvVarTypePlaintext},
		},
	}

	build, err := client.StartBuild(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "project_name:1234", aws.ToString(build.Id))
	assert.Equal(t, cbtypes.StatusTypeInProgress, build.BuildStatus)

	sent := h.requests["CodeBuild_20161006.StartBuild"]
	require.NotNil(t, sent)
	assert.Equal(t, projectName, sent["projectName"])
	assert.Equal(t, sha, sent["sourceVersion"])
	assert.Equal(t, "GITHUB", sent["sourceTypeOverride"])
	assert.Equal(t, "https://github.com/owner/repo.git", sent["sourceLocationOverride"])
	assert.NotEmpty(t, sent["idempotencyToken"])
	assert.NotContains(t, sent, "buildspecOverride")
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "GITHUB_SHA", "value": sha, "type": "PLAINTEXT"},
	}, sent["environmentVariablesOverride"])
}

func TestClientGetBuild(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		h := &awsHandler{responses: map[string]string{
			"CodeBuild_20161006.BatchGetBuilds": `{"builds":[{"id":"project_name:1234","buildStatus":"SUCCEEDED","endTime":1700000000,"logs":{"cloudWatchLogsArn":"` + logsArn + `"}}],"buildsNotFound":[]}`,
		}}
		client := newTestClient(t, h)

		build, err := client.GetBuild(context.Background(), "project_name:1234")
		require.NoError(t, err)

		assert.Equal(t, cbtypes.StatusTypeSucceeded, build.BuildStatus)
		require.NotNil(t, build.EndTime)
		assert.Equal(t, int64(1700000000), build.EndTime.Unix())
		assert.True(t, logReference(build).Present())
		assert.Equal(t, []interface{}{"project_name:1234"}, h.requests["CodeBuild_20161006.BatchGetBuilds"]["ids"])
	})

	t.Run("NotFound", func(t *testing.T) {
		h := &awsHandler{responses: map[string]string{
			"CodeBuild_20161006.BatchGetBuilds": `{"builds":[],"buildsNotFound":["project_name:1234"]}`,
		}}
		client := newTestClient(t, h)

		_, err := client.GetBuild(context.Background(), "project_name:1234")
		assert.ErrorIs(t, err, ErrBuildNotFound)
	})

	t.Run("ThrottlingIsRecognised", func(t *testing.T) {
		h := &awsHandler{
			responses: map[string]string{
				"CodeBuild_20161006.BatchGetBuilds": `{"__type":"ThrottlingException","message":"Rate exceeded"}`,
			},
			status: map[string]int{"CodeBuild_20161006.BatchGetBuilds": http.StatusBadRequest},
		}
		client := newTestClient(t, h)

		_, err := client.GetBuild(context.Background(), "project_name:1234")
		require.Error(t, err)
		assert.True(t, isThrottling(err))
	})
}

func TestClientGetLogEvents(t *testing.T) {
	t.Run("ReadsFromHead", func(t *testing.T) {
		h := &awsHandler{responses: map[string]string{
			"Logs_20140328.GetLogEvents": `{"events":[{"message":"hello\n","timestamp":1,"ingestionTime":2},{"timestamp":3,"ingestionTime":4}],"nextForwardToken":"f/2","nextBackwardToken":"b/1"}`,
		}}
		client := newTestClient(t, h)

		page, err := client.GetLogEvents(context.Background(), ParseLogName(logsArn), aws.String("f/1"))
		require.NoError(t, err)

		assert.Equal(t, []string{"hello\n"}, page.Events)
		assert.Equal(t, "f/2", aws.ToString(page.NextToken))

		sent := h.requests["Logs_20140328.GetLogEvents"]
		assert.Equal(t, "/aws/codebuild/CloudWatchLogGroup", sent["logGroupName"])
		assert.Equal(t, "1234abcd-12ab-34cd-56ef-1234567890ab", sent["logStreamName"])
		assert.Equal(t, true, sent["startFromHead"])
		assert.Equal(t, "f/1", sent["nextToken"])
	})

	t.Run("EmptyReferenceSkipsTheCall", func(t *testing.T) {
		h := &awsHandler{}
		client := newTestClient(t, h)

		page, err := client.GetLogEvents(context.Background(), ParseLogName(nullArn), nil)
		require.NoError(t, err)
		assert.Empty(t, page.Events)
		assert.Empty(t, h.requests)
	})
}

func TestClientStopBuild(t *testing.T) {
	h := &awsHandler{responses: map[string]string{
		"CodeBuild_20161006.StopBuild": `{"build":{"id":"project_name:1234","buildStatus":"STOPPED"}}`,
	}}
	client := newTestClient(t, h)

	build, err := client.StopBuild(context.Background(), "project_name:1234")
	require.NoError(t, err)
	assert.Equal(t, cbtypes.StatusTypeStopped, build.BuildStatus)
	assert.Equal(t, "project_name:1234", h.requests["CodeBuild_20161006.StopBuild"]["id"])
}
