package builder

import (
	"fmt"
	"strings"

	"codebuild-action/internal/config"
	"codebuild-action/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/google/uuid"
)

// ForwardPrefix selects the environment variables sent to every build.
const ForwardPrefix = "GITHUB_"

// BuildParameters assembles the StartBuild request from the action
// configuration. Variables starting with ForwardPrefix come first, in
// environment order, followed by the passthrough names in the order given.
func BuildParameters(cfg config.Config) (models.BuildRequest, error) {
	projectName := strings.TrimSpace(cfg.Action.ProjectName)
	if projectName == "" {
		return models.BuildRequest{}, models.ErrProjectNameRequired
	}

	req := models.BuildRequest{
		ProjectName:                  projectName,
		EnvironmentVariablesOverride: environmentOverrides(cfg),
		ComputeTypeOverride:          cfg.Action.ComputeTypeOverride,
		EnvironmentTypeOverride:      cfg.Action.EnvironmentTypeOverride,
		ImageOverride:                cfg.Action.ImageOverride,
	}

	if cfg.Action.BuildspecOverride != "" {
		buildspec := cfg.Action.BuildspecOverride
		req.BuildspecOverride = &buildspec
	}

	if !cfg.Action.DisableSourceOverride {
		owner, repo, ok := strings.Cut(cfg.GitHub.Repository, "/")
		if !ok || owner == "" || repo == "" {
			return models.BuildRequest{}, fmt.Errorf("%w: repository must look like owner/repo, got %q", models.ErrInvalidInput, cfg.GitHub.Repository)
		}
		req.SourceVersion = cfg.GitHub.SHA
		req.SourceTypeOverride = models.SourceTypeGitHub
		req.SourceLocationOverride = fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	}

	return req, nil
}

func environmentOverrides(cfg config.Config) []models.EnvVar {
	envVars := []models.EnvVar{}
	seen := make(map[string]bool)

	for _, kv := range cfg.Environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, ForwardPrefix) || seen[name] {
			continue
		}
		seen[name] = true
		envVars = append(envVars, models.EnvVar{
			Name:  name,
			Value: value,
			Type:  models.EnvVarTypePlaintext,
		})
	}

	for _, name := range cfg.Action.EnvPassthrough {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		value, ok := cfg.Lookup(name)
		if !ok {
			continue
		}
		seen[name] = true
		envVars = append(envVars, models.EnvVar{
			Name:  name,
			Value: value,
			Type:  models.EnvVarTypePlaintext,
		})
	}

	return envVars
}

// StartBuildInput converts a request to the CodeBuild SDK shape. Each call
// gets a fresh idempotency token.
func StartBuildInput(req models.BuildRequest) *codebuild.StartBuildInput {
	envVars := make([]cbtypes.EnvironmentVariable, 0, len(req.EnvironmentVariablesOverride))
	for _, env := range req.EnvironmentVariablesOverride {
		envVars = append(envVars, cbtypes.EnvironmentVariable{
			Name:  aws.String(env.Name),
			Value: aws.String(env.Value),
			Type:  cbtypes.EnvironmentVariableType(env.Type),
		})
	}

	input := &codebuild.StartBuildInput{
		ProjectName:                  aws.String(req.ProjectName),
		BuildspecOverride:            req.BuildspecOverride,
		EnvironmentVariablesOverride: envVars,
		IdempotencyToken:             aws.String(uuid.New().String()),
	}

	if req.SourceTypeOverride != "" {
		input.SourceTypeOverride = cbtypes.SourceType(req.SourceTypeOverride)
		input.SourceLocationOverride = aws.String(req.SourceLocationOverride)
	}
	if req.SourceVersion != "" {
		input.SourceVersion = aws.String(req.SourceVersion)
	}
	if req.ComputeTypeOverride != "" {
		input.ComputeTypeOverride = cbtypes.ComputeType(req.ComputeTypeOverride)
	}
	if req.EnvironmentTypeOverride != "" {
		input.EnvironmentTypeOverride = cbtypes.EnvironmentType(req.EnvironmentTypeOverride)
	}
	if req.ImageOverride != "" {
		input.ImageOverride = aws.String(req.ImageOverride)
	}

	return input
}
