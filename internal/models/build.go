package models

import (
	"errors"
)

// Common errors
var (
	ErrProjectNameRequired = errors.New("project name is required")
	ErrInvalidInput        = errors.New("invalid input")
)

// SourceType identifies where CodeBuild fetches the source from
type SourceType string

const (
	SourceTypeGitHub SourceType = "GITHUB"
)

// EnvVarType is the CodeBuild environment variable type
type EnvVarType string

const (
	EnvVarTypePlaintext EnvVarType = "PLAINTEXT"
)

// EnvVar is an environment variable override sent with a build
type EnvVar struct {
	Name  string     `json:"name"`
	Value string     `json:"value"`
	Type  EnvVarType `json:"type"`
}

// BuildRequest holds everything needed to start a CodeBuild build
type BuildRequest struct {
	ProjectName string `json:"projectName"`

	// Source fields are empty when the project's own source is used.
	SourceVersion          string     `json:"sourceVersion,omitempty"`
	SourceTypeOverride     SourceType `json:"sourceTypeOverride,omitempty"`
	SourceLocationOverride string     `json:"sourceLocationOverride,omitempty"`

	// BuildspecOverride is nil unless a buildspec was supplied.
	BuildspecOverride *string `json:"buildspecOverride,omitempty"`

	EnvironmentVariablesOverride []EnvVar `json:"environmentVariablesOverride"`

	ComputeTypeOverride     string `json:"computeTypeOverride,omitempty"`
	EnvironmentTypeOverride string `json:"environmentTypeOverride,omitempty"`
	ImageOverride           string `json:"imageOverride,omitempty"`
}

// LogReference names a CloudWatch Logs stream. Both names are set or both
// are nil.
type LogReference struct {
	GroupName  *string
	StreamName *string
}

// Present reports whether the reference names a stream
func (r LogReference) Present() bool {
	return r.GroupName != nil && r.StreamName != nil
}

// LogPage is one batch of log events
type LogPage struct {
	Events    []string
	NextToken *string
}
