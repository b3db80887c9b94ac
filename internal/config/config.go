package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the action
type Config struct {
	Action ActionConfig
	GitHub GitHubConfig
	AWS    AWSConfig
	Poll   PollConfig
	Log    LogConfig

	// Environ is the process environment captured at load time, in
	// os.Environ order. Variables forwarded to the build are read from here.
	Environ []string
}

// ActionConfig holds the action inputs
type ActionConfig struct {
	ProjectName             string
	BuildspecOverride       string
	EnvPassthrough          []string
	ComputeTypeOverride     string
	EnvironmentTypeOverride string
	ImageOverride           string
	DisableSourceOverride   bool
	HideCloudWatchLogs      bool
	StopOnSignals           bool
}

type GitHubConfig struct {
	Repository string // owner/repo
	SHA        string
	OutputPath string
}

type AWSConfig struct {
	Region string
}

type PollConfig struct {
	Interval time.Duration
	BackOff  time.Duration
	Timeout  time.Duration // zero means no limit
}

type LogConfig struct {
	Level  string
	Format string
}

// inputs mirrors the raw environment. Every field is a string because the
// runner sets unused inputs to the empty string.
type inputs struct {
	ProjectName             string `envconfig:"INPUT_PROJECT-NAME"`
	BuildspecOverride       string `envconfig:"INPUT_BUILDSPEC-OVERRIDE"`
	EnvPassthrough          string `envconfig:"INPUT_ENV-PASSTHROUGH"`
	ComputeTypeOverride     string `envconfig:"INPUT_COMPUTE-TYPE-OVERRIDE"`
	EnvironmentTypeOverride string `envconfig:"INPUT_ENVIRONMENT-TYPE-OVERRIDE"`
	ImageOverride           string `envconfig:"INPUT_IMAGE-OVERRIDE"`
	DisableSourceOverride   string `envconfig:"INPUT_DISABLE-SOURCE-OVERRIDE"`
	HideCloudWatchLogs      string `envconfig:"INPUT_HIDE-CLOUDWATCH-LOGS"`
	StopOnSignals           string `envconfig:"INPUT_STOP-ON-SIGNALS"`
	UpdateInterval          string `envconfig:"INPUT_UPDATE-INTERVAL"`
	UpdateBackOff           string `envconfig:"INPUT_UPDATE-BACK-OFF"`
	Timeout                 string `envconfig:"INPUT_TIMEOUT"`

	Repository string `envconfig:"GITHUB_REPOSITORY"`
	SHA        string `envconfig:"GITHUB_SHA"`
	OutputPath string `envconfig:"GITHUB_OUTPUT"`

	Region        string `envconfig:"AWS_REGION"`
	DefaultRegion string `envconfig:"AWS_DEFAULT_REGION"`
	LogLevel      string `envconfig:"CODEBUILD_ACTION_LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"CODEBUILD_ACTION_LOG_FORMAT" default:"console"`
}

const (
	DefaultUpdateInterval = 30 * time.Second
	DefaultUpdateBackOff  = 15 * time.Second
)

// Load creates a Config instance from environment variables
func Load() (Config, error) {
	var in inputs
	if err := envconfig.Process("", &in); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return fromInputs(in, os.Environ()), nil
}

func fromInputs(in inputs, environ []string) Config {
	region := in.Region
	if region == "" {
		region = in.DefaultRegion
	}

	return Config{
		Action: ActionConfig{
			ProjectName:             strings.TrimSpace(in.ProjectName),
			BuildspecOverride:       in.BuildspecOverride,
			EnvPassthrough:          SplitList(in.EnvPassthrough),
			ComputeTypeOverride:     strings.TrimSpace(in.ComputeTypeOverride),
			EnvironmentTypeOverride: strings.TrimSpace(in.EnvironmentTypeOverride),
			ImageOverride:           strings.TrimSpace(in.ImageOverride),
			DisableSourceOverride:   parseBoolOrDefault(in.DisableSourceOverride, false),
			HideCloudWatchLogs:      parseBoolOrDefault(in.HideCloudWatchLogs, false),
			StopOnSignals:           parseBoolOrDefault(in.StopOnSignals, true),
		},
		GitHub: GitHubConfig{
			Repository: in.Repository,
			SHA:        in.SHA,
			OutputPath: in.OutputPath,
		},
		AWS: AWSConfig{
			Region: region,
		},
		Poll: PollConfig{
			Interval: parseSecondsOrDefault(in.UpdateInterval, DefaultUpdateInterval),
			BackOff:  parseSecondsOrDefault(in.UpdateBackOff, DefaultUpdateBackOff),
			Timeout:  parseSecondsOrDefault(in.Timeout, 0),
		},
		Log: LogConfig{
			Level:  in.LogLevel,
			Format: in.LogFormat,
		},
		Environ: environ,
	}
}

// SplitList splits a comma separated input, trimming whitespace and newlines
// around each item and dropping empty items.
func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Lookup returns the value of key in the captured environment.
func (c Config) Lookup(key string) (string, bool) {
	for _, kv := range c.Environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

func parseBoolOrDefault(value string, defaultValue bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// parseSecondsOrDefault accepts a bare number of seconds ("30") or a Go
// duration ("1m30s").
func parseSecondsOrDefault(value string, defaultValue time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return defaultValue
		}
		return time.Duration(seconds) * time.Second
	}

	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}
