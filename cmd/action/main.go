package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"codebuild-action/internal/builder"
	"codebuild-action/internal/config"
	"codebuild-action/internal/output"
	"codebuild-action/internal/storage"
	"codebuild-action/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
)

const appID = "aws-codebuild-run-build"

func main() {
	// A .env file is optional; runners provide everything through the environment.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger(nil).Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stderr",
	})
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("Failed to load .env file")
	}

	os.Exit(run(cfg, log))
}

func run(cfg config.Config, log *logger.Logger) int {
	req, err := builder.BuildParameters(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Invalid action inputs")
		return 1
	}

	ctx := context.Background()
	if cfg.Action.StopOnSignals {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithAppID(appID),
	}
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load AWS configuration")
		return 1
	}

	client := builder.NewClient(awsCfg, log)
	archive, err := storage.NewS3Client(s3.NewFromConfig(awsCfg), log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create S3 client")
		return 1
	}

	var buildLog io.Writer = os.Stdout
	if cfg.Action.HideCloudWatchLogs {
		buildLog = io.Discard
	}

	waiter := builder.NewWaiter(client, builder.RealClock(), buildLog, builder.WaiterConfig{
		Interval: cfg.Poll.Interval,
		BackOff:  cfg.Poll.BackOff,
		Timeout:  cfg.Poll.Timeout,
	}, log)
	runner := builder.NewRunner(client, waiter, log,
		builder.WithLogArchive(archive, buildLog),
		builder.WithStopOnCancel(cfg.Action.StopOnSignals),
	)

	build, err := runner.Run(ctx, req)
	buildID := ""
	if build != nil {
		buildID = aws.ToString(build.Id)
	}
	if buildID != "" {
		if oerr := output.Set(cfg.GitHub.OutputPath, output.BuildIDName, buildID); oerr != nil {
			log.Warn().Err(oerr).Str("build_id", buildID).Msg("Failed to set output")
		}
	}
	if err != nil {
		log.Error().Err(err).Str("build_id", buildID).Msg("Build run failed")
		return 1
	}

	if err := builder.Outcome(build); err != nil {
		log.Error().Err(err).Msg("Build failed")
		return 1
	}
	return 0
}
