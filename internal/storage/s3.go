package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"codebuild-action/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// S3API is the subset of the S3 client used by S3Client
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client reads CodeBuild log archives from S3
type S3Client struct {
	client S3API
	logger *logger.Logger
}

// NewS3Client creates a new S3 client
func NewS3Client(client S3API, log *logger.Logger) (*S3Client, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &S3Client{
		client: client,
		logger: log.WithField("component", "s3_logs"),
	}, nil
}

// ParseLocation splits a CodeBuild S3 logs location ("bucket/prefix" or an
// S3 ARN) into bucket and key prefix.
func ParseLocation(location string) (bucket, prefix string, err error) {
	location = strings.TrimPrefix(location, "arn:aws:s3:::")
	bucket, prefix, _ = strings.Cut(location, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 logs location %q", location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// LogKey returns the object key CodeBuild uses for a build's log: the build
// UUID (the part of the build ID after the project name) with a .gz suffix,
// below prefix.
func LogKey(prefix, buildID string) string {
	name := buildID
	if i := strings.LastIndex(buildID, ":"); i >= 0 {
		name = buildID[i+1:]
	}
	if prefix == "" {
		return name + ".gz"
	}
	return prefix + "/" + name + ".gz"
}

// ReadBuildLog opens the decompressed log of a finished build. The caller
// closes the returned reader.
func (s *S3Client) ReadBuildLog(ctx context.Context, location, buildID string) (io.ReadCloser, error) {
	bucket, prefix, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	key := LogKey(prefix, buildID)

	s.logger.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Msg("Downloading build log from S3")

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", bucket).
			Str("key", key).
			Msg("Failed to download build log from S3")
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}

	zr, err := gzip.NewReader(result.Body)
	if err != nil {
		result.Body.Close()
		return nil, fmt.Errorf("failed to decompress s3://%s/%s: %w", bucket, key, err)
	}

	return &gzipBody{Reader: zr, body: result.Body}, nil
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipBody) Close() error {
	zerr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return zerr
}
