package export

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/internal/telemetry"
	"github.com/marmos91/sharescan/pkg/scan"
)

// S3Config configures uploads to s3:// destinations.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Exporter encodes records and writes them to a destination.
type Exporter struct {
	format Format
	s3cfg  S3Config

	s3Once   sync.Once
	s3Client S3API
	s3Err    error
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithS3Client uses client for s3:// destinations instead of building one
// from the S3 configuration.
func WithS3Client(client S3API) Option {
	return func(e *Exporter) {
		e.s3Once.Do(func() {})
		e.s3Client = client
	}
}

// WithS3Config sets the region, endpoint and credentials of S3 uploads.
func WithS3Config(cfg S3Config) Option {
	return func(e *Exporter) {
		e.s3cfg = cfg
	}
}

// NewExporter creates an exporter writing reports in format f.
func NewExporter(f Format, opts ...Option) *Exporter {
	e := &Exporter{format: f}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Format returns the report format.
func (e *Exporter) Format() Format {
	return e.format
}

// Export writes records to destination, a file path or s3://bucket/key.
// Every failure is an *ExportError.
func (e *Exporter) Export(ctx context.Context, records []scan.ShareRecord, destination string) (err error) {
	ctx, span := telemetry.StartExportSpan(ctx, destination, len(records))
	defer func() { telemetry.EndSpan(span, err) }()

	data, err := Marshal(records, e.format)
	if err != nil {
		return &ExportError{Destination: destination, Err: err}
	}

	dest, err := e.Resolve(ctx, destination)
	if err != nil {
		return &ExportError{Destination: destination, Err: err}
	}

	if err := dest.Write(ctx, data); err != nil {
		return &ExportError{Destination: destination, Err: err}
	}

	logger.InfoCtx(ctx, "Report exported",
		logger.Destination(dest.String()),
		logger.Count(len(records)),
		logger.KeyBytes, len(data))
	return nil
}

// Resolve maps a destination string to a Destination.
func (e *Exporter) Resolve(ctx context.Context, destination string) (Destination, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, fmt.Errorf("no destination given")
	}

	if !IsS3URL(destination) {
		return &FileDestination{Path: destination}, nil
	}

	bucket, key, err := ParseS3URL(destination)
	if err != nil {
		return nil, err
	}
	client, err := e.s3(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Destination{Client: client, Bucket: bucket, Key: key}, nil
}

func (e *Exporter) s3(ctx context.Context) (S3API, error) {
	e.s3Once.Do(func() {
		e.s3Client, e.s3Err = newS3Client(ctx, e.s3cfg)
	})
	return e.s3Client, e.s3Err
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.Endpoint == "" {
		return s3.NewFromConfig(awsCfg), nil
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // MinIO and localstack
	}), nil
}
