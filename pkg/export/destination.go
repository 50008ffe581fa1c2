package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination receives a finished report.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	String() string
}

// FileDestination writes the report to a local file. The file is replaced
// atomically through a temporary file in the same directory.
type FileDestination struct {
	Path string
}

func (d *FileDestination) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(d.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, d.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

func (d *FileDestination) String() string {
	return d.Path
}

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads the report as one object.
type S3Destination struct {
	Client S3API
	Bucket string
	Key    string
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.Bucket),
		Key:           aws.String(d.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (d *S3Destination) String() string {
	return "s3://" + d.Bucket + "/" + d.Key
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URL %q: scheme must be s3", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid S3 URL %q: want s3://bucket/key", raw)
	}
	return u.Host, key, nil
}

// IsS3URL reports whether destination names an S3 object.
func IsS3URL(destination string) bool {
	return strings.HasPrefix(destination, "s3://")
}
