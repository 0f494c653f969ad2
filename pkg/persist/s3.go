package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Slots.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Slots keeps every slot as an object `<prefix><slot name>.json` of a bucket.
type S3Slots struct {
	client S3API
	bucket string
	prefix string
}

var _ SlotStore = (*S3Slots)(nil)

// NewS3Slots wraps an existing client.
func NewS3Slots(client S3API, bucket, prefix string) (*S3Slots, error) {
	if bucket == "" {
		return nil, errors.New("s3 slots need a bucket")
	}
	return &S3Slots{client: client, bucket: bucket, prefix: prefix}, nil
}

// OpenS3Slots builds an S3 client from the default AWS config chain (env, shared config, IMDS, ...).
// `region` and `endpoint` are optional overrides; a custom endpoint (e.g. MinIO) implies path-style addressing.
func OpenS3Slots(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Slots, error) {
	if bucket == "" {
		return nil, errors.New("s3 slots need a bucket")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(options *s3.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
			options.UsePathStyle = true
		}
	})
	return NewS3Slots(client, bucket, prefix)
}

func (s *S3Slots) objectKey(name string) string {
	return s.prefix + strings.TrimPrefix(name, "/") + ".json"
}

func (s *S3Slots) GetSlot(ctx context.Context, name string) ([]byte, bool, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get slot %q from s3://%s: %w", name, s.bucket, err)
	}
	defer func() { _ = output.Body.Close() }()
	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %q: %w", name, err)
	}
	return data, true, nil
}

func (s *S3Slots) SetSlot(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return ErrEmptySlotName
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("failed to put slot %q to s3://%s: %w", name, s.bucket, err)
	}
	return nil
}

// RemoveSlot relies on DeleteObject succeeding for missing keys.
func (s *S3Slots) RemoveSlot(ctx context.Context, name string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	}); err != nil {
		return fmt.Errorf("failed to delete slot %q from s3://%s: %w", name, s.bucket, err)
	}
	return nil
}
