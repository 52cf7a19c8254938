package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
)

// s3API is the subset of *s3.Client the store uses
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store keeps blobs as s3://<bucket>/<prefix><name>.json. S3 has no
// multi-object transaction; blobs are uploaded in the given order and every
// blob carries its generation id so a torn write is detected on load.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store builds a client from the default AWS credential chain
func NewS3Store(ctx context.Context, cfg *config.S3Config, logger *zap.Logger) (*S3Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("s3 artifact store initialized",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("prefix", cfg.Prefix))

	return newS3Store(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Store(client s3API, bucket, prefix string, logger *zap.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, name+fileExt)
}

// Load implements Store
func (s *S3Store) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		s.logger.Error("s3 get failed", zap.String("key", s.key(name)), zap.Error(err))
		return nil, fmt.Errorf("s3 get %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3 object %s: %w", name, err)
	}
	return data, nil
}

// Save implements Store
func (s *S3Store) Save(ctx context.Context, blobs []Blob) error {
	if err := validateBlobs(blobs); err != nil {
		return err
	}

	for _, b := range blobs {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(b.Name)),
			Body:        bytes.NewReader(b.Data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			s.logger.Error("s3 put failed", zap.String("key", s.key(b.Name)), zap.Error(err))
			return fmt.Errorf("s3 put %s: %w", b.Name, err)
		}
	}
	return nil
}

// Ping implements Store
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Backend implements Store
func (s *S3Store) Backend() string {
	return "s3"
}

// Close implements Store
func (s *S3Store) Close() error {
	return nil
}
