// Package s3 stores artifacts in an S3 compatible bucket.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"streamrelay/config"
	"streamrelay/observability"
	"streamrelay/storage/types"
)

// API is the part of *s3.Client the store calls.
type API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Client is a types.ObjectStorage over one bucket.
type Client struct {
	api     API
	bucket  string
	region  string
	timeout time.Duration
	logger  observability.Logger
	metrics observability.Metrics
}

var _ types.ObjectStorage = (*Client)(nil)

// NewClient connects to the configured bucket, creating it when missing.
func NewClient(cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.S3.Bucket == "" {
		return nil, errors.New("invalid S3 configuration: bucket is required")
	}

	awsCfg, err := loadAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})
	c := NewWithAPI(api, cfg, logger, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}
	return c, nil
}

// NewWithAPI builds a client over an existing API, skipping the bucket
// check.
func NewWithAPI(api API, cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) *Client {
	return &Client{
		api:     api,
		bucket:  cfg.S3.Bucket,
		region:  cfg.S3.Region,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// spooled is an upload body staged on disk with its size and digest.
type spooled struct {
	*os.File
	size   int64
	sha256 []byte
}

func (s *spooled) discard() {
	s.Close()
	os.Remove(s.Name())
}

// spool copies r to a temporary file. PutObject signs the payload, which
// needs a seekable body of known length, and artifacts do not fit in
// memory.
func spool(r io.Reader) (*spooled, error) {
	f, err := os.CreateTemp("", "streamrelay-s3-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	s := &spooled{File: f}

	digest := sha256.New()
	if s.size, err = io.Copy(f, io.TeeReader(r, digest)); err != nil {
		s.discard()
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.discard()
		return nil, fmt.Errorf("failed to rewind spool file: %w", err)
	}
	s.sha256 = digest.Sum(nil)
	return s, nil
}

// Put uploads r with its SHA-256 checksum so S3 rejects a corrupted body.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, metadata types.ObjectMetadata) (int64, error) {
	if err := types.ValidateKey(key); err != nil {
		return 0, err
	}

	start := time.Now()
	defer func() { c.metrics.RecordDuration("s3_put", time.Since(start).Seconds()) }()

	body, err := spool(r)
	if err != nil {
		c.fail(ctx, "s3_put", "read_failed", key, err)
		return 0, err
	}
	defer body.discard()

	input := &s3.PutObjectInput{
		Bucket:         aws.String(c.bucket),
		Key:            aws.String(key),
		Body:           body,
		ContentLength:  aws.Int64(body.size),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(body.sha256)),
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}
	if len(metadata.UserMetadata) > 0 {
		input.Metadata = metadata.UserMetadata
	}

	if _, err := c.api.PutObject(ctx, input); err != nil {
		c.fail(ctx, "s3_put", "put_failed", key, err)
		return body.size, fmt.Errorf("failed to put object: %w", err)
	}

	c.metrics.RecordSuccess("s3_put")
	c.metrics.RecordBytes("artifact", body.size)
	c.logger.Debug(ctx, "artifact uploaded", observability.Fields{
		"bucket": c.bucket,
		"key":    key,
		"size":   body.size,
		"sha256": hex.EncodeToString(body.sha256),
	})
	return body.size, nil
}

// Get opens key for reading. The body streams, so no timeout is applied.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, *types.ObjectMetadata, error) {
	if err := types.ValidateKey(key); err != nil {
		return nil, nil, err
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	switch {
	case isNotFoundError(err):
		return nil, nil, types.ErrObjectNotFound
	case err != nil:
		c.fail(ctx, "s3_get", "get_failed", key, err)
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, &types.ObjectMetadata{
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		LastModified:  aws.ToTime(out.LastModified),
		UserMetadata:  out.Metadata,
	}, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := types.ValidateKey(key); err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)}); err != nil {
		c.fail(ctx, "s3_delete", "delete_failed", key, err)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if err := types.ValidateKey(key); err != nil {
		return false, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		return true, nil
	case isNotFoundError(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
}

// List walks every page under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]types.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []types.ObjectInfo
	for pages := s3.NewListObjectsV2Paginator(c.api, input); pages.HasMorePages(); {
		page, err := pages.NextPage(ctx)
		if err != nil {
			c.fail(ctx, "s3_list", "list_failed", prefix, err)
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// ensureBucketExists creates the bucket when HeadBucket says it is missing.
// Losing a creation race to ourselves or another owner is fine.
func (c *Client) ensureBucketExists(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	var missing *s3types.NotFound
	if !errors.As(err, &missing) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	c.logger.Info(ctx, "creating artifact bucket", observability.Fields{"bucket": c.bucket, "region": c.region})

	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	// us-east-1 rejects an explicit location constraint
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}

	_, err = c.api.CreateBucket(ctx, input)
	var exists *s3types.BucketAlreadyExists
	var owned *s3types.BucketAlreadyOwnedByYou
	if err == nil || errors.As(err, &exists) || errors.As(err, &owned) {
		return nil
	}
	return fmt.Errorf("failed to create bucket: %w", err)
}

func (c *Client) fail(ctx context.Context, op, label, key string, err error) {
	c.metrics.RecordError(op, label)
	c.logger.Error(ctx, op+" failed", err, observability.Fields{"bucket": c.bucket, "key": key})
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// loadAWSConfig layers the configured region, static credentials and retry
// budget over the default chain. No client wide HTTP timeout is set since
// artifact bodies stream for longer than any request deadline.
func loadAWSConfig(cfg *config.StorageConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3.Region))
	}
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, "")))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}

func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
