package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client defines the S3 operations used by S3Store.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Presigner defines the presigning operation used for signed download URLs.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config contains configuration for the S3 backend.
type S3Config struct {
	Bucket         string
	Region         string
	AccessKeyID    string
	SecretKey      string
	Endpoint       string // Optional: for S3-compatible services
	ForcePathStyle bool   // For S3-compatible services like MinIO
	OpTimeout      time.Duration
}

// S3Store implements Store for Amazon S3 and S3-compatible services.
// It is safe for concurrent use.
type S3Store struct {
	client    S3Client
	presigner S3Presigner
	bucket    string
	opTimeout time.Duration
}

// S3Option configures S3Store construction.
type S3Option func(*S3Store)

// WithS3Client sets a pre-configured client, bypassing AWS config loading.
// Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(s *S3Store) { s.client = client }
}

// WithS3Presigner sets a custom presigner.
func WithS3Presigner(p S3Presigner) S3Option {
	return func(s *S3Store) { s.presigner = p }
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	store := &S3Store{
		bucket:    cfg.Bucket,
		opTimeout: cfg.OpTimeout,
	}
	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		awsOptions := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretKey, "",
				)),
			)
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
		store.client = client
		if store.presigner == nil {
			store.presigner = s3.NewPresignClient(client)
		}
	}

	return store, nil
}

// classifyError converts S3 errors into package sentinels so the orchestrator
// can decide between retry and abort without importing the AWS SDK.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrCanceled, operation)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, operation)
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, operation)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied":
			return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrObjectNotFound, operation)
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "InternalError":
			return fmt.Errorf("%w: %s (code: %s)", ErrUnavailable, operation, apiErr.ErrorCode())
		default:
			return fmt.Errorf("%s failed (code: %s): %w", operation, apiErr.ErrorCode(), err)
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

func (s *S3Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout > 0 {
		return context.WithTimeout(ctx, s.opTimeout)
	}
	return ctx, func() {}
}

func (s *S3Store) Put(ctx context.Context, namespace, path string, data []byte, contentType string) error {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return classifyError(err, "put object")
}

func (s *S3Store) Get(ctx context.Context, namespace, path string) ([]byte, error) {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyError(err, "get object")
	}
	defer func() { _ = out.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) SignedURL(ctx context.Context, namespace, path string, ttl time.Duration) (string, error) {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return "", err
	}
	if s.presigner == nil {
		return "", fmt.Errorf("%w: presigner not configured", ErrInvalidConfig)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classifyError(err, "presign object")
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, namespace, path string) error {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// DeleteObject succeeds for missing keys, so existence is checked first
	// to honor the contract that deleting a missing object is an error.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classifyError(err, "head object")
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return classifyError(err, "delete object")
}

func (s *S3Store) Copy(ctx context.Context, namespace, src, dst string) error {
	srcKey, err := cleanPath(namespace, src)
	if err != nil {
		return err
	}
	dstKey, err := cleanPath(namespace, dst)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + srcKey)),
	})
	return classifyError(err, "copy object")
}

func (s *S3Store) List(ctx context.Context, namespace string, filter ListFilter) ([]Object, error) {
	if namespace == "" {
		return nil, ErrInvalidNamespace
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prefix := namespace + "/" + filter.Prefix
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if filter.Limit > 0 {
		input.MaxKeys = aws.Int32(int32(filter.Limit))
	}

	var out []Object
	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, classifyError(err, "list objects")
		}

		for _, obj := range page.Contents {
			entry := Object{
				Path: (*obj.Key)[len(namespace)+1:],
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				entry.ModifiedAt = *obj.LastModified
			}
			out = append(out, entry)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	return out, nil
}
