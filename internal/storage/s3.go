package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/queue"
)

// presignExpiry is the longest lifetime SigV4 allows.
const presignExpiry = 7 * 24 * time.Hour

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

// objectPutter is the part of *s3.Client the transport writes through.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config describes the bucket and how to reach it.
type S3Config struct {
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	BaseEndpoint  string
	PublicBaseURL string
}

// S3Transport writes objects with PutObject and never overwrites an
// existing key.
type S3Transport struct {
	cfg       S3Config
	client    objectPutter
	presigner *s3.PresignClient
	logger    logging.Logger
}

// NewS3Transport builds an S3 client against cfg.BaseEndpoint using static
// credentials (MinIO in development).
func NewS3Transport(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Transport, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
		// Checksums would make the SDK read the body before sending it,
		// which runs the progress counter to 100% too early.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Transport{
		cfg:       cfg,
		client:    client,
		presigner: newS3PresignClient(client),
		logger:    logger.With("module", "s3_transport"),
	}, nil
}

// Upload stores f under ownerID and returns its key and URL.
func (t *S3Transport) Upload(ctx context.Context, f queue.File, ownerID string, onProgress ProgressFunc) (UploadResult, error) {
	key, err := ObjectKey(ownerID, f.Name, f.MediaType, now())
	if err != nil {
		return UploadResult{}, err
	}

	body := newProgressReader(f.Content, onProgress)
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(f.Size()),
		ContentType:   aws.String(f.MediaType),
		IfNoneMatch:   aws.String("*"),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return UploadResult{}, fmt.Errorf("%w: storage rejected %s: %s", common.ErrTransport, key, apiErr.ErrorCode())
		}
		return UploadResult{}, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}

	u, err := t.ObjectURL(ctx, key)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: url for %s: %w", common.ErrTransport, key, err)
	}

	t.logger.Debug(ctx, "object stored", "key", key, "size", f.Size())
	return UploadResult{Key: key, URL: u, Size: f.Size()}, nil
}

// Ping checks that the bucket exists and is reachable.
func (t *S3Transport) Ping(ctx context.Context) error {
	if _, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(t.cfg.Bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", t.cfg.Bucket, err)
	}
	return nil
}

// ObjectURL returns a URL a browser can fetch key from: a plain URL under
// PublicBaseURL when configured, otherwise a presigned GET.
func (t *S3Transport) ObjectURL(ctx context.Context, key string) (string, error) {
	if t.cfg.PublicBaseURL != "" {
		return url.JoinPath(t.cfg.PublicBaseURL, t.cfg.Bucket, key)
	}

	req, err := presignGetObject(t.presigner, ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
