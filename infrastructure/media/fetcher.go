// Package media resolves creator media URLs into bytes for the platform clients.
// http(s) URLs are downloaded directly; s3://bucket/key URLs are read from
// S3-compatible object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/configuration"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// ErrNoObjectStorage is returned for s3:// URLs when no S3 client is configured.
var ErrNoObjectStorage = errors.New("object storage is not configured")

// ObjectAPI is the subset of the S3 client the fetcher uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Fetcher implements platform.MediaFetcher over HTTP and S3.
type Fetcher struct {
	http     *platform.HTTPFetcher
	objects  ObjectAPI
	maxBytes int64
}

func NewFetcher(hc *http.Client, objects ObjectAPI) platform.MediaFetcher {
	return newFetcher(hc, objects)
}

func newFetcher(hc *http.Client, objects ObjectAPI) *Fetcher {
	h := platform.NewHTTPFetcher(hc)
	return &Fetcher{http: h, objects: objects, maxBytes: h.MaxBytes}
}

// NewS3Client builds an S3 client from the media configuration. Static keys are
// used when present, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg configuration.Media) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.S3Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.S3Endpoint))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: cfg.AccessKeyID, SecretAccessKey: cfg.SecretAccessKey}, nil
			})))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle || cfg.S3Endpoint != ""
	}), nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*platform.Media, error) {
	bucket, key, ok := parseS3URL(rawURL)
	if !ok {
		return f.http.Fetch(ctx, rawURL)
	}
	if f.objects == nil {
		return nil, ErrNoObjectStorage
	}
	out, err := f.objects.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer out.Body.Close()
	if f.maxBytes > 0 && aws.ToInt64(out.ContentLength) > f.maxBytes {
		return nil, fmt.Errorf("fetch media: %w of %d bytes", platform.ErrMediaTooLarge, f.maxBytes)
	}
	data, err := platform.ReadLimited(out.Body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	logger.GetLogger().WithField("bucket", bucket).WithField("key", key).WithField("bytes", len(data)).Debug("media fetched from object storage")
	return &platform.Media{Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

func (f *Fetcher) Probe(ctx context.Context, rawURL string) (*platform.MediaInfo, error) {
	bucket, key, ok := parseS3URL(rawURL)
	if !ok {
		return f.http.Probe(ctx, rawURL)
	}
	if f.objects == nil {
		return nil, ErrNoObjectStorage
	}
	out, err := f.objects.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("probe media: %w", err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &platform.MediaInfo{Size: size, ContentType: aws.ToString(out.ContentType)}, nil
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(rawURL string) (bucket, key string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}
