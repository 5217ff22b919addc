package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore persists uploaded media and returns a retrievable URL
type ObjectStore interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// UploadInput describes a single object upload
type UploadInput struct {
	Key         string
	ContentType string
	Body        io.Reader
	Metadata    map[string]string
}

// UploadResult is the stored location of an object
type UploadResult struct {
	URL string
	Key string
}

// S3Options configures the S3 client
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client from the default AWS credential chain,
// overridden by static keys and a custom endpoint when provided.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// S3Store uploads objects to a single bucket
type S3Store struct {
	uploader      *manager.Uploader
	bucket        string
	publicBaseURL string
}

// NewS3Store creates an S3-backed object store. When publicBaseURL is set
// (a CDN in front of the bucket) returned URLs are built from it.
func NewS3Store(client *s3.Client, bucket, publicBaseURL string) *S3Store {
	return &S3Store{
		uploader:      manager.NewUploader(client),
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload stores the object and returns its URL
func (s *S3Store) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	put := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(input.Key),
		Body:     input.Body,
		Metadata: input.Metadata,
	}
	if input.ContentType != "" {
		put.ContentType = aws.String(input.ContentType)
	}

	out, err := s.uploader.Upload(ctx, put)
	if err != nil {
		return nil, fmt.Errorf("s3 upload %s: %w", input.Key, err)
	}

	url := out.Location
	if s.publicBaseURL != "" {
		url = s.publicBaseURL + "/" + input.Key
	}
	return &UploadResult{URL: url, Key: input.Key}, nil
}
