package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket. Endpoint, AccessKey and SecretKey are only
// needed for S3-compatible services such as MinIO; when they are empty the
// SDK's default credential chain and endpoint resolution apply.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string // base URL clients fetch images from
}

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps images as objects under uploads/images/ in one bucket.
// The stored path is the public URL of the object.
type S3Store struct {
	client    s3API
	bucket    string
	publicURL string
}

// NewS3Store builds an S3 client from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	public := cfg.PublicURL
	if public == "" {
		public = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(public, "/"),
	}
}

func (s *S3Store) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	key, err := newKey(ext)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(AllowedExtensions[strings.ToLower(ext)]),
	})
	if err != nil {
		return "", fmt.Errorf("storage: uploading %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}

// Delete accepts a URL produced by Save. S3 reports success for a key that
// does not exist.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	key, ok := strings.CutPrefix(path, s.publicURL+"/")
	if !ok || !strings.HasPrefix(key, keyPrefix) {
		return fmt.Errorf("storage: %q is not an object of bucket %s", path, s.bucket)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}
