// Package s3store is an S3-compatible FileStore.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"autohaus.io/cms/internal/filestore"
)

// Options configures the S3 client.
type Options struct {
	Bucket string
	Region string
	// Endpoint points at a non-AWS S3 implementation (MinIO, LocalStack).
	Endpoint  string
	AccessKey string
	SecretKey string
	// PresignTTL > 0 makes URL return presigned GET links. Otherwise URLs
	// are plain path-style object URLs.
	PresignTTL time.Duration
}

// API is the subset of the S3 client used by the store.
type API interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Presigner is the subset of the presign client used by the store.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store keeps files in one bucket.
type Store struct {
	api     API
	presign Presigner
	bucket  string
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

var _ filestore.FileStore = (*Store)(nil)

// New builds a Store from the default AWS credential chain, overridden by
// static keys when both are set.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.UsePathStyle = true
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	base := opts.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	return NewWithClient(client, awss3.NewPresignClient(client), opts.Bucket, base, opts.PresignTTL), nil
}

// NewWithClient wires a Store around existing clients.
func NewWithClient(api API, presign Presigner, bucket, endpoint string, ttl time.Duration) *Store {
	return &Store{
		api:     api,
		presign: presign,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(endpoint, "/") + "/" + bucket + "/",
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put uploads r under a new key.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	key := filestore.NewKey(name, s.now().UTC())
	in := &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("error storing s3 object to %s:%s: %w", s.bucket, key, err)
	}
	return key, nil
}

// Delete removes key from the bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("error deleting s3 object %s:%s: %w", s.bucket, key, err)
	}
	return nil
}

// URL returns a presigned or plain object URL.
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	if s.ttl <= 0 || s.presign == nil {
		return s.baseURL + key, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s:%s: %w", s.bucket, key, err)
	}
	return req.URL, nil
}

// KeyFromURL accepts path-style object URLs, presigned or not.
func (s *Store) KeyFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	key, ok := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), s.bucket+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
