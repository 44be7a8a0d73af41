// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/logging"
)

// s3API is the subset of the S3 client used by the backend.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores archives as objects in an S3-compatible bucket.
type S3 struct {
	name    string
	bucket  string
	prefix  string
	client  s3API
	breaker *breaker
}

// NewS3 builds a client for cfg. Static credentials from the backend
// configuration are used; the SDK's own retries are disabled.
func NewS3(ctx context.Context, name string, cfg *config.S3Backend) (*S3, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: s3 backend %q has no settings", ErrUnsupportedBackend, name)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for %s: %w", name, err)
	}

	endpoint := endpointURL(cfg)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		o.RetryMaxAttempts = 1
	})

	logging.Debug().Str("backend", name).Str("bucket", cfg.Bucket).Str("endpoint", endpoint).
		Bool("path_style", cfg.ForcePathStyle).Msg("S3 backend configured")

	return newS3WithClient(name, cfg.Bucket, cfg.Prefix, client, DefaultBreakerSettings()), nil
}

func newS3WithClient(name, bucket, prefix string, client s3API, settings BreakerSettings) *S3 {
	return &S3{
		name:    name,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		client:  client,
		breaker: newBreaker("s3:"+name, settings),
	}
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(cfg *config.S3Backend) string {
	if cfg.Endpoint == "" || strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.SSLEnabled {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

// Name returns the backend name.
func (s *S3) Name() string { return s.name }

// Kind returns config.BackendS3.
func (s *S3) Kind() config.BackendType { return config.BackendS3 }

// Bucket returns the bucket name.
func (s *S3) Bucket() string { return s.bucket }

// Key returns "{prefix}/{name}", or name when no prefix is configured.
func (s *S3) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// List pages through the bucket under the key prefix and returns matching
// archives. Objects in nested "directories" are ignored.
func (s *S3) List(ctx context.Context, prefix string) ([]Archive, error) {
	keyPrefix := s.Key("")
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix + prefix),
	})

	archives := []Archive{}
	for paginator.HasMorePages() {
		page, err := execute(s.breaker, func() (*s3.ListObjectsV2Output, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, &IOError{Op: "list", Backend: s.name, Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, keyPrefix)
			if strings.Contains(name, "/") || !MatchesArchive(name, prefix) {
				continue
			}
			archives = append(archives, Archive{
				Name:      name,
				Key:       key,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	SortNewestFirst(archives)
	return archives, nil
}

// Write uploads r as a single PutObject. Seekable readers are signed with a
// payload hash; other readers are sent unsigned.
func (s *S3) Write(ctx context.Context, name string, r io.Reader, size int64, progress ProgressFunc) (Archive, error) {
	key := s.Key(name)
	if size < 0 {
		return Archive{}, &IOError{Op: "write", Backend: s.name, Key: key,
			Err: errors.New("object size must be known before upload")}
	}

	var optFns []func(*s3.Options)
	var body io.Reader
	if rs, ok := r.(io.ReadSeeker); ok {
		body = &progressReadSeeker{rs: rs, total: size, report: progress}
	} else {
		body = &progressReader{r: r, total: size, report: progress}
		optFns = append(optFns, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	}

	_, err := execute(s.breaker, func() (*s3.PutObjectOutput, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          body,
			ContentLength: aws.Int64(size),
			ContentType:   aws.String(contentType(name)),
		}, optFns...)
	})
	if err != nil {
		return Archive{}, &IOError{Op: "write", Backend: s.name, Key: key, Err: &UploadError{
			Backend: s.name,
			Key:     key,
			Code:    errorCode(err),
			Err:     err,
		}}
	}

	return Archive{Name: name, Key: key, Size: size, CreatedAt: archiveTime(name)}, nil
}

// Delete removes the object with the given key.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := execute(s.breaker, func() (*s3.DeleteObjectOutput, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return &IOError{Op: "delete", Backend: s.name, Key: key, Err: err}
	}
	return nil
}

// errorCode returns the service error code carried by err, if any.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func contentType(name string) string {
	if strings.HasSuffix(name, CryptExtension) {
		return "application/octet-stream"
	}
	return "application/zip"
}

// progressReader counts bytes read from r.
type progressReader struct {
	r      io.Reader
	read   int64
	total  int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && n > 0 {
		p.report(p.read, p.total)
	}
	return n, err
}

// progressReadSeeker counts bytes read from rs. The count follows the read
// offset, so a rewind after payload hashing restarts it.
type progressReadSeeker struct {
	rs     io.ReadSeeker
	read   int64
	total  int64
	report ProgressFunc
}

func (p *progressReadSeeker) Read(b []byte) (int, error) {
	n, err := p.rs.Read(b)
	p.read += int64(n)
	if p.report != nil && n > 0 {
		p.report(p.read, p.total)
	}
	return n, err
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.rs.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}
