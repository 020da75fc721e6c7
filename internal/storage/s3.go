package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used by S3FS.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3FS implements FileSystem over objects in a single S3 bucket.
// Paths are object keys; every ReadAt becomes one ranged GET.
type S3FS struct {
	client s3API
	bucket string
}

// S3Config holds configuration for S3 access.
type S3Config struct {
	// Region is the AWS region for the S3 bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region: "us-east-1",
	}
}

// NewS3FS creates a new S3 filesystem backend.
func NewS3FS(ctx context.Context, bucket string, cfg S3Config) (*S3FS, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3FS{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: bucket,
	}, nil
}

// NewS3FSWithClient creates a new S3 filesystem with a pre-configured client.
func NewS3FSWithClient(client *s3.Client, bucket string) *S3FS {
	return &S3FS{client: client, bucket: bucket}
}

// ParseS3URI splits "s3://bucket/prefix" into bucket and prefix.
func ParseS3URI(uri string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found || rest == "" {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, prefix, true
}

// Open issues a HEAD request for the object and returns a handle that
// serves ReadAt with ranged GETs.
func (s *S3FS) Open(ctx context.Context, objectPath string, flags OpenFlags) (File, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, objectPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	return &s3File{
		ctx:     ctx,
		fs:      s,
		key:     objectPath,
		size:    aws.ToInt64(resp.ContentLength),
		modTime: aws.ToTime(resp.LastModified),
	}, nil
}

// Glob lists keys under the literal prefix of pattern and filters them with path.Match.
func (s *S3FS) Glob(ctx context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}

	prefix := pattern
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		prefix = pattern[:i]
	}

	keys, err := s.listObjects(ctx, prefix, "")
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, key := range keys {
		if ok, _ := path.Match(pattern, key); ok {
			matches = append(matches, key)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// List returns the objects directly under dir. An empty prefix is
// reported as ErrNotFound, the closest S3 has to a missing directory.
func (s *S3FS) List(ctx context.Context, dir string) ([]string, error) {
	prefix := strings.TrimSuffix(dir, "/")
	if prefix != "" {
		prefix += "/"
	}

	keys, err := s.listObjects(ctx, prefix, "/")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3FS) listObjects(ctx context.Context, prefix, delimiter string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, aws.ToString(obj.Key))
		}
	}
	return objects, nil
}

// s3File is a read-only handle on one object.
type s3File struct {
	ctx     context.Context
	fs      *S3FS
	key     string
	size    int64
	modTime time.Time
}

func (f *s3File) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= f.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if off+want > f.size {
		want = f.size - off
	}

	resp, err := f.fs.client.GetObject(f.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+want-1)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

func (f *s3File) Close() error {
	return nil
}

func (f *s3File) Name() string {
	return f.key
}

func (f *s3File) Size() (int64, error) {
	return f.size, nil
}

func (f *s3File) CanSeek() bool {
	return true
}

func (f *s3File) LastModifiedTime() (time.Time, error) {
	return f.modTime, nil
}

func (f *s3File) OnDiskFile() bool {
	return false
}
