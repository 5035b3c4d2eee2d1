package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// Options configures the MinIO storage.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinioStorage implements ports.Storage on an S3 compatible bucket.
// Objects are laid out as jobs/<job id>/{input.json,operation.json,video.mp4}.
type MinioStorage struct {
	client *minio.Client
	bucket string
	region string

	bucketMu    sync.Mutex
	bucketReady bool
}

// NewMinioStorage creates a MinioStorage. The bucket is created lazily on the
// first InitJob.
func NewMinioStorage(opts Options) (*MinioStorage, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("objectstore: MinIO configuration is incomplete")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket cannot be empty")
	}
	if opts.Region == "" {
		opts.Region = defaultRegion
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to initialize MinIO client: %w", err)
	}

	return &MinioStorage{client: client, bucket: opts.Bucket, region: opts.Region}, nil
}

// InitJob makes sure the bucket exists. Job "directories" are implicit.
// Only a successful check is remembered.
func (s *MinioStorage) InitJob(ctx context.Context, jobID string) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	s.bucketReady = true
	return nil
}

// SaveInput uploads input.json.
func (s *MinioStorage) SaveInput(ctx context.Context, jobID string, data []byte) error {
	return s.putJSON(ctx, jobID, "input.json", data)
}

// SaveOperation uploads operation.json.
func (s *MinioStorage) SaveOperation(ctx context.Context, jobID string, data []byte) error {
	return s.putJSON(ctx, jobID, "operation.json", data)
}

// SaveVideo streams the clip to the bucket without knowing its size upfront.
func (s *MinioStorage) SaveVideo(ctx context.Context, jobID string, reader io.Reader, filename string) (string, int64, error) {
	if filename == "" {
		filename = "video.mp4"
	}
	key := s.objectKey(jobID, filename)

	counter := &countingReader{r: reader}
	_, err := s.client.PutObject(ctx, s.bucket, key, counter, -1, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.location(key), counter.n, nil
}

// GetJobPath returns the s3 style prefix for a job.
func (s *MinioStorage) GetJobPath(jobID string) string {
	return s.location(path.Join("jobs", jobID))
}

func (s *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *MinioStorage) putJSON(ctx context.Context, jobID, name string, data []byte) error {
	key := s.objectKey(jobID, name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (s *MinioStorage) objectKey(jobID, name string) string {
	return path.Join("jobs", jobID, path.Base(name))
}

func (s *MinioStorage) location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
