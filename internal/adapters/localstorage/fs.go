package localstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	inputFile     = "input.json"
	operationFile = "operation.json"
	defaultVideo  = "video.mp4"
)

// LocalStorage implements ports.Storage for the local filesystem.
// Layout: <BaseDir>/jobs/<job id>/{input.json,operation.json,video.mp4}.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

// InitJob creates the job directory.
func (s *LocalStorage) InitJob(ctx context.Context, jobID string) error {
	path := s.GetJobPath(jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory %s: %w", path, err)
	}
	return nil
}

// SaveInput saves the job input (image name and generation settings).
func (s *LocalStorage) SaveInput(ctx context.Context, jobID string, data []byte) error {
	return s.writeFile(jobID, inputFile, data)
}

// SaveOperation saves the final operation snapshot.
func (s *LocalStorage) SaveOperation(ctx context.Context, jobID string, data []byte) error {
	return s.writeFile(jobID, operationFile, data)
}

// SaveVideo streams the video to disk. A partial file is removed on error.
func (s *LocalStorage) SaveVideo(ctx context.Context, jobID string, reader io.Reader, filename string) (string, int64, error) {
	if filename == "" {
		filename = defaultVideo
	}
	path := filepath.Join(s.GetJobPath(jobID), filepath.Base(filename))

	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create video file %s: %w", path, err)
	}

	n, err := io.Copy(file, &ctxReader{ctx: ctx, r: reader})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to write video file: %w", err)
	}
	return path, n, nil
}

// GetJobPath returns the path for a job directory.
func (s *LocalStorage) GetJobPath(jobID string) string {
	return filepath.Join(s.BaseDir, "jobs", jobID)
}

func (s *LocalStorage) writeFile(jobID, name string, data []byte) error {
	path := filepath.Join(s.GetJobPath(jobID), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
