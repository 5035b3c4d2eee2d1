package ports

import (
	"context"
	"io"

	"stillmotion/internal/core/domain"
)

// VideoAPI is the remote asynchronous video generation service.
type VideoAPI interface {
	// Submit starts a generation and returns the long-running operation.
	Submit(ctx context.Context, cred domain.Credential, req domain.GenerateRequest) (*domain.Operation, error)

	// Status refreshes the given operation snapshot.
	Status(ctx context.Context, cred domain.Credential, op *domain.Operation) (*domain.Operation, error)
}

// Downloader defines the contract for fetching the generated video.
type Downloader interface {
	// Download fetches the asset at locator with the credential attached.
	// Returns a ReadCloser that the caller must close.
	Download(ctx context.Context, locator string, cred domain.Credential) (io.ReadCloser, error)
}

// Storage defines the contract for persisting job artifacts.
type Storage interface {
	// InitJob prepares the job location.
	InitJob(ctx context.Context, jobID string) error

	// SaveInput saves the job input (image name, config) as JSON.
	SaveInput(ctx context.Context, jobID string, data []byte) error

	// SaveOperation saves the final operation snapshot as JSON.
	SaveOperation(ctx context.Context, jobID string, data []byte) error

	// SaveVideo streams the video from reader and returns where it was stored
	// plus the number of bytes written.
	SaveVideo(ctx context.Context, jobID string, reader io.Reader, filename string) (string, int64, error)

	// GetJobPath returns the location for a given job ID.
	GetJobPath(jobID string) string
}

// Thumbnailer renders a small displayable preview of a source image.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, img domain.SourceImage) (string, error)
}

// JobStore holds the queue as seen by the UI.
type JobStore interface {
	Add(job domain.Job) error
	Get(id string) (domain.Job, error)
	List() []domain.Job

	// Update applies fn to a copy of the job and stores the result atomically.
	Update(id string, fn func(*domain.Job)) (domain.Job, error)

	// Remove deletes a job unless it is processing.
	Remove(id string) error

	// Clear removes every job that is not processing and returns how many were removed.
	Clear() int
}
