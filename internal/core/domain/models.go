package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// IsFinal reports whether no further transition is possible.
func (s JobStatus) IsFinal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceImage is the still image a job turns into a clip.
type SourceImage struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Name     string `json:"name"`
}

// VideoAsset describes the produced clip.
type VideoAsset struct {
	Locator     string `json:"locator"`  // URI returned by the remote API
	Location    string `json:"location"` // where the stored copy lives
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Job represents a single image-to-video conversion.
type Job struct {
	ID        string      `json:"job_id"`
	Image     SourceImage `json:"image"`
	Thumbnail string      `json:"thumbnail,omitempty"` // data URL
	Status    JobStatus   `json:"status"`
	Progress  string      `json:"progress,omitempty"`
	Result    *VideoAsset `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CanTransition reports whether a job may move from its current status to next.
// PENDING -> FAILED only happens when a batch is stopped before the job started.
func (j Job) CanTransition(next JobStatus) bool {
	switch j.Status {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Resolution is the output quality tier.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// AspectRatio of the generated clip.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

const (
	// ClipDurationSeconds is fixed for every request.
	ClipDurationSeconds = 4

	// SilenceClause is appended to every prompt.
	SilenceClause = "The video must be completely silent: no audio track, no music, no sound effects, no speech."
)

// GenerationConfig shapes every request in a batch.
type GenerationConfig struct {
	Model       string      `json:"model,omitempty"` // empty means the driver default
	Prompt      string      `json:"prompt"`
	Resolution  Resolution  `json:"resolution"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
}

// DefaultGenerationConfig returns the settings used when nothing is configured.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Resolution:  Resolution720p,
		AspectRatio: AspectLandscape,
	}
}

// FinalPrompt returns the user prompt with the silence clause appended.
func (c GenerationConfig) FinalPrompt() string {
	prompt := strings.TrimSpace(c.Prompt)
	if prompt == "" {
		return SilenceClause
	}
	return prompt + " " + SilenceClause
}

// Validate rejects unknown enum values.
func (c GenerationConfig) Validate() error {
	switch c.Resolution {
	case Resolution720p, Resolution1080p:
	default:
		return fmt.Errorf("%w: resolution %q", ErrInvalidConfig, c.Resolution)
	}
	switch c.AspectRatio {
	case AspectLandscape, AspectPortrait:
	default:
		return fmt.Errorf("%w: aspect ratio %q", ErrInvalidConfig, c.AspectRatio)
	}
	return nil
}

// GenerateRequest is what the remote API receives on submission.
type GenerateRequest struct {
	Model           string
	Prompt          string
	ImageBase64     string
	ImageMIMEType   string
	Resolution      Resolution
	AspectRatio     AspectRatio
	DurationSeconds int
	SampleCount     int
}

// OperationError is the error payload of a finished operation.
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// VideoRef points at one produced video.
type VideoRef struct {
	URI string `json:"uri,omitempty"`
}

// GeneratedVideo wraps a produced video reference.
type GeneratedVideo struct {
	Video *VideoRef `json:"video,omitempty"`
}

// GenerateVideoResponse is the payload of a successful operation.
type GenerateVideoResponse struct {
	RAIMediaFilteredReasons []string         `json:"raiMediaFilteredReasons,omitempty"`
	GeneratedVideos         []GeneratedVideo `json:"generatedVideos,omitempty"`
}

// Operation is a snapshot of a remote long-running generation.
type Operation struct {
	Name     string                 `json:"name"`
	Done     bool                   `json:"done"`
	Error    *OperationError        `json:"error,omitempty"`
	Response *GenerateVideoResponse `json:"response,omitempty"`
}
