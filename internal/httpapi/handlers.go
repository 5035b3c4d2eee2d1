package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stillmotion/internal/core/domain"
)

const uploadField = "images"

// Health reports liveness and whether a batch is running.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "batch_active": a.queue.Active()})
}

// ListJobs returns the queue in enqueue order.
func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": a.queue.Jobs(), "batch_active": a.queue.Active()})
}

// CreateJobs enqueues one job per uploaded image.
func (a *API) CreateJobs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart form with images")
		return
	}
	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("no files in field %q", uploadField))
		return
	}

	images := make([]domain.SourceImage, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, img)
	}

	jobs := make([]domain.Job, 0, len(images))
	for _, img := range images {
		job, err := a.queue.Enqueue(r.Context(), img)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("image", img.Name).Msg("http: enqueue failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		jobs = append(jobs, job)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"jobs": jobs})
}

func readImage(fh *multipart.FileHeader) (domain.SourceImage, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return domain.SourceImage{}, fmt.Errorf("%s is empty", fh.Filename)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.SourceImage{}, fmt.Errorf("%s is not an image (%s)", fh.Filename, mimeType)
	}
	return domain.SourceImage{Data: data, MIMEType: mimeType, Name: fh.Filename}, nil
}

// DeleteJob removes a job unless it is processing.
func (a *API) DeleteJob(w http.ResponseWriter, r *http.Request) {
	err := a.queue.Remove(chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrJobInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ClearJobs removes every job that is not processing.
func (a *API) ClearJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": a.queue.Clear()})
}

// JobVideo serves the stored clip of a completed job kept on local disk.
func (a *API) JobVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var job *domain.Job
	for _, j := range a.queue.Jobs() {
		if j.ID == id {
			job = &j
			break
		}
	}
	if job == nil {
		writeError(w, http.StatusNotFound, domain.ErrJobNotFound.Error())
		return
	}
	if job.Status != domain.StatusCompleted || job.Result == nil {
		writeError(w, http.StatusConflict, "job has no video yet")
		return
	}
	if _, err := os.Stat(job.Result.Location); err != nil {
		writeError(w, http.StatusNotFound, "video is not stored locally")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, job.Result.Location)
}

// StartBatch starts processing pending jobs.
func (a *API) StartBatch(w http.ResponseWriter, r *http.Request) {
	started := a.queue.Kick()
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": started, "batch_active": a.queue.Active()})
}

// CancelBatch stops the active batch.
func (a *API) CancelBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": a.queue.Cancel()})
}
