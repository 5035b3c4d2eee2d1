package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stillmotion/internal/core/domain"
	"stillmotion/internal/core/ports"
)

const (
	progressStarting    = "Starting..."
	progressDownloading = "Downloading video..."
	progressDone        = "Done"

	videoFilename = "video.mp4"
)

// Settings is the runtime configuration read at the start of every job.
type Settings struct {
	Generation domain.GenerationConfig
	APIKey     string // explicit override of the ambient key
	Delegated  *domain.DelegatedConfig
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Settings    Settings
	Env         EnvLookup
	Thumbnailer ports.Thumbnailer
	Logger      *zerolog.Logger

	// AutoStart starts a background pass on every Enqueue.
	AutoStart bool

	// BaseContext is the parent of background passes.
	BaseContext context.Context
}

// Processor runs pending jobs one at a time in enqueue order.
type Processor struct {
	store      ports.JobStore
	driver     *Driver
	downloader ports.Downloader
	storage    ports.Storage
	thumbs     ports.Thumbnailer
	env        EnvLookup
	logger     zerolog.Logger
	autoStart  bool
	baseCtx    context.Context

	settingsMu sync.RWMutex
	settings   Settings

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcessor wires the queue processor.
func NewProcessor(store ports.JobStore, driver *Driver, downloader ports.Downloader, storage ports.Storage, opts ProcessorOptions) *Processor {
	p := &Processor{
		store:      store,
		driver:     driver,
		downloader: downloader,
		storage:    storage,
		thumbs:     opts.Thumbnailer,
		env:        opts.Env,
		logger:     zerolog.Nop(),
		autoStart:  opts.AutoStart,
		baseCtx:    opts.BaseContext,
		settings:   opts.Settings.clone(),
	}
	if opts.Logger != nil {
		p.logger = *opts.Logger
	}
	if p.env == nil {
		p.env = OSEnv
	}
	if p.baseCtx == nil {
		p.baseCtx = context.Background()
	}
	return p
}

// Settings returns a copy of the current settings.
func (p *Processor) Settings() Settings {
	p.settingsMu.RLock()
	defer p.settingsMu.RUnlock()
	return p.settings.clone()
}

// UpdateSettings replaces the settings. Jobs already running keep the values
// they started with.
func (p *Processor) UpdateSettings(s Settings) error {
	return p.ModifySettings(func(cur *Settings) { *cur = s.clone() })
}

// ModifySettings applies fn to a copy of the settings and stores the result
// if it is valid. The lock is held throughout, so concurrent partial updates
// do not overwrite each other.
func (p *Processor) ModifySettings(fn func(*Settings)) error {
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()

	next := p.settings.clone()
	fn(&next)
	if err := next.Generation.Validate(); err != nil {
		return err
	}
	p.settings = next
	return nil
}

func (s Settings) clone() Settings {
	out := s
	if s.Delegated != nil {
		d := *s.Delegated
		out.Delegated = &d
	}
	return out
}

// Enqueue adds a pending job for img. The thumbnail is best effort.
func (p *Processor) Enqueue(ctx context.Context, img domain.SourceImage) (domain.Job, error) {
	if len(img.Data) == 0 {
		return domain.Job{}, fmt.Errorf("image %q is empty", img.Name)
	}

	job := domain.Job{
		ID:     uuid.New().String(),
		Image:  img,
		Status: domain.StatusPending,
	}
	if p.thumbs != nil {
		thumb, err := p.thumbs.Thumbnail(ctx, img)
		if err != nil {
			p.logger.Warn().Err(err).Str("image", img.Name).Msg("processor: thumbnail failed")
		} else {
			job.Thumbnail = thumb
		}
	}

	if err := p.store.Add(job); err != nil {
		return domain.Job{}, err
	}
	p.logger.Info().Str("job_id", job.ID).Str("image", img.Name).Msg("processor: job enqueued")

	if p.autoStart {
		p.Kick()
	}
	return p.store.Get(job.ID)
}

// Jobs returns every job in enqueue order.
func (p *Processor) Jobs() []domain.Job {
	return p.store.List()
}

// Remove deletes a job that is not in flight.
func (p *Processor) Remove(id string) error {
	return p.store.Remove(id)
}

// Clear removes every job that is not in flight.
func (p *Processor) Clear() int {
	return p.store.Clear()
}

// Active reports whether a pass is running.
func (p *Processor) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Kick starts a background pass unless one is already active.
func (p *Processor) Kick() bool {
	ctx, ok := p.beginPass(p.baseCtx)
	if !ok {
		return false
	}
	go func() {
		p.runPass(ctx)
		p.endPass()
		if p.hasPending() && p.baseCtx.Err() == nil {
			p.Kick()
		}
	}()
	return true
}

// RunPending processes pending jobs in the calling goroutine until none are
// left. Cancelling ctx behaves like Cancel.
func (p *Processor) RunPending(ctx context.Context) error {
	for {
		passCtx, ok := p.beginPass(ctx)
		if !ok {
			if err := p.Wait(ctx); err != nil {
				return err
			}
			continue
		}
		p.runPass(passCtx)
		p.endPass()

		if ctx.Err() != nil || !p.hasPending() {
			return nil
		}
	}
}

// Wait blocks until the active pass, if any, has finished.
func (p *Processor) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the active pass. It reports whether there was one.
func (p *Processor) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return false
	}
	p.cancel()
	return true
}

func (p *Processor) beginPass(parent context.Context) (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	p.active = true
	p.cancel = cancel
	p.done = make(chan struct{})
	return ctx, true
}

func (p *Processor) endPass() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
	p.active = false
	p.cancel = nil
	close(p.done)
	p.done = nil
}

func (p *Processor) hasPending() bool {
	_, ok := p.nextPending()
	return ok
}

func (p *Processor) nextPending() (domain.Job, bool) {
	for _, job := range p.store.List() {
		if job.Status == domain.StatusPending {
			return job, true
		}
	}
	return domain.Job{}, false
}

func (p *Processor) runPass(ctx context.Context) {
	start := time.Now()
	var completed, failed int
	defer func() {
		p.logger.Info().
			Int("completed", completed).
			Int("failed", failed).
			Dur("elapsed", time.Since(start)).
			Msg("processor: pass finished")
	}()

	for {
		if ctx.Err() != nil {
			p.stopRemaining()
			return
		}
		job, ok := p.nextPending()
		if !ok {
			return
		}

		err := p.processJob(ctx, job)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil:
			failed++
			p.finish(job.ID, domain.MessageCancelled)
			p.stopRemaining()
			return
		default:
			failed++
			p.finish(job.ID, err.Error())
		}
	}
}

func (p *Processor) processJob(ctx context.Context, job domain.Job) error {
	log := p.logger.With().Str("job_id", job.ID).Logger()
	ctx = log.WithContext(ctx)

	if _, err := p.store.Update(job.ID, func(j *domain.Job) {
		j.Status = domain.StatusProcessing
		j.Progress = progressStarting
		j.Error = ""
	}); err != nil {
		return err
	}
	log.Info().Str("image", job.Image.Name).Msg("processor: job started")

	settings := p.Settings()
	cred, err := ResolveCredential(settings.APIKey, settings.Delegated, p.env)
	if err != nil {
		return err
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	if err := p.storage.InitJob(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to init job: %w", err)
	}
	p.saveInput(ctx, job, settings.Generation)

	op, locator, err := p.driver.RunOperation(ctx, job.Image, settings.Generation, cred, p.progressFor(job.ID))
	if op != nil {
		p.saveOperation(ctx, job.ID, op)
	}
	if err != nil {
		return err
	}

	p.setProgress(job.ID, progressDownloading)
	body, err := p.downloader.Download(ctx, locator, cred)
	if err != nil {
		return err
	}
	defer body.Close()

	location, size, err := p.storage.SaveVideo(ctx, job.ID, body, videoFilename)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(ctxErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
	}

	if _, err := p.store.Update(job.ID, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.Progress = progressDone
		j.Result = &domain.VideoAsset{
			Locator:     locator,
			Location:    location,
			ContentType: "video/mp4",
			Size:        size,
		}
	}); err != nil {
		return err
	}
	log.Info().Str("location", location).Int64("size", size).Msg("processor: job completed")
	return nil
}

// progressFor forwards driver updates while the job is processing.
func (p *Processor) progressFor(id string) ProgressFunc {
	return func(msg string) { p.setProgress(id, msg) }
}

func (p *Processor) setProgress(id, msg string) {
	_, _ = p.store.Update(id, func(j *domain.Job) {
		if j.Status == domain.StatusProcessing {
			j.Progress = msg
		}
	})
}

func (p *Processor) finish(id, message string) {
	_, err := p.store.Update(id, func(j *domain.Job) {
		j.Status = domain.StatusFailed
		j.Progress = ""
		j.Error = message
	})
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", id).Msg("processor: failed to record failure")
		return
	}
	p.logger.Warn().Str("job_id", id).Str("error", message).Msg("processor: job failed")
}

// stopRemaining fails every job still pending after a cancel request.
func (p *Processor) stopRemaining() {
	for _, job := range p.store.List() {
		if job.Status != domain.StatusPending {
			continue
		}
		p.finish(job.ID, domain.MessageStoppedByUser)
	}
}

type jobInput struct {
	JobID     string                  `json:"job_id"`
	Image     domain.SourceImage      `json:"image"`
	Size      int                     `json:"size"`
	Config    domain.GenerationConfig `json:"config"`
	Prompt    string                  `json:"final_prompt"`
	CreatedAt time.Time               `json:"created_at"`
}

func (p *Processor) saveInput(ctx context.Context, job domain.Job, cfg domain.GenerationConfig) {
	data, _ := json.MarshalIndent(jobInput{
		JobID:     job.ID,
		Image:     job.Image,
		Size:      len(job.Image.Data),
		Config:    cfg,
		Prompt:    cfg.FinalPrompt(),
		CreatedAt: job.CreatedAt,
	}, "", "  ")
	if err := p.storage.SaveInput(ctx, job.ID, data); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("processor: failed to save input")
	}
}

func (p *Processor) saveOperation(ctx context.Context, id string, op *domain.Operation) {
	data, _ := json.MarshalIndent(op, "", "  ")
	// recorded even when the pass was cancelled
	if err := p.storage.SaveOperation(context.WithoutCancel(ctx), id, data); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("processor: failed to save operation")
	}
}
