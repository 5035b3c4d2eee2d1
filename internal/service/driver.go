package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stillmotion/internal/core/domain"
	"stillmotion/internal/core/ports"
)

const (
	maxSubmitAttempts = 50
	initialBackoff    = 20 * time.Second
	maxBackoff        = 120 * time.Second
	backoffFactor     = 1.5

	propagationDelay  = 10 * time.Second
	pollInterval      = 10 * time.Second
	pollRateLimitWait = 20 * time.Second
	maxNotFoundPolls  = 120
)

// ProgressFunc receives human readable sub-step updates.
type ProgressFunc func(msg string)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DriverOptions configures a Driver.
type DriverOptions struct {
	Model  string
	Logger *zerolog.Logger

	// Sleep replaces the real timer, mostly for tests.
	Sleep SleepFunc
}

// Driver submits a generation, polls it to completion and extracts the
// result locator.
type Driver struct {
	api    ports.VideoAPI
	model  string
	logger zerolog.Logger
	sleep  SleepFunc
}

// NewDriver creates a Driver on top of the remote API.
func NewDriver(api ports.VideoAPI, opts DriverOptions) *Driver {
	d := &Driver{
		api:    api,
		model:  opts.Model,
		logger: zerolog.Nop(),
		sleep:  opts.Sleep,
	}
	if opts.Logger != nil {
		d.logger = *opts.Logger
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	return d
}

// Run drives one image through submission, polling and result extraction.
// Cancelling ctx interrupts any wait or request and yields ErrCancelled.
func (d *Driver) Run(ctx context.Context, img domain.SourceImage, cfg domain.GenerationConfig, cred domain.Credential, onProgress ProgressFunc) (string, error) {
	_, locator, err := d.RunOperation(ctx, img, cfg, cred, onProgress)
	return locator, err
}

// RunOperation is Run that also returns the last operation snapshot seen,
// which may be non-nil even when err is not.
func (d *Driver) RunOperation(ctx context.Context, img domain.SourceImage, cfg domain.GenerationConfig, cred domain.Credential, onProgress ProgressFunc) (*domain.Operation, string, error) {
	if onProgress == nil {
		onProgress = func(string) {}
	}
	if err := cred.Validate(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	model := cfg.Model
	if model == "" {
		model = d.model
	}
	req := domain.GenerateRequest{
		Model:           model,
		Prompt:          cfg.FinalPrompt(),
		ImageBase64:     base64.StdEncoding.EncodeToString(img.Data),
		ImageMIMEType:   img.MIMEType,
		Resolution:      cfg.Resolution,
		AspectRatio:     cfg.AspectRatio,
		DurationSeconds: domain.ClipDurationSeconds,
		SampleCount:     1,
	}

	op, err := d.submit(ctx, cred, req, onProgress)
	if err != nil {
		return nil, "", err
	}
	done, err := d.poll(ctx, cred, op, onProgress)
	if err != nil {
		return op, "", err
	}
	locator, err := extractLocator(done)
	return done, locator, err
}

// retryState carries the submission loop between attempts.
type retryState struct {
	attempt int
	backoff time.Duration
}

func newRetryState() retryState {
	return retryState{backoff: initialBackoff}
}

// fail records a retryable failure and returns the wait before the next
// attempt, or false once the attempt cap is exceeded.
func (s *retryState) fail() (time.Duration, bool) {
	s.attempt++
	if s.attempt > maxSubmitAttempts {
		return 0, false
	}
	wait := s.backoff
	s.backoff = min(time.Duration(float64(s.backoff)*backoffFactor), maxBackoff)
	return wait, true
}

func (d *Driver) submit(ctx context.Context, cred domain.Credential, req domain.GenerateRequest, onProgress ProgressFunc) (*domain.Operation, error) {
	log := d.loggerFor(ctx)
	state := newRetryState()
	for {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		op, err := d.api.Submit(ctx, cred, req)
		if err == nil {
			if op == nil || op.Name == "" {
				return nil, domain.ErrNoOperationHandle
			}
			log.Debug().Str("operation", op.Name).Int("retries", state.attempt).Msg("driver: submitted")
			return op, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}

		class := classify(err)
		if class != failureRateLimited && class != failureServer {
			return nil, err
		}
		wait, ok := state.fail()
		if !ok {
			return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, maxSubmitAttempts, err)
		}

		log.Warn().
			Err(err).
			Str("class", class.String()).
			Int("attempt", state.attempt).
			Dur("wait", wait).
			Msg("driver: submission failed, backing off")

		reason := "Rate limited"
		if class == failureServer {
			reason = "Server busy"
		}
		onProgress(fmt.Sprintf("%s. Retrying in %ds (attempt %d/%d)...", reason, int(wait/time.Second), state.attempt, maxSubmitAttempts))

		if err := d.sleep(ctx, wait); err != nil {
			return nil, cancelled(err)
		}
	}
}

// pollState carries the polling loop between status checks.
type pollState struct {
	checks   int
	notFound int
}

func (d *Driver) poll(ctx context.Context, cred domain.Credential, op *domain.Operation, onProgress ProgressFunc) (*domain.Operation, error) {
	log := d.loggerFor(ctx)
	onProgress("Generating video...")
	if err := d.sleep(ctx, propagationDelay); err != nil {
		return nil, cancelled(err)
	}

	var state pollState
	for !op.Done {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		if err := d.sleep(ctx, pollInterval); err != nil {
			return nil, cancelled(err)
		}

		state.checks++
		next, err := d.api.Status(ctx, cred, op)
		if err == nil {
			if next != nil {
				if next.Name == "" {
					next.Name = op.Name
				}
				op = next
			}
			state.notFound = 0
			elapsed := propagationDelay + time.Duration(state.checks)*pollInterval
			onProgress(fmt.Sprintf("Generating video... (%ds)", int(elapsed/time.Second)))
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}

		switch classify(err) {
		case failureNotFound:
			state.notFound++
			if state.notFound >= maxNotFoundPolls {
				return nil, fmt.Errorf("%w: operation %s not visible after %d checks", domain.ErrPollingTimeout, op.Name, state.notFound)
			}
			log.Debug().Str("operation", op.Name).Int("not_found", state.notFound).Msg("driver: operation not visible yet")
			onProgress("Waiting for the operation to become visible...")
		case failureRateLimited:
			log.Warn().Err(err).Str("operation", op.Name).Msg("driver: status check rate limited")
			onProgress(fmt.Sprintf("Rate limited while checking status. Waiting %ds...", int(pollRateLimitWait/time.Second)))
			if err := d.sleep(ctx, pollRateLimitWait); err != nil {
				return nil, cancelled(err)
			}
		default:
			return nil, err
		}
	}

	log.Debug().Str("operation", op.Name).Int("checks", state.checks).Msg("driver: operation done")
	return op, nil
}

func extractLocator(op *domain.Operation) (string, error) {
	if op.Error != nil {
		msg := op.Error.Message
		if msg == "" {
			msg = "the operation finished with an error"
		}
		return "", fmt.Errorf("%w: %s", domain.ErrGenerationFailed, msg)
	}
	resp := op.Response
	if resp == nil {
		return "", domain.ErrNoResultLocator
	}
	if len(resp.RAIMediaFilteredReasons) > 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrContentFiltered, resp.RAIMediaFilteredReasons[0])
	}
	if len(resp.GeneratedVideos) == 0 || resp.GeneratedVideos[0].Video == nil || resp.GeneratedVideos[0].Video.URI == "" {
		return "", domain.ErrNoResultLocator
	}
	return resp.GeneratedVideos[0].Video.URI, nil
}

func (d *Driver) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &d.logger
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
