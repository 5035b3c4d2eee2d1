package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"stillmotion/internal/core/domain"
	"stillmotion/internal/mocks/ports_mock"
)

type remoteErr struct {
	code   int
	status string
}

func (e *remoteErr) Error() string     { return fmt.Sprintf("remote status %d %s", e.code, e.status) }
func (e *remoteErr) StatusCode() int   { return e.code }
func (e *remoteErr) RPCStatus() string { return e.status }

var (
	errRateLimited = &remoteErr{code: http.StatusTooManyRequests, status: "RESOURCE_EXHAUSTED"}
	errUnavailable = &remoteErr{code: http.StatusServiceUnavailable, status: "UNAVAILABLE"}
	errInternal    = &remoteErr{code: http.StatusInternalServerError, status: "INTERNAL"}
	errNotFound    = &remoteErr{code: http.StatusNotFound, status: "NOT_FOUND"}
	errBadRequest  = &remoteErr{code: http.StatusBadRequest, status: "INVALID_ARGUMENT"}
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.waits = append(s.waits, d)
	return nil
}

var (
	testImage = domain.SourceImage{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png", Name: "cat.png"}
	testCred  = domain.Credential{Kind: domain.KindAPIKey, APIKey: "key"}
	testCfg   = domain.GenerationConfig{Prompt: "a cat blinks", Resolution: domain.Resolution720p, AspectRatio: domain.AspectLandscape}
)

func newTestDriver(t *testing.T) (*Driver, *ports_mock.MockVideoAPI, *sleepRecorder) {
	api := ports_mock.NewMockVideoAPI(gomock.NewController(t))
	rec := &sleepRecorder{}
	return NewDriver(api, DriverOptions{Model: "veo-test", Sleep: rec.sleep}), api, rec
}

func doneOp(uri string) *domain.Operation {
	return &domain.Operation{
		Name: "ops/1",
		Done: true,
		Response: &domain.GenerateVideoResponse{
			GeneratedVideos: []domain.GeneratedVideo{{Video: &domain.VideoRef{URI: uri}}},
		},
	}
}

func seconds(values ...float64) []time.Duration {
	out := make([]time.Duration, 0, len(values))
	for _, v := range values {
		out = append(out, time.Duration(v*float64(time.Second)))
	}
	return out
}

func TestDriverRunHappyPath(t *testing.T) {
	driver, api, rec := newTestDriver(t)

	var captured domain.GenerateRequest
	api.EXPECT().Submit(gomock.Any(), testCred, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Credential, req domain.GenerateRequest) (*domain.Operation, error) {
			captured = req
			return &domain.Operation{Name: "ops/1"}, nil
		})
	gomock.InOrder(
		api.EXPECT().Status(gomock.Any(), testCred, gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil),
		api.EXPECT().Status(gomock.Any(), testCred, gomock.Any()).Return(doneOp("https://example.com/v.mp4"), nil),
	)

	var progress []string
	locator, err := driver.Run(context.Background(), testImage, testCfg, testCred, func(msg string) {
		progress = append(progress, msg)
	})

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v.mp4", locator)
	assert.Equal(t, seconds(10, 10, 10), rec.waits)
	assert.Equal(t, "Generating video...", progress[0])

	assert.Equal(t, "veo-test", captured.Model)
	assert.Equal(t, "a cat blinks "+domain.SilenceClause, captured.Prompt)
	assert.Equal(t, base64.StdEncoding.EncodeToString(testImage.Data), captured.ImageBase64)
	assert.Equal(t, "image/png", captured.ImageMIMEType)
	assert.Equal(t, 4, captured.DurationSeconds)
	assert.Equal(t, 1, captured.SampleCount)
	assert.Equal(t, domain.Resolution720p, captured.Resolution)
	assert.Equal(t, domain.AspectLandscape, captured.AspectRatio)
}

func TestDriverRunConfigModelOverrides(t *testing.T) {
	driver, api, _ := newTestDriver(t)
	cfg := testCfg
	cfg.Model = "veo-other"

	api.EXPECT().Submit(gomock.Any(), testCred, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Credential, req domain.GenerateRequest) (*domain.Operation, error) {
			assert.Equal(t, "veo-other", req.Model)
			return doneOp("https://example.com/v.mp4"), nil
		})

	_, err := driver.Run(context.Background(), testImage, cfg, testCred, nil)
	require.NoError(t, err)
}

func TestDriverSubmitBackoffSequence(t *testing.T) {
	driver, api, rec := newTestDriver(t)

	gomock.InOrder(
		api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRateLimited).Times(4),
		api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errUnavailable).Times(2),
		api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil),
	)
	api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(doneOp("https://example.com/v.mp4"), nil)

	var progress []string
	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, func(msg string) {
		progress = append(progress, msg)
	})

	require.NoError(t, err)
	assert.Equal(t, seconds(20, 30, 45, 67.5, 101.25, 120, 10, 10), rec.waits)
	assert.Equal(t, "Rate limited. Retrying in 20s (attempt 1/50)...", progress[0])
	assert.Equal(t, "Server busy. Retrying in 101s (attempt 5/50)...", progress[4])
}

func TestDriverSubmitRetriesExhausted(t *testing.T) {
	driver, api, rec := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRateLimited).Times(51)

	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)

	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Len(t, rec.waits, 50)
	for _, w := range rec.waits {
		assert.LessOrEqual(t, w, maxBackoff)
	}
}

func TestDriverSubmitFatal(t *testing.T) {
	driver, api, rec := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errBadRequest)

	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)

	assert.ErrorIs(t, err, errBadRequest)
	assert.Empty(t, rec.waits)
}

func TestDriverNoOperationHandle(t *testing.T) {
	driver, api, _ := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{}, nil)

	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)
	assert.ErrorIs(t, err, domain.ErrNoOperationHandle)
}

func TestDriverPollingTimeout(t *testing.T) {
	driver, api, _ := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil)
	api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errNotFound).Times(120)

	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)
	assert.ErrorIs(t, err, domain.ErrPollingTimeout)
}

func TestDriverNotFoundCounterResetsOnSuccess(t *testing.T) {
	driver, api, _ := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil)
	gomock.InOrder(
		api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errNotFound).Times(119),
		api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil),
		api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errNotFound).Times(119),
		api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(doneOp("https://example.com/v.mp4"), nil),
	)

	locator, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v.mp4", locator)
}

func TestDriverPollRateLimitedWaitsExtra(t *testing.T) {
	driver, api, rec := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil)
	gomock.InOrder(
		api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRateLimited),
		api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(doneOp("https://example.com/v.mp4"), nil),
	)

	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)
	require.NoError(t, err)
	assert.Equal(t, seconds(10, 10, 20, 10), rec.waits)
}

func TestDriverPollServerErrorIsFatal(t *testing.T) {
	driver, api, _ := newTestDriver(t)

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.Operation{Name: "ops/1"}, nil)
	api.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errInternal)

	_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)
	assert.ErrorIs(t, err, errInternal)
}

func TestDriverResultExtraction(t *testing.T) {
	cases := []struct {
		Name    string
		Op      *domain.Operation
		Expect  error
		Message string
	}{
		{
			"ContentFilteredWinsOverVideo",
			&domain.Operation{Name: "ops/1", Done: true, Response: &domain.GenerateVideoResponse{
				RAIMediaFilteredReasons: []string{"child safety", "other"},
				GeneratedVideos:         []domain.GeneratedVideo{{Video: &domain.VideoRef{URI: "https://example.com/v.mp4"}}},
			}},
			domain.ErrContentFiltered,
			"child safety",
		},
		{
			"OperationError",
			&domain.Operation{Name: "ops/1", Done: true, Error: &domain.OperationError{Code: 3, Message: "bad image"}},
			domain.ErrGenerationFailed,
			"bad image",
		},
		{
			"OperationErrorWithoutMessage",
			&domain.Operation{Name: "ops/1", Done: true, Error: &domain.OperationError{}},
			domain.ErrGenerationFailed,
			"finished with an error",
		},
		{
			"NoVideos",
			&domain.Operation{Name: "ops/1", Done: true, Response: &domain.GenerateVideoResponse{}},
			domain.ErrNoResultLocator,
			"",
		},
		{
			"NoResponse",
			&domain.Operation{Name: "ops/1", Done: true},
			domain.ErrNoResultLocator,
			"",
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			driver, api, _ := newTestDriver(t)
			api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(c.Op, nil)

			_, err := driver.Run(context.Background(), testImage, testCfg, testCred, nil)

			assert.ErrorIs(t, err, c.Expect)
			assert.Contains(t, err.Error(), c.Message)
		})
	}
}

func TestDriverMissingLocationBeforeNetwork(t *testing.T) {
	driver, _, rec := newTestDriver(t)
	cred := domain.Credential{Kind: domain.KindDelegated, ProjectID: "proj", AccessToken: "tok"}

	_, err := driver.Run(context.Background(), testImage, testCfg, cred, nil)

	assert.ErrorIs(t, err, domain.ErrMissingLocation)
	assert.Empty(t, rec.waits)
}

func TestDriverCancelledDuringBackoff(t *testing.T) {
	api := ports_mock.NewMockVideoAPI(gomock.NewController(t))
	ctx, cancel := context.WithCancel(context.Background())
	driver := NewDriver(api, DriverOptions{Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}})

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errRateLimited).Times(1)

	_, err := driver.Run(ctx, testImage, testCfg, testCred, nil)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriverCancelledDuringRequest(t *testing.T) {
	driver, api, _ := newTestDriver(t)
	ctx, cancel := context.WithCancel(context.Background())

	api.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.Credential, _ domain.GenerateRequest) (*domain.Operation, error) {
			cancel()
			return nil, fmt.Errorf("post: %w", ctx.Err())
		})

	_, err := driver.Run(ctx, testImage, testCfg, testCred, nil)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestSleepContextStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sleepContext(ctx, time.Hour)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), time.Minute)
}

func TestRetryStateCapsBackoff(t *testing.T) {
	state := newRetryState()
	var last time.Duration
	for i := 0; i < maxSubmitAttempts; i++ {
		wait, ok := state.fail()
		require.True(t, ok)
		last = wait
	}
	assert.Equal(t, maxBackoff, last)

	_, ok := state.fail()
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(domain.ErrRetriesExhausted.Error(), "retries exhausted"))
}
