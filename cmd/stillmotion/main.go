package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stillmotion/internal/adapters/downloader"
	"stillmotion/internal/adapters/ffmpeg"
	"stillmotion/internal/adapters/localstorage"
	"stillmotion/internal/adapters/memstore"
	"stillmotion/internal/adapters/objectstore"
	"stillmotion/internal/adapters/veo"
	"stillmotion/internal/core/domain"
	"stillmotion/internal/core/ports"
	"stillmotion/internal/httpapi"
	"stillmotion/internal/infra"
	"stillmotion/internal/service"
)

var CLI struct {
	EnvFile string `long:"env-file" description:"Environment file to load" default:".env"`
	DataDir string `long:"data-dir" description:"Base directory for job artifacts (overrides DATA_DIR)"`
	Debug   bool   `long:"debug" description:"Enable debug logging"`

	Model       string `long:"model" description:"Video model (overrides VEO_MODEL)"`
	Prompt      string `long:"prompt" description:"Prompt sent with every image"`
	Resolution  string `long:"resolution" description:"Output resolution" choice:"720p" choice:"1080p"`
	AspectRatio string `long:"aspect-ratio" description:"Output aspect ratio" choice:"16:9" choice:"9:16"`
	APIKey      string `long:"api-key" description:"API key (overrides GEMINI_API_KEY)"`

	Serve bool   `long:"serve" description:"Run the HTTP API instead of exiting after the batch"`
	Addr  string `long:"addr" description:"HTTP listen address (overrides HTTP_ADDR)"`

	Args struct {
		Images []string `positional-arg-name:"image"`
	} `positional-args:"yes"`
}

func main() {
	parser := flags.NewParser(&CLI, flags.Default)
	parser.Usage = "[OPTIONS] image..."
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "stillmotion: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := infra.LoadConfig(CLI.EnvFile)
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := cfg.Generation.Validate(); err != nil {
		return err
	}

	logger := infra.NewLogger(cfg.AppEnv)
	if CLI.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}

	if !CLI.Serve && len(CLI.Args.Images) == 0 {
		return fmt.Errorf("no images given; pass image paths or use --serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := newStorage(cfg)
	if err != nil {
		return err
	}

	api := veo.NewClient(veo.Options{BaseURL: cfg.BaseURL, StorageURI: cfg.VertexStorageURI, Logger: &logger})
	driver := service.NewDriver(api, service.DriverOptions{Model: cfg.Model, Logger: &logger})

	var delegated *domain.DelegatedConfig
	if cfg.Delegated.ProjectID != "" || cfg.Delegated.AccessToken != "" {
		d := cfg.Delegated
		delegated = &d
	}

	proc := service.NewProcessor(memstore.NewJobStore(), driver, downloader.NewHTTPDownloader(nil), storage, service.ProcessorOptions{
		Settings: service.Settings{
			Generation: cfg.Generation,
			APIKey:     cfg.APIKey,
			Delegated:  delegated,
		},
		Env:         service.OSEnv,
		Thumbnailer: newThumbnailer(cfg, logger),
		Logger:      &logger,
		AutoStart:   CLI.Serve,
		BaseContext: ctx,
	})

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("model", cfg.Model).
		Int("images", len(CLI.Args.Images)).
		Msg("stillmotion: starting")

	for _, path := range CLI.Args.Images {
		img, err := readImage(path)
		if err != nil {
			return err
		}
		if _, err := proc.Enqueue(ctx, img); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", path, err)
		}
	}

	if CLI.Serve {
		return serve(ctx, cfg, proc, logger)
	}

	if err := proc.RunPending(ctx); err != nil {
		return err
	}
	return printSummary(proc.Jobs())
}

func applyFlags(cfg *infra.Config) {
	if CLI.DataDir != "" {
		cfg.DataDir = CLI.DataDir
	}
	if CLI.Model != "" {
		cfg.Model = CLI.Model
	}
	if CLI.Prompt != "" {
		cfg.Generation.Prompt = CLI.Prompt
	}
	if CLI.Resolution != "" {
		cfg.Generation.Resolution = domain.Resolution(CLI.Resolution)
	}
	if CLI.AspectRatio != "" {
		cfg.Generation.AspectRatio = domain.AspectRatio(CLI.AspectRatio)
	}
	if CLI.APIKey != "" {
		cfg.APIKey = CLI.APIKey
	}
	if CLI.Addr != "" {
		cfg.HTTPAddr = CLI.Addr
	}
}

func newStorage(cfg *infra.Config) (ports.Storage, error) {
	if cfg.MinioEndpoint == "" {
		return localstorage.NewLocalStorage(cfg.DataDir), nil
	}
	return objectstore.NewMinioStorage(objectstore.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
}

// newThumbnailer returns nil when ffmpeg is not installed.
func newThumbnailer(cfg *infra.Config, logger zerolog.Logger) ports.Thumbnailer {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		logger.Debug().Str("ffmpeg", cfg.FFmpegPath).Msg("stillmotion: ffmpeg not found, thumbnails disabled")
		return nil
	}
	return ffmpeg.NewThumbnailer(cfg.FFmpegPath)
}

func readImage(path string) (domain.SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return domain.SourceImage{Data: data, MIMEType: mimeType, Name: filepath.Base(path)}, nil
}

func serve(ctx context.Context, cfg *infra.Config, proc *service.Processor, logger zerolog.Logger) error {
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(proc, httpapi.Options{
			Logger:         logger,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("stillmotion: starting api server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("stillmotion: shutting down")
		proc.Cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return proc.Wait(shutdownCtx)
	})

	return g.Wait()
}

func printSummary(jobs []domain.Job) error {
	var failed int
	fmt.Println("\n=== Batch Summary ===")
	for _, job := range jobs {
		switch job.Status {
		case domain.StatusCompleted:
			fmt.Printf("%-36s  %-24s  COMPLETED  %s\n", job.ID, job.Image.Name, job.Result.Location)
		default:
			failed++
			fmt.Printf("%-36s  %-24s  %-9s  %s\n", job.ID, job.Image.Name, job.Status, job.Error)
		}
	}
	fmt.Printf("Completed: %d  Failed: %d\n", len(jobs)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}
