package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"stillmotion/internal/core/domain"
)

const (
	defaultModel    = "veo-3.1-fast-generate-preview"
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultLocation = "us-central1"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	DataDir string

	// APIKey is the explicit key override. The ambient GEMINI_API_KEY/API_KEY
	// fallback is resolved per request, not here.
	APIKey    string
	Model     string
	BaseURL   string
	Delegated domain.DelegatedConfig

	// VertexStorageURI is where Vertex AI writes generated clips.
	VertexStorageURI string

	Generation domain.GenerationConfig

	HTTPAddr           string
	CORSAllowedOrigins []string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	FFmpegPath string
}

// LoadConfig loads .env files (when present) and reads configuration from the
// environment, applying defaults where needed.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine, the environment may be set manually.
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "production"),
		DataDir: getEnv("DATA_DIR", "./data"),
		APIKey:  os.Getenv("STILLMOTION_API_KEY"),
		Model:   getEnv("VEO_MODEL", defaultModel),
		BaseURL: getEnv("GEMINI_BASE_URL", defaultBaseURL),
		Delegated: domain.DelegatedConfig{
			ProjectID:   os.Getenv("VERTEX_PROJECT_ID"),
			Location:    getEnv("VERTEX_LOCATION", defaultLocation),
			AccessToken: os.Getenv("VERTEX_ACCESS_TOKEN"),
		},
		Generation: domain.GenerationConfig{
			Prompt:      os.Getenv("VIDEO_PROMPT"),
			Resolution:  domain.Resolution(getEnv("VIDEO_RESOLUTION", string(domain.Resolution720p))),
			AspectRatio: domain.AspectRatio(getEnv("VIDEO_ASPECT_RATIO", string(domain.AspectLandscape))),
		},
		VertexStorageURI:   os.Getenv("VERTEX_STORAGE_URI"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MinioEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        getEnv("MINIO_BUCKET", "stillmotion"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", false),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
	}

	if err := cfg.Generation.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return nil, fmt.Errorf("config: MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
