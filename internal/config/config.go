package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"photovault/internal/logging"

	"github.com/joho/godotenv"
)

// Config holds all daemon configuration.
type Config struct {
	// DataDir is the root of all per-user media trees:
	// <DataDir>/<user>/<device>/files/...
	DataDir string

	// Scheduling
	FastPassInterval time.Duration
	SlowPassInterval time.Duration
	SlowPassDelay    time.Duration

	// ClassifyDefault is the fallback kind for images with no camera tags
	// and no screenshot filename hint: "photo" or "screenshot".
	ClassifyDefault string

	// FaceMatchThreshold is the minimum cosine similarity for assigning a
	// detection to an existing identity.
	FaceMatchThreshold float64

	// Face model paths. Both must be set for face recognition to run;
	// otherwise the capability is disabled and face records are retried
	// once models become available.
	DetectorModelPath string
	EmbedderModelPath string
	OnnxLibraryPath   string

	// OpenAIKey enables the scene tagger when set.
	OpenAIKey string

	// VipsEnabled turns on the libvips decode-time-shrink fast path.
	VipsEnabled bool

	// Metrics / health listener
	MetricsEnabled bool
	MetricsPort    string
}

// Load reads configuration from the environment (with optional .env file)
// and validates it.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:            getEnv("DATA_DIR", "/data"),
		FastPassInterval:   getEnvDuration("FAST_PASS_INTERVAL", 15*time.Second),
		SlowPassInterval:   getEnvDuration("SLOW_PASS_INTERVAL", 30*time.Second),
		SlowPassDelay:      getEnvDuration("SLOW_PASS_DELAY", 10*time.Second),
		ClassifyDefault:    getEnv("CLASSIFY_DEFAULT", "photo"),
		FaceMatchThreshold: getEnvFloat("FACE_MATCH_THRESHOLD", 0.40),
		DetectorModelPath:  getEnv("FACE_DETECTOR_MODEL", ""),
		EmbedderModelPath:  getEnv("FACE_EMBEDDER_MODEL", ""),
		OnnxLibraryPath:    getEnv("ONNX_LIBRARY_PATH", defaultOnnxLibrary()),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		VipsEnabled:        getEnvBool("VIPS_ENABLED", false),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
	}

	if cfg.ClassifyDefault != "photo" && cfg.ClassifyDefault != "screenshot" {
		return nil, fmt.Errorf("CLASSIFY_DEFAULT must be \"photo\" or \"screenshot\", got %q", cfg.ClassifyDefault)
	}
	if cfg.FaceMatchThreshold <= 0 || cfg.FaceMatchThreshold >= 1 {
		return nil, fmt.Errorf("FACE_MATCH_THRESHOLD must be in (0, 1), got %v", cfg.FaceMatchThreshold)
	}

	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("DATA_DIR not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("DATA_DIR is not a directory: %s", cfg.DataDir)
	}

	cfg.log()
	return cfg, nil
}

func (c *Config) log() {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  DATA_DIR:             %s", c.DataDir)
	logging.Info("  FAST_PASS_INTERVAL:   %v", c.FastPassInterval)
	logging.Info("  SLOW_PASS_INTERVAL:   %v", c.SlowPassInterval)
	logging.Info("  SLOW_PASS_DELAY:      %v", c.SlowPassDelay)
	logging.Info("  CLASSIFY_DEFAULT:     %s", c.ClassifyDefault)
	logging.Info("  FACE_MATCH_THRESHOLD: %.2f", c.FaceMatchThreshold)
	logging.Info("  FACE_DETECTOR_MODEL:  %s", orNone(c.DetectorModelPath))
	logging.Info("  FACE_EMBEDDER_MODEL:  %s", orNone(c.EmbedderModelPath))
	logging.Info("  ONNX_LIBRARY_PATH:    %s", c.OnnxLibraryPath)
	logging.Info("  OPENAI_API_KEY:       %s", maskSecret(c.OpenAIKey))
	logging.Info("  VIPS_ENABLED:         %v", c.VipsEnabled)
	logging.Info("  METRICS_ENABLED:      %v", c.MetricsEnabled)
	logging.Info("  METRICS_PORT:         %s", c.MetricsPort)
	logging.Info("------------------------------------------------------------")
}

// UserDir returns the media root for one user.
func (c *Config) UserDir(user string) string {
	return filepath.Join(c.DataDir, user)
}

// ThumbnailDir returns the flat per-user thumbnails directory.
func (c *Config) ThumbnailDir(user string) string {
	return filepath.Join(c.UserDir(user), "thumbnails")
}

// DatabasePath returns the per-user store location.
func (c *Config) DatabasePath(user string) string {
	return filepath.Join(c.UserDir(user), "photovault.db")
}

// FacesEnabled reports whether both face models are configured.
func (c *Config) FacesEnabled() bool {
	return c.DetectorModelPath != "" && c.EmbedderModelPath != ""
}

func defaultOnnxLibrary() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "****"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("invalid boolean for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logging.Warn("invalid float for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logging.Warn("invalid duration for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
