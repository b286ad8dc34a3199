package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Detector DetectorConfig
	Tracking TrackingConfig
	Render   RenderConfig
	Archive  ArchiveConfig
	Database DatabaseConfig
}

type DetectorConfig struct {
	ModelDir   string // directory holding the dlib model files
	ServiceURL string // external detection service, used when ModelDir is empty
}

type TrackingConfig struct {
	FrameScale float64 // factor applied to frames before detection
	TrackFaces bool    // carry face identities across frames
	MinIoU     float64 // overlap threshold for identity continuation
}

type RenderConfig struct {
	LandmarkColor string `yaml:"landmark_color"` // hex color like #00ff00
	BoxColor      string `yaml:"box_color"`
	Thickness     int    `yaml:"thickness"`
}

type ArchiveConfig struct {
	Path string // SQLite snapshot store path (default facetrail.db)
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the face HNSW index (optional, if empty index is rebuilt on startup)
}

// defaultsFile mirrors the embedded defaults.yaml layout.
type defaultsFile struct {
	Tracking struct {
		FrameScale float64 `yaml:"frame_scale"`
		TrackFaces bool    `yaml:"track_faces"`
		MinIoU     float64 `yaml:"min_iou"`
	} `yaml:"tracking"`
	Render  RenderConfig `yaml:"render"`
	Service struct {
		URL string `yaml:"url"`
	} `yaml:"service"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
		return v
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean. Returns the default
// value if the env var is unset, empty, or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			ModelDir:   os.Getenv("MODEL_DIR"),
			ServiceURL: envString("DETECT_SERVICE_URL", defaults.Service.URL),
		},
		Tracking: TrackingConfig{
			FrameScale: envFloat("FRAME_SCALE", defaults.Tracking.FrameScale),
			TrackFaces: envBool("TRACK_FACES", defaults.Tracking.TrackFaces),
			MinIoU:     envFloat("MIN_IOU", defaults.Tracking.MinIoU),
		},
		Render: RenderConfig{
			LandmarkColor: envString("RENDER_LANDMARK_COLOR", defaults.Render.LandmarkColor),
			BoxColor:      envString("RENDER_BOX_COLOR", defaults.Render.BoxColor),
			Thickness:     envInt("RENDER_THICKNESS", defaults.Render.Thickness),
		},
		Archive: ArchiveConfig{
			Path: envString("ARCHIVE_PATH", "facetrail.db"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
	}
}
