package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the application configuration
type Config struct {
	Canvas     CanvasConfig     `json:"canvas"`
	Drawing    DrawingConfig    `json:"drawing"`
	Annotation AnnotationConfig `json:"annotation"`
	Processing ProcessingConfig `json:"processing"`
	Detector   DetectorConfig   `json:"detector"`
	Log        LogConfig        `json:"log"`
}

// CanvasConfig holds zoom limits for the image viewport
type CanvasConfig struct {
	MinZoom  float64 `json:"min_zoom" validate:"gt=0"`
	MaxZoom  float64 `json:"max_zoom" validate:"gt=0"`
	ZoomStep float64 `json:"zoom_step" validate:"gt=0"`
}

// DrawingConfig holds drawing session settings
type DrawingConfig struct {
	MinDrawSize float64 `json:"min_draw_size" validate:"gte=0"`
	UndoDepth   int     `json:"undo_depth" validate:"gte=1,lte=1000"`
}

// AnnotationConfig holds review workflow thresholds
type AnnotationConfig struct {
	// DedupThreshold is the IoU above which an imported prediction is
	// skipped and two drawn rectangles are reported as overlapping
	DedupThreshold         float64 `json:"dedup_threshold" validate:"gte=0,lte=1"`
	SequenceMergeThreshold float64 `json:"sequence_merge_threshold" validate:"gte=0,lte=1"`
	DefaultSmokeType       string  `json:"default_smoke_type" validate:"oneof=wildfire industrial other"`
}

// ProcessingConfig holds image handling settings
type ProcessingConfig struct {
	ContainerWidth  float64 `json:"container_width" validate:"gt=0"`
	ContainerHeight float64 `json:"container_height" validate:"gt=0"`
	ModelMaxDim     int     `json:"model_max_dim" validate:"gte=0"`
	ModelQuality    int     `json:"model_quality" validate:"gte=1,lte=100"`
}

// DetectorConfig holds the optional vision-model prediction source
type DetectorConfig struct {
	Enabled        bool    `json:"enabled"`
	Backend        string  `json:"backend" validate:"oneof=ollama llamacpp"`
	OllamaURL      string  `json:"ollama_url" validate:"omitempty,url"`
	LlamaCppURL    string  `json:"llamacpp_url" validate:"omitempty,url"`
	Model          string  `json:"model"`
	MinConfidence  float64 `json:"min_confidence" validate:"gte=0,lte=1"`
	TimeoutSeconds int     `json:"timeout_seconds" validate:"gte=0"`
}

// ServerURL returns the URL of the selected backend
func (d DetectorConfig) ServerURL() string {
	if d.Backend == "llamacpp" {
		return d.LlamaCppURL
	}
	return d.OllamaURL
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `json:"level" validate:"oneof=trace debug info warn error"`
	File  string `json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{
			MinZoom:  1,
			MaxZoom:  4,
			ZoomStep: 0.2,
		},
		Drawing: DrawingConfig{
			MinDrawSize: 10,
			UndoDepth:   20,
		},
		Annotation: AnnotationConfig{
			DedupThreshold:         0.8,
			SequenceMergeThreshold: 0.3,
			DefaultSmokeType:       "wildfire",
		},
		Processing: ProcessingConfig{
			ContainerWidth:  1280,
			ContainerHeight: 720,
			ModelMaxDim:     1024,
			ModelQuality:    85,
		},
		Detector: DetectorConfig{
			Enabled:        false,
			Backend:        "ollama",
			OllamaURL:      "http://localhost:11434",
			LlamaCppURL:    "http://localhost:8080",
			Model:          "llava",
			MinConfidence:  0.3,
			TimeoutSeconds: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Canvas.MinZoom > c.Canvas.MaxZoom {
		return fmt.Errorf("canvas.min_zoom must not exceed canvas.max_zoom")
	}

	if c.Detector.Enabled && (c.Detector.ServerURL() == "" || c.Detector.Model == "") {
		return fmt.Errorf("detector.%s_url and detector.model are required when the detector is enabled", c.Detector.Backend)
	}

	return nil
}

// LoadEnv reads an optional .env file and applies ANNOTATOR_* overrides.
// Variables already set in the environment win over the file.
func (c *Config) LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	c.Canvas.MinZoom = getEnvAsFloat("ANNOTATOR_MIN_ZOOM", c.Canvas.MinZoom)
	c.Canvas.MaxZoom = getEnvAsFloat("ANNOTATOR_MAX_ZOOM", c.Canvas.MaxZoom)
	c.Canvas.ZoomStep = getEnvAsFloat("ANNOTATOR_ZOOM_STEP", c.Canvas.ZoomStep)
	c.Drawing.MinDrawSize = getEnvAsFloat("ANNOTATOR_MIN_DRAW_SIZE", c.Drawing.MinDrawSize)
	c.Drawing.UndoDepth = getEnvAsInt("ANNOTATOR_UNDO_DEPTH", c.Drawing.UndoDepth)
	c.Annotation.DedupThreshold = getEnvAsFloat("ANNOTATOR_DEDUP_THRESHOLD", c.Annotation.DedupThreshold)
	c.Annotation.SequenceMergeThreshold = getEnvAsFloat("ANNOTATOR_SEQUENCE_MERGE_THRESHOLD", c.Annotation.SequenceMergeThreshold)
	c.Annotation.DefaultSmokeType = getEnv("ANNOTATOR_DEFAULT_SMOKE_TYPE", c.Annotation.DefaultSmokeType)
	c.Detector.Enabled = getEnvAsBool("ANNOTATOR_DETECTOR_ENABLED", c.Detector.Enabled)
	c.Detector.Backend = getEnv("ANNOTATOR_DETECTOR_BACKEND", c.Detector.Backend)
	c.Detector.OllamaURL = getEnv("ANNOTATOR_OLLAMA_URL", c.Detector.OllamaURL)
	c.Detector.LlamaCppURL = getEnv("ANNOTATOR_LLAMACPP_URL", c.Detector.LlamaCppURL)
	c.Detector.Model = getEnv("ANNOTATOR_MODEL", c.Detector.Model)
	c.Log.Level = getEnv("ANNOTATOR_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("ANNOTATOR_LOG_FILE", c.Log.File)
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "smoke-annotator", "config.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
