package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"blister-inspector/internal/domain/entity"
)

// Version версия сервиса, отдаётся в /api/status.
const Version = "1.0.1"

// Журналы инспекций.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string

	LogLevel string
	LogDir   string

	ResultsDir        string
	LogBackend        string
	InspectionLogPath string
	SQLitePath        string

	UseCamera       bool
	CameraIndex     int
	SampleDir       string
	CaptureEnabled  bool
	CaptureInterval time.Duration

	MaxUploadBytes int64
	ThresholdsFile string
	Version        string

	// Inspection фиксируется при загрузке и дальше только читается
	Inspection entity.InspectionConfig
}

// Load читает .env и переменные окружения, накладывает файл порогов
// и проверяет результат. Переменные окружения важнее файла порогов.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":5000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogDir:            getEnv("LOG_DIR", filepath.Join(".", "logs")),
		ResultsDir:        getEnv("RESULTS_DIR", filepath.Join(".", "static", "results")),
		LogBackend:        strings.ToLower(getEnv("LOG_BACKEND", BackendJSON)),
		InspectionLogPath: getEnv("INSPECTION_LOG_PATH", filepath.Join(".", "data", "inspection_logs.json")),
		SQLitePath:        getEnv("SQLITE_PATH", filepath.Join(".", "data", "inspections.db")),
		UseCamera:         getEnvAsBool("USE_CAMERA", false),
		CameraIndex:       getEnvAsInt("CAMERA_INDEX", 0),
		SampleDir:         getEnv("SAMPLE_DIR", filepath.Join(".", "sample_data")),
		CaptureEnabled:    getEnvAsBool("CAPTURE_ENABLED", false),
		CaptureInterval:   time.Duration(getEnvAsInt("CAPTURE_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxUploadBytes:    int64(getEnvAsInt("MAX_UPLOAD_MB", 16)) << 20,
		ThresholdsFile:    os.Getenv("THRESHOLDS_FILE"),
		Version:           Version,
		Inspection:        entity.DefaultInspectionConfig(),
	}

	if cfg.ThresholdsFile != "" {
		inspection, err := LoadInspection(cfg.ThresholdsFile, cfg.Inspection)
		if err != nil {
			return nil, err
		}
		cfg.Inspection = inspection
	}

	seg := &cfg.Inspection.Segmentation
	seg.Strategy = entity.SegmentationStrategy(getEnv("SEGMENTATION_STRATEGY", string(seg.Strategy)))

	cls := &cfg.Inspection.Classification
	cls.AreaMin = getEnvAsFloat("AREA_MIN", cls.AreaMin)
	cls.AreaMax = getEnvAsFloat("AREA_MAX", cls.AreaMax)
	cls.NoiseFloor = getEnvAsFloat("NOISE_FLOOR", cls.NoiseFloor)
	cls.CircularityThreshold = getEnvAsFloat("CIRCULARITY_THRESHOLD", cls.CircularityThreshold)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInspection накладывает YAML-файл порогов на base. Ключи, которых нет в файле,
// сохраняют значения base; неизвестные ключи считаются ошибкой.
func LoadInspection(path string, base entity.InspectionConfig) (entity.InspectionConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("open thresholds file: %w", err)
	}
	defer f.Close()

	out := base
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("decode thresholds file: %w", err)
	}
	return out, nil
}

// Validate проверяет значения, от которых зависит запуск.
func (c *Config) Validate() error {
	if c.LogBackend != BackendJSON && c.LogBackend != BackendSQLite {
		return fmt.Errorf("unknown LOG_BACKEND %q", c.LogBackend)
	}
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("CAPTURE_INTERVAL_MS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return c.Inspection.Validate()
}

// Mode режим источника кадров при старте.
func (c *Config) Mode() entity.SourceMode {
	return entity.ModeFromCamera(c.UseCamera)
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
