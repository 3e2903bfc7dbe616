package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type InputConfig struct {
	ImagesDir string
	DataDir   string
}

type DetectorConfig struct {
	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

type OCRConfig struct {
	Engine        string
	TesseractBin  string
	Language      string
	PageSegMode   int
	Whitelist     string
	CropMinHeight int
}

type R2Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

type LayoutConfig struct {
	Default string
	File    string
	Watch   bool
}

type Config struct {
	Environment        string
	HTTP               HTTPConfig
	DB                 DBConfig
	Auth               AuthConfig
	Input              InputConfig
	Detector           DetectorConfig
	OCR                OCRConfig
	Layout             LayoutConfig
	R2                 R2Config
	RunRetentionDays   int
	MaxUploadSizeBytes int64
}

const PlateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Input: InputConfig{
			ImagesDir: v.GetString("IMAGES_DIR"),
			DataDir:   v.GetString("DATA_DIR"),
		},
		Detector: DetectorConfig{
			CascadePath:  v.GetString("CASCADE_PATH"),
			ScaleFactor:  v.GetFloat64("DETECT_SCALE_FACTOR"),
			MinNeighbors: v.GetInt("DETECT_MIN_NEIGHBORS"),
			MinSize:      v.GetInt("DETECT_MIN_SIZE"),
		},
		OCR: OCRConfig{
			Engine:        v.GetString("OCR_ENGINE"),
			TesseractBin:  v.GetString("TESSERACT_BIN"),
			Language:      v.GetString("OCR_LANGUAGE"),
			PageSegMode:   v.GetInt("OCR_PSM"),
			Whitelist:     v.GetString("OCR_WHITELIST"),
			CropMinHeight: v.GetInt("CROP_MIN_HEIGHT"),
		},
		Layout: LayoutConfig{
			Default: v.GetString("PLATE_LAYOUT"),
			File:    v.GetString("PLATE_LAYOUT_FILE"),
			Watch:   v.GetBool("PLATE_LAYOUT_WATCH"),
		},
		R2: R2Config{
			Endpoint:      strings.TrimSpace(v.GetString("R2_ENDPOINT")),
			AccessKey:     strings.TrimSpace(v.GetString("R2_ACCESS_KEY_ID")),
			SecretKey:     strings.TrimSpace(v.GetString("R2_SECRET_ACCESS_KEY")),
			Bucket:        strings.TrimSpace(v.GetString("R2_BUCKET")),
			Region:        strings.TrimSpace(v.GetString("R2_REGION")),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("R2_PUBLIC_BASE_URL")), "/"),
		},
		RunRetentionDays:   v.GetInt("RUN_RETENTION_DAYS"),
		MaxUploadSizeBytes: v.GetInt64("MAX_UPLOAD_SIZE_BYTES"),
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Input.ImagesDir == "" {
		cfg.Input.ImagesDir = "images"
	}
	if cfg.Input.DataDir == "" {
		cfg.Input.DataDir = "data"
	}
	if cfg.Detector.CascadePath == "" {
		cfg.Detector.CascadePath = "haarcascade_russian_plate_number.xml"
	}
	if cfg.Detector.ScaleFactor <= 1 {
		cfg.Detector.ScaleFactor = 1.1
	}
	if cfg.Detector.MinNeighbors <= 0 {
		cfg.Detector.MinNeighbors = 10
	}
	if cfg.Detector.MinSize <= 0 {
		cfg.Detector.MinSize = 50
	}
	if cfg.OCR.Engine == "" {
		cfg.OCR.Engine = "tesseract"
	}
	if cfg.OCR.TesseractBin == "" {
		cfg.OCR.TesseractBin = "tesseract"
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.OCR.PageSegMode == 0 {
		cfg.OCR.PageSegMode = 7
	}
	if cfg.OCR.Whitelist == "" {
		cfg.OCR.Whitelist = PlateWhitelist
	}
	if cfg.RunRetentionDays <= 0 {
		cfg.RunRetentionDays = 30
	}
	if cfg.MaxUploadSizeBytes <= 0 {
		cfg.MaxUploadSizeBytes = 10 << 20
	}
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}

// HistoryEnabled reports whether runs are persisted to the database.
func (c *Config) HistoryEnabled() bool {
	return c.DB.DSN != ""
}
