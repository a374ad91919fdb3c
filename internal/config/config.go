package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	OCREngineOpenALPR  = "openalpr"
	OCREngineTesseract = "tesseract"
	OCREngineRemote    = "remote"
)

type HTTPConfig struct {
	Host           string
	Port           int
	UploadMaxBytes int64
}

type StorageConfig struct {
	Driver string
	// SeedVehicles и SeedBoxes заполняют реестр при STORAGE_DRIVER=memory
	SeedVehicles []string
	SeedBoxes    []string
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

type SessionConfig struct {
	Backend       string
	TTL           time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ALPRConfig struct {
	Command        string
	Region         string
	FallbackRegion string
	TopN           int
	MinConfidence  float64
}

type TesseractConfig struct {
	Languages      []string
	TessdataPrefix string
}

type OCRConfig struct {
	Engine    string
	Workers   int
	QueueSize int
	Timeout   time.Duration
	ALPR      ALPRConfig
	Tesseract TesseractConfig
}

type ParkingConfig struct {
	MaxPlateDistance int
}

type ExternalServicesConfig struct {
	ANPRServiceURL    string
	ANPRInternalToken string
}

type Config struct {
	Environment      string
	HTTP             HTTPConfig
	Storage          StorageConfig
	DB               DBConfig
	Auth             AuthConfig
	Session          SessionConfig
	Redis            RedisConfig
	OCR              OCRConfig
	Parking          ParkingConfig
	ExternalServices ExternalServicesConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()
	setDefaults(v)

	_ = v.ReadInConfig()

	cfg := fromViper(v)
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("SESSION_BACKEND", SessionBackendMemory)
	v.SetDefault("SESSION_TTL", 30*time.Minute)
	v.SetDefault("SESSION_SWEEP_INTERVAL", time.Minute)
	v.SetDefault("OCR_ENGINE", OCREngineOpenALPR)
	v.SetDefault("OCR_WORKERS", 4)
	v.SetDefault("OCR_QUEUE_SIZE", 64)
	v.SetDefault("OCR_TIMEOUT", 20*time.Second)
	v.SetDefault("OCR_ALPR_COMMAND", "alpr")
	v.SetDefault("OCR_ALPR_REGION", "br")
	v.SetDefault("OCR_ALPR_FALLBACK_REGION", "eu")
	v.SetDefault("OCR_ALPR_TOPN", 10)
	v.SetDefault("OCR_ALPR_MIN_CONFIDENCE", 80.0)
	v.SetDefault("OCR_TESSERACT_LANGUAGES", "por,eng")
	v.SetDefault("PARKING_MAX_PLATE_DISTANCE", 1)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			UploadMaxBytes: v.GetInt64("HTTP_UPLOAD_MAX_BYTES"),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
			SeedVehicles: splitList(v.GetString("MEMORY_SEED_VEHICLES")),
			SeedBoxes:    splitList(v.GetString("MEMORY_SEED_BOXES")),
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
		Session: SessionConfig{
			Backend:       strings.ToLower(v.GetString("SESSION_BACKEND")),
			TTL:           v.GetDuration("SESSION_TTL"),
			SweepInterval: v.GetDuration("SESSION_SWEEP_INTERVAL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		OCR: OCRConfig{
			Engine:    strings.ToLower(v.GetString("OCR_ENGINE")),
			Workers:   v.GetInt("OCR_WORKERS"),
			QueueSize: v.GetInt("OCR_QUEUE_SIZE"),
			Timeout:   v.GetDuration("OCR_TIMEOUT"),
			ALPR: ALPRConfig{
				Command:        v.GetString("OCR_ALPR_COMMAND"),
				Region:         v.GetString("OCR_ALPR_REGION"),
				FallbackRegion: v.GetString("OCR_ALPR_FALLBACK_REGION"),
				TopN:           v.GetInt("OCR_ALPR_TOPN"),
				MinConfidence:  v.GetFloat64("OCR_ALPR_MIN_CONFIDENCE"),
			},
			Tesseract: TesseractConfig{
				Languages:      splitList(v.GetString("OCR_TESSERACT_LANGUAGES")),
				TessdataPrefix: v.GetString("OCR_TESSDATA_PREFIX"),
			},
		},
		Parking: ParkingConfig{
			MaxPlateDistance: v.GetInt("PARKING_MAX_PLATE_DISTANCE"),
		},
		ExternalServices: ExternalServicesConfig{
			ANPRServiceURL:    strings.TrimRight(v.GetString("ANPR_SERVICE_URL"), "/"),
			ANPRInternalToken: v.GetString("ANPR_INTERNAL_TOKEN"),
		},
	}
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '+' || r == ' ' })
}

func validate(cfg *Config) error {
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	switch cfg.Storage.Driver {
	case StorageDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	switch cfg.Session.Backend {
	case SessionBackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", cfg.Session.Backend)
	}

	switch cfg.OCR.Engine {
	case OCREngineRemote:
		if cfg.ExternalServices.ANPRServiceURL == "" {
			return fmt.Errorf("ANPR_SERVICE_URL is required")
		}
	case OCREngineOpenALPR, OCREngineTesseract:
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q", cfg.OCR.Engine)
	}

	if cfg.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.OCR.Workers <= 0 || cfg.OCR.QueueSize <= 0 {
		return fmt.Errorf("OCR_WORKERS and OCR_QUEUE_SIZE must be positive")
	}
	if cfg.OCR.Timeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive")
	}
	if cfg.Parking.MaxPlateDistance < 0 {
		return fmt.Errorf("PARKING_MAX_PLATE_DISTANCE must not be negative")
	}
	if cfg.HTTP.UploadMaxBytes <= 0 {
		return fmt.Errorf("HTTP_UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}
