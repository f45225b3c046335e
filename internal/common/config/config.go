package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string `yaml:"port"`
	Environment  string `yaml:"env"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`

	DB    DBConfig    `yaml:"db"`
	Blob  BlobConfig  `yaml:"blob"`
	Asset AssetConfig `yaml:"assets"`

	CORSOrigins []string `yaml:"cors_origins"`
}

type DBConfig struct {
	Driver      string `yaml:"driver"` // sqlite, postgres, memory
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type BlobConfig struct {
	Driver      string `yaml:"driver"` // fs, s3, memory
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

type AssetConfig struct {
	Concurrency  int `yaml:"concurrency"`
	Timeout      int `yaml:"timeout"`       // секунды на одну модель
	FetchTimeout int `yaml:"fetch_timeout"` // секунды на HTTP-запрос
}

// Load загружает конфигурацию из переменных окружения,
// затем накладывает YAML-файл из VIEWER_CONFIG, если он задан.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "3003"),
		Environment:  getEnv("ENV", "development"),
		ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
		DB: DBConfig{
			Driver:      getEnv("DB_DRIVER", "sqlite"),
			Path:        getEnv("DB_PATH", "data/db/layouts.db"),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		Blob: BlobConfig{
			Driver:      getEnv("BLOB_DRIVER", "fs"),
			FSRoot:      getEnv("BLOB_FS_ROOT", "assets"),
			S3Bucket:    getEnv("BLOB_S3_BUCKET", ""),
			S3Region:    getEnv("BLOB_S3_REGION", ""),
			S3Endpoint:  getEnv("BLOB_S3_ENDPOINT", ""),
			S3PathStyle: getEnvAsBool("BLOB_S3_PATH_STYLE", false),
		},
		Asset: AssetConfig{
			Concurrency:  getEnvAsInt("ASSET_CONCURRENCY", 8),
			Timeout:      getEnvAsInt("ASSET_TIMEOUT", 30),
			FetchTimeout: getEnvAsInt("FETCH_TIMEOUT", 20),
		},
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}

	if path := os.Getenv("VIEWER_CONFIG"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// overlay перекрывает значения теми, что заданы в файле.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
