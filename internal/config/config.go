// Package config は環境変数（と任意の YAML ファイル）から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 状態ストアの種類
const (
	StatusBackendMemory = "memory"
	StatusBackendRedis  = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定（両方空なら認証なし）
	AppUsername     string `yaml:"app_username"`      // Basic 認証のユーザー名
	AppPasswordHash string `yaml:"app_password_hash"` // bcryptでハッシュ化されたパスワード

	// サーバー設定
	Port    string `yaml:"port"`     // APIサーバーのポート番号
	GinMode string `yaml:"gin_mode"` // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"` // CORS許可オリジン（カンマ区切り）

	// ジョブ設定
	Workers        int    `yaml:"workers"`         // ジョブワーカー数
	MaxConcurrency int    `yaml:"max_concurrency"` // ジョブ毎のソートレーン数の上限
	WorkDir        string `yaml:"work_dir"`        // 空なら一時ディレクトリを作成し終了時に削除

	// 読み込み設定
	BufferSize   int `yaml:"buffer_size"`    // 1回の読み込みバイト数
	MaxTailBytes int `yaml:"max_tail_bytes"` // 区切りなしで持ち越せる最大バイト数（0は無制限）

	// ダウンロード設定
	FetchPoolSize int           `yaml:"fetch_pool_size"` // 同時ダウンロード数（0はワーカー数）
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`   // 0はタイムアウトなし

	// 状態ストア設定
	StatusBackend    string `yaml:"status_backend"`     // memory または redis
	StatusRedisURL   string `yaml:"status_redis_url"`   // redis 利用時の接続URL
	JobExpireMinutes int    `yaml:"job_expire_minutes"` // redis 上の状態の有効期限（0は無期限）

	// イベント設定
	NATSURL       string `yaml:"nats_url"`       // 空なら配信しない
	StatusSubject string `yaml:"status_subject"` // 状態イベントのサブジェクト

	// ログ設定
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // tint, text, json
}

// Default は既定値の設定を返します。
func Default() *Config {
	return &Config{
		Port:               "8888",
		GinMode:            "debug",
		CORSAllowedOrigins: "*",
		Workers:            4,
		MaxConcurrency:     50,
		BufferSize:         10240,
		StatusBackend:      StatusBackendMemory,
		StatusRedisURL:     "redis://127.0.0.1:6379/0",
		StatusSubject:      "sorter.jobs.status",
		LogLevel:           "info",
		LogFormat:          "tint",
	}
}

// Load は設定を読み込みます。優先順位は 既定値 < CONFIG_FILE の YAML < 環境変数 です。
// .env.local ファイルが存在する場合は環境変数として読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if config.FetchPoolSize == 0 {
		config.FetchPoolSize = config.Workers
	}

	// 設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.AppUsername = getEnv("APP_USERNAME", c.AppUsername)
	c.AppPasswordHash = getEnv("APP_PASSWORD_HASH", c.AppPasswordHash)

	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.CORSAllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.Workers = getEnvAsInt("WORKERS", c.Workers)
	c.MaxConcurrency = getEnvAsInt("MAX_CONCURRENCY", c.MaxConcurrency)
	c.WorkDir = getEnv("WORK_DIR", c.WorkDir)

	c.BufferSize = getEnvAsInt("BUFFER_SIZE", c.BufferSize)
	c.MaxTailBytes = getEnvAsInt("MAX_TAIL_BYTES", c.MaxTailBytes)

	c.FetchPoolSize = getEnvAsInt("FETCH_POOL_SIZE", c.FetchPoolSize)
	timeout, err := getEnvAsDuration("FETCH_TIMEOUT", c.FetchTimeout)
	if err != nil {
		return err
	}
	c.FetchTimeout = timeout

	c.StatusBackend = strings.ToLower(getEnv("STATUS_BACKEND", c.StatusBackend))
	c.StatusRedisURL = getEnv("STATUS_REDIS_URL", c.StatusRedisURL)
	c.JobExpireMinutes = getEnvAsInt("JOB_EXPIRE_MINUTES", c.JobExpireMinutes)

	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.StatusSubject = getEnv("STATUS_SUBJECT", c.StatusSubject)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	return nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive (got %d)", c.Workers)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive (got %d)", c.MaxConcurrency)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE must be positive (got %d)", c.BufferSize)
	}
	if c.MaxTailBytes < 0 {
		return fmt.Errorf("MAX_TAIL_BYTES must not be negative (got %d)", c.MaxTailBytes)
	}
	if c.FetchPoolSize < 0 {
		return fmt.Errorf("FETCH_POOL_SIZE must not be negative (got %d)", c.FetchPoolSize)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("FETCH_TIMEOUT must not be negative (got %s)", c.FetchTimeout)
	}
	if c.JobExpireMinutes < 0 {
		return fmt.Errorf("JOB_EXPIRE_MINUTES must not be negative (got %d)", c.JobExpireMinutes)
	}

	switch c.StatusBackend {
	case StatusBackendMemory:
	case StatusBackendRedis:
		if c.StatusRedisURL == "" {
			return fmt.Errorf("STATUS_REDIS_URL is required when STATUS_BACKEND is redis")
		}
	default:
		return fmt.Errorf("STATUS_BACKEND must be %q or %q (got %q)", StatusBackendMemory, StatusBackendRedis, c.StatusBackend)
	}

	// 認証は任意だが、片方だけの設定は誤りとみなす
	if (c.AppUsername == "") != (c.AppPasswordHash == "") {
		return fmt.Errorf("APP_USERNAME and APP_PASSWORD_HASH must be set together")
	}
	if c.GinMode == "release" && c.AppUsername == "" {
		return fmt.Errorf("APP_USERNAME is required in release mode")
	}

	return nil
}

// AuthEnabled は Basic 認証が有効かどうかを返します。
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != "" && c.AppPasswordHash != ""
}

// JobTTL は状態の有効期限を返します。
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.JobExpireMinutes) * time.Minute
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します。単位なしの値は秒とみなします。
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, nil
}
