package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storyserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// LoadConfig loads the configuration from config.json, then applies
// environment overrides and defaults. A missing file is fine as long as the
// environment supplies the required values.
func LoadConfig(filename string) (models.Config, error) {
	var config models.Config
	configFile, err := os.Open(filename)
	switch {
	case err == nil:
		defer configFile.Close()
		if err := json.NewDecoder(configFile).Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return config, err
	}

	applyEnv(&config)
	applyDefaults(&config)
	return config, validate(config)
}

func applyEnv(config *models.Config) {
	setString(&config.DBHost, "DB_HOST")
	setString(&config.DBUser, "DB_USER")
	setString(&config.DBPassword, "DB_PASSWORD")
	setString(&config.DBName, "DB_NAME")
	setString(&config.DBSSLMode, "DB_SSLMODE")
	setString(&config.RedisAddr, "REDIS_ADDR")
	setString(&config.RedisPassword, "REDIS_PASSWORD")
	setInt(&config.RedisDB, "REDIS_DB")
	setString(&config.JWTSecret, "JWT_SECRET")
	setString(&config.GeneratorURL, "GENERATOR_URL")
	setInt(&config.GeneratorTimeout, "GENERATOR_TIMEOUT")
	setString(&config.ListenAddr, "LISTEN_ADDR")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}
}

func applyDefaults(config *models.Config) {
	if config.DBSSLMode == "" {
		config.DBSSLMode = "disable"
	}
	if config.RedisAddr == "" {
		config.RedisAddr = "localhost:6379"
	}
	if config.GeneratorTimeout <= 0 {
		config.GeneratorTimeout = 60
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
}

func validate(config models.Config) error {
	var missing []string
	if config.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if config.GeneratorURL == "" {
		missing = append(missing, "GENERATOR_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// 数値でない値は無視して設定ファイルの値を残す
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// DSN builds the postgres connection string.
func DSN(config models.Config) string {
	return fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=%s",
		config.DBHost, config.DBUser, config.DBName, config.DBPassword, config.DBSSLMode)
}

func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	return OpenPostgreSQL(DSN(config), logger)
}

// OpenPostgreSQL connects to dsn, retrying a few times while the database
// comes up. Constraint violations are translated into gorm errors so that a
// duplicate room code surfaces as gorm.ErrDuplicatedKey.
func OpenPostgreSQL(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 5 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

// Migrate creates or updates the rooms and stories tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Room{}, &models.Story{})
}

func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// Redisへの接続テスト
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}
