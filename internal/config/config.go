// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/services"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Redis      RedisConfig
	SQLitePath string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Rule é um par limite/janela aplicado a uma dimensão de rate limit.
type Rule struct {
	Limit  int
	Window time.Duration
}

type SecurityConfig struct {
	Risk       services.RiskConfig
	MaxBackoff time.Duration

	// RouteRule alimenta o middleware genérico por rota.
	RouteRule Rule
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return Config{}, err
	}

	securityConfig, err := buildSecurityConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: server,
		Storage: StorageConfig{
			Redis:      redisConfig,
			SQLitePath: getEnv("SQLITE_PATH", "./data/security.db"),
		},
		Security: securityConfig,
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func buildSecurityConfig() (SecurityConfig, error) {
	loginIPRule, err := buildRule("LOGIN_IP", 10, 60)
	if err != nil {
		return SecurityConfig{}, err
	}
	loginUserRule, err := buildRule("LOGIN_USER", 5, 300)
	if err != nil {
		return SecurityConfig{}, err
	}
	txUserRule, err := buildRule("TX_USER", 10, 60)
	if err != nil {
		return SecurityConfig{}, err
	}
	routeRule, err := buildRule("ROUTE", 100, 60)
	if err != nil {
		return SecurityConfig{}, err
	}

	amountThreshold, err := getEnvFloat("TX_AMOUNT_THRESHOLD", 10000)
	if err != nil {
		return SecurityConfig{}, err
	}
	suspiciousWindow, err := getEnvInt("SUSPICIOUS_WINDOW_SECONDS", 3600)
	if err != nil {
		return SecurityConfig{}, err
	}
	suspiciousCount, err := getEnvInt("SUSPICIOUS_COUNT", 5)
	if err != nil {
		return SecurityConfig{}, err
	}
	flagThreshold, err := getEnvInt("RISK_FLAG_THRESHOLD", 70)
	if err != nil {
		return SecurityConfig{}, err
	}
	maxBackoff, err := getEnvInt("MAX_BACKOFF_SECONDS", 86400)
	if err != nil {
		return SecurityConfig{}, err
	}

	return SecurityConfig{
		Risk: services.RiskConfig{
			LoginIPLimit:      loginIPRule.Limit,
			LoginIPWindow:     loginIPRule.Window,
			LoginUserLimit:    loginUserRule.Limit,
			LoginUserWindow:   loginUserRule.Window,
			TxUserLimit:       txUserRule.Limit,
			TxUserWindow:      txUserRule.Window,
			TxAmountThreshold: amountThreshold,
			SuspiciousWindow:  time.Duration(suspiciousWindow) * time.Second,
			SuspiciousCount:   suspiciousCount,
			RiskFlagThreshold: flagThreshold,
		},
		MaxBackoff: time.Duration(maxBackoff) * time.Second,
		RouteRule:  routeRule,
	}, nil
}

// buildRule lê <PREFIX>_LIMIT e <PREFIX>_WINDOW_SECONDS.
func buildRule(prefix string, defaultLimit, defaultWindowSeconds int) (Rule, error) {
	limit, err := getEnvInt(prefix+"_LIMIT", defaultLimit)
	if err != nil {
		return Rule{}, err
	}
	windowSeconds, err := getEnvInt(prefix+"_WINDOW_SECONDS", defaultWindowSeconds)
	if err != nil {
		return Rule{}, err
	}
	if limit < 0 {
		return Rule{}, fmt.Errorf("%s_LIMIT must not be negative", prefix)
	}
	if windowSeconds <= 0 {
		return Rule{}, fmt.Errorf("%s_WINDOW_SECONDS must be positive", prefix)
	}

	return Rule{Limit: limit, Window: time.Duration(windowSeconds) * time.Second}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
