package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       *AppConfig       `yaml:"app"`
	Database  *DatabaseConfig  `yaml:"database"`
	Redis     *RedisConfig     `yaml:"redis"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Security  *SecurityConfig  `yaml:"security"`
	Dispatch  *DispatchConfig  `yaml:"dispatch"`
	Fare      *FareConfig      `yaml:"fare"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	Timezone    string `yaml:"timezone"`
	Currency    string `yaml:"currency"`
}

type SecurityConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTAccessTokenTTL  time.Duration `yaml:"jwt_access_token_ttl"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

// DispatchConfig tunes the matching engine.
type DispatchConfig struct {
	SearchRadiusKM     float64       `yaml:"search_radius_km"`
	MaxSearchRadiusKM  float64       `yaml:"max_search_radius_km"`
	PresenceStaleAfter time.Duration `yaml:"presence_stale_after"`
	SurgeMultiplier    float64       `yaml:"surge_multiplier"`
}

// FareRate holds the pricing knobs for one vehicle type.
type FareRate struct {
	BaseFare    float64 `yaml:"base_fare"`
	PerKM       float64 `yaml:"per_km"`
	PerMinute   float64 `yaml:"per_minute"`
	MinimumFare float64 `yaml:"minimum_fare"`
	AvgSpeedKMH float64 `yaml:"avg_speed_kmh"`
}

type FareConfig struct {
	Rates map[string]FareRate `yaml:"rates"`
}

func Load() (*Config, error) {
	config := &Config{
		App:       loadAppConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		WebSocket: loadWebSocketConfig(),
		Security:  loadSecurityConfig(),
		Dispatch:  loadDispatchConfig(),
		Fare:      loadFareConfig(),
	}

	return config, nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "Chalo"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 8080),
		Host:        getEnv("APP_HOST", "localhost"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Timezone:    getEnv("APP_TIMEZONE", "Asia/Dhaka"),
		Currency:    getEnv("APP_CURRENCY", "BDT"),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		JWTAccessTokenTTL:  getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		SearchRadiusKM:     getEnvAsFloat("DISPATCH_SEARCH_RADIUS_KM", 10.0),
		MaxSearchRadiusKM:  getEnvAsFloat("DISPATCH_MAX_SEARCH_RADIUS_KM", 50.0),
		PresenceStaleAfter: getEnvAsDuration("DISPATCH_PRESENCE_STALE_AFTER", 60*time.Second),
		SurgeMultiplier:    getEnvAsFloat("DISPATCH_SURGE_MULTIPLIER", 1.0),
	}
}

func loadFareConfig() *FareConfig {
	return &FareConfig{
		Rates: map[string]FareRate{
			"bike": {
				BaseFare:    getEnvAsFloat("FARE_BIKE_BASE", 30),
				PerKM:       getEnvAsFloat("FARE_BIKE_PER_KM", 15),
				PerMinute:   getEnvAsFloat("FARE_BIKE_PER_MIN", 1.0),
				MinimumFare: getEnvAsFloat("FARE_BIKE_MINIMUM", 40),
				AvgSpeedKMH: getEnvAsFloat("FARE_BIKE_AVG_SPEED", 25),
			},
			"cng": {
				BaseFare:    getEnvAsFloat("FARE_CNG_BASE", 40),
				PerKM:       getEnvAsFloat("FARE_CNG_PER_KM", 18),
				PerMinute:   getEnvAsFloat("FARE_CNG_PER_MIN", 1.5),
				MinimumFare: getEnvAsFloat("FARE_CNG_MINIMUM", 60),
				AvgSpeedKMH: getEnvAsFloat("FARE_CNG_AVG_SPEED", 20),
			},
			"car": {
				BaseFare:    getEnvAsFloat("FARE_CAR_BASE", 60),
				PerKM:       getEnvAsFloat("FARE_CAR_PER_KM", 25),
				PerMinute:   getEnvAsFloat("FARE_CAR_PER_MIN", 2.0),
				MinimumFare: getEnvAsFloat("FARE_CAR_MINIMUM", 100),
				AvgSpeedKMH: getEnvAsFloat("FARE_CAR_AVG_SPEED", 25),
			},
		},
	}
}

// Helper functions for environment variables
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
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
