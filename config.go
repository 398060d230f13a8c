package studio

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Mode         string
	ApiPort      string
	LogLevel     string
	TenantID     string
	NatsURL      string
	MainDatabase struct {
		Host         string
		Port         string
		User         string
		Password     string
		DatabaseName string
		SSLMode      string
	}
	JWTConfig struct {
		Secret     string
		Expiration int // in minutes
	}
	RedisConfig struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	// Remote collaborators. Empty URLs select the in-process services.
	Collaborators struct {
		AssetServiceURL string
		StatsServiceURL string
		Timeout         time.Duration
	}
	Suggestions struct {
		StatsLimit    int
		StatsTimeout  time.Duration
		RatePerSecond int
		CacheTTL      time.Duration
		Concurrency   int
		RulesFile     string
		ReportTimeout time.Duration
	}
	Sessions struct {
		IdleTimeout time.Duration
	}
}

var config AppConfig

func InitConfig(envfile string) {
	err := godotenv.Load(envfile)
	if err != nil {
		log.Fatal(fmt.Sprintf("Error loading %s file: %s", envfile, err))
	}
	config = loadConfig()

	Logger = initLogger(config.LogLevel)
	DB = connectToPostgres(config.MainDatabase.Host, config.MainDatabase.User, config.MainDatabase.Password, config.MainDatabase.DatabaseName, config.MainDatabase.Port, config.MainDatabase.SSLMode)
	if config.RedisConfig.Host != "" {
		Redis = connectToRedis(config.RedisConfig.Host, config.RedisConfig.Port, config.RedisConfig.Password, config.RedisConfig.DB)
	}
	if config.NatsURL != "" {
		Nats = connectToNats(config.NatsURL)
	}
}

func loadConfig() AppConfig {
	var cfg AppConfig
	cfg.Mode = getEnvOrPanic("RUN_MODE")
	cfg.ApiPort = getEnvOrPanic("API_PORT")
	cfg.LogLevel = GetEnv("LOG_LEVEL", "debug")
	cfg.TenantID = GetEnv("TENANT_ID", "default")
	cfg.NatsURL = GetEnv("NATS_URL", "")

	cfg.MainDatabase.Host = getEnvOrPanic("DB_HOSTNAME")
	cfg.MainDatabase.Port = getEnvOrPanic("DB_PORT")
	cfg.MainDatabase.User = getEnvOrPanic("DB_USERNAME")
	cfg.MainDatabase.Password = getEnvOrPanic("DB_PASSWORD")
	cfg.MainDatabase.DatabaseName = getEnvOrPanic("DB_NAME")
	cfg.MainDatabase.SSLMode = getEnvOrPanic("DB_SSL_MODE")

	cfg.JWTConfig.Secret = getEnvOrPanic("JWT_SECRET")
	cfg.JWTConfig.Expiration = getIntEnvOrDefault("JWT_EXPIRATION_MINUTES", 60)

	cfg.RedisConfig.Host = GetEnv("REDIS_HOST", "")
	cfg.RedisConfig.Port = GetEnv("REDIS_PORT", "6379")
	cfg.RedisConfig.Password = GetEnv("REDIS_PASSWORD", "")
	cfg.RedisConfig.DB = getIntEnvOrDefault("REDIS_DB", 0)

	cfg.Collaborators.AssetServiceURL = GetEnv("ASSET_SERVICE_URL", "")
	cfg.Collaborators.StatsServiceURL = GetEnv("STATS_SERVICE_URL", "")
	cfg.Collaborators.Timeout = time.Duration(getIntEnvOrDefault("COLLABORATOR_TIMEOUT_MS", 10000)) * time.Millisecond

	cfg.Suggestions.StatsLimit = getIntEnvOrDefault("STATS_LIMIT", 10)
	cfg.Suggestions.StatsTimeout = time.Duration(getIntEnvOrDefault("STATS_TIMEOUT_MS", 3000)) * time.Millisecond
	cfg.Suggestions.RatePerSecond = getIntEnvOrDefault("STATS_RATE_PER_SECOND", 20)
	cfg.Suggestions.CacheTTL = time.Duration(getIntEnvOrDefault("STATS_CACHE_TTL_SECONDS", 300)) * time.Second
	cfg.Suggestions.Concurrency = getIntEnvOrDefault("SUGGEST_CONCURRENCY", 4)
	cfg.Suggestions.RulesFile = GetEnv("SUGGEST_RULES_FILE", "")
	cfg.Suggestions.ReportTimeout = time.Duration(getIntEnvOrDefault("REPORT_TIMEOUT_MS", 5000)) * time.Millisecond

	cfg.Sessions.IdleTimeout = time.Duration(getIntEnvOrDefault("SESSION_IDLE_MINUTES", 120)) * time.Minute
	return cfg
}

func GetConfig() AppConfig {
	return config
}

func getEnvOrPanic(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s must be set", key)
	}
	return value
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func connectToPostgres(host string, username string, password string, dbname string, port string, ssl string) *gorm.DB {
	var err error
	var db *gorm.DB
	var conn *sql.DB

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, username, password, dbname, port, ssl)
	if db, err = gorm.Open(postgres.Open(dsn),
		&gorm.Config{
			Logger: logger.New(
				log.New(os.Stdout, "\r\n", log.LstdFlags),
				logger.Config{
					SlowThreshold: 0,
					LogLevel:      logger.Error,
				},
			),
			TranslateError: true,
			NowFunc: func() time.Time {
				return time.Now()
			},
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			}}); err != nil {
		panic(err)
	}
	if conn, err = db.DB(); err != nil {
		panic(err)
	}
	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxLifetime(time.Hour)
	return db
}

func initLogger(level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		NoColor:    false,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("  %s  ", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Caller().Logger()
}

func connectToRedis(host string, port string, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	return client
}

func connectToNats(url string) *nats.Conn {
	nc, err := nats.Connect(url, nats.Name("studio-api"), nats.MaxReconnects(-1))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to NATS: %v", err))
	}
	return nc
}
