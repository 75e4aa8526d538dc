package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool
	ServerPort    string
	JWTSecret     string
	CORSOrigins   []string

	Log       LogConfig
	Messaging MessagingConfig
	Scheduler SchedulerConfig

	TaskCacheTTL time.Duration
}

type LogConfig struct {
	Level string
	File  string // empty means stdout
}

type MessagingConfig struct {
	Endpoint  string // empty disables outbound delivery, messages are only logged
	ServerKey string
	Timeout   time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	TimeZone      string
	ResetAt       string // HH:MM in TimeZone
	DigestAt      string // HH:MM in TimeZone
	BatchSize     int
	BatchDelay    time.Duration
	BatchRetries  int
	DigestWorkers int
}

// Location loads TimeZone. Day boundaries of dates and of both jobs are taken in it.
func (s SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimeZone)
}

// DSN returns the postgres connection string in key=value form.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSSLMode
}

// MigrationURL returns the postgres URL form used by the migration runner.
func (c *Config) MigrationURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort +
		"/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		DBHost:        v.GetString("DB_HOST"),
		DBPort:        v.GetString("DB_PORT"),
		DBUser:        v.GetString("DB_USER"),
		DBPassword:    v.GetString("DB_PASSWORD"),
		DBName:        v.GetString("DB_NAME"),
		DBSSLMode:     v.GetString("DB_SSLMODE"),
		DBAutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		ServerPort:    v.GetString("SERVER_PORT"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		CORSOrigins:   splitList(v.GetString("CORS_ORIGINS")),
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			File:  v.GetString("LOG_FILE"),
		},
		Messaging: MessagingConfig{
			Endpoint:  v.GetString("MESSAGING_ENDPOINT"),
			ServerKey: v.GetString("MESSAGING_SERVER_KEY"),
			Timeout:   v.GetDuration("MESSAGING_TIMEOUT"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("SCHEDULER_ENABLED"),
			TimeZone:      v.GetString("SCHEDULER_TIMEZONE"),
			ResetAt:       v.GetString("SCHEDULER_RESET_AT"),
			DigestAt:      v.GetString("SCHEDULER_DIGEST_AT"),
			BatchSize:     v.GetInt("SCHEDULER_BATCH_SIZE"),
			BatchDelay:    v.GetDuration("SCHEDULER_BATCH_DELAY"),
			BatchRetries:  v.GetInt("SCHEDULER_BATCH_RETRIES"),
			DigestWorkers: v.GetInt("DIGEST_WORKERS"),
		},
		TaskCacheTTL: v.GetDuration("TASK_CACHE_TTL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "teamtasks_user")
	v.SetDefault("DB_PASSWORD", "teamtasks_pass")
	v.SetDefault("DB_NAME", "teamtasks_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("JWT_SECRET", "supersecretkey")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("MESSAGING_ENDPOINT", "")
	v.SetDefault("MESSAGING_SERVER_KEY", "")
	v.SetDefault("MESSAGING_TIMEOUT", "10s")
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_TIMEZONE", "Europe/Madrid")
	v.SetDefault("SCHEDULER_RESET_AT", "00:05")
	v.SetDefault("SCHEDULER_DIGEST_AT", "09:00")
	v.SetDefault("SCHEDULER_BATCH_SIZE", 248)
	v.SetDefault("SCHEDULER_BATCH_DELAY", "1s")
	v.SetDefault("SCHEDULER_BATCH_RETRIES", 3)
	v.SetDefault("DIGEST_WORKERS", 8)
	v.SetDefault("TASK_CACHE_TTL", "30s")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
