package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Exports   ExportsConfig
	Jobs      JobsConfig
}

type DatabaseConfig struct {
	Enabled         bool
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig carries the engine knobs applied to every run unless a
// request overrides them.
type TimetableConfig struct {
	Strategy          string
	AllowForced       bool
	ExtendedWindow    bool
	GeneticAttempts   int
	Generations       int
	PopulationSize    int
	GenerationStep    int
	PopulationStep    int
	EliteCount        int
	ParentPool        int
	CrossoverRate     float64
	DisableRepair     bool
	BacktrackMaxSteps int
	RepairMaxSteps    int
	Seed              int64
	RunTimeout        time.Duration
	CacheTTL          time.Duration
	JobTTL            time.Duration
}

// ExportsConfig controls rendered timetable files and their download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	CSVWithBOM      bool
}

// JobsConfig sizes the asynchronous run queue.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile reads configuration from the given env file and the environment.
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:         v.GetBool("DB_ENABLED"),
		URL:             v.GetString("DATABASE_URL"),
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 30*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		URL:      v.GetString("REDIS_URL"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timetable = TimetableConfig{
		Strategy:          v.GetString("TIMETABLE_STRATEGY"),
		AllowForced:       v.GetBool("TIMETABLE_ALLOW_FORCED"),
		ExtendedWindow:    v.GetBool("TIMETABLE_EXTENDED_WINDOW"),
		GeneticAttempts:   v.GetInt("TIMETABLE_GENETIC_ATTEMPTS"),
		Generations:       v.GetInt("TIMETABLE_GENERATIONS"),
		PopulationSize:    v.GetInt("TIMETABLE_POPULATION_SIZE"),
		GenerationStep:    v.GetInt("TIMETABLE_GENERATION_STEP"),
		PopulationStep:    v.GetInt("TIMETABLE_POPULATION_STEP"),
		EliteCount:        v.GetInt("TIMETABLE_ELITE_COUNT"),
		ParentPool:        v.GetInt("TIMETABLE_PARENT_POOL"),
		CrossoverRate:     v.GetFloat64("TIMETABLE_CROSSOVER_RATE"),
		DisableRepair:     v.GetBool("TIMETABLE_DISABLE_REPAIR"),
		BacktrackMaxSteps: v.GetInt("TIMETABLE_BACKTRACK_MAX_STEPS"),
		RepairMaxSteps:    v.GetInt("TIMETABLE_REPAIR_MAX_STEPS"),
		Seed:              v.GetInt64("TIMETABLE_SEED"),
		RunTimeout:        parseDuration(v.GetString("TIMETABLE_RUN_TIMEOUT"), 2*time.Minute),
		CacheTTL:          parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 30*time.Minute),
		JobTTL:            parseDuration(v.GetString("TIMETABLE_JOB_TTL"), time.Hour),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		CSVWithBOM:      v.GetBool("EXPORTS_CSV_BOM"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_STRATEGY", "pipeline")
	v.SetDefault("TIMETABLE_ALLOW_FORCED", false)
	v.SetDefault("TIMETABLE_EXTENDED_WINDOW", false)
	v.SetDefault("TIMETABLE_GENETIC_ATTEMPTS", 10)
	v.SetDefault("TIMETABLE_GENERATIONS", 200)
	v.SetDefault("TIMETABLE_POPULATION_SIZE", 50)
	v.SetDefault("TIMETABLE_GENERATION_STEP", 100)
	v.SetDefault("TIMETABLE_POPULATION_STEP", 10)
	v.SetDefault("TIMETABLE_ELITE_COUNT", 4)
	v.SetDefault("TIMETABLE_PARENT_POOL", 10)
	v.SetDefault("TIMETABLE_CROSSOVER_RATE", 0.7)
	v.SetDefault("TIMETABLE_DISABLE_REPAIR", false)
	v.SetDefault("TIMETABLE_BACKTRACK_MAX_STEPS", 500000)
	v.SetDefault("TIMETABLE_REPAIR_MAX_STEPS", 200000)
	v.SetDefault("TIMETABLE_SEED", 0)
	v.SetDefault("TIMETABLE_RUN_TIMEOUT", "2m")
	v.SetDefault("TIMETABLE_CACHE_TTL", "30m")
	v.SetDefault("TIMETABLE_JOB_TTL", "1h")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_CSV_BOM", false)

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_BUFFER_SIZE", 64)
	v.SetDefault("JOBS_MAX_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
