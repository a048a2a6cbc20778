package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	CORSOrigins     []string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	Region     string
	PresignTTL time.Duration
}

type SecurityConfig struct {
	JWTSecret   string
	JWTAudience string
	TokenTTL    time.Duration
}

type FaceConfig struct {
	EncoderAddr    string
	EncoderTimeout time.Duration
	Tolerance      float64
	CacheTTL       time.Duration
	MaxDimension   int
}

type JobsConfig struct {
	OrphanSweepSpec string
	OrphanMinAge    time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Security    SecurityConfig
	Face        FaceConfig
	Jobs        JobsConfig
}

// legacyEnv maps the unprefixed variable names used by existing deployments to
// their configuration keys.
var legacyEnv = map[string]string{
	"postgres.dsn":         "DATABASE_DSN",
	"redis.addr":           "REDIS_ADDR",
	"security.jwtsecret":   "JWT_SECRET",
	"security.jwtaudience": "JWT_AUDIENCE",
	"face.encoderaddr":     "FACE_ENCODER_ADDR",
}

// Load reads configuration from defaults, an optional config.yaml, an optional
// .env file and the environment, in increasing order of precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("EDU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "EDU_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwtsecret must be set")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "info")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.readtimeout", "15s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.shutdowntimeout", "15s")
	v.SetDefault("http.maxuploadbytes", 10<<20)
	v.SetDefault("http.corsorigins", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("postgres.dsn", "host=postgres user=postgres password=postgres dbname=eduadmin port=5432 sslmode=disable")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "1h")

	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "minio:9000")
	v.SetDefault("storage.accesskey", "minioadmin")
	v.SetDefault("storage.secretkey", "minioadmin")
	v.SetDefault("storage.bucket", "faces")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignttl", "15m")

	v.SetDefault("security.jwtsecret", "dev-secret")
	v.SetDefault("security.tokenttl", "24h")

	v.SetDefault("face.encoderaddr", "face-encoder:50051")
	v.SetDefault("face.encodertimeout", "10s")
	v.SetDefault("face.tolerance", 0.6)
	v.SetDefault("face.cachettl", "10m")
	v.SetDefault("face.maxdimension", 1024)

	v.SetDefault("jobs.orphansweepspec", "0 0 3 * * *")
	v.SetDefault("jobs.orphanminage", "24h")
}
