package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Security  SecurityConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	MinIO     MinIOConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type SecurityConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	PoolSize       int
	Timeout        time.Duration
	MemoryFallback bool
}

// URI builds the connection string with escaped credentials.
func (d DBConfig) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/",
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type CORSConfig struct {
	Origins []string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Bootstrap holds the inputs of the database provisioning command.
type Bootstrap struct {
	URI          string
	RootUsername string
	RootPassword string
	Database     string
	Timeout      time.Duration
}

// loadDotenv reads DOTENV_PATH (default .env) when the file exists; real
// environment variables always win.
func loadDotenv() {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

// LoadConfig loads API configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	loadDotenv()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SECURITY_ACCESS_TOKEN_EXPIRE_DAYS", 30)
	v.SetDefault("SECURITY_REFRESH_TOKEN_EXPIRE_DAYS", 60)
	setDBDefaults(v)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost,http://localhost:3000,http://localhost:9000")
	v.SetDefault("MINIO_BUCKET", "marketplace")
	v.SetDefault("KAFKA_TOPIC", "marketplace.transactions")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:       v.GetString("SECURITY_JWT_SECRET_KEY"),
			AccessTokenTTL:  time.Duration(v.GetInt("SECURITY_ACCESS_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour,
			RefreshTokenTTL: time.Duration(v.GetInt("SECURITY_REFRESH_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour,
		},
		DB: dbFrom(v),
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		CORS: CORSConfig{
			Origins: SplitCSV(v.GetString("CORS_ORIGINS")),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Kafka: KafkaConfig{
			Brokers: SplitCSV(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
	}

	if err := requireSet(map[string]string{
		"SECURITY_JWT_SECRET_KEY": cfg.Security.JWTSecret,
		"DB_USER":                 cfg.DB.User,
		"DB_PASSWORD":             cfg.DB.Password,
		"DB_NAME":                 cfg.DB.Name,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDBDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 27017)
	v.SetDefault("DB_POOL_SIZE", 100)
	v.SetDefault("DB_TIMEOUT", 10)
}

func dbFrom(v *viper.Viper) DBConfig {
	d := DBConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		PoolSize:       v.GetInt("DB_POOL_SIZE"),
		Timeout:        time.Duration(v.GetInt("DB_TIMEOUT")) * time.Second,
		MemoryFallback: v.GetBool("DB_MEMORY_FALLBACK"),
	}
	if d.PoolSize < 1 {
		d.PoolSize = 1
	}
	return d
}

// LoadDatabase loads only the database settings; used by the maintenance
// commands, which do not need the API secrets.
func LoadDatabase() (*DBConfig, error) {
	loadDotenv()

	v := viper.New()
	v.AutomaticEnv()
	setDBDefaults(v)
	d := dbFrom(v)
	if err := requireSet(map[string]string{
		"DB_USER":     d.User,
		"DB_PASSWORD": d.Password,
		"DB_NAME":     d.Name,
	}); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadBootstrap loads the provisioning inputs. The root credentials and the
// database name have no defaults.
func LoadBootstrap() (*Bootstrap, error) {
	loadDotenv()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("BOOTSTRAP_MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("BOOTSTRAP_TIMEOUT", 30)

	b := &Bootstrap{
		URI:          v.GetString("BOOTSTRAP_MONGODB_URI"),
		RootUsername: v.GetString("MONGO_INITDB_ROOT_USERNAME"),
		RootPassword: v.GetString("MONGO_INITDB_ROOT_PASSWORD"),
		Database:     v.GetString("MONGO_INITDB_DATABASE"),
		Timeout:      time.Duration(v.GetInt("BOOTSTRAP_TIMEOUT")) * time.Second,
	}
	if err := requireSet(map[string]string{
		"MONGO_INITDB_ROOT_USERNAME": b.RootUsername,
		"MONGO_INITDB_ROOT_PASSWORD": b.RootPassword,
		"MONGO_INITDB_DATABASE":      b.Database,
	}); err != nil {
		return nil, err
	}
	return b, nil
}

func requireSet(vals map[string]string) error {
	var missing []string
	for k, v := range vals {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}

// SplitCSV splits a comma separated list, trimming blanks.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
