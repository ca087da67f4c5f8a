package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SourceREST     = "rest"
	SourcePostgres = "postgres"
)

var (
	ErrMissingSupabaseURL = errors.New("SUPABASE_URL is not set")
	ErrMissingSupabaseKey = errors.New("SUPABASE_KEY is not set")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres source")
	ErrUnknownSource      = errors.New("unknown data source")
)

// Config — корневая структура конфигурации reqview.
type Config struct {
	Source   string         `mapstructure:"source"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Client   ClientConfig   `mapstructure:"client"`
	CB       BreakerConfig  `mapstructure:"cb"`
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// SupabaseConfig — точка входа сервиса и ключ доступа.
type SupabaseConfig struct {
	URL       string `mapstructure:"url"`
	Key       string `mapstructure:"key"`
	JWTSecret string `mapstructure:"jwt_secret"` // Нужен только для авторизации в serve
}

// DatabaseConfig описывает прямое подключение к Postgres проекта.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig описывает подключение к Redis (кэш ответов).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // 0 — кэш выключен
}

// ClientConfig — таймауты и лимиты запросов к PostgREST.
type ClientConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   uint          `mapstructure:"retries"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

// BreakerConfig — настройки Circuit Breaker.
type BreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures uint32        `mapstructure:"max_failures"`
}

// ServerConfig описывает настройки HTTP-сервера (команда serve).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type loadOptions struct {
	envFile    string
	configDirs []string
}

type Option func(*loadOptions)

// WithEnvFile задает путь к dotenv-файлу (по умолчанию ".env").
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// WithConfigDirs переопределяет каталоги поиска config.yaml.
func WithConfigDirs(dirs ...string) Option {
	return func(o *loadOptions) { o.configDirs = dirs }
}

// LoadConfig собирает конфигурацию: ENV > .env > config.yaml > дефолты.
// Значения не валидируются, для этого есть Validate.
func LoadConfig(opts ...Option) (*Config, error) {
	o := loadOptions{envFile: ".env", configDirs: []string{".", "./configs"}}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range o.configDirs {
		v.AddConfigPath(dir)
	}

	// SUPABASE_URL перекроет supabase.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindAliases(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// .env сливается поверх yaml, но ниже реального окружения
	if o.envFile != "" {
		if err := mergeEnvFile(v, o.envFile); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))

	return &cfg, nil
}

// Validate проверяет обязательные значения до создания клиента.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceREST:
		if c.Supabase.URL == "" {
			errs = append(errs, ErrMissingSupabaseURL)
		}
		if c.Supabase.Key == "" {
			errs = append(errs, ErrMissingSupabaseKey)
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSource, c.Source))
	}
	return errors.Join(errs...)
}

// bindAliases привязывает ключи, у которых имя в ENV не совпадает с путем в конфиге.
func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("source", "REQVIEW_SOURCE")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceREST)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("supabase.jwt_secret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.retries", 3)
	v.SetDefault("client.rate_limit", 10)
	v.SetDefault("client.rate_burst", 5)
	v.SetDefault("cb.max_requests", 3)
	v.SetDefault("cb.interval", 5*time.Second)
	v.SetDefault("cb.timeout", 30*time.Second)
	v.SetDefault("cb.max_failures", 5)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// mergeEnvFile читает dotenv-файл отдельным viper и кладет значения
// в конфиг, если такой переменной нет в реальном окружении.
func mergeEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // Файла нет — работаем на ENV и дефолтах
		}
		return fmt.Errorf("stat env file: %w", err)
	}

	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading env file %s: %w", path, err)
	}

	aliases := map[string]string{"reqview_source": "source"}
	// viper приводит ключи dotenv к нижнему регистру
	for _, envKey := range ev.AllKeys() {
		if val, set := os.LookupEnv(strings.ToUpper(envKey)); set && val != "" {
			continue
		}
		key, ok := aliases[envKey]
		if !ok {
			key = envKeyToPath(envKey)
		}
		v.Set(key, ev.Get(envKey))
	}
	return nil
}

// envKeyToPath: supabase_url -> supabase.url, server_read_timeout -> server.read_timeout
func envKeyToPath(envKey string) string {
	section, rest, found := strings.Cut(envKey, "_")
	if !found {
		return envKey
	}
	return section + "." + rest
}
