package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/money"
)

// DefaultDatabaseDSN yerel geliştirme için; production'da mutlaka değiştirilmeli.
const DefaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=kasa port=5432 sslmode=disable"

const DefaultCORSOrigins = "http://localhost:5173"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	// Boşsa şube kilidi process içinde tutulur (tek instance).
	RedisURL string

	Currency string
	// Mutabakatta "minor" sayılan en büyük fark, minor birim.
	VarianceMinorThreshold int64

	AggregateTimeout   time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	LockExpiry     time.Duration
	LockTries      int
	LockRetryDelay time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DSN", DefaultDatabaseDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", DefaultCORSOrigins)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CURRENCY", "TRY")
	v.SetDefault("VARIANCE_MINOR_THRESHOLD", "10")
	v.SetDefault("AGGREGATE_TIMEOUT", "5s")
	v.SetDefault("BREAKER_MAX_FAILURES", 5)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("LOCK_EXPIRY", "10s")
	v.SetDefault("LOCK_TRIES", 20)
	v.SetDefault("LOCK_RETRY_DELAY", "100ms")
}

// Load reads defaults, then an optional kasa.env file (./configs or .), then
// the environment. Every invalid value is reported at once.
func Load() (*Config, error) {
	return load("kasa")
}

func load(name string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(name)
	v.SetConfigType("env")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config dosyası okunamadı (%s): %w", v.ConfigFileUsed(), err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		HTTPPort:           v.GetString("HTTP_PORT"),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSOrigins:        v.GetString("CORS_ALLOWED_ORIGINS"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		RedisURL:           v.GetString("REDIS_URL"),
		Currency:           strings.ToUpper(v.GetString("CURRENCY")),
		AggregateTimeout:   v.GetDuration("AGGREGATE_TIMEOUT"),
		BreakerMaxFailures: v.GetUint32("BREAKER_MAX_FAILURES"),
		BreakerOpenTimeout: v.GetDuration("BREAKER_OPEN_TIMEOUT"),
		LockExpiry:         v.GetDuration("LOCK_EXPIRY"),
		LockTries:          v.GetInt("LOCK_TRIES"),
		LockRetryDelay:     v.GetDuration("LOCK_RETRY_DELAY"),
	}

	var problems []string

	cur, err := cashcount.Lookup(cfg.Currency)
	if err != nil {
		problems = append(problems, fmt.Sprintf("CURRENCY desteklenmiyor (%s)", strings.Join(cashcount.Codes(), ", ")))
	}

	threshold, err := decimal.NewFromString(v.GetString("VARIANCE_MINOR_THRESHOLD"))
	if err != nil || threshold.IsNegative() {
		problems = append(problems, "VARIANCE_MINOR_THRESHOLD sıfır veya pozitif bir sayı olmalı")
	} else if cur.Code != "" {
		minor, err := money.FromDecimal(threshold, cur.MinorUnits)
		if err != nil {
			problems = append(problems, "VARIANCE_MINOR_THRESHOLD para biriminin hassasiyetini aşıyor")
		}
		cfg.VarianceMinorThreshold = minor
	}

	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, ", "))
	}
	return cfg, nil
}

func (c *Config) validate() []string {
	var problems []string

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET tanımlanmamış")
	} else if len(c.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET en az 32 karakter olmalı")
	}
	if c.HTTPPort == "" {
		problems = append(problems, "HTTP_PORT boş olamaz")
	}
	if c.DatabaseDSN == "" {
		problems = append(problems, "DATABASE_DSN boş olamaz")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "LOG_LEVEL debug|info|warn|error olmalı")
	}
	if c.AggregateTimeout <= 0 {
		problems = append(problems, "AGGREGATE_TIMEOUT sıfırdan büyük olmalı")
	}
	if c.BreakerMaxFailures == 0 {
		problems = append(problems, "BREAKER_MAX_FAILURES sıfırdan büyük olmalı")
	}
	if c.BreakerOpenTimeout <= 0 {
		problems = append(problems, "BREAKER_OPEN_TIMEOUT sıfırdan büyük olmalı")
	}
	if c.LockExpiry <= 0 {
		problems = append(problems, "LOCK_EXPIRY sıfırdan büyük olmalı")
	}
	if c.LockTries < 1 {
		problems = append(problems, "LOCK_TRIES en az 1 olmalı")
	}
	if c.LockRetryDelay < 0 {
		problems = append(problems, "LOCK_RETRY_DELAY negatif olamaz")
	}

	return problems
}

// Warnings lists settings that work but should not reach production.
func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDSN == DefaultDatabaseDSN {
		out = append(out, "DATABASE_DSN varsayılan değer kullanılıyor, production için kendi Postgres bağlantı bilgisini tanımla")
	}
	if c.CORSOrigins == DefaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS varsayılan değer kullanılıyor, production için kendi domain'ini tanımla")
	}
	if c.RedisURL == "" {
		out = append(out, "REDIS_URL tanımlı değil, şube kilidi sadece bu process içinde geçerli")
	}
	return out
}
