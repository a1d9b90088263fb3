package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Scorer   ScorerConfig
	Cache    CacheConfig
	Ranking  RankingConfig
	Session  SessionConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port         string
	AllowOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	PoolSize      int
	MinIdleConns  int
}

// CatalogConfig drives the marketplace item search adapter and the fetcher.
type CatalogConfig struct {
	BaseURL           string
	ApplicationID     string
	AffiliateID       string
	KeywordPrefix     string
	GatewayUsername   string
	GatewayPassword   string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxCategories     int
	PerCategoryHits   int
	MaxPoolSize       int
	MinPriceFilter    int
	Concurrency       int
	DefaultCategories []string
}

type ScorerConfig struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	MaxCandidates   int
	Attempts        int
	BaseDelay       time.Duration
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

type CacheConfig struct {
	EphemeralTTL  time.Duration
	PersistentTTL time.Duration
	PriceBucket   int
	Persistent    bool
}

type RankingConfig struct {
	ModulesFile        string
	OutputCap          int
	MinScore           float64
	RelaxStep          float64
	RelaxFloor         float64
	PriceTargetDivisor float64
	PriceFitWidth      float64
	ReviewSaturation   int
	GramsPerPerson     int
}

type SessionConfig struct {
	Store    string
	TTL      time.Duration
	MaxDepth int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "furusato-reco"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			AllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "furusato_reco"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisUsername: getEnv("REDIS_USERNAME", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       p.int("REDIS_DB", 0),
			PoolSize:      p.int("REDIS_POOL_SIZE", 20),
			MinIdleConns:  p.int("REDIS_MIN_IDLE_CONNS", 2),
		},
		Catalog: CatalogConfig{
			BaseURL:           getEnv("CATALOG_BASE_URL", "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601"),
			ApplicationID:     getEnv("CATALOG_APPLICATION_ID", ""),
			AffiliateID:       getEnv("CATALOG_AFFILIATE_ID", ""),
			KeywordPrefix:     getEnv("CATALOG_KEYWORD_PREFIX", "ふるさと納税"),
			GatewayUsername:   getEnv("CATALOG_GATEWAY_USERNAME", ""),
			GatewayPassword:   getEnv("CATALOG_GATEWAY_PASSWORD", ""),
			Timeout:           p.duration("CATALOG_TIMEOUT", 5*time.Second),
			RequestsPerSecond: p.float("CATALOG_RPS", 1),
			MaxCategories:     p.int("CATALOG_MAX_CATEGORIES", 5),
			PerCategoryHits:   p.int("CATALOG_PER_CATEGORY_HITS", 30),
			MaxPoolSize:       p.int("CATALOG_MAX_POOL_SIZE", 150),
			MinPriceFilter:    p.int("CATALOG_MIN_PRICE_FILTER", 3000),
			Concurrency:       p.int("CATALOG_CONCURRENCY", 4),
			DefaultCategories: splitList(getEnv("CATALOG_DEFAULT_CATEGORIES", "肉,海鮮,米,果物,スイーツ")),
		},
		Scorer: ScorerConfig{
			Provider:        getEnv("SCORER_PROVIDER", "gemini"),
			APIKey:          getEnv("SCORER_API_KEY", ""),
			BaseURL:         getEnv("SCORER_BASE_URL", "https://api.openai.com/v1"),
			Model:           getEnv("SCORER_MODEL", "gemini-2.0-flash"),
			Temperature:     p.float("SCORER_TEMPERATURE", 0),
			MaxOutputTokens: p.int("SCORER_MAX_OUTPUT_TOKENS", 4096),
			MaxCandidates:   p.int("SCORER_MAX_CANDIDATES", 30),
			Attempts:        p.int("SCORER_ATTEMPTS", 3),
			BaseDelay:       p.duration("SCORER_BASE_DELAY", 500*time.Millisecond),
			Timeout:         p.duration("SCORER_TIMEOUT", 20*time.Second),
			BreakerFailures: p.int("SCORER_BREAKER_FAILURES", 5),
			BreakerCooldown: p.duration("SCORER_BREAKER_COOLDOWN", time.Minute),
		},
		Cache: CacheConfig{
			EphemeralTTL:  p.duration("CACHE_EPHEMERAL_TTL", 15*time.Minute),
			PersistentTTL: p.duration("CACHE_PERSISTENT_TTL", 7*24*time.Hour),
			PriceBucket:   p.int("CACHE_PRICE_BUCKET", 5000),
			Persistent:    p.bool("CACHE_PERSISTENT_ENABLED", true),
		},
		Ranking: RankingConfig{
			ModulesFile:        getEnv("RANKING_MODULES_FILE", ""),
			OutputCap:          p.int("RANKING_OUTPUT_CAP", 9),
			MinScore:           p.float("RANKING_MIN_SCORE", 70),
			RelaxStep:          p.float("RANKING_RELAX_STEP", 20),
			RelaxFloor:         p.float("RANKING_RELAX_FLOOR", 0),
			PriceTargetDivisor: p.float("RANKING_PRICE_TARGET_DIVISOR", 3),
			PriceFitWidth:      p.float("RANKING_PRICE_FIT_WIDTH", 0.5),
			ReviewSaturation:   p.int("RANKING_REVIEW_SATURATION", 1000),
			GramsPerPerson:     p.int("RANKING_GRAMS_PER_PERSON", 1000),
		},
		Session: SessionConfig{
			Store:    getEnv("SESSION_STORE", "memory"),
			TTL:      p.duration("SESSION_TTL", 24*time.Hour),
			MaxDepth: p.int("SESSION_MAX_DEPTH", 5),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.Catalog.ApplicationID == "" {
		return nil, errors.New("missing catalog application id")
	}

	if cfg.Catalog.MaxCategories <= 0 || cfg.Catalog.MaxCategories > 10 {
		return nil, errors.New("catalog max categories must be between 1 and 10")
	}

	switch cfg.Scorer.Provider {
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("unknown scorer provider %q", cfg.Scorer.Provider)
	}

	if cfg.Scorer.APIKey == "" {
		return nil, errors.New("missing scorer api key")
	}

	if cfg.Scorer.Attempts < 1 {
		return nil, errors.New("scorer attempts must be at least 1")
	}

	if cfg.Scorer.BreakerFailures < 1 {
		return nil, errors.New("scorer breaker failures must be at least 1")
	}

	switch cfg.Session.Store {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	return cfg, nil
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=Asia/Tokyo",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser reads typed env values and keeps the first error.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}
