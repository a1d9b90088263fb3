package bootstrap

import (
	"context"
	"fmt"

	"furusatoReco/business/candidate"
	"furusatoReco/business/feed"
	"furusatoReco/business/poolcache"
	"furusatoReco/business/ranking"
	"furusatoReco/business/scorer"
	"furusatoReco/domain"
	"furusatoReco/internal/repository/catalog"
	"furusatoReco/internal/repository/gemini"
	"furusatoReco/internal/repository/openai"
	psqlRepo "furusatoReco/internal/repository/postgres"
	redisRepo "furusatoReco/internal/repository/redis"
	"furusatoReco/pkg/config"
	"furusatoReco/pkg/database"
	redisdb "furusatoReco/pkg/database/redis"
	"furusatoReco/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App holds the wired services shared by the server and the CLI.
type App struct {
	DB       *gorm.DB
	Redis    *goredis.Client
	Engine   *ranking.Engine
	Feed     *feed.Controller
	Profiles *psqlRepo.ProfileRepository
}

func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitPostgres(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db}

	var sessions feed.SessionStore
	switch cfg.Session.Store {
	case "redis":
		client, err := redisdb.NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		app.Redis = client
		sessions = redisRepo.NewSessionRepository(client, cfg.Session.TTL)
		logger.Info("Session store: redis")
	default:
		sessions = feed.NewMemorySessionStore(cfg.Session.TTL)
		logger.Info("Session store: memory")
	}

	// Candidate pools
	catalogRepo := catalog.NewRakutenRepository(catalog.RakutenConfig{
		BaseURL:           cfg.Catalog.BaseURL,
		ApplicationID:     cfg.Catalog.ApplicationID,
		AffiliateID:       cfg.Catalog.AffiliateID,
		KeywordPrefix:     cfg.Catalog.KeywordPrefix,
		GatewayUsername:   cfg.Catalog.GatewayUsername,
		GatewayPassword:   cfg.Catalog.GatewayPassword,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
	})
	fetcher := candidate.NewFetcher(catalogRepo, candidate.Config{
		MaxCategories:     cfg.Catalog.MaxCategories,
		PerCategoryHits:   cfg.Catalog.PerCategoryHits,
		MaxPoolSize:       cfg.Catalog.MaxPoolSize,
		MinPriceFilter:    cfg.Catalog.MinPriceFilter,
		Concurrency:       cfg.Catalog.Concurrency,
		DefaultCategories: cfg.Catalog.DefaultCategories,
	})
	levels := []poolcache.Level{
		poolcache.EphemeralLevel(poolcache.NewMemoryTier(0), cfg.Cache.EphemeralTTL),
	}
	if cfg.Cache.Persistent {
		levels = append(levels, poolcache.PersistentLevel(psqlRepo.NewCatalogCacheRepository(db), cfg.Cache.PersistentTTL))
	}
	pools := poolcache.NewChain(fetcher, cfg.Cache.PriceBucket, levels...)

	// Scoring and ranking
	backend, err := NewScorerBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	scoreClient := scorer.NewClient(backend, scorer.Config{
		MaxCandidates:   cfg.Scorer.MaxCandidates,
		Attempts:        cfg.Scorer.Attempts,
		BaseDelay:       cfg.Scorer.BaseDelay,
		Timeout:         cfg.Scorer.Timeout,
		BreakerFailures: uint32(cfg.Scorer.BreakerFailures),
		BreakerCooldown: cfg.Scorer.BreakerCooldown,
	})

	modules, err := Modules(cfg)
	if err != nil {
		return nil, err
	}
	app.Engine = ranking.NewEngine(scoreClient, psqlRepo.NewJudgmentModuleRepository(db), modules, RankingConfig(cfg))

	app.Feed = feed.NewController(pools, app.Engine, sessions, feed.Config{MaxDepth: cfg.Session.MaxDepth})
	app.Profiles = psqlRepo.NewProfileRepository(db)
	return app, nil
}

// NewScorerBackend picks the model backend named by SCORER_PROVIDER.
func NewScorerBackend(ctx context.Context, cfg *config.Config) (scorer.Backend, error) {
	switch cfg.Scorer.Provider {
	case "openai":
		return openai.NewBackend(openai.Config{
			BaseURL:         cfg.Scorer.BaseURL,
			APIKey:          cfg.Scorer.APIKey,
			Model:           cfg.Scorer.Model,
			Temperature:     cfg.Scorer.Temperature,
			MaxOutputTokens: cfg.Scorer.MaxOutputTokens,
			Timeout:         cfg.Scorer.Timeout,
		}), nil
	case "gemini":
		return gemini.NewBackend(ctx, gemini.Config{
			APIKey:          cfg.Scorer.APIKey,
			Model:           cfg.Scorer.Model,
			Temperature:     cfg.Scorer.Temperature,
			MaxOutputTokens: cfg.Scorer.MaxOutputTokens,
		})
	default:
		return nil, fmt.Errorf("unknown scorer provider %q", cfg.Scorer.Provider)
	}
}

// Modules is the built-in module table overlaid with the definitions file,
// when one is configured.
func Modules(cfg *config.Config) ([]domain.JudgmentModule, error) {
	base := ranking.DefaultModules()
	if cfg.Ranking.ModulesFile == "" {
		return base, nil
	}
	fromFile, err := config.LoadModules(cfg.Ranking.ModulesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Judgment modules loaded", "file", cfg.Ranking.ModulesFile, "count", len(fromFile))
	return ranking.MergeModules(base, fromFile), nil
}

func RankingConfig(cfg *config.Config) ranking.Config {
	return ranking.Config{
		OutputCap:          cfg.Ranking.OutputCap,
		MinScore:           cfg.Ranking.MinScore,
		RelaxStep:          cfg.Ranking.RelaxStep,
		RelaxFloor:         cfg.Ranking.RelaxFloor,
		PriceTargetDivisor: cfg.Ranking.PriceTargetDivisor,
		PriceFitWidth:      cfg.Ranking.PriceFitWidth,
		ReviewSaturation:   cfg.Ranking.ReviewSaturation,
		GramsPerPerson:     cfg.Ranking.GramsPerPerson,
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := redisdb.CloseRedisClient(a.Redis); err != nil {
			logger.Error("Failed to close redis", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
