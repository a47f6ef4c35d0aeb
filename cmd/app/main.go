package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"drops-backend/internal/common/config"
	"drops-backend/internal/common/logger"
	"drops-backend/internal/common/middleware"
	channelhttp "drops-backend/internal/features/channel/delivery/http"
	channelmodels "drops-backend/internal/features/channel/models"
	channelrepo "drops-backend/internal/features/channel/repository/postgres"
	drawrepo "drops-backend/internal/features/draw/repository/postgres"
	giveawayhttp "drops-backend/internal/features/giveaway/delivery/http"
	giveawayrepo "drops-backend/internal/features/giveaway/repository/postgres"
	giveawayservice "drops-backend/internal/features/giveaway/service"
	identityhttp "drops-backend/internal/features/identity/delivery/http"
	identityrepo "drops-backend/internal/features/identity/repository/postgres"
	ledgerhttp "drops-backend/internal/features/ledger/delivery/http"
	ledgerrepo "drops-backend/internal/features/ledger/repository/postgres"
	ledgerservice "drops-backend/internal/features/ledger/service"
	rewardhttp "drops-backend/internal/features/reward/delivery/http"
	rewardrepo "drops-backend/internal/features/reward/repository/postgres"
	rewardservice "drops-backend/internal/features/reward/service"
	triggerrepo "drops-backend/internal/features/trigger/repository/postgres"
	watchrepo "drops-backend/internal/features/watchtime/repository/postgres"
	"drops-backend/internal/platform/db"
	"drops-backend/internal/platform/helix"
	platformredis "drops-backend/internal/platform/redis"
	"drops-backend/internal/workers"
)

func main() {
	cfg := config.Load()
	logger.Init("drops-backend", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// База данных
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, database); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}
	log.Info().Msg("Database connection established")

	// Redis: через стрим уходят объявления в чат и личные уведомления
	redisClient, err := platformredis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	publisher := workers.NewEventPublisher(redisClient, cfg.Redis.StreamKey, logger.With("events"))

	// Twitch Helix: статус стрима и клипы
	helixClient := helix.NewClient(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret)

	// Репозитории
	rewards := rewardrepo.NewRewardRepository(database)
	draws := drawrepo.NewDrawRepository(database)
	triggers := triggerrepo.NewTriggerRepository(database)
	watch := watchrepo.NewWatchTimeRepository(database)
	identity := identityrepo.NewIdentityRepository(database)
	channels := channelrepo.NewChannelRepository(database)
	planned := giveawayrepo.NewGiveawayRepository(database)
	ledgerRepository := ledgerrepo.NewLedgerRepository(database)

	// Сервисы
	ledgerSvc := ledgerservice.NewLedgerService(ledgerRepository, logger.With("ledger"))
	registry := giveawayservice.NewRegistry()

	// По оркестратору на каждый канал из конфига
	var orchestrators []*giveawayservice.Orchestrator
	for _, login := range cfg.Twitch.Channels {
		ch, err := channels.Ensure(ctx, login)
		if err != nil {
			log.Fatal().Err(err).Str("channel", login).Msg("Failed to register channel")
		}
		settings, err := channels.Settings(ctx, ch.ID)
		if err != nil {
			log.Fatal().Err(err).Str("channel", login).Msg("Failed to load channel settings")
		}

		o := giveawayservice.NewOrchestrator(giveawayservice.Deps{
			Channel:   *ch,
			Settings:  resolveSettings(cfg, settings),
			Logger:    logger.With("orchestrator"),
			Draws:     draws,
			Rewards:   rewards,
			Triggers:  triggers,
			Watch:     watch,
			Identity:  identity,
			Planned:   planned,
			Ledger:    ledgerSvc,
			Selector:  rewardservice.NewSelector(rand.New(rand.NewSource(time.Now().UnixNano()))),
			Rng:       rand.New(rand.NewSource(time.Now().UnixNano() + ch.ID)),
			Announcer: publisher,
			Notifier:  publisher,
			Live:      helixClient,
			Clips:     helixClient,
		})
		registry.Add(login, o)
		orchestrators = append(orchestrators, o)
	}

	var wg sync.WaitGroup
	for _, o := range orchestrators {
		wg.Add(1)
		go func(o *giveawayservice.Orchestrator) {
			defer wg.Done()
			o.Run(ctx)
		}(o)
	}
	log.Info().Int("channels", len(orchestrators)).Msg("Orchestrators started")

	// HTTP
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(logger.With("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AdminAuth(cfg.Server.AdminToken))
	rewardhttp.NewHandler(rewards).RegisterRoutes(v1)
	ledgerhttp.NewHandler(ledgerSvc).RegisterRoutes(v1)
	channelhttp.NewHandler(channels).RegisterRoutes(v1)
	identityhttp.NewHandler(identity).RegisterRoutes(v1)
	giveawayhttp.NewHandler(registry, triggers, planned, channels, draws).RegisterRoutes(v1)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "drops-backend",
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.Status(http.StatusOK)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Оркестраторы уже получили отмену контекста, дожидаемся их
	wg.Wait()
	log.Info().Msg("Server exited")
}

// resolveSettings накладывает channel_settings поверх глобальных дефолтов.
func resolveSettings(cfg *config.Config, overrides *channelmodels.Settings) giveawayservice.Settings {
	minutes := func(override *int, def int) time.Duration {
		if override != nil {
			def = *override
		}
		return time.Duration(def) * time.Minute
	}
	return giveawayservice.Settings{
		MinInterval:     minutes(overrides.MinIntervalMinutes, cfg.Giveaway.MinIntervalMinutes),
		MaxInterval:     minutes(overrides.MaxIntervalMinutes, cfg.Giveaway.MaxIntervalMinutes),
		ActiveTimeout:   minutes(overrides.ActiveTimeoutMinutes, cfg.Giveaway.ActiveTimeoutMinutes),
		ClaimTimeout:    minutes(overrides.ClaimTimeoutMinutes, cfg.Giveaway.ClaimTimeoutMinutes),
		StreamCheck:     time.Duration(cfg.Giveaway.StreamCheckIntervalSec) * time.Second,
		TriggerPoll:     time.Duration(cfg.Giveaway.TriggerPollIntervalSec) * time.Second,
		ExpireInterval:  time.Duration(cfg.Giveaway.ExpireIntervalSec) * time.Second,
		SessionEligible: int64(cfg.Giveaway.SessionEligibleSeconds),
		WatchMaxGap:     time.Duration(cfg.Giveaway.WatchMaxGapSeconds) * time.Second,
		DropsEnabled:    overrides.DropsEnabled,
	}
}
