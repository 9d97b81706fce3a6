package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "media-notary-backend/docs"
	"media-notary-backend/internal/common/config"
	"media-notary-backend/internal/common/logger"
	"media-notary-backend/internal/common/middleware"
	mintjobhttp "media-notary-backend/internal/features/mintjob/delivery/http"
	"media-notary-backend/internal/features/mintjob/runner"
	mintjobservice "media-notary-backend/internal/features/mintjob/service"
	proofhttp "media-notary-backend/internal/features/proof/delivery/http"
	proofservice "media-notary-backend/internal/features/proof/service"
	purchasehttp "media-notary-backend/internal/features/purchase/delivery/http"
	purchasepg "media-notary-backend/internal/features/purchase/repository/postgres"
	purchaseservice "media-notary-backend/internal/features/purchase/service"
	"media-notary-backend/internal/platform/ledger/ton"
	"media-notary-backend/internal/platform/objectstore"
	"media-notary-backend/internal/platform/postgres"
	"media-notary-backend/internal/platform/redis"
)

// @title           Media Notary API
// @version         1.0
// @description     Proof-of-authenticity lookups, purchase verification and download redemption.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TriggerToken
// @in header
// @name Authorization
// @description Bearer JWT signed with the shared trigger secret

// @tag.name mint-jobs
// @tag.description Proof issuance queue

// @tag.name proofs
// @tag.description Public proof records

// @tag.name purchases
// @tag.description Purchase verification and downloads

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}
	logger.Init("media-notary-api", cfg.Debug)

	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid API configuration")
	}
	if cfg.Queue.Backend == "memory" {
		if err := cfg.ValidateWorker(); err != nil {
			logger.Fatal().Err(err).Msg("Memory queue runs the mint worker in-process; worker configuration is invalid")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewClient(ctx, cfg.Postgres, logger.Component("postgres"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if cfg.Postgres.AutoMigrate {
		if err := postgres.Migrate(ctx, pg.DB()); err != nil {
			logger.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		logger.Info().Msg("Database migrations applied")
	}

	rdb, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	store, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	jobRepo, err := runner.NewJobRepository(cfg.Queue, rdb.Client)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize mint queue")
	}

	proofRepo := runner.NewProofRepository(cfg.Redis, pg.DB(), rdb.Client, logger.Component("proof"))
	purchaseRepo := purchasepg.NewPostgresRepository(pg.DB())

	mintJobSvc := mintjobservice.NewMintJobService(jobRepo, runner.Retention(cfg.Queue), logger.Component("mintjob"))
	proofSvc := proofservice.NewProofService(proofRepo)
	purchaseSvc := purchaseservice.NewPurchaseService(
		purchaseRepo,
		proofRepo,
		ton.NewTonAPI(cfg.Ledger.TonAPIBaseURL, cfg.Ledger.TonAPIToken),
		store,
		purchaseservice.Options{
			FreeSignaturePrefix:    cfg.Purchase.FreeSignaturePrefix,
			SelfPurchaseFeeCeiling: cfg.Purchase.SelfPurchaseFeeCeiling,
			DownloadTTL:            cfg.Purchase.DownloadTTL,
			MaxDownloads:           cfg.Purchase.MaxDownloads,
			PrivateBucket:          cfg.Storage.PrivateBucket,
			SignedURLTTL:           cfg.Storage.SignedURLTTL,
		},
		logger.Component("purchase"),
	)

	workerDone := make(chan struct{})
	if cfg.Queue.Backend != "memory" {
		close(workerDone)
	} else {
		w, err := runner.NewWorker(ctx, cfg, jobRepo, proofRepo, logger.Component("mint"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build embedded mint worker")
		}
		logger.Warn().Msg("Running embedded mint worker on the in-memory queue; queued jobs are lost on restart")
		go func() {
			defer close(workerDone)
			if err := w.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Embedded mint worker stopped")
			}
		}()
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	httpLogger := logger.Component("http")
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(httpLogger))
	router.Use(middleware.ErrorHandler(httpLogger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	mintjobhttp.NewMintJobHandler(mintJobSvc, httpLogger).RegisterRoutes(v1, middleware.TriggerAuth(cfg.Auth.TriggerSecret, httpLogger))
	proofhttp.NewProofHandler(proofSvc, httpLogger).RegisterRoutes(v1)
	purchasehttp.NewPurchaseHandler(purchaseSvc, httpLogger).RegisterRoutes(v1)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "media-notary-api",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := pg.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "postgres unavailable"})
			return
		}
		if err := rdb.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-workerDone

	logger.Info().Msg("Server exited")
}
