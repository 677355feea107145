package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/contribmint/contribmint-api/api/swagger"
	githubadapter "github.com/contribmint/contribmint-api/internal/adapter/github"
	"github.com/contribmint/contribmint-api/internal/adapter/gsoc"
	"github.com/contribmint/contribmint-api/internal/handler"
	"github.com/contribmint/contribmint-api/internal/middleware"
	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/internal/repository"
	"github.com/contribmint/contribmint-api/internal/service"
	"github.com/contribmint/contribmint-api/pkg/cache"
	"github.com/contribmint/contribmint-api/pkg/chain"
	"github.com/contribmint/contribmint-api/pkg/config"
	"github.com/contribmint/contribmint-api/pkg/database"
	"github.com/contribmint/contribmint-api/pkg/jobs"
	"github.com/contribmint/contribmint-api/pkg/logger"
	corsmiddleware "github.com/contribmint/contribmint-api/pkg/middleware/cors"
	reqidmiddleware "github.com/contribmint/contribmint-api/pkg/middleware/requestid"
	"github.com/contribmint/contribmint-api/pkg/signer"
)

// @title ContribMint API
// @version 1.0.0
// @description Contribution lifecycle, peer consensus and mint voucher service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, cfg.Reputation.CacheEnabled)
	if err != nil {
		logr.Warn("redis unavailable, leaderboard cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "contribmint")
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reputation.CacheTTL, logr, redisClient != nil)

	contributionRepo := repository.NewContributionRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	reputationRepo := repository.NewReputationRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	rule := service.ConsensusRule{MinVotes: cfg.Consensus.MinVotes, MinMean: cfg.Consensus.MinMean}
	consensusSvc := service.NewConsensusService(voteRepo, contributionRepo, rule, metricsSvc, validate, logr)
	reputationSvc := service.NewReputationService(reputationRepo, contributionRepo, projectRepo, cacheSvc, cfg.Reputation.CacheTTL, metricsSvc, logr)

	mintSvc := service.NewMintService(contributionRepo, buildSigner(cfg, logr), buildVerifier(ctx, cfg, logr), rule, metricsSvc, validate, logr, service.MintServiceConfig{
		MetadataBaseURL: cfg.Mint.MetadataBaseURL,
		SignTimeout:     cfg.Mint.SignTimeout,
	})

	var source service.SourceAdapter
	githubSource, err := githubadapter.New(githubadapter.Config{Token: cfg.GitHub.Token, BaseURL: cfg.GitHub.BaseURL, SyncLimit: cfg.GitHub.SyncLimit})
	if err != nil {
		logr.Error("github adapter disabled", zap.Error(err))
	} else {
		source = githubSource
	}
	ingestionSvc := service.NewIngestionService(projectRepo, contributionRepo, source, reputationSvc, consensusSvc, metricsSvc, validate, logr)

	syncQueue := jobs.NewQueue("project-sync", ingestionSvc.HandleSyncJob, jobs.QueueConfig{
		Workers:    cfg.Sync.Workers,
		MaxRetries: cfg.Sync.Retries,
		RetryDelay: cfg.Sync.RetryDelay,
		Logger:     logr,
	})
	syncQueue.Start(ctx)
	defer syncQueue.Stop()
	ingestionSvc.UseQueue(syncQueue)

	projectSvc := service.NewProjectService(projectRepo, contributionRepo, source, validate, logr)
	gsocSvc := service.NewGSOCService(gsoc.NewClient(cfg.GSOC.BaseURL, cfg.GSOC.Timeout), projectRepo, validate, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"cache":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	consensusHandler := handler.NewConsensusHandler(consensusSvc)
	mintHandler := handler.NewMintHandler(mintSvc)
	ingestHandler := handler.NewIngestHandler(ingestionSvc)
	reputationHandler := handler.NewReputationHandler(reputationSvc)
	gsocHandler := handler.NewGSOCHandler(gsocSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)

	api := r.Group(cfg.APIPrefix)
	api.GET("/metadata/:id", mintHandler.Metadata)
	api.POST("/ingest", middleware.IngestKey(cfg.Ingest.APIKeyHash), ingestHandler.Ingest)
	api.GET("/projects", projectHandler.List)
	api.GET("/projects/:id", projectHandler.Get)

	authed := api.Group("")
	authed.Use(middleware.JWT(tokenSvc))
	authed.POST("/consensus/votes", consensusHandler.CastVote)
	authed.GET("/contributions", consensusHandler.ListContributions)
	authed.GET("/contributions/:id", consensusHandler.GetContribution)
	authed.GET("/contributions/:id/votes", consensusHandler.ListVotes)
	authed.POST("/mint/vouchers", mintHandler.RequestVoucher)
	authed.POST("/mint/confirmations", mintHandler.ConfirmRedemption)
	authed.GET("/projects/:id/reputation", reputationHandler.Leaderboard)
	authed.GET("/projects/:id/reputation/export", reputationHandler.Export)
	authed.POST("/projects", projectHandler.Submit)
	authed.GET("/projects/:id/insights", projectHandler.Insights)
	authed.GET("/dashboard", projectHandler.Dashboard)

	managers := authed.Group("")
	managers.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleMaintainer))
	managers.POST("/projects/:id/sync", ingestHandler.Sync)
	managers.POST("/projects/:id/reputation/recompute", reputationHandler.Recompute)
	managers.POST("/projects/import", projectHandler.Import)

	sponsors := authed.Group("")
	sponsors.Use(middleware.RequireRoles(models.RoleSponsor))
	sponsors.POST("/projects/:id/sponsor", projectHandler.Sponsor)

	admins := authed.Group("")
	admins.Use(middleware.RequireRoles(models.RoleAdmin))
	admins.POST("/simulate/events", ingestHandler.SimulateEvent)
	admins.POST("/simulate/votes", ingestHandler.SimulateVotes)
	admins.POST("/admin/gsoc/preview", gsocHandler.Preview)
	admins.POST("/admin/gsoc/import", gsocHandler.Import)
	admins.POST("/admin/projects/:id/approve", projectHandler.Approve)
	admins.POST("/admin/projects/:id/reject", projectHandler.Reject)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildSigner returns nil when the typed-data domain is invalid so voucher requests
// fail with a configuration error instead of the process refusing to start.
func buildSigner(cfg *config.Config, logr *zap.Logger) service.VoucherSigner {
	typed, err := signer.New(signer.Domain{
		Name:              cfg.Mint.DomainName,
		Version:           cfg.Mint.DomainVersion,
		ChainID:           cfg.Mint.ChainID,
		VerifyingContract: cfg.Mint.VerifyingContract,
	}, cfg.Mint.SignerKey)
	if err != nil {
		logr.Error("voucher signer disabled", zap.Error(err))
		return nil
	}
	if typed.Address() == "" {
		logr.Warn("MINT_SIGNER_KEY not set, voucher requests will fail")
	} else {
		logr.Info("voucher signer loaded", zap.String("authority", typed.Address()), zap.Int64("chain_id", cfg.Mint.ChainID))
	}
	return typed
}

func buildVerifier(ctx context.Context, cfg *config.Config, logr *zap.Logger) service.RedemptionVerifier {
	if cfg.Chain.RPCURL == "" {
		logr.Warn("CHAIN_RPC_URL not set, redemption confirmation disabled")
		return nil
	}
	verifier, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Mint.VerifyingContract, cfg.Chain.Timeout)
	if err != nil {
		logr.Error("chain client unavailable, redemption confirmation disabled", zap.Error(err))
		return nil
	}
	return verifier
}
