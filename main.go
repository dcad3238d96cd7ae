package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/pantrysnap/server/api/rest"
	"github.com/pantrysnap/server/api/sse"
	"github.com/pantrysnap/server/audit"
	"github.com/pantrysnap/server/cache"
	"github.com/pantrysnap/server/config"
	dbadapter "github.com/pantrysnap/server/db"
	"github.com/pantrysnap/server/events"
	"github.com/pantrysnap/server/inventory"
	mw "github.com/pantrysnap/server/middleware"
	"github.com/pantrysnap/server/model"
	"github.com/pantrysnap/server/scheduler"
	"github.com/pantrysnap/server/vision"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Vision.APIKey == "" {
		logger.Warn("vision.api_key is not set; image detection will fail against the default endpoint")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Activity log ----
	activity := audit.New(db, logger)
	defer activity.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("activity_prune", time.Hour, func() {
		if err := activity.Prune(cfg.Audit.Retention); err != nil {
			logger.Error("activity prune failed", zap.Error(err))
		}
	})

	// ---- Services ----
	publisher := events.NewPublisher(pubsub, logger)
	invSvc := inventory.NewService(db, logger)
	labeler := vision.NewGoogleLabeler(cfg.Vision)
	intake := inventory.NewIntake(invSvc, labeler, c, cfg.Inventory.BatchTTL, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	invH := apirest.NewInventoryHandler(invSvc, activity, publisher, logger)
	intakeH := apirest.NewIntakeHandler(intake, invSvc, activity, publisher, logger)
	adminH := apirest.NewAdminHandler(db, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/signup", authH.SignUp)
		authG.POST("/signin", authH.SignIn)
		authG.POST("/signout", mw.Auth(cfg.Security, c), authH.SignOut)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		invG := api.Group("/inventory")
		invG.Use(mw.Auth(cfg.Security, c))
		invG.GET("", invH.List)
		invG.POST("/items", invH.AddItem)
		invG.DELETE("/items/:name", invH.RemoveItem)
		invG.GET("/activity", invH.Activity)
		invG.POST("/batches/:id/confirm", intakeH.ConfirmBatch)
		invG.DELETE("/batches/:id", intakeH.DiscardBatch)

		api.POST("/vision/detect", mw.Auth(cfg.Security, c), intakeH.Detect)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/users/:id/disable", adminH.DisableUser)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/api/events", sseH.ServeEvents)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
