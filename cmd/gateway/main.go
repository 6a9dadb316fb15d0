package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"estategate/global"
	"estategate/logger"
	"estategate/middleware"
	secmw "estategate/middleware/security"
	"estategate/service/gateway"
	"estategate/service/storage"
	"estategate/tools/ids"
)

func main() {
	cfg, err := global.Load()
	if err != nil {
		logger.Errorf("[main] config: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(cfg.NodeID)

	ctx := context.Background()
	if err := storage.InitRedis(ctx, storage.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Errorf("[main] redis: %v", err)
		os.Exit(1)
	}
	if err := storage.InitMongo(ctx, storage.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	}); err != nil {
		logger.Errorf("[main] mongo: %v", err)
		os.Exit(1)
	}

	identities, err := storage.NewIdentityProvider()
	if err != nil {
		logger.Errorf("[main] identities: %v", err)
		os.Exit(1)
	}
	convs, err := storage.NewConversationStore()
	if err != nil {
		logger.Errorf("[main] conversations: %v", err)
		os.Exit(1)
	}
	notifs, err := storage.NewNotificationStore()
	if err != nil {
		logger.Errorf("[main] notifications: %v", err)
		os.Exit(1)
	}
	cache := storage.NewRecentCache(1000)

	srv := gateway.NewServer(gateway.Options{
		Identities:    identities,
		Conversations: convs,
		Notifications: notifs,
		Mirror:        storage.NewPresenceMirror(cfg.PresenceTTL),
		RecentCache:   cache,
		Offline:       storage.NewOfflineQueue(10000),

		JWTSecret: cfg.JWTSecret,
		JWTAlg:    cfg.JWTAlg,

		HandshakeTimeout: cfg.HandshakeTimeout,
		StoreTimeout:     cfg.StoreTimeout,
		TypingTTL:        cfg.TypingTTL,
		PingInterval:     cfg.PingInterval,
		PongTimeout:      cfg.PongTimeout,
		WriteTimeout:     cfg.WriteTimeout,

		SendQueueSize: cfg.SendQueueSize,
		FanoutWorkers: cfg.FanoutWorkers,
		FanoutQueue:   cfg.FanoutQueue,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Origin(cfg.AllowedOrigins))
	r.Use(secmw.Middleware())

	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", healthz)
	r.GET("/debug/recent/:conversation", func(c *gin.Context) {
		n, _ := strconv.Atoi(c.DefaultQuery("n", "50"))
		msgs, err := cache.Tail(c.Request.Context(), c.Param("conversation"), n)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	})

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	go func() {
		logger.Infof("[main] gateway listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[main] listen: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[main] shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(sctx)
	srv.Close()
}

func healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	redisOK, mongoOK := true, true
	if err := storage.Redis().Ping(ctx).Err(); err != nil {
		redisOK = false
		status = http.StatusServiceUnavailable
	}
	if err := storage.Mongo().Client().Ping(ctx, nil); err != nil {
		mongoOK = false
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"redis": redisOK, "mongo": mongoOK})
}
