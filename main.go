package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"personachat/internal/api"
	"personachat/internal/cache"
	"personachat/internal/config"
	"personachat/internal/service/ai"
	"personachat/internal/service/session"
)

func main() {
	cfg, err := config.Load(os.Getenv("PERSONACHAT_CONFIG"))
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store cache.Store
	if cfg.Redis.Enabled() {
		redisStore, err := cache.NewRedis(cfg.Redis.Addr(), cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("connect redis", "error", err)
		}
		defer redisStore.Close()
		store = redisStore
		log.Info("model catalog cache backed by redis", "addr", cfg.Redis.Addr())
	} else {
		store = cache.NewMemory()
	}

	prov, err := cfg.ActiveProvider()
	if err != nil {
		log.Fatal("resolve provider", "error", err)
	}

	aiService, err := ai.New(ctx, cfg)
	if err != nil {
		log.Fatal("init ai service", "error", err)
	}
	catalog := ai.NewCatalog(prov, store, cfg.BasicConfig.CatalogTTL())

	manager := session.NewManager(aiService, session.Config{
		RequestTimeout:  cfg.BasicConfig.RequestTimeout(),
		MaxPromptTokens: cfg.BasicConfig.MaxPromptTokens,
		ModelName:       prov.Model,
		SessionTTL:      cfg.BasicConfig.SessionTTL(),
	})
	manager.StartJanitor(ctx, 10*time.Minute)

	router := gin.Default()
	api.NewHandler(manager, catalog).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.BasicConfig.ServerAddress,
		Handler: router,
	}
	go func() {
		log.Info("listening", "addr", srv.Addr, "provider", cfg.BasicConfig.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
