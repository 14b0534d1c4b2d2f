package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/octobees/leads-generator/search/internal/cache"
	"github.com/octobees/leads-generator/search/internal/config"
	"github.com/octobees/leads-generator/search/internal/coordination"
	"github.com/octobees/leads-generator/search/internal/database"
	"github.com/octobees/leads-generator/search/internal/handler"
	middlewarepkg "github.com/octobees/leads-generator/search/internal/middleware"
	"github.com/octobees/leads-generator/search/internal/places"
	"github.com/octobees/leads-generator/search/internal/repository"
	"github.com/octobees/leads-generator/search/internal/router"
	"github.com/octobees/leads-generator/search/internal/service"
	"github.com/octobees/leads-generator/search/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer pool.Close()

	store, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer store.Close()

	keys, err := places.NewKeyRing(cfg.PlacesAPIKeys)
	if err != nil {
		log.Fatalf("failed to load places credentials: %v", err)
	}

	breaker := coordination.NewCircuitBreaker(store, "google-places", cfg.BreakerFailures, cfg.BreakerReset)
	inflight := coordination.NewInflightLimiter(store, "google-places", cfg.MaxInflight, cfg.RequestTimeout)
	locks := coordination.NewLock(store)
	userLimiter := coordination.NewSlidingWindowLimiter(store, cfg.RateLimitSearch.Requests, cfg.RateLimitSearch.Interval)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	gateway := places.NewGateway(httpClient, keys, breaker, inflight, cfg.PlacesBaseURL)

	placesRepo := repository.NewPGXPlacesRepository(pool)
	billingRepo := repository.NewPGXBillingRepository(pool)
	searchCacheRepo := repository.NewPGXSearchCacheRepository(pool)

	enricher := service.NewWorkerEnricher(nil, cfg.EnrichBaseURL)

	taskPool, err := worker.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		log.Fatalf("failed to create worker pool: %v", err)
	}
	defer taskPool.Release()

	orchestrator := service.NewOrchestrator(service.Deps{
		Store:       store,
		Locks:       locks,
		UserLimiter: userLimiter,
		Gateway:     gateway,
		Places:      placesRepo,
		Billing:     billingRepo,
		Durable:     searchCacheRepo,
		Enricher:    enricher,
		Pool:        taskPool,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, router.Handlers{
		Search: handler.NewSearchHandler(orchestrator),
		Jobs:   handler.NewJobsHandler(orchestrator),
		Places: handler.NewPlacesHandler(orchestrator),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
