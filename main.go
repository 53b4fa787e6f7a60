package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"mediameld/api"
	"mediameld/config"
	"mediameld/handlers"
	"mediameld/services/cache"
	"mediameld/services/enrich"
	"mediameld/services/fanart"
	"mediameld/services/library"
	"mediameld/services/request"
	"mediameld/services/tmdb"
	"mediameld/services/trakt"
	"mediameld/utils"
)

const upstreamTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default mediameld.toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}
	setupLogging(cfg.Logging)

	store, err := cache.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("[main] open cache: %v", err)
	}
	defer store.Close()
	tiered := cache.NewTieredStore(store)

	breaker := request.NewBreaker()

	svc := enrich.NewService(
		catalogService(cfg, breaker, tiered),
		historyService(cfg, breaker, tiered),
		artworkService(cfg, breaker, tiered),
		libraryService(cfg),
		cfg.Server.Workers,
	)

	router := utils.NewRouter()
	handlers.NewEnrichHandler(svc).RegisterRoutes(router)

	limiter := api.NewIPRateLimiter(rate.Limit(20), 40)
	srv := &http.Server{
		Addr:         cfg.Server.Bind,
		Handler:      api.RateLimitHandler(limiter, router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.Server.Bind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

// setupLogging routes the standard logger through a rotating file when one is
// configured, mirroring to stderr so container logs stay useful.
func setupLogging(cfg config.Logging) {
	if cfg.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func catalogService(cfg *config.Config, breaker *request.Breaker, store cache.Store) enrich.CatalogResolver {
	if cfg.TMDB.APIKey == "" {
		log.Println("[main] tmdb api key not set, catalog details disabled")
		return nil
	}
	return tmdb.NewService(cfg.TMDB.APIKey, cfg.TMDB.Language, breaker, store, upstreamTimeout)
}

func historyService(cfg *config.Config, breaker *request.Breaker, store cache.Store) enrich.HistoryResolver {
	if cfg.Trakt.ClientID == "" {
		log.Println("[main] trakt client id not set, watched state disabled")
		return nil
	}
	return trakt.NewService(cfg.Trakt.ClientID, cfg.Trakt.AccessToken, breaker, store, upstreamTimeout)
}

func artworkService(cfg *config.Config, breaker *request.Breaker, store cache.Store) enrich.ArtworkResolver {
	if cfg.Fanart.APIKey == "" {
		log.Println("[main] fanart api key not set, artwork disabled")
		return nil
	}
	return fanart.NewService(cfg.Fanart.APIKey, breaker, store, upstreamTimeout)
}

func libraryService(cfg *config.Config) enrich.LibraryResolver {
	if cfg.Library.Path == "" {
		return nil
	}
	lib, err := library.NewService(cfg.Library.Path)
	if err != nil {
		log.Printf("[main] open library index: %v", err)
		return nil
	}
	return lib
}
