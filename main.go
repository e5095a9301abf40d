package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"salesflow/config"
	"salesflow/internal/cache"
	"salesflow/internal/dashboard"
	"salesflow/internal/metrics"
	"salesflow/internal/poller"
	"salesflow/internal/slideshow"
	"salesflow/logger"
	"salesflow/reader/marketplace"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	// Raw APP_ENV and LOG_LEVEL are logged next to the normalised env so a
	// mistyped override is visible at startup.
	env := config.AppEnvironment()
	log.WithEnv("APP_ENV", "LOG_LEVEL").WithFields(logger.Fields{
		"service":    cfg.Salesflow.Name,
		"version":    cfg.Salesflow.Version,
		"collection": cfg.Collection.Slug,
		"env":        env,
	}).Info("starting salesflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		logger.InitCloudWatch(ctx, logger.CloudWatchOptions{
			Region:          cw.Region,
			Namespace:       cw.Namespace,
			Dashboard:       cw.Dashboard,
			AccessKeyID:     cw.AccessKeyID,
			SecretAccessKey: cw.SecretAccessKey,
		})
		logger.CreateDefaultDashboard(ctx)
	}

	if cfg.Metrics.Prometheus {
		metrics.Init()
	}

	store := newStore(ctx, cfg, env, log)
	defer store.Close()

	client := marketplace.NewClient(cfg)

	poll := poller.New(cfg, client, store)

	// Slides stays a nil interface when the slideshow is disabled.
	var slides dashboard.Slides
	var show *slideshow.Controller
	if cfg.Slideshow.Enabled {
		show = slideshow.New(cfg, client)
		slides = show
	}

	dash, err := dashboard.NewServer(cfg, log, dashboard.Deps{Poller: poll, Store: store, Slides: slides})
	if err != nil {
		log.WithError(err).Error("failed to create dashboard")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	if err := poll.Start(ctx); err != nil {
		log.WithError(err).Error("poller failed to start")
		os.Exit(1)
	}

	if show != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := show.Start(ctx); err != nil {
				log.WithError(err).Warn("slideshow failed to start")
			}
		}()
	}

	if dash != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dash.Run(ctx); err != nil {
				log.WithError(err).Error("dashboard stopped with error")
			}
		}()
	} else {
		log.WithComponent("main").Info("dashboard disabled")
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping poller")
	poll.Stop()

	if show != nil {
		log.Info("stopping slideshow")
		show.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("salesflow stopped")
}

// newStore connects to Redis when enabled and falls back to the in-process
// store otherwise. Snapshots expire after two poll intervals so a stalled
// poller is not mistaken for fresh data.
func newStore(ctx context.Context, cfg *config.Config, env string, log *logger.Log) cache.Store {
	rc := cfg.Cache.Redis
	if rc.Enabled {
		ttl := 2 * cfg.Poller.Interval
		rs, err := cache.NewRedisStore(ctx, rc.Addr, rc.Password, rc.DB, rc.Key, ttl)
		if err == nil {
			log.WithComponent("main").WithFields(logger.Fields{"addr": rc.Addr, "key": rc.Key}).Info("using redis snapshot store")
			return rs
		}
		log.WithComponent("main").WithError(err).Warn("redis unavailable, using in-memory snapshot store")
	}
	if config.IsProductionLike(env) {
		log.WithComponent("main").Warn("in-memory snapshot store in use; snapshots are lost on restart")
	}
	return cache.NewMemoryStore()
}
