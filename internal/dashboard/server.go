package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"salesflow/config"
	"salesflow/internal/cache"
	"salesflow/internal/metrics"
	"salesflow/internal/poller"
	"salesflow/internal/slideshow"
	"salesflow/logger"
)

//go:embed templates/*.tmpl assets/*
var embeddedFS embed.FS

// Poller is the part of the poll loop the dashboard drives.
type Poller interface {
	Refresh(ctx context.Context) bool
	InFlight() bool
	Subscribe(fn poller.Listener) func()
}

// Slides is the slideshow controller surface exposed over HTTP.
type Slides interface {
	State() slideshow.State
	Next() slideshow.State
	Prev() slideshow.State
	GoTo(index int) (slideshow.State, bool)
	Pause() slideshow.State
	Resume() slideshow.State
}

// Deps are the components the dashboard presents. Slides may be nil when the
// slideshow is disabled.
type Deps struct {
	Poller Poller
	Store  cache.Store
	Slides Slides
}

// Server hosts the sales dashboard: the HTML page, the JSON API, the
// websocket feed and the Prometheus endpoint.
type Server struct {
	cfg               config.DashboardConfig
	appName           string
	collection        config.CollectionConfig
	recentLimit       int
	prometheus        bool
	log               *logger.Log
	deps              Deps
	metricStore       *metricStore
	logStore          *logStore
	metricHandler     metrics.MetricHandlerID
	unsubscribe       func()
	hub               *hub
	httpServer        *http.Server
	refreshIntervalMs int
	resourceSampler   *resourceSampler
	now               func() time.Time
}

// NewServer constructs the dashboard server. It returns nil when the
// dashboard is disabled.
func NewServer(cfg *config.Config, log *logger.Log, deps Deps) (*Server, error) {
	dc := cfg.Dashboard
	if !dc.Enabled {
		return nil, nil
	}
	if deps.Poller == nil || deps.Store == nil {
		return nil, errors.New("dashboard requires a poller and a snapshot store")
	}

	dc.Address = normalizeAddress(dc.Address)
	if dc.RefreshInterval <= 0 {
		dc.RefreshInterval = 5 * time.Second
	}
	if dc.LogHistory <= 0 {
		dc.LogHistory = 200
	}
	if dc.MetricsHistory <= 0 {
		dc.MetricsHistory = 200
	}

	metricStore := newMetricStore(dc.MetricsHistory)
	logStore := newLogStore(dc.LogHistory)
	log.AddHook(logStore)

	s := &Server{
		cfg:               dc,
		appName:           cfg.Salesflow.Name,
		collection:        cfg.Collection,
		recentLimit:       cfg.Poller.RecentSalesLimit,
		prometheus:        cfg.Metrics.Prometheus,
		log:               log,
		deps:              deps,
		metricStore:       metricStore,
		logStore:          logStore,
		metricHandler:     metrics.RegisterMetricHandler(metricStore.handle),
		hub:               newHub(log),
		refreshIntervalMs: int(dc.RefreshInterval / time.Millisecond),
		resourceSampler:   newResourceSampler(dc.MetricsHistory, dc.RefreshInterval, "/", log),
		now:               time.Now,
	}
	s.unsubscribe = deps.Poller.Subscribe(s.broadcastSnapshot)
	return s, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	if err := s.resourceSampler.start(ctx); err != nil {
		s.log.WithComponent("dashboard").WithError(err).Warn("resource sampler not started")
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithComponent("dashboard").WithFields(logger.Fields{"address": s.cfg.Address}).Info("dashboard listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.logStore.close()
	s.resourceSampler.stop()
	s.hub.close()
}

// Address reports the address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	tmpl := template.Must(template.New("dashboard").ParseFS(embeddedFS, "templates/index.tmpl"))
	router.SetHTMLTemplate(tmpl)

	if assetsFS, err := fs.Sub(embeddedFS, "assets"); err == nil {
		router.StaticFS("/assets", http.FS(assetsFS))
	}

	router.GET("/", s.handleIndex)
	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", s.handleWebsocket)

	api := router.Group("/api")
	api.GET("/snapshot", s.handleSnapshot)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/logs", s.handleLogs)
	api.GET("/metrics", s.handleMetrics)
	api.GET("/resources", s.handleResources)

	slides := api.Group("/slides")
	slides.GET("", s.handleSlides)
	slides.POST("/next", s.handleSlideNext)
	slides.POST("/prev", s.handleSlidePrev)
	slides.POST("/goto/:index", s.handleSlideGoto)
	slides.POST("/pause", s.handleSlidePause)
	slides.POST("/resume", s.handleSlideResume)

	if s.prometheus {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil && parsed.Host != "" {
			addr = parsed.Host
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		if ip := net.ParseIP(addr); ip != nil || !strings.Contains(addr, ":") {
			return net.JoinHostPort(addr, "8080")
		}
		return addr
	}
	if host == "" || host == "*" {
		host = "0.0.0.0"
	}
	if port == "" {
		port = "8080"
	}
	return net.JoinHostPort(host, port)
}
