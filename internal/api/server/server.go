package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "genai-chat/docs" // swagger spec
	"genai-chat/internal/api/middleware"
	v1routes "genai-chat/internal/api/v1/routes"
)

const shutdownGrace = 10 * time.Second

// Config holds the listen address and HTTP timeouts of the gateway.
type Config struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
	CORSOrigins  []string
}

// Server serves the chat gateway over HTTP.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the router and HTTP server. gatherer backs GET /metrics
// and may be nil.
func NewServer(
	config Config,
	container *v1routes.ServiceContainer,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(config, container, gatherer, logger)
	return &Server{
		config: config,
		router: router,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(config.Host, config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: logger,
	}
}

func newRouter(config Config, container *v1routes.ServiceContainer, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	cors := middleware.DefaultCORSConfig()
	if len(config.CORSOrigins) > 0 {
		cors.AllowOrigins = config.CORSOrigins
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.StructuredLogging(logger),
		middleware.ErrorHandler(logger),
		middleware.CORS(cors),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1routes.RegisterRoutes(router.Group("/api/v1"), container)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":       "genai-chat",
			"documentation": "/swagger/index.html",
			"endpoints": gin.H{
				"invoke": "/api/v1/chat/invoke",
				"stream": "/api/v1/chat/stream",
				"batch":  "/api/v1/chat/batch",
				"tokens": "/api/v1/chat/tokens",
				"stats":  "/api/v1/stats",
				"health": "/health",
			},
		})
	})
	return router
}

// Run serves until ctx is done or the listener fails. On cancellation the
// server drains in-flight requests for up to shutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening",
			zap.String("addr", s.httpServer.Addr),
			zap.String("environment", s.config.Environment))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting connections and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("forced shutdown", zap.Error(err))
		return err
	}
	return nil
}

// Router exposes the handler for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
