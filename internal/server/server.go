package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/heliosproject/helios/kernel/internal/api/http"
	"github.com/heliosproject/helios/kernel/internal/api/middleware"
	"github.com/heliosproject/helios/kernel/internal/api/ws"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/config"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/monitoring"
	"github.com/heliosproject/helios/kernel/internal/kernel"
)

const shutdownGrace = 10 * time.Second

// Server wraps the monitor HTTP listener and its dependencies.
type Server struct {
	router *gin.Engine
	http   *http.Server
	log    *logging.Logger
}

// New builds the monitor server. metrics may be nil, which disables the
// Prometheus endpoint and the snapshot route's data source.
func New(cfg *config.Config, log *logging.Logger, k *kernel.Kernel, metrics *monitoring.Metrics) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	if metrics != nil {
		router.Use(monitoring.Middleware(metrics))
	}

	handlers := apihttp.NewHandlers(k, metrics, log)
	stream := ws.NewHandler(k, metrics, log)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/processes", handlers.ListProcesses)
	router.GET("/processes/:pid", handlers.GetProcess)
	router.GET("/scheduler", handlers.SchedulerStats)
	router.GET("/syscalls", handlers.SyscallStats)
	router.GET("/metrics/snapshot", handlers.MetricsSnapshot)
	router.POST("/input", handlers.FeedInput)
	router.GET("/stream", stream.HandleConnection)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
		log: log,
	}
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("monitor listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("monitor shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }
