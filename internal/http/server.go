package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter assembles the gin engine: CORS, health, metrics and the
// operator API.
func NewRouter(handler *Handler, jwtSecret string, registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handler.Register(r, JWTAuth(jwtSecret))
	return r
}

// Server wraps the http.Server lifecycle around the router.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func NewServer(listen string, router *gin.Engine, log zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start serves in a background goroutine; listen failures are logged, not
// fatal, since the API is a convenience surface beside the ingestion loop.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("listen", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Debug().Err(err).Msg("http shutdown")
	}
}
