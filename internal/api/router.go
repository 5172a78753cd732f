package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faceanon/engine/internal/api/handlers"
	"github.com/faceanon/engine/internal/api/ws"
	"github.com/faceanon/engine/internal/queue"
	"github.com/faceanon/engine/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Jobs
	jobH := handlers.NewJobHandler(cfg.DB, cfg.Producer)
	v1.POST("/jobs", jobH.Create)
	v1.GET("/jobs", jobH.List)
	v1.GET("/jobs/:id", jobH.Get)
	v1.POST("/jobs/:id/cancel", jobH.Cancel)
	v1.DELETE("/jobs/:id", jobH.Delete)
	v1.GET("/jobs/:id/identities", jobH.ListIdentities)
	v1.POST("/jobs/:id/identities/select", jobH.SelectIdentities)

	return r
}
