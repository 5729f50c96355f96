package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoclaim/internal/api/handlers"
	"github.com/your-org/photoclaim/internal/api/ws"
	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/claims"
	"github.com/your-org/photoclaim/internal/extract"
	"github.com/your-org/photoclaim/internal/queue"
	"github.com/your-org/photoclaim/internal/storage"
)

type RouterConfig struct {
	APIKey    string
	DB        *storage.PostgresStore
	Objects   *storage.ObjectStore
	Producer  *queue.Producer
	Resolver  *claims.Resolver
	Extractor extract.Extractor
	Hub       *ws.Hub
	Retention time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Objects, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1: service key plus caller identity from the session layer
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.Use(auth.IdentityMiddleware())

	// WebSocket claim feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.DB, cfg.Objects, cfg.Producer, cfg.Retention)
	v1.POST("/photos", photoH.Upload)
	v1.GET("/photos", photoH.Feed)
	v1.GET("/photos/:id", photoH.Get)
	v1.POST("/photos/:id/hide", photoH.Hide)
	v1.POST("/photos/:id/unhide", photoH.Unhide)

	// Claims
	claimH := handlers.NewClaimHandler(cfg.DB, cfg.Resolver, cfg.Producer, cfg.Hub)
	v1.GET("/claims", claimH.ListMine)
	v1.GET("/photos/:id/claims", claimH.ListForPhoto)
	v1.POST("/claims/:id/approve", claimH.Approve)
	v1.POST("/claims/:id/reject", claimH.Reject)

	// Enrollment
	embH := handlers.NewEmbeddingHandler(cfg.DB, cfg.Extractor)
	v1.POST("/embeddings", embH.Enroll)
	v1.GET("/embeddings", embH.List)
	v1.POST("/embeddings/:id/activate", embH.Activate)
	v1.POST("/embeddings/:id/deactivate", embH.Deactivate)

	return r
}
