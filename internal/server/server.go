package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifeharness/internal/autobio"
	"lifeharness/internal/engine"
	"lifeharness/internal/storage"
)

type Server struct {
	store     storage.Storage
	engine    *engine.Engine
	assembler *autobio.Assembler
	logger    *zap.Logger

	jwtSecret []byte
	tokenTTL  time.Duration
}

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func New(store storage.Storage, eng *engine.Engine, assembler *autobio.Assembler, cfg Config, logger *zap.Logger) *Server {
	return &Server{
		store:     store,
		engine:    eng,
		assembler: assembler,
		logger:    logger,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
	}
}

func (s *Server) Router(corsOrigins []string) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", s.HealthCheck)

	auth := router.Group("/auth")
	{
		auth.POST("/register", s.Register)
		auth.POST("/login", s.Login)
	}

	protected := router.Group("/")
	protected.Use(s.RequireAuth())
	{
		protected.GET("/auth/me", s.Me)

		protected.GET("/profile", s.GetProfile)
		protected.POST("/profile", s.UpsertProfile)

		protected.POST("/threads", s.CreateThread)
		protected.GET("/threads", s.ListThreads)
		protected.GET("/threads/:id", s.GetThread)
		protected.GET("/threads/:id/history", s.ThreadHistory)
		protected.POST("/threads/:id/step", s.ThreadStep)

		protected.GET("/entries", s.ListEntries)
		protected.GET("/entries/coverage/grid", s.CoverageGrid)
		protected.GET("/entries/:id", s.GetEntry)
		protected.PATCH("/entries/:id/seal", s.UpdateSeal)

		protected.POST("/autobiography/generate", s.GenerateAutobiography)
	}

	return router
}
