package http

import (
	"context"
	"os"

	"github.com/GKAANU/Sonox-panel/internal/adapters/signal"
	"github.com/GKAANU/Sonox-panel/internal/app/orch"
	"github.com/GKAANU/Sonox-panel/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SonoxSessions", store))

	if cfg.StaticPath != "" {
		if _, err := os.Stat(cfg.StaticPath); err == nil {
			r.Static("/static", cfg.StaticPath)
			r.GET("/", func(c *gin.Context) {
				c.File(cfg.StaticPath + "/index.html")
			})
		}
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("auth", cfg.JWTSecret != "").Msg("router setup")

	h := &handlers{orch: o}
	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	api := r.Group("/api")
	api.GET("/health", h.health)
	api.GET("/stats", h.stats)

	authed := api.Group("")
	if cfg.JWTSecret != "" {
		authed.Use(JWTAuthMiddleware(cfg.JWTSecret))
	} else {
		authed.Use(UserIdentityMiddleware())
	}
	authed.GET("/users/:uid", h.lookupUser)
	authed.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("user", c.GetString(signal.UserIDKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
