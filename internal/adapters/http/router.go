package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/adapters/signal"
	"github.com/dialoq/hotline/internal/app"
	"github.com/dialoq/hotline/internal/config"
	"github.com/dialoq/hotline/internal/store"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware issues a long-lived client token cookie so the
// browser keeps a stable identity across page reloads.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, rt *app.Router, st store.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HotlineSessions", sessStore))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	h := &APIHandlers{Store: st}

	api.GET("/parties", h.ListParties)
	api.GET("/parties/customers", h.ListCustomers)
	api.POST("/auth/login", h.Login)
	api.POST("/calls", h.CreateCall)
	api.PATCH("/calls/:id", h.UpdateCall)
	api.GET("/calls/party/:id", h.PartyCalls)

	ctl := signal.NewSignalWSController(rt, cfg.ReadLimit, cfg.PingPeriod)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
