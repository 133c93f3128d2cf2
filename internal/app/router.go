package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. metricsHandler may be nil to serve the default registry.
func (a *App) NewRouter(auth gin.HandlerFunc, metricsHandler http.Handler) *gin.Engine {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	if auth == nil {
		auth = func(c *gin.Context) { c.Next() }
	}

	router := gin.New()
	router.Use(ErrorHandler(a.Logger), RequestLogger(a.Logger))

	router.GET("/healthz", a.HealthHandler)
	router.GET("/metrics", gin.WrapH(metricsHandler))
	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api", auth)
	{
		api.POST("/messages", a.MessageHandler)
		api.GET("/practitioners/:id/slots", a.SlotsHandler)

		sessions := api.Group("/sessions")
		{
			sessions.GET("/:id", a.GetSessionHandler)
			sessions.DELETE("/:id", a.EndSessionHandler)
		}

		api.GET("/calendar/auth", a.GoogleAuthHandler)
	}
	return router
}
