package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/metrics"
	httpHandler "github.com/FanzCEO/GirlFanz-sub003/interfaces/http"
	"github.com/FanzCEO/GirlFanz-sub003/interfaces/middleware"
)

var allowedOrigins = []string{"https://girlfanz.com", "https://admin.girlfanz.com", "http://localhost:4201", "http://localhost:4200", "https://localhost:4201", "https://localhost:4200"}

func InitiateRouter(
	secretKey string,
	distributionHandler httpHandler.IDistributionHandler,
	oauthHandler httpHandler.IOAuthHandler,
	stream gin.HandlerFunc,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	auth := middleware.Auth(secretKey)

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// OAuth connect flow. The callback is reached by the platform redirect and
	// is authenticated by the state issued in the first step.
	router.GET("/auth/:platform", auth, oauthHandler.GetAuthURL)
	router.GET("/auth/:platform/callback", oauthHandler.Callback)

	api := router.Group("api")
	api.Use(auth)

	distribution := api.Group("/distribution")
	{
		distribution.GET("/platforms", distributionHandler.GetPlatforms)
		distribution.POST("/publish", distributionHandler.Publish)
		distribution.POST("/schedule", distributionHandler.Schedule)
		distribution.DELETE("/scheduled/:scheduleId", distributionHandler.CancelScheduled)
		distribution.GET("/records", distributionHandler.ListRecords)
		distribution.GET("/stream", stream)

		distribution.DELETE("/:platform/account", oauthHandler.Disconnect)
		distribution.GET("/:platform/posts/:postId/analytics", distributionHandler.Analytics)
		distribution.DELETE("/:platform/posts/:postId", distributionHandler.DeletePost)
		distribution.GET("/:platform/trending", distributionHandler.TrendingTags)
		distribution.GET("/:platform/best-times", distributionHandler.BestPostingTimes)
		distribution.POST("/:platform/validate", distributionHandler.ValidateMedia)
	}

	return router
}
