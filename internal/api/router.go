package api

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/httpmiddleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// NewRouter builds the engine with the middleware chain and every route.
// rateLimitPerMin of zero disables rate limiting.
func NewRouter(h *Handler, rateLimitPerMin int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		ExposeHeaders:   []string{httpmiddleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewTokenBucket(rateLimitPerMin, rateLimitPerMin).Middleware())

	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	r.GET("/", h.Index)
	r.GET("/presence_weekday.html", h.Page("presence_weekday.html", "Presence by weekday"))
	r.GET("/mean_time_weekday.html", h.Page("mean_time_weekday.html", "Presence mean time by weekday"))
	r.GET("/presence_start_end.html", h.Page("presence_start_end.html", "Presence start-end weekday"))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/users", h.Users)
		v1.GET("/mean_time_weekday/:user_id", h.MeanTimeWeekday)
		v1.GET("/presence_weekday/:user_id", h.PresenceWeekday)
		v1.GET("/presence_start_end_view/:user_id", h.PresenceStartEnd)
		v1.POST("/cache/refresh", h.RefreshCache)
	}
	return r
}
