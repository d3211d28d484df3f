package router

import (
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JerryLinyx/PressGO/controllers"
	"github.com/JerryLinyx/PressGO/metrics"
	"github.com/JerryLinyx/PressGO/middlewares"
)

// Deps are the constructed controllers and shared infrastructure the
// routes are bound to.
type Deps struct {
	Auth      *controllers.AuthController
	Articles  *controllers.ArticleController
	Feed      *controllers.FeedController
	Health    *controllers.HealthController
	Metrics   *metrics.Metrics
	Templates *template.Template
	Logger    *zap.SugaredLogger
}

func allowedOrigins() []string {
	origins := []string{"http://localhost:5173", "http://localhost:8080"}
	if raw := os.Getenv("FRONTEND_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, v := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
	}
	return origins
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Logger != nil {
		r.Use(middlewares.RequestLogger(d.Logger))
	}
	if d.Metrics != nil {
		r.Use(middlewares.Metrics(d.Metrics))
	}
	r.SetHTMLTemplate(d.Templates)

	origins := allowedOrigins()
	allowCreds := !(len(origins) == 1 && origins[0] == "*")

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCreds,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		// Public health endpoint for liveness/readiness checks
		api.GET("/health", d.Health.Health)
		api.GET("/articles", d.Feed.API)
	}

	r.GET("/", d.Feed.Home)
	r.GET("/articles", d.Feed.Articles)

	r.GET("/admin", d.Auth.ShowAdmin)
	r.POST("/admin/login", d.Auth.LoginHandler)
	r.POST("/admin/logout", d.Auth.LogoutHandler)
	r.GET("/admin/events", d.Auth.Events)

	admin := r.Group("/admin")
	admin.Use(middlewares.RequireAdmin(d.Auth))
	{
		admin.GET("/articles", d.Articles.Recent)
		admin.POST("/articles", d.Articles.Create)
		admin.GET("/articles/:id/delete", d.Articles.ConfirmDelete)
		admin.POST("/articles/:id/delete", d.Articles.Delete)
		admin.POST("/import", d.Articles.Import)
	}

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	return r
}
