package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vidtube/vidtube-backend/internal/config"
	"github.com/vidtube/vidtube-backend/internal/handlers"
	"github.com/vidtube/vidtube-backend/internal/logging"
	"github.com/vidtube/vidtube-backend/internal/media"
	"github.com/vidtube/vidtube-backend/internal/metrics"
	"github.com/vidtube/vidtube-backend/internal/middleware"
	"github.com/vidtube/vidtube-backend/internal/rate"
	"github.com/vidtube/vidtube-backend/internal/repo"
	"github.com/vidtube/vidtube-backend/internal/service"
	"github.com/vidtube/vidtube-backend/internal/token"
)

func newRouter(cfg config.Config, log logging.Logger, db *pgxpool.Pool, rdb *redis.Client, registry *prometheus.Registry) (*gin.Engine, error) {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.HTTP.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": cfg.App.Env, "version": cfg.App.Version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.Static(cfg.Media.BaseURL, cfg.Media.Dir)

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte(cfg.Token.AccessSecret),
		RefreshSecret: []byte(cfg.Token.RefreshSecret),
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	uploader, err := media.NewDiskUploader(cfg.Media.Dir, cfg.Media.BaseURL)
	if err != nil {
		return nil, err
	}

	limiter := rate.New(rdb, rate.Config{
		Enabled:                 cfg.Login.Enabled,
		MaxLoginAttempts:        cfg.Login.MaxAttempts,
		LoginCooldownDuration:   cfg.Login.Cooldown,
		MaxRefreshAttempts:      cfg.Login.MaxRefresh,
		RefreshCooldownDuration: cfg.Login.RefreshCooldown,
	})

	users := repo.NewPGUserRepository(db)
	m := metrics.New(registry)

	authSvc := service.NewAuthService(users, tokens, limiter, uploader, m, log)
	userSvc := service.NewUserService(users, uploader)

	cookies := handlers.NewCookieHelper(cfg.Cookie)
	authHandler := handlers.NewAuthHandler(authSvc, cookies, cfg.Token.AccessTTL, cfg.Token.RefreshTTL, log)
	userHandler := handlers.NewUserHandler(userSvc)

	api := r.Group("/api/v1/users")
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/refresh-token", authHandler.Refresh)

	protected := api.Group("", middleware.RequireAuth(tokens, users))
	protected.POST("/logout", authHandler.Logout)
	protected.POST("/change-password", authHandler.ChangePassword)
	protected.GET("/current-user", userHandler.CurrentUser)
	protected.PATCH("/update-account", userHandler.UpdateAccount)
	protected.PATCH("/avatar", userHandler.UpdateAvatar)
	protected.PATCH("/cover-image", userHandler.UpdateCoverImage)

	return r, nil
}
