package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/lynxx-backend/internal/config"
	"github.com/shinyyama/lynxx-backend/internal/handler"
	appmw "github.com/shinyyama/lynxx-backend/internal/middleware"
	"github.com/shinyyama/lynxx-backend/internal/pricing"
	"github.com/shinyyama/lynxx-backend/internal/realtime"
	"github.com/shinyyama/lynxx-backend/internal/repository"
	"github.com/shinyyama/lynxx-backend/internal/service"
	"github.com/shinyyama/lynxx-backend/internal/storage"
	"gorm.io/gorm"
)

type Deps struct {
	DB   *gorm.DB
	Auth *appmw.AuthMiddleware
	// Uploader may be nil when no bucket is configured.
	Uploader storage.Uploader
	Hub      *realtime.Hub
}

type Server struct {
	e     *echo.Echo
	sha   string
	build string
}

func New(cfg *config.Config, deps Deps, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestContext())
	e.Use(middleware.Logger())
	allowOrigin := AllowOrigin(cfg.CORSAllowedHostSuffix)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin,
	}))

	hub := deps.Hub
	if hub == nil {
		hub = realtime.NewHub(cfg.RealtimeBuffer)
	}

	convRepo := repository.NewConversationRepository(deps.DB)
	msgRepo := repository.NewMessageRepository(deps.DB)
	walletRepo := repository.NewWalletRepository(deps.DB)
	profileRepo := repository.NewProfileRepository(deps.DB)
	notifRepo := repository.NewNotificationRepository(deps.DB)

	notifSvc := service.NewNotificationService(notifRepo)
	walletSvc := service.NewWalletService(deps.DB, walletRepo)
	profileSvc := service.NewProfileService(profileRepo)
	convSvc := service.NewConversationService(convRepo, msgRepo, profileRepo)
	readSvc := service.NewReadService(convRepo, msgRepo, notifSvc, hub)
	msgSvc := service.NewMessageService(deps.DB, convRepo, msgRepo, walletRepo, profileRepo,
		pricing.NewFixedRate(cfg.Pricing), hub, notifSvc,
		service.MessageServiceOptions{Timeout: cfg.SendTimeout})

	var dir handler.UserDirectory
	if deps.Auth != nil && deps.Auth.Client() != nil {
		dir = deps.Auth.Client()
	}
	convHandler := handler.NewConversationHandler(convSvc, msgSvc, readSvc)
	msgHandler := handler.NewMessageHandler(msgSvc)
	profileHandler := handler.NewProfileHandler(profileSvc, dir)
	walletHandler := handler.NewWalletHandler(walletSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)
	uploadHandler := handler.NewUploadHandler(deps.Uploader, cfg.MaxImageBytes)
	rtHandler := handler.NewRealtimeHandler(hub, convSvc, readSvc, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		ok, _ := allowOrigin(origin)
		return ok
	})
	sendLimiter := appmw.NewUserRateLimiter(cfg.SendRatePerSecond, cfg.SendRateBurst)

	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	}
	e.GET("/healthz", health)

	api := e.Group("/api")
	api.GET("/healthz", health)

	authed := api.Group("")
	if deps.Auth != nil {
		authed.Use(deps.Auth.RequireAuth)
	} else {
		authed.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return c.JSON(http.StatusServiceUnavailable, handler.NewErrorResponse("unavailable", "auth is not configured"))
			}
		})
	}
	authed.POST("/me/profile", profileHandler.Create)
	authed.GET("/users/:uid/public", profileHandler.GetPublic)
	authed.GET("/me/wallet", walletHandler.Get)
	authed.GET("/me/wallet/transactions", walletHandler.ListTransactions)
	authed.GET("/me/unread", convHandler.UnreadTotal)
	authed.GET("/conversations", convHandler.List)
	authed.GET("/conversations/:id", convHandler.Get)
	authed.GET("/conversations/:id/messages", convHandler.ListMessages)
	authed.POST("/conversations/:id/read", convHandler.MarkRead)
	authed.POST("/messages", msgHandler.Send, sendLimiter.Middleware)
	authed.POST("/uploads/images", uploadHandler.UploadImage)
	authed.GET("/notifications", notifHandler.List)
	authed.POST("/notifications/read", notifHandler.MarkAllRead)
	authed.GET("/realtime", rtHandler.Subscribe)

	return &Server{e: e, sha: sha, build: buildTime}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// AllowOrigin accepts localhost on any port, the suffix host itself and its
// subdomains.
func AllowOrigin(suffix string) func(origin string) (bool, error) {
	suffix = strings.TrimPrefix(strings.ToLower(suffix), ".")
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		host := strings.ToLower(u.Hostname())
		if suffix != "" && (host == suffix || strings.HasSuffix(host, "."+suffix)) {
			return true, nil
		}
		return false, nil
	}
}
