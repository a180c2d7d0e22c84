// Package app собирает все слои сервиса в готовый HTTP-роутер.
// Вынесено из main, чтобы интеграционные тесты поднимали то же приложение.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtracker/internal/config"
	"github.com/bugtracker/internal/handler"
	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/middleware"
	"github.com/bugtracker/internal/push"
	"github.com/bugtracker/internal/repository"
	"github.com/bugtracker/internal/service"
	"github.com/bugtracker/internal/storage"
	"github.com/bugtracker/internal/ws"
)

// App — собранное приложение: роутер и hub событий.
// Hub нужно запустить отдельно: go app.Hub.Run(ctx).
type App struct {
	Router   chi.Router
	Hub      *ws.Hub
	Auth     *service.AuthService
	Sessions *repository.SessionRepository
}

// New строит приложение поверх готовых подключений к Postgres и хранилищу токенов.
func New(cfg *config.Config, pool *pgxpool.Pool, tokens storage.SessionTokenStore, vapid *push.VAPIDKeys) *App {
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)

	authSvc := service.NewAuthService(userRepo, sessionRepo, tokens, cfg.SessionTTL())
	statsSvc := service.NewStatsService(issueRepo)
	hub := ws.NewHub(0)
	notifier := push.NewNotifier(subRepo, vapid, cfg.Push.Subscriber)

	defaultTZ, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Errorf("app: unknown default timezone %q, using UTC", cfg.DefaultTimezone)
		defaultTZ = time.UTC
	}

	authH := handler.NewAuthHandler(authSvc)
	issueH := handler.NewIssueHandler(issueRepo, statsSvc, hub, notifier, defaultTZ)
	userH := handler.NewUserHandler(userRepo)
	dashH := handler.NewDashboardHandler(statsSvc)
	pushH := handler.NewPushHandler(subRepo, notifier)
	wsH := handler.NewWSHandler(hub, strings.Split(cfg.CORSAllowedOrigins, ","))

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-Id", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/register", authH.Register)
	r.Post("/login", authH.Login)
	r.Post("/logout", authH.Logout)

	r.Get("/issues", issueH.List)
	r.Get("/issues/{issueID}", issueH.Get)
	r.Get("/users", userH.List)
	r.Get("/dashboard", dashH.Get)
	r.Get("/api/push/config", pushH.Config)
	r.Get("/ws", wsH.Serve)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(authSvc))
		r.Post("/issues", issueH.Create)
		r.Put("/issues/{issueID}", issueH.Update)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
	})

	return &App{Router: r, Hub: hub, Auth: authSvc, Sessions: sessionRepo}
}

// CleanupSessions периодически удаляет истёкшие и отозванные сессии.
// Блокирует до отмены контекста.
func (a *App) CleanupSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Sessions.DeleteExpired(ctx)
			if err != nil {
				logger.Errorf("session cleanup: %v", err)
			} else if n > 0 {
				logger.Infof("session cleanup: removed %d expired sessions", n)
			}
		}
	}
}
