package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/classchat/server/internal/auth"
	"github.com/classchat/server/internal/http/handlers"
	"github.com/classchat/server/internal/middleware"
	"github.com/classchat/server/internal/repo"
	"github.com/classchat/server/internal/ws"
)

// NewRouter creates the HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	messageHandler *handlers.MessageHandler,
	gateway *ws.Gateway,
	jwtService *auth.JWTService,
	users repo.UserRepo,
	clientOrigin string,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{clientOrigin},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Post("/register", authHandler.HandleRegister)
	r.Post("/login", authHandler.HandleLogin)
	r.Post("/forgot", authHandler.HandleForgot)
	r.Post("/reset", authHandler.HandleReset)

	r.Get("/messages/recent", messageHandler.HandleRecent)

	r.Get("/ws", gateway.HandleConnection)

	// Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService, users))
		r.Patch("/lang", authHandler.HandleLang)
	})

	return r
}
