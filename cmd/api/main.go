package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	_ "github.com/lib/pq"

	"github.com/classchat/server/internal/auth"
	"github.com/classchat/server/internal/config"
	"github.com/classchat/server/internal/db"
	httphandler "github.com/classchat/server/internal/http"
	"github.com/classchat/server/internal/http/handlers"
	"github.com/classchat/server/internal/mail"
	"github.com/classchat/server/internal/repo"
	"github.com/classchat/server/internal/ws"
)

func main() {
	// Load .env from CWD if present (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	messageRepo := repo.NewMessageRepo(database)

	// Outbound mail: SMTP when configured, log-only otherwise
	var mailer mail.Mailer
	if cfg.SMTP.Host != "" {
		smtpMailer, err := mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		if err != nil {
			log.Fatalf("Failed to configure SMTP mailer: %v", err)
		}
		mailer = smtpMailer
	} else {
		if cfg.Production {
			log.Printf("WARNING: production mode without SMTP configured; reset codes will not be delivered")
		}
		mailer = mail.LogMailer{}
	}

	// Services
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := auth.NewAuthService(userRepo, jwtService)
	resetService := auth.NewResetService(userRepo, mailer, cfg.Production)

	// Realtime gateway
	hub := ws.NewHub(messageRepo)
	go hub.Run()
	gateway := ws.NewGateway(hub, jwtService, cfg.ClientOrigin)

	// Handlers and router
	authHandler := handlers.NewAuthHandler(authService, resetService)
	messageHandler := handlers.NewMessageHandler(messageRepo)
	router := httphandler.NewRouter(authHandler, messageHandler, gateway, jwtService, userRepo, cfg.ClientOrigin)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}
	if err := hub.Shutdown(10 * time.Second); err != nil {
		log.Printf("Hub forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
