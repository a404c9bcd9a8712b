package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corecrm/backend/internal/audit"
	auditrepo "corecrm/backend/internal/audit/repository"
	authhandler "corecrm/backend/internal/auth/handler"
	authservice "corecrm/backend/internal/auth/service"
	"corecrm/backend/internal/config"
	"corecrm/backend/internal/db"
	"corecrm/backend/internal/events"
	"corecrm/backend/internal/events/producer"
	"corecrm/backend/internal/notify"
	orgrepo "corecrm/backend/internal/organization/repository"
	"corecrm/backend/internal/security"
	"corecrm/backend/internal/server"
	"corecrm/backend/internal/server/middleware"
	sessionrepo "corecrm/backend/internal/session/repository"
	sessionservice "corecrm/backend/internal/session/service"
	userrepo "corecrm/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, security.TokenTTLs{
		Access:            cfg.AccessTTL(),
		Refresh:           cfg.RefreshTTL(),
		PasswordReset:     cfg.PasswordResetTTL(),
		EmailVerification: cfg.EmailVerifyTTL(),
	})

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), middleware.GetClientIP)
	kafkaProducer := producer.NewKafkaProducer(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic)
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		auditLogger.WithEmitter(kafkaProducer)
		log.Printf("audit: streaming to kafka topic %s", cfg.AuditKafkaTopic)
	}

	sessions := sessionservice.NewManager(sessionrepo.NewPostgresRepository(database), cfg.RefreshTTL())
	svc := authservice.NewAuthService(
		userrepo.NewPostgresRepository(database),
		orgrepo.NewPostgresRepository(database),
		sessions,
		security.NewHasher(cfg.BcryptCost),
		tokens,
		auditLogger,
		notify.LogSender{},
	)

	srv := server.New(cfg.HTTPAddr, authhandler.NewAuthHandler(svc), svc)

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let fire-and-forget audit emits drain before the producer closes.
	time.Sleep(events.ShutdownDrainDuration)
	log.Println("http server stopped")
}
