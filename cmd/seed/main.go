// seed upserts the development user profile and prints a bearer token for it. Idempotent.
// Without DATABASE_URL only the token is printed; the in-memory server seeds the same profile.
// JWT_PRIVATE_KEY must be set to print a token.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"coaching-platform/backend/internal/config"
	"coaching-platform/backend/internal/db"
	"coaching-platform/backend/internal/platform/logger"
	"coaching-platform/backend/internal/security"
	"coaching-platform/backend/internal/user/domain"
	userrepo "coaching-platform/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}

	if cfg.DatabaseURL == "" {
		log.Info("seed: DATABASE_URL not set, the in-memory server seeds the dev profile itself")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("seed: db", zap.Error(err))
		}
		defer pool.Close()

		if err := userrepo.NewPostgresRepository(pool).Upsert(ctx, domain.DevProfile(time.Now().UTC())); err != nil {
			log.Fatal("seed: upsert profile", zap.Error(err))
		}
		log.Info("seed: profile ready", zap.String("user_id", domain.DevUserID), zap.String("email", domain.DevUserEmail))
	}

	if cfg.JWTPrivateKey == "" {
		log.Warn("seed: JWT_PRIVATE_KEY not set, skipping access token")
		return
	}
	tokens, err := security.NewTokenProviderFromPEM(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		log.Fatal("seed: jwt keys", zap.Error(err))
	}
	sessionID, err := security.RandomHex(nil, 16)
	if err != nil {
		log.Fatal("seed: session id", zap.Error(err))
	}
	token, expiresAt, err := tokens.IssueAccess(domain.DevUserID, sessionID)
	if err != nil {
		log.Fatal("seed: issue token", zap.Error(err))
	}
	fmt.Printf("authorization: Bearer %s\n", token)
	fmt.Printf("expires_at: %s\n", expiresAt.Format(time.RFC3339))
}
