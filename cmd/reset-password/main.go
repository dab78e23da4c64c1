package main

import (
	"context"
	"flag"

	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/pkg/config"
	"go-warehouse-ws/pkg/database"
	applog "go-warehouse-ws/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	email := flag.String("email", "admin@example.com", "account to reset")
	newPassword := flag.String("password", "admin123", "new password")
	flag.Parse()

	// 1. Load config
	cfg := config.Load()
	log := applog.Configure(cfg.Logger.Level, cfg.Logger.Format)

	// 2. Setup database
	db, err := database.ConnectDB(cfg.Postgres)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	ctx := context.Background()
	users := repository.NewUserRepo(db)

	// 3. Find user
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.WithError(err).Fatalf("user %s not found", *email)
	}

	// 4. Hash new password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.WithError(err).Fatal("failed to hash password")
	}

	// 5. Update and end any open session
	if err := users.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		log.WithError(err).Fatal("failed to update password")
	}
	if err := users.UpdateTokenVersion(ctx, user.ID, uuid.NewString()); err != nil {
		log.WithError(err).Warn("password updated but existing sessions were not revoked")
	}

	log.WithField("email", *email).Info("password has been reset")
}
