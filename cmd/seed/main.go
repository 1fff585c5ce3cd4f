package main

import (
	"betmaster/internal/account"        // Account service
	"betmaster/internal/config"         // Configuration
	"betmaster/internal/db"             // Database connection
	"betmaster/internal/storage/gormdb" // SQL storage
	"betmaster/internal/svcerr"         // Error taxonomy
	"context"

	"github.com/sirupsen/logrus" // Structured logging
)

// Creates the administrator account. Running it again leaves an existing admin untouched.
func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if cfg.Admin.Password == "" {
		logrus.Fatal("ADMIN_PASSWORD must be set")
	}
	gdb, err := db.Open(cfg.DB, cfg.App.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	accounts := account.NewService(gormdb.New(gdb, cfg.Game.Limits()), account.Options{
		InitialBalance: cfg.Game.InitialBalance,
		JWTSecret:      cfg.JWT.Secret,
	}, nil)
	admin, created, err := accounts.CreateAdmin(context.Background(), cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Balance)
	if svcerr.IsConflict(err) {
		logrus.Fatalf("cannot seed admin, pick another ADMIN_USERNAME: %v", err)
	}
	if err != nil {
		logrus.Fatalf("failed to create admin: %v", err)
	}
	entry := logrus.WithFields(logrus.Fields{"user_id": admin.ID, "username": admin.Username})
	if !created {
		entry.Info("Admin already exists")
		return
	}
	entry.Info("Admin created")
}
