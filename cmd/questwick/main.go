package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mosshollow/questwick/internal/adminacl"
	"github.com/mosshollow/questwick/internal/backup"
	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/logging"
	"github.com/mosshollow/questwick/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("QUESTWICK_LOG_LEVEL"), os.Getenv("QUESTWICK_LOG_FORMAT"))

	port := envOr("QUESTWICK_PORT", "8080")
	dbPath := envOr("QUESTWICK_DB_PATH", "questwick.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	secret := []byte(os.Getenv("QUESTWICK_JWT_SECRET"))
	if len(secret) == 0 {
		// An ephemeral secret keeps dev setups working; sessions will not
		// survive a restart.
		buf := make([]byte, 32)
		rand.Read(buf)
		secret = []byte(hex.EncodeToString(buf))
		logger.Warn("QUESTWICK_JWT_SECRET not set, using an ephemeral secret")
	}

	cfg := server.Config{
		JWTSecret:       secret,
		AdminAllowlist:  adminacl.ParseAllowlist(os.Getenv("QUESTWICK_ADMIN_ALLOWLIST")),
		VAPIDPublicKey:  os.Getenv("QUESTWICK_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("QUESTWICK_VAPID_PRIVATE_KEY"),
		PostmarkToken:   os.Getenv("QUESTWICK_POSTMARK_TOKEN"),
		PostmarkFrom:    envOr("QUESTWICK_POSTMARK_FROM", "noreply@questwick.app"),
		EncourageAPIKey: os.Getenv("QUESTWICK_ENCOURAGE_API_KEY"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("QUESTWICK_S3_ENDPOINT"),
				Bucket:    os.Getenv("QUESTWICK_S3_BUCKET"),
				Region:    envOr("QUESTWICK_S3_REGION", "auto"),
				AccessKey: os.Getenv("QUESTWICK_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("QUESTWICK_S3_SECRET_KEY"),
			},
			DBPath:        dbPath,
			Passphrase:    os.Getenv("QUESTWICK_BACKUP_PASSPHRASE"),
			ScheduleHour:  envOrInt("QUESTWICK_BACKUP_HOUR", 3),
			RetentionDays: envOrInt("QUESTWICK_BACKUP_RETENTION_DAYS", 30),
		},
	}

	srv := server.New(db, cfg, logger)

	backupCtx, stopBackups := context.WithCancel(context.Background())
	srv.BackupManager().Start(backupCtx)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("questwick listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopBackups()
	srv.BackupManager().Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
