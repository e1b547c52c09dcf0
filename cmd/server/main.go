package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/maintenance-gate/internal/api"
	"github.com/yourusername/maintenance-gate/internal/auth"
	"github.com/yourusername/maintenance-gate/internal/backup"
	"github.com/yourusername/maintenance-gate/internal/config"
	"github.com/yourusername/maintenance-gate/internal/database"
	"github.com/yourusername/maintenance-gate/internal/events"
	"github.com/yourusername/maintenance-gate/internal/logging"
	"github.com/yourusername/maintenance-gate/internal/maintenance"
	"github.com/yourusername/maintenance-gate/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg)
		return
	}

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.NewDB(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	verifier, err := auth.NewVerifier(cfg.Auth, cfg.Maintenance.Operation)
	if err != nil {
		log.Fatalf("Failed to set up token verification: %v", err)
	}

	mirrorDest, err := backup.NewDestination(cfg.Backup.Mirror)
	if err != nil {
		log.Fatalf("Failed to set up backup mirror: %v", err)
	}
	mirror := backup.NewMirror(mirrorDest)

	// the file audit trail is always kept; rows only when the database is on
	sqlDB := sqlHandle(db)
	audit := logging.NewAuditLogger(sqlDB)

	dirMode, _ := cfg.Maintenance.DirMode()
	executor := maintenance.NewExecutor(maintenance.Options{
		Operation:     cfg.Maintenance.Operation,
		BaseDir:       cfg.Maintenance.BaseDir,
		TargetFile:    cfg.Maintenance.TargetFile,
		BackupDir:     cfg.Maintenance.BackupDir,
		BackupPrefix:  cfg.Maintenance.BackupPrefix,
		DirMode:       dirMode,
		AuditLog:      cfg.Maintenance.AuditLog,
		RequireBackup: cfg.Maintenance.RequireBackup,
		Audit:         audit,
		Mirror:        mirror,
	})

	var retention *backup.RetentionRunner
	if cfg.Backup.Retention.Keep > 0 {
		retention, err = startRetention(cfg, executor, dirMode, mirror)
		if err != nil {
			log.Fatalf("Failed to schedule backup retention: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hub *events.Hub
	if cfg.Events.Enabled {
		hub = events.NewHub()
		go hub.Run(ctx)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	router := api.SetupRouter(cfg, sqlDB, verifier, executor, audit, recorder, hub)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server_starting",
			"addr", server.Addr,
			"path", cfg.Server.Path,
			"auth_mode", cfg.Auth.Mode,
			"require_backup", cfg.Maintenance.RequireBackup,
			"mirror", cfg.Backup.Mirror.Type,
		)

		if cfg.Server.TLS.Enabled {
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start HTTPS server: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start HTTP server: %v", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server_stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_forced_shutdown", "error", err)
	}

	cancel()
	if retention != nil {
		retention.Stop(shutdownCtx)
	}

	// let in-flight mirror uploads finish before closing their connection
	mirror.Wait()
	if closer, ok := mirrorDest.(io.Closer); ok {
		closer.Close()
	}

	logger.Info("server_exited")
}

func startRetention(cfg *config.Config, executor *maintenance.Executor, dirMode os.FileMode, mirror *backup.Mirror) (*backup.RetentionRunner, error) {
	manager := backup.NewRetentionManager(cfg.Maintenance.BackupPrefix, cfg.Backup.Retention.Keep)

	targets := func() []backup.Destination {
		var dests []backup.Destination
		if dir, err := executor.BackupDir(); err == nil {
			dests = append(dests, backup.NewLocalDestination(dir, dirMode))
		} else {
			logging.Component("retention").Warn("retention_dir_unresolved", "error", err)
		}
		if dest := mirror.Destination(); dest != nil {
			dests = append(dests, dest)
		}
		return dests
	}

	runner, err := backup.NewRetentionRunner(cfg.Backup.Retention.Schedule, manager, targets)
	if err != nil {
		return nil, err
	}
	runner.Start()
	return runner, nil
}

func sqlHandle(db *database.DB) *sql.DB {
	if db == nil {
		return nil
	}
	return db.DB
}

func runMigrations(cfg *config.Config) {
	log.Println("Running database migrations...")

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}
