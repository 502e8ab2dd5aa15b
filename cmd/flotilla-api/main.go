package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edvin/flotilla/internal/api"
	"github.com/edvin/flotilla/internal/blobstore"
	"github.com/edvin/flotilla/internal/config"
	"github.com/edvin/flotilla/internal/core"
	"github.com/edvin/flotilla/internal/db"
	"github.com/edvin/flotilla/internal/logging"
	"github.com/edvin/flotilla/internal/probe"
	"github.com/edvin/flotilla/internal/snapshot"
	"github.com/edvin/flotilla/internal/tunnel"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("flotilla-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var blobs blobstore.Store
	switch cfg.BlobBackend {
	case "s3":
		blobs = blobstore.NewS3Store(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("using s3 blob store")
	default:
		blobs = blobstore.NewFilesystemStore(cfg.DataDir)
	}

	fingerprint := cfg.TunnelServerFingerprint
	if fingerprint == "" {
		key, err := os.ReadFile(cfg.TunnelServerKeyFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read tunnel server key")
		}
		fingerprint, err = tunnel.Fingerprint(key)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to derive tunnel server fingerprint")
		}
	}

	keygen := tunnel.NewKeyGenerator(
		tunnel.NewPortRegistry(),
		fingerprint,
		cfg.TunnelServerPort,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	services := core.NewServices(
		pool,
		blobs,
		probe.NewDockerPinger(logger),
		probe.NewAzureAuthenticator(),
		snapshot.NewDockerSnapshotter(logger),
		keygen,
		logger,
	)

	if err := services.Environment.RestoreTunnelPorts(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to restore tunnel port reservations")
	}

	srv := api.NewServer(logger, pool, services, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting flotilla API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
