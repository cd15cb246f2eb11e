package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"syncx/auth"
	"syncx/contract"
	"syncx/infrastructure/http/server"
	"syncx/internal"
	"syncx/moderation"
	"syncx/observability"
	"syncx/repositories"
	"syncx/runtime"
	"syncx/runtime/workers"
	"syncx/services"
	"syncx/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncx terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns the server lifecycle, so deferred
// cleanup always executes before the exit code is returned.
func run() (int, error) {
	envFile := pflag.String("env-file", "", "optional .env file loaded before reading the environment")
	pflag.Parse()

	// 1. Configuration & Logger
	config, err := internal.LoadConfig(*envFile)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLogger(repositories.NewBadgerLogger(logger)))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Blob storage
	blobs, err := buildBlobStore(ctx, config, logger)
	if err != nil {
		return exitConfig, err
	}

	moderator, err := moderation.NewModerator(config.CensoredWordList(), config.CensorChar())
	if err != nil {
		return exitConfig, fmt.Errorf("moderation dictionary: %w", err)
	}

	// 4. Runtime: registry, presence, fan-out and the supervised workers
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence(registry)
	router := runtime.NewRouter(logger, registry, metrics, config.SinkTimeout)
	locks := runtime.NewKeyedMutex()

	userRepository := repositories.NewUserRepository(db)
	chatRepository := repositories.NewChatRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger)
	requestRepository := repositories.NewFriendRequestRepository(db)

	persister := workers.NewMessagePersister(logger, messageRepository, metrics, config.PersistenceBuffer, config.PersistenceTimeout)
	sup := workers.NewSupervisor(logger).WithMetrics(metrics)
	sup.Add(
		persister,
		workers.NewHeartbeatWorker(logger, metrics, config.MetricInterval),
		workers.NewReporterWorker(logger, metrics, presence, registry, config.ReportInterval),
	)

	// Workers outlive the signal so the persister can drain after the last
	// socket handler returned.
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		sup.Run(workersCtx)
	}()

	// 5. Services
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(logger, chatRepository, userRepository, messageRepository, blobs, router, locks)
	srv := server.New(logger, server.Dependencies{
		Auth:     auth.NewAuthenticator(tokens, userRepository, config.AdminSecretKey),
		Accounts: services.NewAuthService(userRepository, auth.NewPasswordHasher(auth.DefaultArgon2Params), tokens, blobs),
		Profiles: services.NewUserService(logger, userRepository, chatRepository, blobs),
		Friends:  services.NewFriendService(logger, requestRepository, userRepository, chatRepository, chatService, router, locks),
		Chats:    chatService,
		Messages: services.NewMessageService(logger, messageRepository, chatRepository, userRepository, blobs, router).
			WithModerator(moderator),
		Admin: services.NewAdminService(logger, services.AdminDependencies{
			Users:    userRepository,
			Chats:    chatRepository,
			Messages: messageRepository,
			Requests: requestRepository,
			Blobs:    blobs,
			Router:   router,
			Locks:    locks,
			Online:   presence,
			Registry: registry,
			Metrics:  metrics,
		}),
		Socket: services.NewSocketService(logger, presence, router, chatRepository, persister, metrics).
			WithModerator(moderator),
		Metrics: metrics,
	}, server.Options{
		UploadsDir:         uploadsDir(config),
		AllowedOrigins:     config.Origins(),
		InsecureSkipVerify: config.InsecureSkipVerify,
		SecureCookies:      config.SecureCookies,
		TokenDuration:      config.AuthTokenDuration,
		ConnectionBuffer:   config.ConnectionBufferSize,
		WriteTimeout:       config.WriteTimeout,
		PingInterval:       config.PingInterval,
		MaxUploadBytes:     int64(config.MaxUploadBytes),
	})

	// 6. HTTP Server Setup
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", config.Address(), "blob_backend", config.BlobBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		stop()
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	closeConnections(presence.Reset())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopWorkers()
	<-workersDone
	if runErr != nil {
		return exitRuntime, runErr
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBlobStore(ctx context.Context, config internal.Config, logger *slog.Logger) (contract.BlobStore, error) {
	if config.BlobBackend == internal.BlobBackendS3 {
		store, err := storage.NewS3Store(ctx, logger, storage.S3Config{
			Region:    config.S3Region,
			Bucket:    config.S3Bucket,
			Endpoint:  config.S3Endpoint,
			PublicURL: config.S3PublicURL,
			PathStyle: config.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
		return store, nil
	}
	store, err := storage.NewDiskStore(logger, config.UploadsDir, config.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("disk store: %w", err)
	}
	return store, nil
}

// uploadsDir is only served by the HTTP server when blobs live on disk.
func uploadsDir(config internal.Config) string {
	if config.BlobBackend == internal.BlobBackendDisk {
		return config.UploadsDir
	}
	return ""
}

type closer interface{ Close() }

func closeConnections(conns []contract.Connection) {
	for _, conn := range conns {
		if c, ok := conn.(closer); ok {
			c.Close()
		}
	}
}
