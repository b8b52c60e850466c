package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sanctuary/auth"
	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/gateway"
	"sanctuary/infrastructure/ws"
	"sanctuary/moderation"
	"sanctuary/repositories"
	"sanctuary/runtime"
	"sanctuary/runtime/workers"
	"sanctuary/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting so every defer (database close included) executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation tiers: embedded lexicon prefilter, remote classifier,
	// local heuristic fallback.
	lexicon, err := moderation.LoadLexicon()
	if err != nil {
		return fmt.Errorf("lexicon loading failed: %w", err)
	}
	prefilter, err := moderation.NewPrefilter(lexicon)
	if err != nil {
		return fmt.Errorf("prefilter build failed: %w", err)
	}
	var classifier contract.Classifier = moderation.NewLocalHeuristicClassifier(prefilter)
	if config.ClassifierURL != "" {
		remote := moderation.NewRemoteClassifier(config.ClassifierURL, config.ClassifierTimeout, log)
		classifier = moderation.NewFallback(remote, classifier, log)
	}

	// 4. Registry, gateway & coordinator
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenDuration)
	gw := gateway.NewGateway(tokens, log)

	repos := runtime.Repositories{
		Sessions:   repositories.NewSessionRepository(db, log),
		Messages:   repositories.NewMessageRepository(db, log, config.LimitMessages),
		Moderation: repositories.NewModerationRepository(db, log),
	}

	coordinator := runtime.NewCoordinator(log, sup, registry, gw, prefilter, classifier, repos, runtime.Options{
		BufferSize:        config.BufferSize,
		AbsenceGrace:      config.AbsenceGrace,
		KickNotifyDelay:   config.KickNotifyDelay,
		MirrorInterval:    config.MirrorInterval,
		SweepInterval:     config.SweepInterval,
		EscalationBackoff: config.EscalationBackoff,
		WebhookURL:        config.WebhookURL,
		WebhookTimeout:    config.WebhookTimeout,
		OperatorSession:   domain.SessionID(config.OperatorSessionID),
		DeliverTagged:     config.DeliverTagged,
	})

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the supervised workers
	coordinator.Start(ctx)

	// 7. WebSocket transport
	service := services.NewSanctuaryService(coordinator)
	server := ws.NewServer(service, config.AllowedOrigins, config.BufferSize, log)
	coordinator.SetDisconnector(server)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	coordinator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
