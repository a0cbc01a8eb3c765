package main

import (
	"batepapo/internal"
	"batepapo/moderation"
	"batepapo/repositories"
	"batepapo/runtime/workers"
	"batepapo/server"
	"batepapo/services"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close in
// particular) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	maskChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Engine
	participants := repositories.NewParticipantRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger, config.LimitMessages)

	moderator, err := moderation.NewModerator(internal.SplitWords(config.CensoredWords), maskChar)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation word list: %w", err)
	}

	presence := services.NewPresenceService(participants, messages, time.Now, logger)
	chat := services.NewMessageService(participants, messages, moderator, time.Now, logger)

	// 4. Background workers
	sweeper := workers.NewPresenceSweeper(
		participants, messages,
		config.SweepInterval, config.AbsenceTimeout,
		time.Now, logger,
	)
	health := workers.NewHealthWorker(config.HealthInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(sweeper, health)

	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP shell
	srv := server.NewServer(
		fmt.Sprintf("%s:%d", config.Host, config.Port),
		presence, chat, logger,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	logger.Info("Chat room listening", "host", config.Host, "port", config.Port)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err = <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-supervisorDone
			return exitRuntime, err
		}
	}

	stop()
	<-supervisorDone
	if err = srv.Stop(); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
