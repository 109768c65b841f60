package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-chat/auth"
	"wallet-chat/infrastructure/rest"
	"wallet-chat/infrastructure/ws"
	"wallet-chat/internal"
	"wallet-chat/observability"
	"wallet-chat/repositories"
	"wallet-chat/runtime"
	"wallet-chat/runtime/workers"
	"wallet-chat/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a fatal error.
// Returning instead of exiting lets the deferred closes run.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage: badger for state, bluge for message search
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	index := repositories.NewMessageIndex(writer, log)
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Services
	store := repositories.NewStore(db, log)
	mirror := workers.NewMembershipMirror(log, config.BufferSize)
	nonces := auth.NewNonceStore(config.NonceTTL)
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)

	authService := services.NewAuthService(store, nonces, tokens, log)
	memberships := services.NewMembershipService(store, mirror, log)
	invitations := services.NewInvitationService(store, mirror, config.InvitationTTL, log)
	chat := services.NewChatService(store, index, config.MaxContentLength, config.LimitMessages, log)

	// 4. Presence & supervision
	presence := runtime.NewPresence(log, runtime.NewRegistry(), tokens, memberships, chat, config.SinkTimeout)
	mirror.Observe(presence)
	health := observability.NewHealth(log, presence.SessionCount)
	reporter := workers.NewHealthReporter(log, health, config.HealthInterval,
		workers.NamedQueue{Name: "membership_mirror", Queue: mirror})
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(mirror, nonces, reporter)

	// 5. HTTP
	handler := rest.NewRouter(rest.Deps{
		Log:            log,
		Verifier:       tokens,
		Auth:           authService,
		Memberships:    memberships,
		Invitations:    invitations,
		Chat:           chat,
		Health:         health,
		Realtime:       ws.NewHandler(log, presence, config.ConnectionBufferSize, config.Origins()),
		AllowedOrigins: config.Origins(),
	})
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sup.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		log.Info("Starting HTTP server", "address", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sup.Stop()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}
