package main

import (
	"chat-hub/auth"
	"chat-hub/infrastructure/ws"
	"chat-hub/internal"
	"chat-hub/observability"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
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
// centralizes error reporting so deferred teardown always executes.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Coordination core: one registry + one ledger per process,
	// composed by the router.
	monitor := observability.NewMonitor(logger)
	registry := runtime.NewRegistry(logger, config.AwayThreshold, config.TypingTimeout)
	ledger := repositories.NewLedger()
	router := runtime.NewRouter(logger, auth.Gate{}, registry, ledger, monitor, config.MaxMessageLength)

	// 3. Background workers under supervision.
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(workers.NewSweepWorker(logger, config.SweepInterval, registry, router.NotifyAway))

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(ctx)
	}()

	// 4. Transport: websocket gateway + health check.
	gateway := ws.NewGateway(logger, router, config.ConnectionBufferSize)

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "OK",
			"connections": registry.Count(),
			"stats":       monitor.Snapshot(),
		})
	})

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "addr", addr)
		serverErr <- httpServer.ListenAndServe()
	}()

	// 5. Wait for a termination signal or a transport failure.
	select {
	case <-ctx.Done():
		logger.Info("Termination signal received: closing server")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			supervisor.Stop()
			<-supervisorDone
			return exitRuntime, fmt.Errorf("http server failed: %w", err)
		}
	}

	// 6. Graceful shutdown: stop accepting, drain connections, stop workers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	gateway.Close()
	supervisor.Stop()
	<-supervisorDone
	logger.Info("Server closed")

	return exitOK, nil
}
