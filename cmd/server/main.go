package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/mycoding/go-session/credentials"
	"github.com/mycoding/go-session/identity/storefake"
	"github.com/mycoding/go-session/internal/config"
	"github.com/mycoding/go-session/internal/metrics"
	"github.com/mycoding/go-session/lifecycle"
	"github.com/mycoding/go-session/server"
	"github.com/mycoding/go-session/session"
	"github.com/mycoding/go-session/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	identities := storefake.NewFakeIdentityStore()
	if err := identities.SeedDefaults(); err != nil {
		return fmt.Errorf("seeding identities: %w", err)
	}

	creds := credentials.NewStore(
		credentials.NewFileBackend(c.GetCredentialFile()),
		credentials.WithLogger(logger),
	)
	codec := token.NewCodec(c.GetTokenSecret())

	sessionService, err := session.NewService(identities, creds, codec,
		session.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
		session.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("session.NewService: %w", err)
	}

	registry := prometheus.NewRegistry()
	bundle := metrics.New(registry)

	manager, err := lifecycle.NewManager(sessionService, creds,
		lifecycle.WithRefreshLead(c.GetRefreshLeadTime()),
		lifecycle.WithMetrics(bundle),
		lifecycle.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("lifecycle.NewManager: %w", err)
	}
	manager.Start()
	defer manager.Close()

	handler, err := server.New(c, manager, sessionService, creds, bundle, registry, logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
