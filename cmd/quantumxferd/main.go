// cmd/quantumxferd/main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantumxfer/internal/api"
	"quantumxfer/internal/config"
	"quantumxfer/internal/crypto"
	"quantumxfer/internal/log"
	"quantumxfer/internal/ssh"
	"quantumxfer/internal/store"
	"quantumxfer/internal/validate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quantumxferd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	listenFlag := flag.String("listen", "", "listen address (overrides QUANTUMXFER_LISTEN_ADDR)")
	dbFlag := flag.String("db", "", "database path (overrides QUANTUMXFER_DB_PATH)")
	logLevelFlag := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	if *listenFlag != "" {
		settings.ListenAddr = *listenFlag
	}
	if *dbFlag != "" {
		settings.DBPath = *dbFlag
	}
	if *logLevelFlag != "" {
		settings.LogLevel = *logLevelFlag
	}

	logger := log.New(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := config.EnsureSecret(settings.SecretPath)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, settings.DBPath, crypto.NewCipher(secret))
	if err != nil {
		return err
	}
	defer st.Close()

	policy, err := validate.NewCommandPolicy(settings.CommandDeny)
	if err != nil {
		return err
	}

	mgr := ssh.NewManager(
		&ssh.NetDialer{
			KnownHostsPath: settings.KnownHostsPath,
			Timeout:        settings.DialTimeout,
		},
		logger,
		ssh.Options{
			DialTimeout:        settings.DialTimeout,
			DefaultExecTimeout: settings.ExecTimeout,
			KeepaliveInterval:  settings.Keepalive,
			IdleThreshold:      settings.IdleThreshold,
			SweepInterval:      settings.SweepInterval,
			MaxSessions:        settings.MaxSessions,
			MaxUploadBytes:     settings.MaxUploadBytes,
		},
	)
	defer mgr.Close()
	mgr.StartSweep(ctx)

	registry, err := api.BuildRegistry(mgr, st, policy, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           api.NewServer(registry, logger, settings.MaxEnvelope).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", settings.ListenAddr, "db", settings.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
