package cmd

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

	"github.com/Masterminds/semver/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jmcleod/gatehouse/api"
	"github.com/jmcleod/gatehouse/identity"
	"github.com/jmcleod/gatehouse/mail"
	"github.com/jmcleod/gatehouse/storage"
	boltstorage "github.com/jmcleod/gatehouse/storage/bolt"
	filestorage "github.com/jmcleod/gatehouse/storage/file"
)

var (
	port       int
	dataDir    string
	backend    string
	sessionTTL time.Duration
	minVersion string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the identity provider server",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		var repo storage.Repository
		switch backend {
		case "file":
			repo = filestorage.NewStore(dataDir)
		case "bolt":
			store, err := boltstorage.NewStoreFromFile(dataDir+"/gatehouse.db", nil)
			if err != nil {
				return fmt.Errorf("failed to open bolt storage: %w", err)
			}
			defer store.Close()
			repo = store
		default:
			return fmt.Errorf("unknown storage backend %q", backend)
		}

		minV, err := semver.NewVersion(minVersion)
		if err != nil {
			return fmt.Errorf("invalid minimum client version %q: %w", minVersion, err)
		}

		var sender identity.Sender
		if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
			sender = mail.NewSendGrid(key,
				os.Getenv("SENDGRID_TEMPLATE_ID"),
				os.Getenv("SENDGRID_FROM"))
		} else {
			logger.Warn("SENDGRID_API_KEY not set, logging one-time passcodes instead of sending mail")
			sender = mail.LogSender{Logger: logger}
		}

		svc := identity.New(repo,
			identity.WithSender(sender),
			identity.WithSessionTTL(sessionTTL),
			identity.WithMinClientVersion(minV),
		)
		a := api.New(svc, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started", "port", port, "data_dir", dataDir, "storage", backend)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 3030, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&backend, "storage", "file", "Storage backend: file or bolt")
	serverCmd.Flags().DurationVar(&sessionTTL, "session-ttl", 0, "Session lifetime; 0 means sessions never expire")
	serverCmd.Flags().StringVar(&minVersion, "min-version", identity.DefaultMinClientVersion, "Minimum accepted client version")
}
