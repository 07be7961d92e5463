package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farmavigil/farmavigil-api/config"
	"github.com/farmavigil/farmavigil-api/data"
	"github.com/farmavigil/farmavigil-api/handlers"
	"github.com/farmavigil/farmavigil-api/health"
	"github.com/farmavigil/farmavigil-api/healthdata"
	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/openfda"
	"github.com/farmavigil/farmavigil-api/scheduler"
	"github.com/farmavigil/farmavigil-api/server"
	"github.com/farmavigil/farmavigil-api/stats"
	"github.com/farmavigil/farmavigil-api/store"
	"github.com/farmavigil/farmavigil-api/validation"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "farmavigil",
	Short: "farmavigil - openFDA adverse event dashboard API",
	// Running without a subcommand starts the server
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with the cache warm-up scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch openFDA data once and print the aggregated statistics as JSON",
	RunE:  runSnapshot,
}

var (
	verboseFlag bool
	searchFlag  string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log info messages to the console in every environment")
	snapshotCmd.Flags().StringVarP(&searchFlag, "search", "s", "", "Aggregate the results of a drug search instead of the full batch")
	rootCmd.AddCommand(serveCmd, migrateCmd, snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and initialises logging
func setup() (*config.Config, *logging.LoggingService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	logService := logging.InitLoggerWithOptions(logging.Options{
		Dir:           cfg.LogDir,
		Env:           cfg.Env,
		Level:         cfg.LogLevel,
		RetentionDays: cfg.LogRetentionDays,
		MaxFileSize:   cfg.MaxLogFileSize,
		Verbose:       verboseFlag,
	})

	return cfg, logService, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.AutoMigrate(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newLoader(cfg *config.Config, cache *data.Cache) *healthdata.Loader {
	client := openfda.NewClient(openfda.Options{
		BaseURL:    cfg.OpenFDABaseURL,
		APIKey:     cfg.OpenFDAAPIKey,
		Timeout:    cfg.HTTPClientTimeout,
		Retries:    cfg.FetchRetries,
		RetryDelay: cfg.RetryDelay,
	})

	return healthdata.NewLoader(client, cache, healthdata.Config{
		QuickBatch:       cfg.QuickBatchSize,
		FullBatch:        cfg.FullBatchSize,
		EnforcementBatch: cfg.EnforcementBatchSize,
		SearchLimit:      cfg.SearchLimit,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logService, err := setup()
	if err != nil {
		return err
	}
	defer logService.Close()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"address", cfg.Address,
		"port", cfg.Port,
		"database_driver", cfg.DatabaseDriver,
		"cache_ttl", cfg.CacheTTL.String(),
		"http_client_timeout", cfg.HTTPClientTimeout.String(),
		"retry_delay", cfg.RetryDelay.String(),
		"search_debounce", cfg.SearchDebounce.String(),
		"warm_interval", cfg.WarmInterval.String(),
		"trusted_proxies", fmt.Sprint(cfg.TrustedProxies))

	st, err := openStore(cfg)
	if err != nil {
		logging.Error("Failed to open database", "error", err)
		return err
	}
	defer st.Close()

	cache := data.NewCache(cfg.CacheTTL, nil)
	loader := newLoader(cfg, cache)
	view := healthdata.NewView(loader, cfg.SearchDebounce, cfg.HTTPClientTimeout*time.Duration(cfg.FetchRetries))
	defer view.Close()

	handler := handlers.NewHTTPHandler(view, st, validation.NewDataValidator(), health.NewHealthChecker(cache, st))

	sched := scheduler.NewScheduler(loader, cache, cfg.WarmInterval)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed to start", "error", err)
			return err
		}
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logService, err := setup()
	if err != nil {
		return err
	}
	defer logService.Close()

	st, err := openStore(cfg)
	if err != nil {
		logging.Error("Migration failed", "error", err)
		return err
	}
	defer st.Close()

	logging.Info("Database schema is up to date", "driver", cfg.DatabaseDriver)
	fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, logService, err := setup()
	if err != nil {
		return err
	}
	defer logService.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := newLoader(cfg, data.NewCache(cfg.CacheTTL, nil))
	return writeSnapshot(ctx, cmd.OutOrStdout(), loader, searchFlag)
}

// snapshotLoader is the part of healthdata.Loader the snapshot command uses
type snapshotLoader interface {
	Load(ctx context.Context, publish healthdata.PublishFunc) (healthdata.Snapshot, error)
	Search(ctx context.Context, term string) (healthdata.Snapshot, error)
}

type snapshotOutput struct {
	Source       healthdata.Source `json:"source"`
	SearchTerm   string            `json:"searchTerm,omitempty"`
	FetchedAt    time.Time         `json:"fetchedAt"`
	Enforcements int               `json:"enforcements"`
	Stats        stats.Summary     `json:"stats"`
	KPIs         stats.KPIs        `json:"kpis"`
	Error        string            `json:"error,omitempty"`
}

func writeSnapshot(ctx context.Context, w io.Writer, loader snapshotLoader, term string) error {
	var (
		snap healthdata.Snapshot
		err  error
	)
	if term != "" {
		if verr := validation.NewDataValidator().ValidateSearchTerm(term); verr != nil {
			return verr
		}
		snap, err = loader.Search(ctx, term)
	} else {
		snap, err = loader.Load(ctx, nil)
	}
	if err != nil && ctx.Err() != nil {
		return err
	}

	out := snapshotOutput{
		Source:       snap.Source,
		SearchTerm:   snap.SearchTerm,
		FetchedAt:    snap.FetchedAt,
		Enforcements: len(snap.Enforcements),
		Stats:        snap.Stats,
		KPIs:         snap.KPIs,
	}
	if err != nil {
		out.Error = err.Error()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
