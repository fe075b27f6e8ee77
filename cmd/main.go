package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/google/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"luckydraw/internal/audio"
	"luckydraw/internal/config"
	"luckydraw/internal/handlers"
	"luckydraw/internal/models"
	"luckydraw/internal/services"
	"luckydraw/internal/storage"
)

var appLogger *logger.Logger

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if appLogger != nil {
		appLogger.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "luckydraw",
		Short:         "Numbered lucky draw with persisted winner history",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	flags.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: memory, file or sqlite")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the file backend")
	flags.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "database path for the sqlite backend")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "write logs to the console")

	// load resolves file, env and flag values into cfg before any subcommand runs.
	load := func(cmd *cobra.Command) error {
		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		cfgFile := cfgPath
		if cfgFile == "" {
			cfgFile = config.DefaultConfigPath()
		}
		if config.FileExists(cfgFile) {
			fc, err := config.LoadFileConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return err
			}
		} else if cfgPath != "" {
			return fmt.Errorf("config file %s not found", cfgPath)
		}

		ec, err := config.LoadEnvConfig()
		if err != nil {
			return err
		}
		if err := config.ApplyEnvConfig(&cfg, ec, changed); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		appLogger = logger.Init("luckydraw", cfg.Verbose, false, io.Discard)
		return nil
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return load(cmd)
	}

	root.AddCommand(newServeCmd(&cfg), newHistoryCmd(&cfg), newClearCmd(&cfg))
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "history rows per page")
	f.DurationVar(&cfg.SpinDuration, "spin-duration", cfg.SpinDuration, "length of the number roll")
	f.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "display refresh interval while rolling")
	f.BoolVar(&cfg.WatchStorage, "watch", cfg.WatchStorage, "reload settings when the file backend changes on disk")
	f.BoolVar(&cfg.Sound, "sound", cfg.Sound, "emit audio cues")
	f.StringVar(&cfg.GinMode, "gin-mode", cfg.GinMode, "gin mode: debug, release or test")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Open storage
	kv, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer kv.Close()

	// 2. Initialize the Lottery Service
	var player audio.Player = audio.Nop{}
	if cfg.Sound {
		player = audio.LogPlayer{}
	}
	lotteryService := services.NewLotteryService(ctx, kv, services.Options{
		PageSize: cfg.PageSize,
		Spinner: services.SpinnerOptions{
			Duration:     cfg.SpinDuration,
			TickInterval: cfg.TickInterval,
		},
		Player: player,
	})
	defer lotteryService.Close()

	// 3. Reload state when another process edits the data directory
	if fs, ok := kv.(*storage.FileStore); ok && cfg.WatchStorage {
		go func() {
			err := fs.Watch(ctx, 100*time.Millisecond, storageChanged(ctx, lotteryService))
			if err != nil {
				logger.Warningf("Storage watcher stopped: %v", err)
			}
		}()
	}

	// 4. Set up the Gin router
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	handlers.NewHTTPHandler(lotteryService).RegisterRoutes(r)

	// 5. Run the server
	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s (storage: %s)", cfg.Addr, cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Infof("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// storageChanged routes external edits of a stored key to the service.
func storageChanged(ctx context.Context, s *services.LotteryService) func(key string) {
	return func(key string) {
		switch key {
		case storage.KeySettings:
			s.ReloadSettings(ctx)
		case storage.KeyWinners:
			s.ReloadHistory(ctx)
		}
	}
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var asCSV bool
	var query string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the winner history",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := storage.Open(cfg.StorageOptions())
			if err != nil {
				return err
			}
			defer kv.Close()

			ctx := cmd.Context()
			settings := services.NewSettingsStore(kv).Load(ctx)
			records := services.Filter(services.NewHistoryStore(kv).LoadAll(ctx), query, settings.PaddedNumber)
			return printHistory(cmd.OutOrStdout(), settings, records, asCSV)
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print as CSV")
	cmd.Flags().StringVarP(&query, "query", "q", "", "only numbers whose padded form contains this")
	return cmd
}

type historyRow struct {
	Number    string `csv:"number"`
	Timestamp string `csv:"timestamp"`
}

func printHistory(w io.Writer, settings models.Settings, records []models.WinnerRecord, asCSV bool) error {
	if asCSV {
		rows := make([]*historyRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, &historyRow{
				Number:    settings.Pad(r.Number),
				Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		return gocsv.Marshal(&rows, w)
	}
	for i, r := range records {
		if _, err := fmt.Fprintf(w, "%4d  %s  %s\n", i+1, settings.Pad(r.Number), r.Timestamp.Local().Format(time.TimeOnly)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d winners\n", len(records))
	return err
}

func newClearCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the winner history",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := storage.Open(cfg.StorageOptions())
			if err != nil {
				return err
			}
			defer kv.Close()
			if err := kv.Delete(cmd.Context(), storage.KeyWinners); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "winner history cleared")
			return nil
		},
	}
}
