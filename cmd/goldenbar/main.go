package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goldenbar/internal/archive"
	"goldenbar/internal/cache"
	"goldenbar/internal/calendar"
	"goldenbar/internal/config"
	"goldenbar/internal/domain"
	"goldenbar/internal/gather/ths"
	"goldenbar/internal/quote"
	"goldenbar/internal/render"
	"goldenbar/internal/store"
	"goldenbar/internal/util"
)

func main() {
	cfgPath := "config/goldenbar.yaml"
	if p := os.Getenv("GOLDENBAR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("usage: goldenbar <update|probe>")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch args[0] {
	case "update":
		err = runUpdate(ctx, cfg)
	case "probe":
		err = runProbe(ctx, cfg)
	default:
		fmt.Printf("unknown command %q, expected update or probe\n", args[0])
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
	}
}

// runUpdate performs one full gathering pass over the configured symbol pool.
func runUpdate(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Batch.Symbols) == 0 {
		return fmt.Errorf("no symbols configured under batch.symbols")
	}
	if cfg.Output.THSDir == "" {
		return fmt.Errorf("output.ths_dir is not configured")
	}
	if err := os.MkdirAll(cfg.Output.THSDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	cstore := store.NewCSVStore(cfg.Storage.DataDir)

	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = cfg.Storage.DataDir + "/goldenbar.db"
	}
	roster, err := store.NewSQLiteStore(sqlitePath)
	if err != nil {
		return fmt.Errorf("opening roster store: %w", err)
	}
	defer roster.Close()

	var mirror *store.MirrorStore
	if cfg.Storage.ParquetDir != "" {
		mirror = store.NewMirrorStore(cfg.Storage.ParquetDir)
	}

	quoteClient := quote.NewClient(cfg.Quote.BaseURL(), logger)
	archiveClient := archive.NewClient(cfg.Archive.BaseURL(), cfg.Batch.ArchivePerMin, logger)

	cal := calendar.New(cstore, quoteClient, logger)
	if err := cal.Load(ctx); err != nil {
		return fmt.Errorf("loading trading calendar: %w", err)
	}

	mgr := cache.NewManager(cache.ManagerConfig{
		Store:       cstore,
		Calendar:    cal,
		Quote:       quoteClient,
		Archive:     archiveClient,
		Mirror:      mirror,
		Log:         logger,
		Lookback:    cfg.Batch.Lookback,
		MaxInflight: cfg.Batch.MaxInflight,
	})

	gatherer := ths.New(ths.Config{
		Symbols:  cfg.Batch.Symbols,
		IsIndex:  cfg.Batch.IsIndex,
		Roster:   roster,
		Source:   quoteClient,
		Cache:    mgr,
		Calendar: cal,
		Renderer: render.New(cfg.Output.THSDir, logger),
		Log:      logger,
	})

	logger.Info("starting gatherer", "name", gatherer.Name(), "symbols", len(cfg.Batch.Symbols))
	return gatherer.Run(ctx)
}

// runProbe reports each configured symbol's cache states without fetching.
// When the Parquet mirror is configured it also counts the symbol's mirrored
// bars for the current year.
func runProbe(ctx context.Context, cfg *config.Config) error {
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	cstore := store.NewCSVStore(cfg.Storage.DataDir)
	quoteClient := quote.NewClient(cfg.Quote.BaseURL(), logger)

	var mirror *store.MirrorStore
	if cfg.Storage.ParquetDir != "" {
		mirror = store.NewMirrorStore(cfg.Storage.ParquetDir)
	}

	cal := calendar.New(cstore, quoteClient, logger)
	if err := cal.Load(ctx); err != nil {
		return fmt.Errorf("loading trading calendar: %w", err)
	}

	mgr := cache.NewManager(cache.ManagerConfig{
		Store:    cstore,
		Calendar: cal,
		Quote:    quoteClient,
		Log:      logger,
		Lookback: cfg.Batch.Lookback,
	})

	for _, symbol := range cfg.Batch.Symbols {
		states, err := mgr.Probe(ctx, symbol)
		if err != nil {
			return fmt.Errorf("probing %s: %w", symbol, err)
		}
		line := fmt.Sprintf("%s  1m=%s  pe=%s  vv=%s", symbol,
			states[store.TagMinute], states[store.TagValuation], states[store.TagDaily])
		if mirror != nil {
			now := time.Now().In(domain.CST)
			yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, domain.CST)
			bars, err := mirror.ReadBars(ctx, symbol, yearStart, now)
			if err != nil {
				return fmt.Errorf("reading mirror for %s: %w", symbol, err)
			}
			line += fmt.Sprintf("  mirror=%d", len(bars))
		}
		fmt.Println(line)
	}
	return nil
}
