package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/subcommands"

	"PatternLab/internal/di"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/repository"
	"PatternLab/pkg/config"
	applogger "PatternLab/pkg/logger"
	"PatternLab/pkg/util"
)

// serveCmd runs the HTTP API and job workers until SIGINT/SIGTERM.
type serveCmd struct{}

func (*serveCmd) Name() string             { return "serve" }
func (*serveCmd) Synopsis() string         { return "run the API and job workers" }
func (*serveCmd) Usage() string            { return "serve\n" }
func (*serveCmd) SetFlags(_ *flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	log.Printf("env=%s data=%s clickhouse=%t kafka=%t redis=%t",
		cfg.Environment, cfg.Data.Source, cfg.ClickHouse.Enabled, cfg.Kafka.Enabled, cfg.Redis.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Printf("app initialization failed: %v", err)
		return subcommands.ExitFailure
	}
	if err := app.Run(ctx); err != nil {
		log.Printf("app error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// importCmd copies one symbol/timeframe from the Parquet bar directory into ClickHouse.
type importCmd struct {
	symbol string
	tf     string
	dir    string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "load Parquet bars into ClickHouse" }
func (*importCmd) Usage() string {
	return "import -symbol BTC [-tf 1h] [-dir data/bars]\n"
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "symbol to import")
	f.StringVar(&c.tf, "tf", "1h", "timeframe")
	f.StringVar(&c.dir, "dir", "", "parquet bar directory (default data.parquet_dir)")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	if c.symbol == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := c.run(ctx, cfg); err != nil {
		log.Printf("import failed: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *importCmd) run(ctx context.Context, cfg *config.Config) error {
	if !cfg.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse is disabled in config")
	}
	dir := c.dir
	if dir == "" {
		dir = cfg.Data.ParquetDir
	}

	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	ch, err := di.ProvideClickHouseClient(cfg, l)
	if err != nil {
		return err
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	sym := util.NormalizeSymbol(c.symbol)
	timeframe := domrepo.NormalizeTimeframe(c.tf)
	bars, err := repository.NewParquetBarStore(dir).GetBars(ctx, sym, time.Time{}, time.Time{}, timeframe)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars for %s %s in %s", sym, timeframe, dir)
	}
	if err := repository.NewCHBarStore(ch, cfg.ClickHouse.Database, l).InsertBars(ctx, sym, timeframe, bars); err != nil {
		return err
	}
	l.Info("bars imported", applogger.String("symbol", sym), applogger.String("tf", string(timeframe)), applogger.Int("rows", len(bars)))
	return nil
}
