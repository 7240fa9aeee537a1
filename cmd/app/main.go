package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"

	"PatternLab/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&serveCmd{}, "")
	subcommands.Register(&importCmd{}, "data")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	if flag.NArg() == 0 {
		os.Exit(int((&serveCmd{}).Execute(ctx, flag.CommandLine, cfg)))
	}
	os.Exit(int(subcommands.Execute(ctx, cfg)))
}
