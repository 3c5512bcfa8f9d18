package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: migrate [-dir DIR] <command> [args]")
		fmt.Fprintln(os.Stderr, "commands: up, down, status, version, up-to N, down-to N, migrate-to N")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "ocean-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	ctx := context.Background()
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	sqlDB, err := client.DB().DB()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sql handle:", err)
		os.Exit(1)
	}

	command := args[0]
	if command == "migrate-to" {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "migrate-to requires a version")
			os.Exit(2)
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, args[1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := migrate.Run(ctx, sqlDB, *dir, command, args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
