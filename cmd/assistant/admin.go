package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/memstore"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/postgres"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
)

// runAdmin dispatches admin subcommands (migrate, seed, list-businesses).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "seed":
		return runAdminSeed(args[1:])
	case "list-businesses":
		return runAdminListBusinesses(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: assistant admin <command> [options]

Commands:
  migrate          Apply database migrations
  seed             Load the demo business catalog into PostgreSQL
  list-businesses  List active businesses
  help             Show this help message

Examples:
  assistant admin migrate
  assistant admin seed --migrate
  assistant admin list-businesses
`)
}

func loadAdminStore(ctx context.Context) (*postgres.Store, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewStore(pool), cfg, pool.Close, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := postgres.RunMigrations(context.Background(), cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Migrations applied")
	return nil
}

func runAdminSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	migrate := fs.Bool("migrate", false, "apply migrations before seeding")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, cfg, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if *migrate {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	n, err := memstore.SeedInto(ctx, store)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Seeded %d businesses\n", n)
	return nil
}

func runAdminListBusinesses(args []string) error {
	fs := flag.NewFlagSet("list-businesses", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, _, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	businesses, err := store.ListActiveBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	if len(businesses) == 0 {
		fmt.Println("No active businesses.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPHONE\tTAGS")
	for i := range businesses {
		b := &businesses[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Category, b.Phone, strings.Join(b.Tags, ","))
	}
	return w.Flush()
}
