package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/futarchy-labs/futarchyd/internal/config"
	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/events"
	"github.com/futarchy-labs/futarchyd/internal/indexer"
	"github.com/futarchy-labs/futarchyd/internal/server"
	"github.com/futarchy-labs/futarchyd/internal/storage/keyValueDb"
	leveldbstore "github.com/futarchy-labs/futarchyd/internal/storage/keyValueDb/leveldb"
	pebblestore "github.com/futarchy-labs/futarchyd/internal/storage/keyValueDb/pebble"
	"github.com/futarchy-labs/futarchyd/internal/storage/statestore"
)

var serverAddr string

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the futarchy market daemon",
	Long: `Start futarchyd, which provides:
- HTTP JSON-RPC API for transactions and market queries
- WebSocket event subscriptions
- Persistent market state with an optional relational event index

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Running with no subcommand starts the server
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}

	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address override")
}

// loadConfig resolves the configuration: an explicit --conf path, then the
// default file when present, then built-in defaults.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadConfig(configFile)
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.LoadConfig(config.DefaultConfigPath())
	}
	return config.LoadDefaultConfig()
}

// openDatabase opens the configured key-value backend and returns the DB with
// its closer.
func openDatabase(cfg *config.Config) (keyValueDb.DB, func() error, error) {
	switch cfg.Database.Backend {
	case "memory":
		return keyValueDb.NewMemoryDB(), func() error { return nil }, nil
	case "pebble":
		manager := pebblestore.NewManager(cfg.Database.Path)
		db, err := manager.OpenDB("state")
		if err != nil {
			return nil, nil, err
		}
		return db, manager.Close, nil
	case "leveldb":
		manager := leveldbstore.NewManager(cfg.Database.Path)
		db, err := manager.OpenDB("state")
		if err != nil {
			return nil, nil, err
		}
		return db, manager.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.Server.Addr = serverAddr
	}

	db, closeDB, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDB()

	store, err := statestore.New(db, statestore.Options{CacheSize: cfg.Database.CacheSize})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	hub := events.NewHub()
	defer hub.Close()

	node := server.NewNode(store, market.SystemClock{}, market.NewAccountingFeeManager(),
		hub, cfg.Market.Params(), cfg.DAOID)
	svc := server.NewService(node, cfg.Server.Addr,
		time.Duration(cfg.Server.RequestTimeoutMS)*time.Millisecond)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Indexer.Enabled {
		idx, err := indexer.Open(ctx, cfg.Indexer.SQLConfig())
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer idx.Close()

		sub := hub.Subscribe()
		g.Go(func() error {
			err := idx.Run(ctx, sub)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.Journal.Enabled {
		f, err := os.OpenFile(cfg.Journal.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer f.Close()

		journal := events.NewJournalWriter(f)
		sub := hub.Subscribe()
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-sub.C():
					if !ok {
						return nil
					}
					if err := journal.Append(ev); err != nil {
						log.Printf("journal append failed: %v", err)
					}
				}
			}
		})
	}

	g.Go(func() error { return svc.Run(ctx) })

	if !quiet {
		fmt.Printf("futarchyd serving DAO %d\n", cfg.DAOID)
		fmt.Printf("  - HTTP JSON-RPC: http://%s/\n", cfg.Server.Addr)
		fmt.Printf("  - WebSocket:     ws://%s/ws\n", cfg.Server.Addr)
		fmt.Printf("  - Database:      %s\n", cfg.Database.Backend)
		if cfg.Indexer.Enabled {
			fmt.Printf("  - Indexer:       %s\n", cfg.Indexer.Driver)
		}
	}

	return g.Wait()
}
