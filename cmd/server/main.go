package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oitbase/roomledger/internal/api"
	"github.com/oitbase/roomledger/internal/billing"
	"github.com/oitbase/roomledger/internal/config"
	"github.com/oitbase/roomledger/internal/directory"
	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/rooms"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/store"
)

const defaultSigningKey = "5mJr2CSQ1xHk0LW0yZ1K3Y8Q2dZ0o4qR7Tt1l9XGvhs="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dbDriver       string
	dsn            string
	migrationsDir  string
	signingKey     string
	allowedOrigins stringSliceFlag
	gracePeriod    time.Duration
	configFile     string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dbDriver, "db-driver", config.DriverMemory, "storage backend (postgres, sqlite, memory)")
	flag.StringVar(&dsn, "dsn", "", "database connection string")
	flag.StringVar(&migrationsDir, "migrations", "migrations", "postgres migrations directory")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&gracePeriod, "grace-period", billing.DefaultGracePeriod, "grace period after subscription lapse")
	flag.StringVar(&configFile, "config", "", "optional config file (overrides flags)")
	flag.Parse()

	logger := log.New(os.Stderr, "[roomledger] ", log.LstdFlags)

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.FromEnv(configFile)
	} else {
		cfg, err = config.NewConfig(addr, dbDriver, dsn, migrationsDir, signingKey, allowedOrigins, gracePeriod)
	}
	if err != nil {
		logger.Fatal("config:", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("store open:", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Println("store close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	for _, name := range []string{
		stats.AccountsCreated,
		stats.AccountsDeleted,
		stats.InvitesRedeemed,
		stats.DemoRedemptions,
		stats.RoomsCreated,
		stats.RoomsDeleted,
		stats.GraceExpiries,
	} {
		statsUpdater.RegisterMetric(name)
	}

	bus := events.NewBus()
	ids := identity.NewDevProvider(st, cfg.SigningKey)
	ledger := rooms.NewLedger(st, bus, statsUpdater, logger)
	dir := directory.NewDirectory(st, ledger, ids, logger)
	provider := billing.NewStoreProvider(st)

	rec := billing.NewReconciler(dir, ledger, provider, bus, billing.SystemClock{}, statsUpdater, logger)
	rec.GracePeriod = cfg.GracePeriod
	defer rec.Stop()

	if err := rec.RescheduleAll(context.Background()); err != nil {
		logger.Fatal("reschedule grace timers:", err)
	}

	srv := api.NewRoomLedgerApp(mux, logger, dir, ledger, rec, provider, ids, bus, statsUpdater, st, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pg, err := store.NewPgStore(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(cfg.MigrationsDir); err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverSqlite:
		return store.NewSqliteStore(cfg.DatabaseDSN)
	default:
		return store.NewMemStore(), nil
	}
}
