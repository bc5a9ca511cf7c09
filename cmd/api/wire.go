package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurmukh6912/token-entry/internal/app"
	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/config"
	"github.com/gurmukh6912/token-entry/internal/domain"
	"github.com/gurmukh6912/token-entry/internal/notify"
	"github.com/gurmukh6912/token-entry/internal/storage/memory"
	"github.com/gurmukh6912/token-entry/internal/storage/postgres"
	transporthttp "github.com/gurmukh6912/token-entry/internal/transport/http"
	"github.com/gurmukh6912/token-entry/migrations"
)

const (
	recentNotifications = 1000
	streamMaxLen        = 100_000
)

// backend bundles the repositories of one storage engine. Every repository
// shares a transaction scope so cross-component operations stay atomic.
type backend struct {
	kind     string
	registry app.RegistryRepository
	market   app.MarketRepository
	ledger   app.LedgerRepository
	roles    app.RoleRepository
	ready    func(ctx context.Context) error
	close    func()
}

// openBackend keeps state in memory when no database url is configured.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, state is kept in memory")
		store := memory.NewStore()
		return &backend{
			kind:     "memory",
			registry: store,
			market:   store,
			ledger:   store,
			roles:    store,
			close:    func() {},
		}, nil
	}

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	version, err := migrations.Version(startupCtx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration version: %w", err)
	}
	logger.Info("database ready", "schema_version", version)

	return &backend{
		kind:     "postgres",
		registry: postgres.NewRegistryRepository(pool),
		market:   postgres.NewMarketRepository(pool),
		ledger:   postgres.NewLedgerRepository(pool),
		roles:    postgres.NewRoleRepository(pool),
		ready:    pool.Ping,
		close:    pool.Close,
	}, nil
}

type application struct {
	services transporthttp.Services
	close    func()
}

// wire builds the services, bootstraps the deployer's roles and picks the
// notification sinks.
func wire(ctx context.Context, cfg config.Config, b *backend, logger *slog.Logger) (*application, error) {
	recorder := notify.NewRecorder(recentNotifications)
	sinks := notify.Multi{notify.NewLogPublisher(logger), recorder}
	closeSinks := func() {}

	if cfg.RedisAddr != "" {
		client, err := notify.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		pub := notify.NewRedisPublisher(client, cfg.NotificationStream, notify.WithMaxLen(streamMaxLen))
		sinks = append(sinks, pub)
		closeSinks = func() { _ = pub.Close() }
		logger.Info("publishing notifications to redis", "stream", pub.Stream())
	}

	deployer, registryAddr, marketAddr, beneficiary := cfg.Accounts()
	clk := clock.NewSystem()
	opts := []app.Option{app.WithNotifier(sinks), app.WithLogger(logger)}

	registryAccess := app.NewAccessControl(domain.ScopeRegistry, b.roles, clk, opts...)
	marketAccess := app.NewAccessControl(domain.ScopeMarket, b.roles, clk, opts...)
	registry := app.NewRegistryService(registryAddr, b.registry, b.ledger, registryAccess, clk, opts...)
	market, err := app.NewMarketService(app.MarketConfig{
		Address:            marketAddr,
		RoyaltyBeneficiary: beneficiary,
	}, registry, b.market, b.ledger, marketAccess, clk, opts...)
	if err != nil {
		closeSinks()
		return nil, fmt.Errorf("market: %w", err)
	}
	wallet := app.NewWalletService(registryAddr, b.ledger, registryAccess, clk, opts...)

	if err := registryAccess.Bootstrap(ctx, deployer, domain.RoleEventManager, domain.RoleValidator); err != nil {
		closeSinks()
		return nil, fmt.Errorf("bootstrap registry roles: %w", err)
	}
	if err := marketAccess.Bootstrap(ctx, deployer); err != nil {
		closeSinks()
		return nil, fmt.Errorf("bootstrap market roles: %w", err)
	}

	return &application{
		services: transporthttp.Services{
			Registry: registry,
			Market:   market,
			Wallet:   wallet,
			Roles: transporthttp.RoleManagers{
				domain.ScopeRegistry: registryAccess,
				domain.ScopeMarket:   marketAccess,
			},
			Notifications: recorder,
			Ready:         b.ready,
		},
		close: closeSinks,
	}, nil
}
