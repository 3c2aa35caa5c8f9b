package bootstrap

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"markalloc/internal/bootstrap/config"
	"markalloc/internal/bootstrap/database"
	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/bootstrap/tracing"
	cacheinfra "markalloc/internal/infrastructure/cache"
	"markalloc/internal/infrastructure/notify"
	sqliterepo "markalloc/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "markalloc/internal/infrastructure/persistence/sqlite/uow"
	"markalloc/internal/ports"
	"markalloc/internal/usecase/allocation"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideTracing),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewAllocationRepository,
			fx.As(new(ports.AllocationRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewReferenceRepository,
			fx.As(new(ports.ReferenceRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewScoreTableOracle,
			fx.As(new(ports.ScoringOracle)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			notify.NewLogNotifier,
			fx.As(new(ports.Notifier)),
		),
	),
	fx.Provide(provideAllocationService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideTracing(lc fx.Lifecycle, cfg config.Config) (trace.TracerProvider, error) {
	provider, err := tracing.New(cfg.App.Name, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: provider.Shutdown,
	})
	return provider.TracerProvider(), nil
}

type serviceParams struct {
	fx.In

	Config   config.Config
	Repo     ports.AllocationRepository
	Ref      ports.ReferenceRepository
	UoW      ports.UnitOfWork
	Oracle   ports.ScoringOracle
	Cache    ports.Cache
	Notifier ports.Notifier
	Tracer   trace.TracerProvider
}

func provideAllocationService(p serviceParams) *allocation.Service {
	return allocation.NewService(p.Repo, p.UoW, p.Oracle,
		allocation.WithReferenceRepository(p.Ref),
		allocation.WithCache(p.Cache),
		allocation.WithNotifier(p.Notifier),
		allocation.WithTracerProvider(p.Tracer),
		allocation.WithSettings(allocation.Settings{
			ScoringWorkers: p.Config.Allocation.ScoringWorkers,
			ResponseWindow: p.Config.Allocation.ResponseWindow,
		}),
	)
}
