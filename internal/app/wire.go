package app

import (
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	httpctrl "github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/controller/http"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/dbping"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/postgres"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/alias"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/common"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/stockx"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/config"
	healthdomain "github.com/TheDarkKnight1989/archvd-sub000/internal/domain/health"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
	httpinfra "github.com/TheDarkKnight1989/archvd-sub000/internal/infra/http"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/infra/http/mw/adminauth"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/infra/logx"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/infra/scheduler"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/infra/store"
	healthuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/health"
	marketdatauc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/marketdata"
	reconcileuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/reconcile"
	syncuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/sync"
)

type envErr string

func (e envErr) Error() string { return "missing env: " + string(e) }
func ErrEnv(name string) error { return envErr(name) }

type App struct {
	Router *gin.Engine
	Syncer *scheduler.AutoSyncer
	DB     *sql.DB
	Logger *slog.Logger
}

func Build() (*App, error) {
	log := logx.New(config.AppName)

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, ErrEnv("DB_DSN")
	}
	db, err := store.OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}

	catalogRepo := postgres.NewCatalogRepo(db)
	marketRepo := postgres.NewMarketRepo(db)
	salesRepo := postgres.NewSalesRepo(db)
	opsRepo := postgres.NewOpsRepo(db)
	listingsRepo := postgres.NewListingsRepo(db)
	connsRepo := postgres.NewConnectionsRepo(db)

	clients := buildProviders()
	byName := make(map[string]provider.Client, len(clients))
	for _, cl := range clients {
		byName[cl.Name()] = cl
	}

	syncCfg := config.LoadSync()
	recCfg := config.LoadReconcile()

	orch := &syncuc.Orchestrator{
		Items:        catalogRepo,
		Variants:     catalogRepo,
		Market:       marketRepo,
		Sales:        salesRepo,
		Providers:    clients,
		Regions:      syncCfg.Regions,
		Conditions:   syncCfg.Conditions,
		Consignments: syncCfg.Consignments,
		TTL:          syncCfg.TTL,
		Currency:     syncCfg.Currency,
		Logger:       log,
	}

	market := &marketdatauc.Service{
		Items:     catalogRepo,
		Variants:  catalogRepo,
		Market:    marketRepo,
		Providers: byName,
		TTL:       syncCfg.TTL,
		Currency:  syncCfg.Currency,
		Logger:    log,
	}

	poller := &reconcileuc.Poller{
		Ops:          opsRepo,
		Listings:     listingsRepo,
		Connections:  connsRepo,
		Providers:    byName,
		Timeout:      recCfg.OperationTimeout,
		PollInterval: recCfg.PollSpacing,
		BatchSize:    recCfg.BatchSize,
		Logger:       log,
	}

	submitter := &reconcileuc.Submitter{
		Ops:       opsRepo,
		Variants:  catalogRepo,
		Providers: byName,
		Poller:    poller,
		Logger:    log,
	}

	readiness := &healthuc.ReadinessInteractor{
		Pingers:   []healthdomain.Pinger{dbping.DBPing{DB: db}},
		Version:   config.Version,
		Commit:    config.Commit,
		BuildTime: config.BuildTime,
		StartedAt: config.NewBuildInfo().StartedAt,
		Clock:     healthuc.SysClock{},
		Timeout:   500 * time.Millisecond,
	}

	admin := adminauth.NewFromEnv().Handler()

	router := httpinfra.NewRouter(log)
	httpctrl.NewHealthController(httpctrl.ReadinessRunner{UC: readiness}).Register(router)
	(&httpctrl.SyncController{
		UC:         orch,
		Volumes:    syncCfg.Volumes,
		StaleLimit: syncCfg.StaleLimit,
		Admin:      admin,
	}).Register(router)
	(&httpctrl.MarketDataController{UC: market}).Register(router)
	(&httpctrl.OperationsController{
		Submit: submitter,
		Poll:   poller,
		Ops:    opsRepo,
		Admin:  admin,
	}).Register(router)

	syncer := &scheduler.AutoSyncer{
		Sync:         orch,
		Poller:       poller,
		SyncInterval: syncCfg.Interval,
		StaleLimit:   syncCfg.StaleLimit,
		SyncOpts:     syncuc.Options{Volumes: syncCfg.Volumes},
		PollInterval: recCfg.Interval,
		Logger:       log,
	}

	return &App{Router: router, Syncer: syncer, DB: db, Logger: log}, nil
}

func buildProviders() []provider.Client {
	base := common.DefaultOptionsFromEnv()

	var clients []provider.Client
	for _, name := range []string{stockx.Name, alias.Name} {
		pc := config.LoadProvider(name)
		opts := base
		opts.APIKey = pc.APIKey
		lim := common.NewRateLimiter(pc.RateFloor, pc.RateCeil)
		switch name {
		case stockx.Name:
			clients = append(clients, stockx.New(lim, opts))
		case alias.Name:
			clients = append(clients, alias.New(lim, opts))
		}
	}
	return clients
}
