package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"tablepos/pkg/api"
	"tablepos/pkg/config"
	"tablepos/pkg/intercept"
	"tablepos/pkg/logger"
	"tablepos/pkg/notify"
	"tablepos/pkg/notify/broker"
	"tablepos/pkg/order"
	"tablepos/pkg/order/memory"
	pg "tablepos/pkg/order/postgres"
	"tablepos/pkg/otel"
	"tablepos/pkg/service"
	"tablepos/pkg/session"
	"tablepos/pkg/settings"
	"tablepos/pkg/settings/redisrecord"
)

// @title tablepos API
// @version 1.0
// @description Restaurant point-of-sale: orders, state changes, payments and settings.
// @host localhost:8443
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-Session-ID
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	boot := logger.New(os.Stdout, logger.LevelInfo, "tablepos", nil)
	cfg, err := config.Load(configPath)
	if err != nil {
		boot.Error(context.Background(), "load config", "error", err)
		return err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		boot.Warn(context.Background(), "bad log level, using info", "level", cfg.LogLevel)
	}
	log := logger.New(os.Stdout, level, "tablepos", otel.GetTraceID)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdown, err := otel.InitTracing(log, otel.Config{ServiceName: "tablepos", Host: cfg.OTELHost, Probability: cfg.TraceProbability})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		return err
	}
	defer shutdown(context.Background())
	tracer := tp.Tracer("tablepos")

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "open repository", "error", err)
		return err
	}
	defer closeRepo()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn(ctx, "redis unreachable, logins will fail until it is up", "addr", cfg.RedisAddr, "error", err)
	}

	var record settings.Record = settings.FileRecord{Path: cfg.SettingsFile}
	if cfg.SettingsBackend == "redis" {
		record = redisrecord.New(rdb, cfg.SettingsKey)
	}
	cfgHandle := settings.NewHandle(record, log)
	cfgHandle.Instance(ctx)

	observers := []notify.Observer{notify.NewKitchen(log), notify.NewWaiter(log), notify.NewAdmin(log)}
	if cfg.AMQPURL != "" {
		fwd, conn, err := broker.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn(ctx, "event forwarding disabled", "error", err)
		} else {
			defer conn.Close()
			observers = append(observers, fwd)
			log.Info(ctx, "forwarding events", "exchange", cfg.AMQPExchange)
		}
	}

	orders := service.New(repo, notify.NewRegistry(log), cfgHandle, log, service.Options{
		Observers:         observers,
		ReleaseOnTerminal: cfg.ReleaseOnTerminal,
	})
	srv := api.New(api.Deps{
		Orders:   orders,
		Settings: cfgHandle,
		Sessions: session.New(rdb, cfg.SessionTTL),
		Auth:     cfg,
		Chain:    intercept.Standard(intercept.Policy(cfg.Permissions), log),
		Tracer:   tracer,
		Log:      log,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Routes()}
	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr, "tls", cfg.TLSCert != "")
		if cfg.TLSCert != "" {
			errc <- httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server closed", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error(sctx, "shutdown", "error", err)
			return err
		}
	}
	return nil
}

func openRepository(ctx context.Context, cfg config.Config, log *logger.Logger) (order.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn(ctx, "DATABASE_URL not set, orders are kept in memory")
		return memory.New(), func() {}, nil
	}
	db, err := sql.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	repo := pg.New(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info(ctx, "postgres ready", "driver", cfg.DBDriver)
	return repo, func() { db.Close() }, nil
}
