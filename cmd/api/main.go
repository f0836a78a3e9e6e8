package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/catalog"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/events"
	"github.com/orderdesk/orderdesk/internal/httpx"
	"github.com/orderdesk/orderdesk/internal/ledger"
	"github.com/orderdesk/orderdesk/internal/postgres"
	"github.com/orderdesk/orderdesk/internal/redisx"
	"github.com/orderdesk/orderdesk/internal/reporting"
	"github.com/orderdesk/orderdesk/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		products repository.ProductRepository
		orders   repository.OrderRepository
		users    repository.UserRepository
		reports  repository.ReportRepository
		tx       repository.TxManager
	)
	switch cfg.Store {
	case "memory":
		store := repository.NewMemoryStore()
		products = store
		orders = repository.NewMemoryOrders(store)
		users = repository.NewMemoryUsers(store)
		reports = repository.NewMemoryReports(store)
		tx = repository.NewMemoryTx(store)
		log.Warn().Msg("using in-memory store, data is not persisted")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("db connect")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("db migrate")
		}
		products = postgres.NewProducts(db)
		orders = postgres.NewOrders(db)
		users = postgres.NewUsers(db)
		reports = postgres.NewReports(db)
		tx = postgres.NewTxManager(db)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	var pub events.Publisher = events.Nop{}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, log)
		kafkaPub.Start(ctx)
		pub = kafkaPub
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Auth:    auth.NewService(users, cfg.JWTSecret, log),
		Catalog: catalog.NewService(products, orders, tx, log),
		Ledger:  ledger.NewService(products, orders, users, tx, pub, log),
		Reports: reporting.NewService(reports),
		Redis:   rdb,
		Log:     log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if kafkaPub != nil {
		cancel() // stop the publisher loop; it flushes the inbox first
		kafkaPub.WaitClosed()
	}
}
