package main

import (
	"checkout-service/internal/config"
	httpctrl "checkout-service/internal/controllers/http"
	"checkout-service/internal/events"
	"checkout-service/internal/idempotency"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/infra/kafka"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/metrics"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository"
	"checkout-service/internal/repository/memory"
	mysqlrepo "checkout-service/internal/repository/mysql"
	"checkout-service/internal/security"
	"checkout-service/internal/services"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("config: load", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("config: validate", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fatal("store: open", err)
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         redisAddr(cfg.RedisHost),
			DB:           0,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var catalog infra.CatalogClient = infra.NewProductClient(cfg.ProductServiceURL, cfg.ProductTimeout)
	var cache events.CacheInvalidator
	var idem *idempotency.Store
	if rdb != nil {
		cached := infra.NewCachedCatalog(catalog, rdb, cfg.ProductCacheTTL)
		catalog, cache = cached, cached
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)

		if len(cfg.CacheWarmupIDs) > 0 {
			go func() {
				if err := cached.Warmup(ctx, cfg.CacheWarmupIDs); err != nil {
					slog.Warn("product cache warmup failed", "error", err)
					return
				}
				slog.Info("product cache warmed up", "products", len(cfg.CacheWarmupIDs))
			}()
		}
	} else {
		slog.Warn("REDIS_HOST not set, product cache and idempotency keys are disabled")
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		fatal("events: publisher", err)
	}
	dispatcher := events.NewDispatcher(publisher, cache, 5*time.Second)

	m := metrics.New(prometheus.DefaultRegisterer)
	gw := gateway.NewClient(cfg.Gateway)
	signer := gateway.NewSigner(cfg.Gateway.MerchantSecret)
	policy := pricing.Policy{
		TaxRatePercent:        cfg.TaxRatePercent,
		ShippingFee:           cfg.ShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}

	svc := httpctrl.Services{
		Carts:    services.NewCartService(store, catalog, dispatcher, cfg.ReservationTTL),
		Checkout: services.NewCheckoutService(store, catalog, gw, dispatcher, policy, cfg.Gateway.Name, cfg.PaymentHoldWindow),
		Payments: services.NewPaymentService(store, gw, signer, dispatcher, m, cfg.Gateway.Name),
		Wallets:  services.NewWalletService(store, gw, signer, dispatcher, m, cfg.Gateway.Name),
		Admin:    services.NewOrderAdminService(store, dispatcher),
	}

	sweeper := services.NewReservationSweeper(store, dispatcher, m)
	go sweeper.Run(ctx, cfg.SweepInterval)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), m.Middleware())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := httpctrl.NewHandler(svc, idem)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("starting checkout service", "port", cfg.Port, "store", cfg.StoreDriver, "broker", cfg.EventBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server run", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}

	dispatcher.Wait()
	if c, ok := publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("publisher close", "error", err)
		}
	}
}

func openStore(cfg *config.Config) (repository.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	sealer, err := security.NewSealerFromHex(cfg.PayoutDetailsKey)
	if err != nil {
		return nil, nil, err
	}
	db, err := mmysql.Open(cfg.MySQL)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return mysqlrepo.NewStore(db, sealer), func() { sqlDB.Close() }, nil
}

// openPublisher returns nil when events are turned off.
func openPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		return rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.EventExchange)
	case "kafka":
		return kafka.NewPublisher(kafka.NewClient(cfg.KafkaBrokers), cfg.KafkaTopic), nil
	}
	return nil, nil
}

func redisAddr(host string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return host + ":6379"
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
