package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/andikarap/voucher-shop/internal/catalog"
	"github.com/andikarap/voucher-shop/internal/config"
	"github.com/andikarap/voucher-shop/internal/guard"
	"github.com/andikarap/voucher-shop/internal/httpx"
	kafkax "github.com/andikarap/voucher-shop/internal/kafka"
	"github.com/andikarap/voucher-shop/internal/postgres"
	"github.com/andikarap/voucher-shop/internal/redisx"
	"github.com/andikarap/voucher-shop/internal/shop"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Catalog
	cat := catalog.Default()
	if cfg.CatalogJSON != "" {
		cat, err = catalog.Parse(cfg.CatalogJSON)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}

	// Guard: Redis bila tersedia, kalau tidak in-process
	var adm shop.Guard
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr, cfg.RedisDB)
		defer rdb.Close()
		adm = guard.NewRedis(rdb, cfg.RateLimit, cfg.RateWindow)
	} else {
		log.Printf("REDIS_ADDR not set, rate limiting is per-instance only")
		adm = guard.NewMemory(cfg.RateLimit, cfg.RateWindow)
	}

	engine := shop.NewEngine(cat, &postgres.LedgerStore{DB: db}, &postgres.CodePool{DB: db}, adm, cfg.OrderTTL)

	// Kafka producer (optional)
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024)
		prod.Start(ctx)
		engine.Events = &kafkax.EventSink{Producer: prod, Service: cfg.ServiceName}
	}

	// Router & handler
	router := httpx.NewRouter()
	sh := &httpx.ShopHandler{Shop: engine, AdminToken: cfg.AdminToken}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // tutup inbox -> flush & close writer
		cancel()     // stop producer loop
		prod.WaitClosed()
	}
}
