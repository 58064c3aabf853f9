package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirdesai22/padel-score/internal/api"
	"github.com/sirdesai22/padel-score/internal/config"
	"github.com/sirdesai22/padel-score/internal/db"
	"github.com/sirdesai22/padel-score/internal/elastic"
	"github.com/sirdesai22/padel-score/internal/match"
	"github.com/sirdesai22/padel-score/internal/metrics"
	"github.com/sirdesai22/padel-score/internal/storage"
	"github.com/sirdesai22/padel-score/internal/storage/gormstore"
	"github.com/sirdesai22/padel-score/internal/storage/memory"
	"github.com/sirdesai22/padel-score/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	var store storage.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Println("⚠️ Using in-memory store, data is lost on restart")
		store = memory.New()

	case config.BackendPostgres:
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if err := db.Migrate(pg); err != nil {
			log.Fatalf("❌ %v", err)
		}
		if cfg.SeedDemo {
			if err := db.Seed(pg); err != nil {
				log.Fatalf("❌ seed failed: %v", err)
			}
		}

		var opts []gormstore.Option
		if cfg.SearchSyncEnabled() {
			opts = append(opts, gormstore.WithOutbox())

			es, err := elastic.Connect(cfg.ElasticURL)
			if err != nil {
				log.Fatalf("❌ %v", err)
			}
			worker := &workers.SyncWorker{DB: pg, ES: es, Interval: cfg.SyncInterval, BatchSize: cfg.SyncBatchSize}
			go func() {
				if err := worker.Run(ctx); err != nil {
					log.Printf("❌ sync worker stopped: %v", err)
				}
			}()
			sched, err := worker.ScheduleDLQRetry(ctx, cfg.DLQRetryInterval)
			if err != nil {
				log.Fatalf("❌ %v", err)
			}
			defer func() { _ = sched.Shutdown() }()

			admin := &api.Admin{DB: pg, Worker: worker}
			admin.Register(mux)
			log.Println("🔄 Search sync running")
		}
		store = gormstore.New(pg, opts...)
	}

	server := api.New(match.NewService(store), store)
	server.Register(mux)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsMiddleware.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🏓 Match API running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API listener failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
