package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	_ "krishilink/docs"
	"krishilink/pkg/logger"
	"krishilink/pkg/market"
	"krishilink/pkg/market/mongo"
	"krishilink/pkg/market/postgres"
	"krishilink/pkg/otel"
)

// @title KrishiLink API
// @version 1.0
// @description Crop marketplace: listings, buyer interests, owner decisions
// @BasePath /
func main() {
	log, err := logger.New("krishilink", otel.GetTraceID)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error(context.Background(), "startup", "error", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx := context.Background()

	otelHost := envOr("OTEL_HOST", "localhost:4317")
	tp, shutdownTracing, err := otel.InitTracing(otel.Config{
		ServiceName: "krishilink",
		Host:        otelHost,
		Probability: 1.0,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(ctx)

	repo, closeStore, err := openStore(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	a := newAPI(log, repo, rdb, tp.Tracer("krishilink"))

	port := envOr("PORT", "5000")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      a.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	log.Info(ctx, "shutting down gracefully")
	shutCtx, shutCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutCancel()
	return srv.Shutdown(shutCtx)
}

// openStore connects the repository selected by STORE_DRIVER. MongoDB is the
// default; a connection failure here is fatal by design.
func openStore(ctx context.Context, log *logger.Logger) (market.Repository, func(), error) {
	switch os.Getenv("STORE_DRIVER") {
	case "postgres":
		db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, nil, err
		}
		repo, err := postgres.New(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info(ctx, "store connected", "driver", "postgres")
		return repo, func() { db.Close() }, nil

	default:
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongodrv.Connect(connCtx, mongoopts.Client().ApplyURI(envOr("MONGO_URI", "mongodb://localhost:27017")))
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.New(client.Database(envOr("DB_NAME", "krishilink")))
		if err := repo.Ping(connCtx); err != nil {
			client.Disconnect(ctx)
			return nil, nil, err
		}
		log.Info(ctx, "store connected", "driver", "mongo")
		disconnect := func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			client.Disconnect(dctx)
		}
		return repo, disconnect, nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
