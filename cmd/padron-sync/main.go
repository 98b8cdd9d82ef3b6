package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"padron-sync/internal/config"
	"padron-sync/internal/database"
	"padron-sync/internal/differ"
	"padron-sync/internal/feed"
	"padron-sync/internal/loader"
	"padron-sync/internal/logger"
	"padron-sync/internal/normalizer"
	"padron-sync/internal/repository"
	"padron-sync/internal/resolver"
	"padron-sync/internal/service"
)

func main() {
	feedName := flag.String("feed", "", "feed to reconcile: css | demi")
	source := flag.String("source", "local", "extract source: local | ftp | gcs")
	file := flag.String("file", "", "extract file path (overrides the feed default, local source only)")
	reportPath := flag.String("report", "", "write the run report as .xlsx to this path")
	flag.Parse()

	f := feed.ByName(*feedName)
	if f == nil {
		fmt.Fprintf(os.Stderr, "unknown feed %q (want css or demi)\n", *feedName)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "padron-sync")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	dataLoader, err := buildLoader(cfg, f, *source, *file, zlog)
	if err != nil {
		zlog.Fatal("Failed to build extract loader", zap.Error(err))
	}

	var lock *service.RunLock
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			zlog.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		lock = service.NewRunLock(client, zlog)
	}

	locations := repository.NewLocationRepository(db, zlog)
	snapshots := repository.NewSnapshotRepository(db, zlog)
	members := repository.NewMemberRepository(db, zlog)

	norm := normalizer.New(f, resolver.New(locations, zlog), zlog)
	engine := service.NewEngine(f, dataLoader, snapshots, members, norm, differ.New(zlog), lock, zlog)

	rep, err := engine.Run(ctx)
	if err != nil {
		zlog.Fatal("Reconciliation run failed", zap.Error(err))
	}

	zlog.Info("Run complete", zap.String("summary", rep.Summary()))

	if *reportPath != "" {
		if err := rep.WriteXLSX(*reportPath); err != nil {
			zlog.Error("Failed to write report", zap.String("path", *reportPath), zap.Error(err))
			os.Exit(1)
		}
		zlog.Info("Report written", zap.String("path", *reportPath))
	}

	if rep.Failed > 0 {
		os.Exit(1)
	}
}

func buildLoader(cfg *config.Config, f *feed.Feed, source, file string, zlog *zap.Logger) (loader.DataLoader, error) {
	switch source {
	case "local":
		path := file
		if path == "" {
			path = f.SourceFile
		}
		return loader.NewLocalLoader(path, f.Delimiter, zlog), nil
	case "ftp":
		if cfg.FTP.Host == "" {
			return nil, fmt.Errorf("FTP_HOST is required for the ftp source")
		}
		return loader.NewFTPLoader(cfg.FTP, f.FTPDir, f.SourceFile, f.Delimiter, zlog), nil
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("GCLOUD_BUCKET is required for the gcs source")
		}
		return loader.NewGCSLoader(cfg.Bucket, f.BucketPrefix, f.BucketExtractDelimiter(), zlog), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want local, ftp or gcs)", source)
	}
}
