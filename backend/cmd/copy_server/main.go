package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"copyEditor/backend/config"
	"copyEditor/backend/internal/blocks"
	"copyEditor/backend/internal/cache"
	"copyEditor/backend/internal/events"
	"copyEditor/backend/internal/httpapi"
	"copyEditor/backend/internal/store"
	"copyEditor/backend/internal/ws"
)

func initConfig() (*config.Config, error) {
	fs := pflag.NewFlagSet("copy_server", pflag.ExitOnError)
	path := fs.String("config", "", "path to copyConfig.yaml")
	fs.Int("port", 3000, "listen port")
	fs.String("document", "default", "document name (cache key / event key)")
	fs.String("store-driver", "file", "file | mysql | postgres")
	fs.String("store-path", "./data/copy.json", "document file for the file driver")
	fs.String("store-dsn", "", "DSN for mysql / postgres")
	_ = fs.Parse(os.Args[1:])
	return config.Load(*path, fs)
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: port=%d store=%s document=%s", cfg.Running.Port, cfg.Store.Driver, cfg.Document.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动时打开或创建文档，失败直接退出
	st, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    cfg.Store.DSN,
	})
	if err != nil {
		log.Fatalf("open store failed: %v", err)
	}
	defer st.Close()
	if fs, ok := st.(*store.FileStore); ok {
		log.Printf("document file: %s", fs.Path())
	}

	// 多实例共享 redis 时用于识别自己发布的事件
	instance := uuid.NewString()
	opt := blocks.Options{Document: cfg.Document.Name, Instance: instance}

	// === Redis 缓存（可选）===
	if len(cfg.Redis.Addrs) > 0 {
		// 一个地址是单机，多个地址是 cluster
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		opt.Cache = cache.NewRedisDocument(rdb, cfg.Document.Name)
	}

	// === Kafka 事件（可选）===
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()

		kopt := events.DefaultKafkaDispatcherOptions()
		kopt.Workers = cfg.Kafka.Workers
		dispatcher := events.NewKafkaDispatcher(
			producer,
			cfg.Kafka.Topic,
			events.NewSemaphoreControl(events.DefaultMaxSemaphore),
			kopt,
		)
		// 先于 producer.Close 执行
		defer dispatcher.Close()
		opt.Publisher = dispatcher
	}

	var hub *ws.Hub
	if cfg.Server.LiveFeed {
		hub = ws.NewHub()
		opt.Notifier = hub
		// 其他实例的合并经 redis pub/sub 转发到本实例的订阅者
		if opt.Cache != nil {
			go func() {
				err := opt.Cache.Subscribe(ctx, hub.RelayMerged(instance))
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("redis subscribe stopped: %v", err)
				}
			}()
		}
	}

	svc := blocks.NewService(st, opt)
	r := httpapi.NewRouter(svc, hub, httpapi.RouterOptions{
		EnableCORS:   cfg.Server.EnableCORS,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		WSOrigins:    cfg.Server.WSOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Running.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("copy server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
