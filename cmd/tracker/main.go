package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Spok95/bom-tracker/internal/bot"
	"github.com/Spok95/bom-tracker/internal/collection"
	"github.com/Spok95/bom-tracker/internal/config"
	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/images"
	imagesfs "github.com/Spok95/bom-tracker/internal/images/fs"
	imagess3 "github.com/Spok95/bom-tracker/internal/images/s3"
	"github.com/Spok95/bom-tracker/internal/infra/db"
	httpx "github.com/Spok95/bom-tracker/internal/infra/http"
	"github.com/Spok95/bom-tracker/internal/infra/logger"
	"github.com/Spok95/bom-tracker/internal/remote"
	"github.com/Spok95/bom-tracker/internal/remote/memory"
	"github.com/Spok95/bom-tracker/internal/remote/postgres"
	"github.com/Spok95/bom-tracker/internal/remote/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultImagesPrefix = "/images"

func openAdapter(ctx context.Context, cfg config.Config, log *zap.Logger) (remote.Adapter, func(), error) {
	log = log.With(zap.String("component", "remote"), zap.String("driver", cfg.Store.Driver))
	switch remote.Driver(cfg.Store.Driver) {
	case remote.DriverPostgres:
		if err := db.MigratePostgres(ctx, cfg.Postgres.DSN, log); err != nil {
			return remote.Adapter{}, nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return remote.Adapter{}, nil, fmt.Errorf("db connect: %w", err)
		}
		s := postgres.New(pool, cfg.Store.Collection, log)
		return remote.Adapter{Feed: s, Writer: s}, pool.Close, nil

	case remote.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath, cfg.Store.Collection, cfg.Store.PollInterval, log)
		if err != nil {
			return remote.Adapter{}, nil, err
		}
		return remote.Adapter{Feed: s, Writer: s}, func() { _ = s.Close() }, nil

	case remote.DriverMemory:
		s := memory.New(cfg.Store.Collection)
		return remote.Adapter{Feed: s, Writer: s}, func() {}, nil
	}
	return remote.Adapter{}, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openImages(ctx context.Context, cfg config.Config) (bom.ImageResolver, error) {
	ic := cfg.Images
	var inner bom.ImageResolver
	switch images.Driver(ic.Driver) {
	case images.DriverNone:
		return images.None{}, nil
	case images.DriverFS:
		r, err := imagesfs.New(ic.Dir, imagesPrefix(cfg), ic.Extensions)
		if err != nil {
			return nil, err
		}
		inner = r
	case images.DriverS3:
		r, err := imagess3.New(ctx, imagess3.Config{
			Region:          ic.Region,
			Bucket:          ic.Bucket,
			Endpoint:        ic.Endpoint,
			AccessKeyID:     ic.AccessKeyID,
			SecretAccessKey: ic.SecretAccessKey,
			PathStyle:       ic.PathStyle,
			Prefix:          ic.Prefix,
			Extensions:      ic.Extensions,
			PresignExpiry:   ic.PresignExpiry,
			PublicBaseURL:   ic.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		inner = r
	default:
		return nil, fmt.Errorf("unknown images driver %q", ic.Driver)
	}
	return images.NewCached(inner, ic.CacheSize, ic.CacheTTL), nil
}

// imagesPrefix путь, по которому HTTP раздаёт каталог картинок.
func imagesPrefix(cfg config.Config) string {
	p := strings.TrimRight(cfg.Images.PublicBaseURL, "/")
	if p == "" || !strings.HasPrefix(p, "/") {
		return defaultImagesPrefix
	}
	return p
}

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	viewOpts, err := cfg.ViewOptions()
	if err != nil {
		log.Error("views config", zap.Error(err))
		return
	}

	adapter, closeAdapter, err := openAdapter(ctx, cfg, log)
	if err != nil {
		log.Error("remote store init failed", zap.Error(err))
		return
	}
	defer closeAdapter()

	adapter.Images, err = openImages(ctx, cfg)
	if err != nil {
		log.Error("images init failed", zap.Error(err))
		return
	}

	norm := bom.NewNormalizer(adapter.Images, cfg.Images.LookupTimeout, log.With(zap.String("component", "normalizer")))
	store := collection.New(cfg.Store.Collection, adapter.Feed, adapter.Writer, norm,
		collection.WithLogger(log.With(zap.String("component", "collection"))),
	)
	if err := store.Start(ctx); err != nil {
		log.Error("collection start failed", zap.Error(err))
		return
	}
	defer store.Close()
	log.Info("collection subscribed", zap.String("collection", cfg.Store.Collection), zap.String("driver", cfg.Store.Driver))

	httpOpts := httpx.Options{
		Addr:          cfg.HTTP.Addr,
		ExposeMetrics: cfg.Metrics.Enabled,
		JWTSecret:     cfg.Auth.JWTSecret,
		Views:         viewOpts,
	}
	if cache, ok := adapter.Images.(*images.Cached); ok {
		httpOpts.ImageCache = cache
	}
	if images.Driver(cfg.Images.Driver) == images.DriverFS {
		httpOpts.ImagesDir = cfg.Images.Dir
		httpOpts.ImagesPrefix = imagesPrefix(cfg)
	}
	srv := httpx.New(store, httpOpts, log.With(zap.String("component", "http")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server started", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Enabled {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", zap.Error(err))
			return
		}
		log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
		b := bot.New(api, log, store, cfg.Telegram.AdminChatID, viewOpts, cfg.Location())
		g.Go(func() error {
			defer api.StopReceivingUpdates()
			if err := b.Run(gctx, 60); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("telegram bot: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("stopped with error", zap.Error(err))
		return
	}
	log.Info("graceful shutdown complete")
}
