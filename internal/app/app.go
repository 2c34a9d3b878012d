package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/relay"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/internal/repository/room/memory"
	"github.com/sharetube/watchparty/internal/repository/room/postgres"
	roomcache "github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/internal/stats"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
	"golang.org/x/sync/errgroup"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	shutdownTimeout = 30 * time.Second
)

type AppConfig struct {
	Secret         string        `json:"-"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	LogLevel       string        `json:"log_level"`
	AllowedOrigins []string      `json:"allowed_origins"`
	Store          string        `json:"store"`
	DatabaseDSN    string        `json:"-"`
	RedisEnabled   bool          `json:"redis_enabled"`
	RedisHost      string        `json:"redis_host"`
	RedisPort      int           `json:"redis_port"`
	RedisPassword  string        `json:"-"`
	MemberCacheTTL time.Duration `json:"member_cache_ttl"`
	SyncEventLimit int           `json:"sync_event_limit"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must be set")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range", cfg.Port)
	}
	if cfg.SyncEventLimit < 1 {
		return errors.New("sync event limit must be greater than 0")
	}

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseDSN == "" {
			return errors.New("database dsn must be set for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.RedisEnabled && cfg.MemberCacheTTL <= 0 {
		return errors.New("member cache ttl must be greater than 0")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

func newLogger(cfg *AppConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel)))

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

func openStore(ctx context.Context, cfg *AppConfig) (roomrepo.Repo, func(), error) {
	if cfg.Store == StoreMemory {
		return memory.NewRepo(), func() {}, nil
	}

	if err := postgres.Migrate(cfg.DatabaseDSN); err != nil {
		return nil, nil, err
	}

	store, err := postgres.NewRepo(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}

	return store, func() { store.Close() }, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	return run(ctx, cfg, nil)
}

// run is Run with a hook receiving the bound listen address.
func run(ctx context.Context, cfg *AppConfig, onListen func(addr string)) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer closeStore()

	var (
		roomRepo roomrepo.Repo = store
		rl       *relay.Relay
	)
	if cfg.RedisEnabled {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()

		roomRepo = roomcache.NewRepo(store, rc, cfg.MemberCacheTTL, logger)
		rl = relay.New(rc, logger)
	}

	st := stats.New()
	connRepo := inmemory.NewRepo[room.Conn]()

	// a nil *relay.Relay must not reach the service as a non-nil publisher
	svc := room.NewService(roomRepo, connRepo, nil, st, logger, cfg.SyncEventLimit)
	if rl != nil {
		svc = room.NewService(roomRepo, connRepo, rl, st, logger, cfg.SyncEventLimit)
	}

	ctrl := controller.NewController(svc, identity.NewVerifier(cfg.Secret), st, logger, cfg.AllowedOrigins)

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	server := &http.Server{
		Handler:           ctrl.GetMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(gctx, "starting server", "address", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})

	if rl != nil {
		g.Go(func() error {
			return rl.Run(gctx, svc)
		})
	}

	if onListen != nil {
		onListen(ln.Addr().String())
	}

	return g.Wait()
}
