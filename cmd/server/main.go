package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/config"
	"github.com/quickcourt/reservation-core/internal/database"
	"github.com/quickcourt/reservation-core/internal/handler"
	"github.com/quickcourt/reservation-core/internal/middleware"
	"github.com/quickcourt/reservation-core/internal/queue"
	"github.com/quickcourt/reservation-core/internal/repository"
	"github.com/quickcourt/reservation-core/internal/router"
	"github.com/quickcourt/reservation-core/internal/service"
	"github.com/quickcourt/reservation-core/internal/utils"
)

func main() {
	cfg := config.Load()
	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// stores bundles the backing implementations selected by STORE.
type stores struct {
	db           *sql.DB
	catalog      service.CatalogStore
	reservations service.ReservationStore
	users        accountStore
	tokens       handler.TokenStore
}

type accountStore interface {
	handler.UserStore
	handler.AccountAdmin
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	seed, err := repository.LoadSeed(cfg.CatalogSeed)
	if err != nil {
		return stores{}, err
	}
	if cfg.Store == "memory" {
		mem := repository.NewMemory()
		if err := mem.Apply(ctx, seed, cfg.BcryptCost); err != nil {
			return stores{}, err
		}
		log.Info("using in-memory store", zap.Int("venues", len(seed.Venues)))
		return stores{catalog: mem, reservations: mem, users: mem, tokens: mem}, nil
	}

	db, err := database.Open(database.Config{
		Driver:   cfg.Store,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSL,
	}, log)
	if err != nil {
		return stores{}, err
	}
	if cfg.Migrate {
		if err := database.Migrate(ctx, db, cfg.Store, log); err != nil {
			_ = db.Close()
			return stores{}, err
		}
	}
	d := repository.Dialect(cfg.Store)
	users := repository.NewUserRepo(db, d)
	catalog := repository.NewCatalogRepo(db, d)
	if err := catalog.Apply(ctx, seed, users, cfg.BcryptCost); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		db:           db,
		catalog:      catalog,
		reservations: repository.NewReservationRepo(db, d),
		users:        users,
		tokens:       repository.NewTokenRepo(db, d),
	}, nil
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb := config.NewRedisClient(cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	policy := service.Policy{
		ServiceFeeCents: cfg.ServiceFeeCents,
		MinLeadTime:     cfg.MinLeadTime,
		CancelCutoff:    cfg.CancelCutoff,
	}
	now := service.Clock(time.Now)

	var windows service.WindowCache
	if rdb != nil {
		windows = repository.NewWindowCache(rdb, "avail", cfg.WindowCacheTTL)
	}

	catalog := service.NewCatalog(st.catalog, log)
	avail := service.NewAvailability(catalog, st.reservations, windows, policy, now, log)
	ledger := service.NewLedger(catalog, avail, st.reservations, policy, now, log)
	orch := service.NewOrchestrator(catalog, avail, ledger, policy, now, log)
	hub := handler.NewAvailabilityHub(avail, log)

	ledger.Subscribe(avail)
	ledger.SubscribeAsync(hub, 0)

	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange, log)
		defer pub.Close()
		ledger.SubscribeAsync(pub, 0)

		audit := &queue.AuditConsumer{
			URL:      cfg.RabbitURL,
			Exchange: cfg.RabbitExchange,
			Queue:    queue.AuditQueue,
			Path:     cfg.AuditLogPath,
			Log:      log,
		}
		go audit.Run(ctx)
	} else {
		log.Info("RABBITMQ_URL not set, reservation events are not published")
	}

	go ledger.RunSweeper(ctx, cfg.SweepInterval)
	// Runs before pub.Close so queued events still reach the broker.
	defer ledger.Close()

	var otps handler.OTPStore
	if rdb != nil {
		otps = repository.NewRedisOTPStore(rdb, "otp", cfg.OTPMaxAttempts)
	} else {
		otps = repository.NewMemoryOTPStore(cfg.OTPMaxAttempts)
	}

	respCache := middleware.NewResponseCache(cfg.Cache, rdb, log)
	admin := handler.NewAdminHandler(catalog, ledger, st.users, st.tokens, log)
	admin.Cache = respCache

	e := newServer(cfg, log, rdb, respCache, router.Handlers{
		Health:  &handler.HealthHandler{DB: st.db, Redis: rdb, Store: cfg.Store},
		Auth:    handler.NewAuthHandler(cfg, st.users, st.tokens, otps, handler.LogOTPSender{Log: log}, log),
		Catalog: handler.NewCatalogHandler(catalog, avail, log),
		Hub:     hub,
		Booking: handler.NewBookingHandler(orch, log),
		Owner:   handler.NewOwnerHandler(orch, log),
		Admin:   admin,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newServer(cfg config.Config, log *zap.Logger, rdb *redis.Client, cache *middleware.ResponseCache, h router.Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.Register(e, h, cfg.JWTSecret, cache.Middleware())
	return e
}
