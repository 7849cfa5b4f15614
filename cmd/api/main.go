package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/ministeam/ministeam-api/api/responses"
	"github.com/ministeam/ministeam-api/api/routes"
	"github.com/ministeam/ministeam-api/internal/auth"
	"github.com/ministeam/ministeam-api/internal/cart"
	"github.com/ministeam/ministeam-api/internal/checkout"
	"github.com/ministeam/ministeam-api/internal/games"
	"github.com/ministeam/ministeam-api/internal/genres"
	"github.com/ministeam/ministeam-api/internal/library"
	"github.com/ministeam/ministeam-api/internal/purchases"
	"github.com/ministeam/ministeam-api/internal/reviews"
	"github.com/ministeam/ministeam-api/internal/users"
	"github.com/ministeam/ministeam-api/internal/wishlist"
	"github.com/ministeam/ministeam-api/pkg/auth/session"
	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/logger"
	"github.com/ministeam/ministeam-api/pkg/metrics"
	"github.com/ministeam/ministeam-api/pkg/migrate"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     strings.EqualFold(cfg.App.LogFormat, "console"),
	})
	responses.EnableDebugDetails(!cfg.App.IsProd())

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.AutoApply(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager, registry)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			registry,
			metrics.NewHTTPMetrics(registry),
			svc,
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	reg prometheus.Registerer,
) (routes.Services, error) {
	conn := dbClient.DB()
	emitter := outbox.NewWriter(outbox.NewRepository(conn), logg)

	usersRepo := users.NewRepository(conn)
	genresRepo := genres.NewRepository(conn)
	gamesRepo := games.NewRepository(conn)
	libraryRepo := library.NewRepository(conn)

	var (
		out  routes.Services
		errs error
		err  error
	)

	out.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	errs = multierr.Append(errs, err)

	out.Users, err = users.NewService(users.ServiceParams{
		Repo:           usersRepo,
		PasswordConfig: cfg.Password,
	})
	errs = multierr.Append(errs, err)

	out.Genres, err = genres.NewService(genres.ServiceParams{DB: dbClient, Repo: genresRepo})
	errs = multierr.Append(errs, err)

	out.Games, err = games.NewService(games.ServiceParams{Repo: gamesRepo, Genres: genresRepo})
	errs = multierr.Append(errs, err)

	out.Library, err = library.NewService(library.ServiceParams{Repo: libraryRepo})
	errs = multierr.Append(errs, err)

	out.Cart, err = cart.NewService(cart.ServiceParams{
		Repo:    cart.NewRepository(conn),
		Games:   gamesRepo,
		Library: libraryRepo,
	})
	errs = multierr.Append(errs, err)

	out.Wishlist, err = wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(conn),
		Games:        gamesRepo,
		Library:      libraryRepo,
	})
	errs = multierr.Append(errs, err)

	out.Purchases, err = purchases.NewService(purchases.ServiceParams{
		DB:     dbClient,
		Repo:   purchases.NewRepository(conn),
		Outbox: emitter,
	})
	errs = multierr.Append(errs, err)

	out.Checkout, err = checkout.NewService(checkout.ServiceParams{
		DB:        dbClient,
		Locker:    redisClient,
		Outbox:    emitter,
		Purchases: out.Purchases,
		Metrics:   metrics.NewCheckoutMetrics(reg),
		Logger:    logg,
		LockTTL:   cfg.Checkout.LockTTL,
	})
	errs = multierr.Append(errs, err)

	out.Reviews, err = reviews.NewService(reviews.ServiceParams{
		DB:      dbClient,
		Repo:    reviews.NewRepository(conn),
		Games:   gamesRepo,
		Library: libraryRepo,
		Outbox:  emitter,
	})
	errs = multierr.Append(errs, err)

	return out, errs
}
