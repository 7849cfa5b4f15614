package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ministeam/ministeam-api/api/controllers"
	authcontrollers "github.com/ministeam/ministeam-api/api/controllers/auth"
	cartcontrollers "github.com/ministeam/ministeam-api/api/controllers/cart"
	gamecontrollers "github.com/ministeam/ministeam-api/api/controllers/games"
	genrecontrollers "github.com/ministeam/ministeam-api/api/controllers/genres"
	librarycontrollers "github.com/ministeam/ministeam-api/api/controllers/library"
	purchasecontrollers "github.com/ministeam/ministeam-api/api/controllers/purchases"
	reviewcontrollers "github.com/ministeam/ministeam-api/api/controllers/reviews"
	usercontrollers "github.com/ministeam/ministeam-api/api/controllers/users"
	wishlistcontrollers "github.com/ministeam/ministeam-api/api/controllers/wishlist"
	"github.com/ministeam/ministeam-api/api/middleware"
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
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/logger"
	"github.com/ministeam/ministeam-api/pkg/metrics"
	pkgredis "github.com/ministeam/ministeam-api/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	middleware.RateCounter
}

// Services bundles the domain services mounted by the router.
type Services struct {
	Auth      auth.Service
	Users     users.Service
	Genres    genres.Service
	Games     games.Service
	Cart      cart.Service
	Wishlist  wishlist.Service
	Checkout  checkout.Service
	Purchases purchases.Service
	Library   library.Service
	Reviews   reviews.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	sessions session.AccessSessionChecker,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.CORS),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["database"] = dbP
	}
	if redisStore != nil {
		deps["redis"] = redisStore
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	authenticate := middleware.Auth(cfg.JWT, sessions, logg)
	adminOnly := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(signupPolicy, redisStore, logg)).Post("/signup", authcontrollers.Signup(svc.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, redisStore, logg)).Post("/login", authcontrollers.Login(svc.Auth, logg))
			r.Post("/refresh", authcontrollers.Refresh(svc.Auth, logg))
			r.Post("/logout", authcontrollers.Logout(svc.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Get("/profile", usercontrollers.Profile(svc.Users, logg))
				r.Put("/{userId}", usercontrollers.Update(svc.Users, logg))

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/", usercontrollers.List(svc.Users, logg))
					r.Get("/stats", usercontrollers.Stats(svc.Users, logg))
					r.Get("/{userId}", usercontrollers.Get(svc.Users, logg))
					r.Delete("/{userId}", usercontrollers.Delete(svc.Users, logg))
				})
			})
		})

		r.Route("/genres", func(r chi.Router) {
			r.Get("/", genrecontrollers.List(svc.Genres, logg))
			r.Get("/{genreId}", genrecontrollers.Get(svc.Genres, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticate, adminOnly)
				r.Post("/", genrecontrollers.Create(svc.Genres, logg))
				r.Put("/{genreId}", genrecontrollers.Update(svc.Genres, logg))
				r.Delete("/{genreId}", genrecontrollers.Delete(svc.Genres, logg))
			})
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gamecontrollers.List(svc.Games, logg))
			r.Get("/search", gamecontrollers.Search(svc.Games, logg))
			r.Get("/top-rated", gamecontrollers.TopRated(svc.Games, logg))
			r.Get("/featured", gamecontrollers.Featured(svc.Games, logg))
			r.Get("/platforms", gamecontrollers.Platforms(svc.Games, logg))
			r.Get("/genre/{genreId}", gamecontrollers.ByGenre(svc.Games, logg))
			r.Get("/{gameId}/reviews", reviewcontrollers.ListForGame(svc.Reviews, logg))
			r.Get("/{gameId}", gamecontrollers.Get(svc.Games, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticate, adminOnly)
				r.Post("/", gamecontrollers.Create(svc.Games, logg))
				r.Put("/{gameId}", gamecontrollers.Update(svc.Games, logg))
				r.Delete("/{gameId}", gamecontrollers.Delete(svc.Games, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Idempotency(redisStore, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
				r.Post("/", cartcontrollers.CartAdd(svc.Cart, logg))
				r.Delete("/", cartcontrollers.CartClear(svc.Cart, logg))
				r.Delete("/{gameId}", cartcontrollers.CartRemove(svc.Cart, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistcontrollers.Get(svc.Wishlist, logg))
				r.Post("/", wishlistcontrollers.Add(svc.Wishlist, logg))
				r.Delete("/", wishlistcontrollers.Clear(svc.Wishlist, logg))
				r.Delete("/{gameId}", wishlistcontrollers.Remove(svc.Wishlist, logg))
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Post("/", purchasecontrollers.Checkout(svc.Checkout, logg))
				r.Get("/my-purchases", purchasecontrollers.ListMine(svc.Purchases, logg))

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/", purchasecontrollers.ListAll(svc.Purchases, logg))
					r.Get("/stats", purchasecontrollers.SalesStats(svc.Purchases, logg))
					r.Patch("/{purchaseId}/payment-status", purchasecontrollers.UpdatePaymentStatus(svc.Purchases, logg))
				})

				r.Get("/{purchaseId}", purchasecontrollers.Get(svc.Purchases, logg))
			})

			r.Route("/library", func(r chi.Router) {
				r.Get("/", librarycontrollers.List(svc.Library, logg))
				r.Get("/stats", librarycontrollers.Stats(svc.Library, logg))
				r.Get("/recent", librarycontrollers.Recent(svc.Library, logg))
				r.Get("/{gameId}", librarycontrollers.Get(svc.Library, logg))
				r.Patch("/{gameId}/status", librarycontrollers.UpdateStatus(svc.Library, logg))
				r.Patch("/{gameId}/playtime", librarycontrollers.AddPlaytime(svc.Library, logg))
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Post("/", reviewcontrollers.Create(svc.Reviews, logg))
				r.Get("/mine", reviewcontrollers.ListMine(svc.Reviews, logg))
				r.Put("/{reviewId}", reviewcontrollers.Update(svc.Reviews, logg))
				r.Delete("/{reviewId}", reviewcontrollers.Delete(svc.Reviews, logg))
			})
		})
	})

	return r
}
