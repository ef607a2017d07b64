// Package router assembles the HTTP API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dtroode/mindhealer-server/internal/api/http/handler"
	"github.com/dtroode/mindhealer-server/internal/api/http/middleware"
	"github.com/dtroode/mindhealer-server/internal/api/ws"
	"github.com/dtroode/mindhealer-server/internal/forum"
	"github.com/dtroode/mindhealer-server/internal/logger"
	"github.com/dtroode/mindhealer-server/internal/metrics"
	"github.com/dtroode/mindhealer-server/internal/model"
	"github.com/dtroode/mindhealer-server/internal/service"
)

// Options carries the non-service settings of the router.
type Options struct {
	ServiceName    string
	AllowedOrigins []string
	Cookie         handler.CookieConfig
	// AuthRateLimit requests per AuthRateWindow per client IP on credential endpoints.
	// Zero disables limiting.
	AuthRateLimit  int
	AuthRateWindow time.Duration
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

type Router struct {
	authService    *service.Auth
	tokenService   *service.TokenService
	coordinator    *forum.Coordinator
	store          handler.Pinger
	metrics        *metrics.Metrics
	contextManager model.ContextManager
	opts           Options
	ws             *ws.Handler
	logger         *logger.Logger
}

func New(
	authService *service.Auth,
	tokenService *service.TokenService,
	coordinator *forum.Coordinator,
	store handler.Pinger,
	metrics *metrics.Metrics,
	contextManager model.ContextManager,
	opts Options,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		tokenService:   tokenService,
		coordinator:    coordinator,
		store:          store,
		metrics:        metrics,
		contextManager: contextManager,
		opts:           opts,
		ws:             ws.NewHandler(coordinator, opts.AllowedOrigins, logger),
		logger:         logger,
	}
}

// CloseConnections closes the forum websocket connections. Register it as an
// HTTP server shutdown hook.
func (r *Router) CloseConnections() {
	r.ws.Close()
}

// Register builds the handler tree.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)

	mux := chi.NewRouter()
	mux.Use(chimiddleware.RequestID)
	if r.opts.TrustProxy {
		mux.Use(chimiddleware.RealIP)
	}
	mux.Use(
		logging.Handle,
		chimiddleware.Recoverer,
	)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	health := handler.NewHealth(r.store, r.logger)
	mux.Get("/healthz", health.Live)
	mux.Get("/readyz", health.Ready)
	mux.Method(http.MethodGet, "/metrics", r.metrics.Handler())

	mux.Handle("/ws", r.ws)

	mux.Route("/api", func(api chi.Router) {
		api.Use(r.metrics.Middleware)
		api.Use(otelhttp.NewMiddleware(r.opts.ServiceName))

		r.registerAuthRoutes(api)
		r.registerForumRoutes(api)
	})

	return mux
}

func (r *Router) registerAuthRoutes(api chi.Router) {
	auth := handler.NewAuth(r.authService, r.tokenService, r.contextManager, r.opts.Cookie, r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, r.logger)

	api.Route("/auth", func(g chi.Router) {
		g.Group(func(limited chi.Router) {
			if r.opts.AuthRateLimit > 0 {
				limited.Use(httprate.LimitByIP(r.opts.AuthRateLimit, r.opts.AuthRateWindow))
			}
			limited.Post("/signup", auth.Signup)
			limited.Post("/login", auth.Login)
			limited.Post("/refresh-token", auth.Refresh)
			limited.Post("/logout", auth.Logout)
		})

		g.With(authenticate.Handle).Get("/user", auth.User)
	})
}

func (r *Router) registerForumRoutes(api chi.Router) {
	f := handler.NewForum(r.coordinator)
	api.Get("/forum/rooms", f.Rooms)
}
