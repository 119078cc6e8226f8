package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"smartqueue/internal/admin/admin_api"
	"smartqueue/internal/auth"
	"smartqueue/internal/config"
	"smartqueue/internal/customer/customer_api"
	"smartqueue/internal/logger"
	"smartqueue/internal/queue/queue_api"
	"smartqueue/internal/ratelimit"
)

type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Auth     *auth.Middleware
	Queue    *queue_api.Handler
	Admin    *admin_api.Handler
	Customer *customer_api.Handler
}

// NewRouter wires every route under /api plus /healthz.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if d.Config.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(accessLog(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limiter := ratelimit.NewRateLimiter(d.Config.RateLimit.RequestsPerSecond, d.Config.RateLimit.Burst)

	r.Route("/api", func(r chi.Router) {
		d.Queue.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit)
			r.Group(func(r chi.Router) {
				r.Use(d.Auth.OptionalScope(auth.ScopeCustomer))
				d.Queue.RegisterBookingRoutes(r)
			})
			d.Admin.RegisterPublicRoutes(r)
			d.Customer.RegisterPublicRoutes(r)
		})
		d.Logger.Info("ROUTER", "Public routes registered under /api")

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireScope(auth.ScopeCustomer))
			d.Customer.RegisterCustomerRoutes(r)
			d.Queue.RegisterCustomerRoutes(r)
		})
		d.Logger.Info("ROUTER", "Customer routes registered under /api/customer")

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireScope(auth.ScopeAdmin))
			d.Queue.RegisterAdminRoutes(r)
			d.Admin.RegisterAdminRoutes(r)
		})
		d.Logger.Info("ROUTER", "Admin routes registered under /api/admin")

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireScope(auth.ScopeSuperAdmin))
			d.Admin.RegisterSuperAdminRoutes(r)
		})
		d.Logger.Info("ROUTER", "Super-admin routes registered under /api/super-admin")
	})

	return r
}

func accessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).String())
		})
	}
}
