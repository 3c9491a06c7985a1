// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/inventoryhub/internal/app/features/auditlog"
	browsefeature "github.com/dalemusser/inventoryhub/internal/app/features/browse"
	collectionsfeature "github.com/dalemusser/inventoryhub/internal/app/features/collections"
	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/inventoryhub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/inventoryhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/inventoryhub/internal/app/features/login"
	userinfofeature "github.com/dalemusser/inventoryhub/internal/app/features/userinfo"
	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/store/logs"
	"github.com/dalemusser/inventoryhub/internal/app/store/mongostore"
	"github.com/dalemusser/inventoryhub/internal/app/system/auditlog"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for the document API.
//
// WAFFLE calls this after configuration, the DB connection, schema setup
// and Startup have completed.
//
// Layout:
//
//	/health              liveness and database ping
//	/metrics             Prometheus exposition
//	/public/auth/*       login and registration (rate limited)
//	/private/*           bearer token required
//
// Under /private the static group, browse, activity and account routes are
// registered on the same router as the generic /{collection} routes; chi
// matches static segments first.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := auth.NewTokenManager(appCfg.JWTSecret, appCfg.TokenTTL, logger)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}
	httpjson.SetLogger(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db := deps.MongoDatabase
	store := mongostore.New(db, logger)
	logStore := logs.New(db)
	audit := auditlog.New(logStore, logger, auditlog.Config{
		Auth:   appCfg.AuditLogAuth,
		Groups: appCfg.AuditLogGroups,
	})

	members := membership.New(store, logger,
		membership.WithSettleDelay(appCfg.SettleDelay),
		membership.WithCodeCache(appCfg.CodeCacheSize, appCfg.CodeCacheTTL),
		membership.WithMetrics(membership.NewMetrics(reg)),
	)
	inv := inventory.New(store, logger)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		securityHeaders(coreCfg.Env == "dev"),
	)
	if len(appCfg.CORSOrigins) > 0 {
		r.Use(corsHandler(appCfg.CORSOrigins))
	}
	r.NotFound(apierrors.NotFound)
	r.MethodNotAllowed(apierrors.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Authentication
	loginHandler := loginfeature.NewHandler(db, tokens, audit, logger)
	r.Mount("/public/auth", loginfeature.Routes(loginHandler))

	groupsHandler := groupsfeature.NewHandler(members, inv, audit, logger)
	collectionsHandler := collectionsfeature.NewHandler(store, inv, members, logger)
	collectionsHandler.OnDelete(storage.Groups, groupsHandler.DeleteGroup)

	r.Route("/private", func(pr chi.Router) {
		pr.Use(tokens.LoadTokenUser)
		pr.Use(auth.RequireSignedIn)
		pr.Use(ratelimit.API())

		groupsfeature.Routes(pr, groupsHandler)
		browsefeature.Routes(pr, browsefeature.NewHandler(inv, members, logger))
		auditlogfeature.Routes(pr, auditlogfeature.NewHandler(logStore, members, logger))
		userinfofeature.Routes(pr, userinfofeature.NewHandler(db, members, audit, logger))

		// Generic document routes last.
		collectionsfeature.Routes(pr, collectionsHandler)
	})

	return r, nil
}

// securityHeaders sets HSTS and the usual browser hardening headers. In dev
// HSTS and the SSL checks are skipped.
func securityHeaders(dev bool) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		STSSeconds:            63072000,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		IsDevelopment:         dev,
	})
	return sec.Handler
}

// corsHandler admits browser clients from origins. Credentials are never
// allowed; the API takes bearer tokens only.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
