// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	auditlogfeature "github.com/dalemusser/courierhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/courierhub/internal/app/features/authgoogle"
	consignmentsfeature "github.com/dalemusser/courierhub/internal/app/features/consignments"
	corporatesfeature "github.com/dalemusser/courierhub/internal/app/features/corporates"
	diagnosticsfeature "github.com/dalemusser/courierhub/internal/app/features/diagnostics"
	errorsfeature "github.com/dalemusser/courierhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/courierhub/internal/app/features/health"
	invoicingfeature "github.com/dalemusser/courierhub/internal/app/features/invoicing"
	loginfeature "github.com/dalemusser/courierhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/courierhub/internal/app/features/logout"
	officeusersfeature "github.com/dalemusser/courierhub/internal/app/features/officeusers"
	userinfofeature "github.com/dalemusser/courierhub/internal/app/features/userinfo"
	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for CourierHub.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so the allocator and audit logger are ready.
// Everything is JSON; the router carries request ids, panic recovery and
// the session user, then mounts one router per feature.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.svc == nil || deps.svc.allocator == nil {
		return nil, fmt.Errorf("BuildHandler called before Startup")
	}
	svc := deps.svc
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Refresh the principal on each request so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(auth.KindFetchers{
		auth.KindOfficeUser: officeuserstore.NewFetcher(db),
		auth.KindCorporate:  corporatestore.NewFetcher(db),
	})

	errorsHandler := errorsfeature.NewHandler(logger)

	r := chi.NewRouter()
	r.Use(httpapi.RequestID)
	r.Use(errorsHandler.Recover)
	r.Use(sessionMgr.LoadSessionUser)
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	limiter := ratelimit.NewLoginLimiterWithConfig(appCfg.LoginIPLimit, appCfg.LoginLimitWindow, appCfg.LoginEmailLimit, appCfg.LoginLimitWindow)
	loginHandler := loginfeature.NewHandler(db, sessionMgr, limiter, svc.audit, logger)
	r.Mount("/api/auth/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.audit, logger)
	r.Mount("/api/auth/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	googleHandler := authgooglefeature.NewHandler(db, sessionMgr, svc.audit,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	// Consignment ranges, numbers and usage
	consignmentsHandler := consignmentsfeature.NewHandler(db, svc.allocator, svc.audit, logger)
	r.Mount("/api/consignments", consignmentsfeature.Routes(consignmentsHandler, sessionMgr))

	invoicingHandler := invoicingfeature.NewHandler(db, svc.allocator, svc.audit, logger)
	r.Mount("/api/invoicing", invoicingfeature.Routes(invoicingHandler, sessionMgr))

	diagnosticsHandler := diagnosticsfeature.NewHandler(svc.allocator, logger)
	r.Mount("/api/diagnostics", diagnosticsfeature.Routes(diagnosticsHandler, sessionMgr))

	// Account administration
	corporatesHandler := corporatesfeature.NewHandler(db, svc.audit, logger)
	r.Mount("/api/corporates", corporatesfeature.Routes(corporatesHandler, sessionMgr))

	officeUsersHandler := officeusersfeature.NewHandler(db, svc.audit, logger)
	r.Mount("/api/office-users", officeusersfeature.Routes(officeUsersHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(db, logger)
	r.Mount("/api/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}
