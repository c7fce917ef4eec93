// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	activitiesfeature "github.com/intorehq/intorehub/internal/app/features/activities"
	attendancefeature "github.com/intorehq/intorehub/internal/app/features/attendance"
	auditlogfeature "github.com/intorehq/intorehub/internal/app/features/auditlog"
	authfeature "github.com/intorehq/intorehub/internal/app/features/auth"
	cellsfeature "github.com/intorehq/intorehub/internal/app/features/cells"
	chatfeature "github.com/intorehq/intorehub/internal/app/features/chat"
	contentfeature "github.com/intorehq/intorehub/internal/app/features/culturalcontent"
	districtsfeature "github.com/intorehq/intorehub/internal/app/features/districts"
	uierrors "github.com/intorehq/intorehub/internal/app/features/errors"
	healthfeature "github.com/intorehq/intorehub/internal/app/features/health"
	groupsfeature "github.com/intorehq/intorehub/internal/app/features/intoregroups"
	mediafeature "github.com/intorehq/intorehub/internal/app/features/media"
	membersfeature "github.com/intorehq/intorehub/internal/app/features/members"
	notificationsfeature "github.com/intorehq/intorehub/internal/app/features/notifications"
	reportsfeature "github.com/intorehq/intorehub/internal/app/features/reports"
	sectorsfeature "github.com/intorehq/intorehub/internal/app/features/sectors"
	activitystore "github.com/intorehq/intorehub/internal/app/store/activities"
	attendancestore "github.com/intorehq/intorehub/internal/app/store/attendance"
	"github.com/intorehq/intorehub/internal/app/store/audit"
	cellstore "github.com/intorehq/intorehub/internal/app/store/cells"
	chatstore "github.com/intorehq/intorehub/internal/app/store/chat"
	contentstore "github.com/intorehq/intorehub/internal/app/store/culturalcontent"
	districtstore "github.com/intorehq/intorehub/internal/app/store/districts"
	groupstore "github.com/intorehq/intorehub/internal/app/store/intoregroups"
	mediastore "github.com/intorehq/intorehub/internal/app/store/media"
	notificationstore "github.com/intorehq/intorehub/internal/app/store/notifications"
	reportstore "github.com/intorehq/intorehub/internal/app/store/reports"
	sectorstore "github.com/intorehq/intorehub/internal/app/store/sectors"
	userstore "github.com/intorehq/intorehub/internal/app/store/users"
	"github.com/intorehq/intorehub/internal/app/system/auditlog"
	"github.com/intorehq/intorehub/internal/app/system/auth"
	"github.com/intorehq/intorehub/internal/app/system/authz"
	"github.com/intorehq/intorehub/internal/app/system/cascade"
	"github.com/intorehq/intorehub/internal/app/system/hierarchy"
	"github.com/intorehq/intorehub/internal/app/system/metrics"
	"github.com/intorehq/intorehub/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// IntoreHub mounts the JSON API: auth, the four hierarchy levels, members,
// activities with attendance, media, chat, notifications, reports, cultural
// content, and the super-admin audit trail.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"

	issuer, err := auth.NewIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, issuer, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Shared plumbing for every feature handler.
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	errLog := uierrors.NewErrorLogger(auditLog, logger)
	resolver := authz.NewResolver(userstore.New(db))
	validator := hierarchy.New(hierarchy.NewMongoRefs(db))
	sync := cascade.New(db, logger)
	limiter := ratelimit.NewLoginLimiter(ratelimit.NewMemoryStore())
	reg := metrics.New()

	users := userstore.New(db)
	districts := districtstore.New(db)
	sectors := sectorstore.New(db)
	cells := cellstore.New(db)
	groups := groupstore.New(db)
	activities := activitystore.New(db)
	att := attendancestore.New(db)
	media := mediastore.New(db)
	chat := chatstore.New(db)
	notifications := notificationstore.New(db)
	reports := reportstore.New(db)
	contents := contentstore.New(db)

	r := chi.NewRouter()

	r.Use(reg.Middleware)
	r.Use(errLog.Recoverer)

	// Loads the signed-in principal from the session cookie or a bearer
	// token; handlers resolve the fresh user record through authz.Resolver.
	r.Use(sessionMgr.LoadPrincipal)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", reg.Handler())

	// Authentication
	authHandler := authfeature.NewHandler(users, sessionMgr, issuer, limiter, auditLog, errLog, logger)
	r.Mount("/auth", authfeature.Routes(authHandler))

	// Hierarchy management
	districtsHandler := districtsfeature.NewHandler(districts, sync, auditLog, errLog, logger)
	r.Mount("/districts", districtsfeature.Routes(districtsHandler))

	sectorsHandler := sectorsfeature.NewHandler(sectors, validator, resolver, sync, auditLog, errLog, logger)
	r.Mount("/sectors", sectorsfeature.Routes(sectorsHandler))

	cellsHandler := cellsfeature.NewHandler(cells, validator, resolver, sync, auditLog, errLog, logger)
	r.Mount("/cells", cellsfeature.Routes(cellsHandler))

	groupsHandler := groupsfeature.NewHandler(groups, validator, resolver, sync, auditLog, errLog, logger)
	r.Mount("/intore-groups", groupsfeature.Routes(groupsHandler))

	// Membership and activity tracking; attendance nests under both.
	attendanceHandler := attendancefeature.NewHandler(att, activities, groups, users, resolver, auditLog, errLog, logger)

	membersHandler := membersfeature.NewHandler(users, validator, resolver, auditLog, errLog, logger)
	r.Mount("/members", membersfeature.Routes(membersHandler, attendanceHandler))

	activitiesHandler := activitiesfeature.NewHandler(activities, groups, resolver, auditLog, errLog, logger)
	r.Mount("/activities", activitiesfeature.Routes(activitiesHandler, attendanceHandler))

	// Media galleries
	mediaHandler := mediafeature.NewHandler(media, activities, groups, resolver, auditLog, errLog, logger)
	r.Mount("/media", mediafeature.Routes(mediaHandler))

	// Group chat
	chatHandler := chatfeature.NewHandler(chat, groups, resolver, auditLog, errLog, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler))

	// Notifications
	notificationsHandler := notificationsfeature.NewHandler(notifications, groups, cells, sectors, resolver, auditLog, errLog, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler))

	// Reports
	reportsHandler := reportsfeature.NewHandler(reports, users, activities, att, groups, cells, sectors, resolver, auditLog, errLog, logger)
	r.Mount("/reports", reportsfeature.Routes(reportsHandler))

	// Cultural content library
	contentHandler := contentfeature.NewHandler(contents, groups, resolver, auditLog, errLog, logger)
	r.Mount("/cultural-contents", contentfeature.Routes(contentHandler))

	// Audit trail (super admin only)
	auditHandler := auditlogfeature.NewHandler(audit.New(db), errLog, logger)
	r.Mount("/audit-logs", auditlogfeature.Routes(auditHandler))

	return r, nil
}
