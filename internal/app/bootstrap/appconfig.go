// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level, CORS, and request limits. AppConfig is where
// everything specific to IntoreHub lives.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: intorehub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// JWT bearer tokens for the mobile/API clients
	JWTSecret string        // Signing secret for bearer tokens
	JWTTTL    time.Duration // Token lifetime

	// Audit logging: 'all' (db+log), 'db', 'log', or 'off'
	AuditLogAuth  string // Auth events (login, logout, register)
	AuditLogAdmin string // Admin mutations (hierarchy, members, content)

	// Base URL for links in notifications
	BaseURL string // e.g., "https://intorehub.rw" or "http://localhost:3000"

	// SuperAdmin bootstrap
	SuperAdminEmail    string // Email of the super admin (promotes/creates on startup)
	SuperAdminPassword string // Initial password when the super admin is created
}
