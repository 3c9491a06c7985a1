// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
)

// AppConfig holds service-specific configuration for the InventoryHub API.
//
// WAFFLE's CoreConfig covers the framework-level settings (ports, TLS,
// logging). Everything the document API itself needs lives here and is
// passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer tokens
	JWTSecret string        // HMAC key for signing tokens (at least 32 bytes in production)
	TokenTTL  time.Duration // lifetime of issued tokens

	// Browser clients allowed to call the API (empty disables CORS)
	CORSOrigins []string

	// Membership reconciliation
	SettleDelay   time.Duration // pause between relation write and counter update
	CodeCacheSize int           // join-code → group id cache entries
	CodeCacheTTL  time.Duration

	// Audit logging destinations: all, db, log or off
	AuditLogAuth   string
	AuditLogGroups string

	// Activity log retention (0 keeps entries forever)
	LogRetention  time.Duration
	LogPruneEvery time.Duration

	// Database operation timeouts
	Timeouts timeouts.Config

	// Account promoted to admin at startup, if it exists
	AdminMail string
}
