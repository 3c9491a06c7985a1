// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/system/auditlog"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devJWTSecret is accepted outside production only.
const devJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// minJWTSecret is the shortest signing key accepted in production.
const minJWTSecret = 32

// appConfigKeys defines the configuration keys for InventoryHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: INVENTORYHUB_MONGO_URI, INVENTORYHUB_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "inventory_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "jwt_secret", Default: devJWTSecret, Desc: "Token signing key (must be strong in production)"},
	{Name: "token_ttl", Default: "168h", Desc: "Lifetime of issued bearer tokens (e.g., 24h, 168h)"},

	{Name: "cors_origins", Default: "", Desc: "Comma-separated browser origins allowed to call the API"},

	// Membership reconciliation
	{Name: "settle_delay", Default: "500ms", Desc: "Pause between writing a membership and updating the group count"},
	{Name: "code_cache_size", Default: 256, Desc: "Join-code lookup cache entries"},
	{Name: "code_cache_ttl", Default: "10m", Desc: "Join-code lookup cache lifetime"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "log", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_groups", Default: "all", Desc: "Group event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "log_retention", Default: "0", Desc: "Delete activity log entries older than this (e.g., 720h); 0 keeps them"},
	{Name: "log_prune_interval", Default: "1h", Desc: "How often the activity log retention runs"},

	// Database timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Health check ping timeout"},
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for listings and membership changes"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for search, tree and cascading deletes"},

	{Name: "admin_mail", Default: "", Desc: "Mail of an account to promote to admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (INVENTORYHUB_* for the app) and flags with
// precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "INVENTORYHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret: appValues.String("jwt_secret"),
		TokenTTL:  appValues.Duration("token_ttl", auth.DefaultTokenTTL),

		CORSOrigins: splitList(appValues.String("cors_origins")),

		SettleDelay:   appValues.Duration("settle_delay", membership.DefaultSettleDelay),
		CodeCacheSize: appValues.Int("code_cache_size"),
		CodeCacheTTL:  appValues.Duration("code_cache_ttl", 10*time.Minute),

		AuditLogAuth:   appValues.String("audit_log_auth"),
		AuditLogGroups: appValues.String("audit_log_groups"),
		LogRetention:   appValues.Duration("log_retention", 0),
		LogPruneEvery:  appValues.Duration("log_prune_interval", time.Hour),

		Timeouts: timeouts.Config{
			Ping:   appValues.Duration("timeout_ping", timeouts.DefaultPing),
			Short:  appValues.Duration("timeout_short", timeouts.DefaultShort),
			Medium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
			Long:   appValues.Duration("timeout_long", timeouts.DefaultLong),
		},

		AdminMail: appValues.String("admin_mail"),
	}
	return coreCfg, appCfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validDestination(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		return true
	}
	return false
}

// ValidateConfig performs app-specific config validation.
//
// It catches a malformed MongoDB URI before connecting and refuses to run
// production with the development signing key.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}
	if appCfg.MongoDatabase == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		errs = append(errs, errors.New("mongo_min_pool_size exceeds mongo_max_pool_size"))
	}
	if coreCfg != nil && coreCfg.Env == "prod" {
		if appCfg.JWTSecret == devJWTSecret || len(appCfg.JWTSecret) < minJWTSecret {
			errs = append(errs, fmt.Errorf("jwt_secret must be set to at least %d bytes in production", minJWTSecret))
		}
	}
	if appCfg.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if appCfg.SettleDelay < 0 {
		errs = append(errs, errors.New("settle_delay cannot be negative"))
	}
	if appCfg.LogRetention < 0 {
		errs = append(errs, errors.New("log_retention cannot be negative"))
	}
	if appCfg.LogRetention > 0 && appCfg.LogPruneEvery <= 0 {
		errs = append(errs, errors.New("log_prune_interval must be positive when log_retention is set"))
	}
	if !validDestination(appCfg.AuditLogAuth) || !validDestination(appCfg.AuditLogGroups) {
		errs = append(errs, errors.New("audit log settings must be one of all, db, log, off"))
	}
	return errors.Join(errs...)
}
