// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/inventoryhub/internal/app/store/logs"
	userstore "github.com/dalemusser/inventoryhub/internal/app/store/users"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/dalemusser/inventoryhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

var errAdminNotRegistered = errors.New("admin_mail account is not registered")

// pruner enforces log_retention between Startup and Shutdown.
var pruner *workers.LogPruner

// Startup runs one-time initialization after the schema is in place and
// before the handler is built. It applies the configured timeouts, starts
// the log retention worker and promotes the configured admin account.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(appCfg.Timeouts)

	if appCfg.LogRetention > 0 {
		pruner = workers.NewLogPruner(logs.New(deps.MongoDatabase), logger, appCfg.LogPruneEvery, appCfg.LogRetention)
		pruner.Start()
	}

	if appCfg.AdminMail != "" {
		err := ensureAdmin(ctx, deps, appCfg.AdminMail, logger)
		if errors.Is(err, errAdminNotRegistered) {
			// The account may register later; the next start promotes it.
			logger.Warn("admin account not found", zap.String("mail", appCfg.AdminMail))
			return nil
		}
		return err
	}
	return nil
}

// ensureAdmin promotes the account with mail to admin.
func ensureAdmin(ctx context.Context, deps DBDeps, mail string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	found, err := userstore.New(deps.MongoDatabase).PromoteAdmin(ctx, mail)
	if err != nil {
		logger.Error("promote admin failed", zap.Error(err))
		return err
	}
	if !found {
		return errAdminNotRegistered
	}
	logger.Info("admin account ensured", zap.String("mail", mail))
	return nil
}
