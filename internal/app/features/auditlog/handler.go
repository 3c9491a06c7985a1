// Package auditlog serves a group's activity log: creation, joins, leaves
// and deletion, newest first.
package auditlog

import (
	"context"

	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/store/logs"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.uber.org/zap"
)

// Source reads activity entries; *logs.Store implements it.
type Source interface {
	Query(ctx context.Context, filter logs.QueryFilter) ([]models.Log, error)
	Count(ctx context.Context, filter logs.QueryFilter) (int64, error)
}

type Handler struct {
	Logs    Source
	Members *membership.Reconciler
	Log     *zap.Logger
}

// NewHandler constructs an activity log handler.
func NewHandler(src Source, members *membership.Reconciler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Logs: src, Members: members, Log: logger}
}
