// Package membership adds and removes users from groups while keeping each
// group's denormalized userCount in step with its userGroup relations.
//
// Join:  validate ids, check capacity, create the relation (retried, each
// attempt re-reads what it wrote), settle, then bump userCount.
// Leave: validate ids, find the relation, delete it once, then decrement
// userCount (floored at 0).
//
// userCount updates are read-modify-write without concurrency control. A
// failed update after the relation changed is logged and counted as drift,
// never returned to the caller. Once the relation has changed, the counter
// update runs on a context detached from the caller's cancellation and
// bounded by CounterTimeout.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"github.com/dalemusser/inventoryhub/internal/app/system/retry"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultSettleDelay is the pause between a confirmed relation write and
// the counter update.
const DefaultSettleDelay = 500 * time.Millisecond

// CounterTimeout bounds the userCount update that follows a relation change.
const CounterTimeout = 5 * time.Second

// Reconciler runs membership changes against a storage binding.
type Reconciler struct {
	store   storage.Storage
	retry   retry.Policy
	settle  time.Duration
	codes   *expirable.LRU[string, string]
	metrics *Metrics
	log     *zap.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRetry replaces the relation-write retry policy.
func WithRetry(p retry.Policy) Option { return func(r *Reconciler) { r.retry = p } }

// WithSettleDelay replaces DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option { return func(r *Reconciler) { r.settle = d } }

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option { return func(r *Reconciler) { r.metrics = m } }

// WithCodeCache sizes the join-code cache.
func WithCodeCache(size int, ttl time.Duration) Option {
	return func(r *Reconciler) { r.codes = expirable.NewLRU[string, string](size, nil, ttl) }
}

// New returns a Reconciler over store.
func New(store storage.Storage, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		store:  store,
		retry:  retry.Default,
		settle: DefaultSettleDelay,
		log:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.codes == nil {
		r.codes = expirable.NewLRU[string, string](256, nil, 10*time.Minute)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	if r.retry.Log == nil {
		r.retry.Log = logger
	}
	onRetry := r.retry.OnRetry
	r.retry.OnRetry = func(attempt int, err error) {
		r.metrics.WriteRetries.Inc()
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return r
}

type pair struct {
	user, group       string
	userOID, groupOID primitive.ObjectID
}

func validate(userID, groupID any) (pair, error) {
	uid, err := ids.ObjectID(userID)
	if err != nil {
		return pair{}, fmt.Errorf("%w: user id", ErrInvalidIdentifier)
	}
	gid, err := ids.ObjectID(groupID)
	if err != nil {
		return pair{}, fmt.Errorf("%w: group id", ErrInvalidIdentifier)
	}
	return pair{user: uid.Hex(), group: gid.Hex(), userOID: uid, groupOID: gid}, nil
}

// Join adds userID to groupID and returns the group with its updated
// userCount. When the counter update fails the returned group is the one
// read during the capacity check with userCount incremented locally.
func (r *Reconciler) Join(ctx context.Context, userID, groupID any) (models.Group, error) {
	g, err := r.join(ctx, userID, groupID)
	if err != nil {
		r.metrics.fail("join", err)
		return models.Group{}, err
	}
	r.metrics.Joins.Inc()
	return g, nil
}

func (r *Reconciler) join(ctx context.Context, userID, groupID any) (models.Group, error) {
	p, err := validate(userID, groupID)
	if err != nil {
		return models.Group{}, err
	}

	g, err := r.group(ctx, p.group)
	if err != nil {
		return models.Group{}, err
	}
	if g.Full() {
		return models.Group{}, ErrGroupFull
	}

	relID, err := r.createRelation(ctx, p)
	if err != nil {
		return models.Group{}, err
	}
	r.log.Debug("membership relation created",
		zap.String("relation_id", relID),
		zap.String("user_id", p.user),
		zap.String("group_id", p.group))

	// A cancelled settle only cuts the wait short; the relation stands.
	if err := retry.Sleep(ctx, r.settle); err != nil {
		r.log.Debug("settle delay cut short", zap.String("group_id", p.group), zap.Error(err))
	}

	cctx, cancel := detached(ctx)
	defer cancel()
	updated, err := r.adjustCount(cctx, p.group, +1)
	if err != nil {
		r.drift("join", p, err)
		g.UserCount++
		return g, nil
	}
	return updated, nil
}

func (r *Reconciler) createRelation(ctx context.Context, p pair) (string, error) {
	attempt := 0
	id, err := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		attempt++
		id, err := r.store.Create(ctx, storage.UserGroup, models.UserGroup{GroupID: p.groupOID, UserID: p.userOID})
		if errors.Is(err, storage.ErrConflict) {
			// A conflict after a failed attempt is most likely our own
			// earlier write landing; confirm it instead of refusing.
			if attempt > 1 {
				if existing, lerr := r.relationID(ctx, p); lerr == nil && existing != "" {
					return existing, nil
				}
			}
			return "", retry.Permanent(ErrAlreadyMember)
		}
		if err != nil {
			return "", err
		}
		var rel models.UserGroup
		if err := r.store.Get(ctx, storage.UserGroup, id, &rel); err != nil {
			return "", fmt.Errorf("%w: %w", errUnconfirmed, err)
		}
		if rel.UserID != p.userOID || rel.GroupID != p.groupOID {
			return "", errUnconfirmed
		}
		return id, nil
	})
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, ErrAlreadyMember):
		return "", err
	case ctx.Err() != nil:
		return "", ctx.Err()
	}
	return "", fmt.Errorf("%w: %w", ErrMembershipWriteFailed, err)
}

// Leave removes userID from groupID and returns the group with its updated
// userCount.
func (r *Reconciler) Leave(ctx context.Context, userID, groupID any) (models.Group, error) {
	g, err := r.leave(ctx, userID, groupID)
	if err != nil {
		r.metrics.fail("leave", err)
		return models.Group{}, err
	}
	r.metrics.Leaves.Inc()
	return g, nil
}

func (r *Reconciler) leave(ctx context.Context, userID, groupID any) (models.Group, error) {
	p, err := validate(userID, groupID)
	if err != nil {
		return models.Group{}, err
	}

	relID, err := r.relationID(ctx, p)
	if err != nil {
		return models.Group{}, fmt.Errorf("look up membership: %w", err)
	}
	if relID == "" {
		return models.Group{}, ErrNotAMember
	}

	if err := r.store.Delete(ctx, storage.UserGroup, relID); err != nil {
		return models.Group{}, fmt.Errorf("%w: %w", ErrLeaveFailed, err)
	}

	cctx, cancel := detached(ctx)
	defer cancel()
	updated, err := r.adjustCount(cctx, p.group, -1)
	if err != nil {
		r.drift("leave", p, err)
		return models.Group{ID: p.groupOID}, nil
	}
	return updated, nil
}

// CheckUserInGroup reports whether a relation exists for the pair.
func (r *Reconciler) CheckUserInGroup(ctx context.Context, groupID, userID any) (bool, error) {
	id, err := r.GetUserGroupID(ctx, groupID, userID)
	return id != "", err
}

// GetUserGroupID returns the relation id for the pair, or "" when the user
// is not a member.
func (r *Reconciler) GetUserGroupID(ctx context.Context, groupID, userID any) (string, error) {
	p, err := validate(userID, groupID)
	if err != nil {
		return "", err
	}
	return r.relationID(ctx, p)
}

func (r *Reconciler) relationID(ctx context.Context, p pair) (string, error) {
	var rels []models.UserGroup
	err := r.store.Query(ctx, storage.UserGroup, storage.Filter{"userId": p.user, "groupId": p.group}, &rels)
	if err != nil {
		return "", err
	}
	if len(rels) == 0 {
		return "", nil
	}
	return rels[0].ID.Hex(), nil
}

func (r *Reconciler) group(ctx context.Context, id string) (models.Group, error) {
	var g models.Group
	if err := r.store.Get(ctx, storage.Groups, id, &g); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Group{}, ErrGroupNotFound
		}
		return models.Group{}, fmt.Errorf("load group: %w", err)
	}
	return g, nil
}

// detached keeps ctx's values but not its cancellation, for work that must
// follow a committed relation change.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), CounterTimeout)
}

// adjustCount re-reads the group and writes userCount+delta, floored at 0.
func (r *Reconciler) adjustCount(ctx context.Context, groupID string, delta int32) (models.Group, error) {
	g, err := r.group(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	n := g.UserCount + delta
	if n < 0 {
		n = 0
	}
	if err := r.store.Update(ctx, storage.Groups, groupID, map[string]any{"userCount": n}); err != nil {
		return models.Group{}, fmt.Errorf("update userCount: %w", err)
	}
	g.UserCount = n
	return g, nil
}

func (r *Reconciler) drift(op string, p pair, err error) {
	r.metrics.CounterDrift.WithLabelValues(op).Inc()
	r.log.Warn("counter drift: userCount not updated",
		zap.String("op", op),
		zap.String("user_id", p.user),
		zap.String("group_id", p.group),
		zap.Error(err))
}
