package membership

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.uber.org/zap"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// CodeLength is the length of a group join code.
	CodeLength = 8

	maxCodeAttempts = 5
)

// NewCode returns a random join code of CodeLength alphanumeric characters.
func NewCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidCode reports whether code has the join-code shape.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// GroupByCode resolves a join code to its group.
func (r *Reconciler) GroupByCode(ctx context.Context, code string) (models.Group, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return models.Group{}, fmt.Errorf("%w: join code", ErrInvalidIdentifier)
	}
	if id, ok := r.codes.Get(code); ok {
		g, err := r.group(ctx, id)
		if err == nil {
			return g, nil
		}
		r.codes.Remove(code)
		if !errors.Is(err, ErrGroupNotFound) {
			return models.Group{}, err
		}
	}

	var groups []models.Group
	if err := r.store.Query(ctx, storage.Groups, storage.Filter{"groupCode": code}, &groups); err != nil {
		return models.Group{}, fmt.Errorf("find group by code: %w", err)
	}
	if len(groups) == 0 {
		return models.Group{}, ErrGroupNotFound
	}
	g := groups[0]
	r.codes.Add(code, g.ID.Hex())
	return g, nil
}

// JoinByCode resolves code and joins userID to that group.
func (r *Reconciler) JoinByCode(ctx context.Context, userID any, code string) (models.Group, error) {
	if !ids.IsValid(userID) {
		r.metrics.fail("join", ErrInvalidIdentifier)
		return models.Group{}, fmt.Errorf("%w: user id", ErrInvalidIdentifier)
	}
	g, err := r.GroupByCode(ctx, code)
	if err != nil {
		r.metrics.fail("join", err)
		return models.Group{}, err
	}
	return r.Join(ctx, userID, g.ID)
}

// CreateGroup creates a group with a fresh join code and joins its creator.
// The group starts at userCount 0; the creator's Join brings it to 1.
func (r *Reconciler) CreateGroup(ctx context.Context, userID any, name string, userMax *int32) (models.Group, error) {
	if !ids.IsValid(userID) {
		return models.Group{}, fmt.Errorf("%w: user id", ErrInvalidIdentifier)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if userMax != nil && *userMax < 1 {
		return models.Group{}, fmt.Errorf("%w: userMax must be at least 1", ErrInvalidGroup)
	}

	var gid string
	for attempt := 1; ; attempt++ {
		code, err := NewCode()
		if err != nil {
			return models.Group{}, fmt.Errorf("generate join code: %w", err)
		}
		gid, err = r.store.Create(ctx, storage.Groups, models.Group{
			Name:      name,
			UserCount: 0,
			UserMax:   userMax,
			GroupCode: code,
			Tags:      []string{},
		})
		if err == nil {
			r.codes.Add(code, gid)
			break
		}
		if !errors.Is(err, storage.ErrConflict) || attempt == maxCodeAttempts {
			return models.Group{}, fmt.Errorf("create group: %w", err)
		}
		r.log.Info("join code collision, regenerating", zap.Int("attempt", attempt))
	}

	g, err := r.Join(ctx, userID, gid)
	if err != nil {
		// An unconfirmed write may still have landed, so the rollback drops
		// the group's relations too, even when ctx is already done.
		rctx, cancel := detached(ctx)
		defer cancel()
		if derr := r.DeleteGroup(rctx, gid); derr != nil {
			r.log.Warn("orphan group left after failed creator join",
				zap.String("group_id", gid), zap.Error(derr))
		}
		return models.Group{}, err
	}
	return g, nil
}

// DeleteGroup removes every relation of groupID and then the group.
func (r *Reconciler) DeleteGroup(ctx context.Context, groupID any) error {
	gid, err := ids.ObjectID(groupID)
	if err != nil {
		return fmt.Errorf("%w: group id", ErrInvalidIdentifier)
	}
	g, err := r.group(ctx, gid.Hex())
	if err != nil {
		return err
	}

	var rels []models.UserGroup
	if err := r.store.Query(ctx, storage.UserGroup, storage.Filter{"groupId": gid.Hex()}, &rels); err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	for _, rel := range rels {
		if err := r.store.Delete(ctx, storage.UserGroup, rel.ID.Hex()); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete membership %s: %w", rel.ID.Hex(), err)
		}
	}
	if err := r.store.Delete(ctx, storage.Groups, gid.Hex()); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	r.codes.Remove(g.GroupCode)
	return nil
}

// GroupsForUser lists the groups userID belongs to. Relations pointing at
// deleted groups are skipped.
func (r *Reconciler) GroupsForUser(ctx context.Context, userID any) ([]models.Group, error) {
	uid, err := ids.ObjectID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id", ErrInvalidIdentifier)
	}
	var rels []models.UserGroup
	if err := r.store.Query(ctx, storage.UserGroup, storage.Filter{"userId": uid.Hex()}, &rels); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	groups := make([]models.Group, 0, len(rels))
	for _, rel := range rels {
		g, err := r.group(ctx, rel.GroupID.Hex())
		if errors.Is(err, ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// LeaveAll drops every relation of userID. Relations to existing groups go
// through Leave so their counts follow; relations to deleted groups are
// removed directly. It returns how many relations were dropped.
func (r *Reconciler) LeaveAll(ctx context.Context, userID any) (int, error) {
	uid, err := ids.ObjectID(userID)
	if err != nil {
		return 0, fmt.Errorf("%w: user id", ErrInvalidIdentifier)
	}
	var rels []models.UserGroup
	if err := r.store.Query(ctx, storage.UserGroup, storage.Filter{"userId": uid.Hex()}, &rels); err != nil {
		return 0, fmt.Errorf("list memberships: %w", err)
	}
	dropped := 0
	for _, rel := range rels {
		gid := rel.GroupID.Hex()
		_, err := r.group(ctx, gid)
		switch {
		case err == nil:
			_, err = r.Leave(ctx, uid.Hex(), gid)
			if errors.Is(err, ErrNotAMember) {
				continue
			}
		case errors.Is(err, ErrGroupNotFound):
			err = r.store.Delete(ctx, storage.UserGroup, rel.ID.Hex())
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
		}
		if err != nil {
			return dropped, fmt.Errorf("leave %s: %w", gid, err)
		}
		dropped++
	}
	return dropped, nil
}

// MemberCount counts the relations of groupID. Unlike Group.UserCount it
// cannot drift.
func (r *Reconciler) MemberCount(ctx context.Context, groupID any) (int, error) {
	gid, err := ids.ObjectID(groupID)
	if err != nil {
		return 0, fmt.Errorf("%w: group id", ErrInvalidIdentifier)
	}
	var rels []models.UserGroup
	if err := r.store.Query(ctx, storage.UserGroup, storage.Filter{"groupId": gid.Hex()}, &rels); err != nil {
		return 0, fmt.Errorf("list memberships: %w", err)
	}
	return len(rels), nil
}
