package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
)

// GroupOf returns the id of the group that the document collection/id
// hangs under. Groups own themselves. A missing document, or one whose
// parents are gone, yields storage.ErrNotFound.
func (s *Service) GroupOf(ctx context.Context, collection string, id any) (string, error) {
	hex, err := hexOf(id, collection)
	if err != nil {
		return "", err
	}
	switch collection {
	case storage.Groups:
		var g models.Group
		if err := s.store.Get(ctx, storage.Groups, hex, &g); err != nil {
			return "", err
		}
		return g.ID.Hex(), nil
	case storage.UserGroup:
		var rel models.UserGroup
		if err := s.store.Get(ctx, storage.UserGroup, hex, &rel); err != nil {
			return "", err
		}
		return rel.GroupID.Hex(), nil
	case storage.Properties:
		var p models.Property
		if err := s.store.Get(ctx, storage.Properties, hex, &p); err != nil {
			return "", err
		}
		return p.GroupID.Hex(), nil
	case storage.Zones:
		var z models.Zone
		if err := s.store.Get(ctx, storage.Zones, hex, &z); err != nil {
			return "", err
		}
		return s.GroupOf(ctx, storage.Properties, z.PropertyID)
	case storage.Items:
		var it models.Item
		if err := s.store.Get(ctx, storage.Items, hex, &it); err != nil {
			return "", err
		}
		return s.GroupOf(ctx, storage.Zones, it.ZoneID)
	}
	return "", fmt.Errorf("%s: %w", collection, storage.ErrNotFound)
}

// GroupOfEntity is GroupOf for an id that may name an item, a zone or a
// property, tried in that order.
func (s *Service) GroupOfEntity(ctx context.Context, id any) (string, error) {
	hex, err := hexOf(id, "entity")
	if err != nil {
		return "", err
	}
	for _, coll := range []string{storage.Items, storage.Zones, storage.Properties} {
		var doc map[string]any
		err := s.store.Get(ctx, coll, hex, &doc)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return s.GroupOf(ctx, coll, hex)
	}
	return "", fmt.Errorf("entity %s: %w", hex, storage.ErrNotFound)
}

// GroupOfDoc is GroupOf for a decoded model, resolving through its parent
// id rather than its own. An unresolvable parent yields "" and no error.
func (s *Service) GroupOfDoc(ctx context.Context, doc any) (string, error) {
	var (
		gid string
		err error
	)
	switch d := doc.(type) {
	case *models.Group:
		return d.ID.Hex(), nil
	case *models.UserGroup:
		return d.GroupID.Hex(), nil
	case *models.Property:
		return d.GroupID.Hex(), nil
	case *models.Zone:
		gid, err = s.GroupOf(ctx, storage.Properties, d.PropertyID)
	case *models.Item:
		gid, err = s.GroupOf(ctx, storage.Zones, d.ZoneID)
	default:
		return "", nil
	}
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, ids.ErrInvalid) {
		return "", nil
	}
	return gid, err
}
