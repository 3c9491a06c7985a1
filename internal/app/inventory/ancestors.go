package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
)

// Ancestors is the breadcrumb of an item, zone or property. Zones are
// ordered from the top-level zone down and exclude the starting zone
// itself; for an item they end with the item's own zone.
type Ancestors struct {
	Group    *models.Group    `json:"group"`
	Property *models.Property `json:"property"`
	Zones    []models.Zone    `json:"zones"`
}

// Ancestors resolves id as an item, then a zone, then a property, and walks
// up to its group. An id matching nothing yields empty Ancestors.
func (s *Service) Ancestors(ctx context.Context, id any) (Ancestors, error) {
	hex, err := hexOf(id, "entity")
	if err != nil {
		return Ancestors{}, err
	}
	out := Ancestors{Zones: []models.Zone{}}

	var start string
	var includeStart bool

	var item models.Item
	switch err := s.store.Get(ctx, storage.Items, hex, &item); {
	case err == nil:
		start, includeStart = item.ZoneID.Hex(), true
	case !errors.Is(err, storage.ErrNotFound):
		return Ancestors{}, fmt.Errorf("load item: %w", err)
	default:
		var z models.Zone
		switch err := s.store.Get(ctx, storage.Zones, hex, &z); {
		case err == nil:
			start = hex
		case !errors.Is(err, storage.ErrNotFound):
			return Ancestors{}, fmt.Errorf("load zone: %w", err)
		}
	}

	var propertyID string
	if start != "" {
		chain, err := s.zoneChain(ctx, start)
		if err != nil {
			return Ancestors{}, err
		}
		if len(chain) > 0 {
			propertyID = chain[0].PropertyID.Hex()
			if !includeStart {
				chain = chain[:len(chain)-1]
			}
			out.Zones = chain
		}
	} else {
		propertyID = hex
	}

	if propertyID != "" {
		var p models.Property
		switch err := s.store.Get(ctx, storage.Properties, propertyID, &p); {
		case err == nil:
			out.Property = &p
		case !errors.Is(err, storage.ErrNotFound):
			return Ancestors{}, fmt.Errorf("load property: %w", err)
		}
	}
	if out.Property != nil {
		var g models.Group
		switch err := s.store.Get(ctx, storage.Groups, out.Property.GroupID.Hex(), &g); {
		case err == nil:
			out.Group = &g
		case !errors.Is(err, storage.ErrNotFound):
			return Ancestors{}, fmt.Errorf("load group: %w", err)
		}
	}
	return out, nil
}

// zoneChain returns the zones from the top-level zone down to zid.
func (s *Service) zoneChain(ctx context.Context, zid string) ([]models.Zone, error) {
	var chain []models.Zone
	seen := make(map[string]bool)
	for cur := zid; cur != ""; {
		if seen[cur] || len(chain) > maxDepth {
			return nil, ErrCycle
		}
		seen[cur] = true

		var z models.Zone
		if err := s.store.Get(ctx, storage.Zones, cur, &z); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("load zone: %w", err)
		}
		chain = append([]models.Zone{z}, chain...)
		if z.TopLevel() {
			break
		}
		cur = z.ParentZoneID.Hex()
	}
	return chain, nil
}
