package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"
)

// SearchResult holds every entity whose name contains the search term.
type SearchResult struct {
	Groups     []models.Group    `json:"groups"`
	Properties []models.Property `json:"properties"`
	Zones      []models.Zone     `json:"zones"`
	Items      []models.Item     `json:"items"`
}

// Search matches term case-insensitively against the names of everything
// under the viewer's groups.
func (s *Service) Search(ctx context.Context, v Viewer, term string) (SearchResult, error) {
	needle := text.Fold(strings.TrimSpace(term))
	match := func(name string) bool { return strings.Contains(text.Fold(name), needle) }

	res := SearchResult{
		Groups:     []models.Group{},
		Properties: []models.Property{},
		Zones:      []models.Zone{},
		Items:      []models.Item{},
	}
	if needle == "" {
		return res, nil
	}

	err := s.walk(ctx, v, visitor{
		group:    func(g models.Group) { appendIf(&res.Groups, g, match(g.Name)) },
		property: func(p models.Property) { appendIf(&res.Properties, p, match(p.Name)) },
		zone:     func(z models.Zone) { appendIf(&res.Zones, z, match(z.Name)) },
		item:     func(it models.Item) { appendIf(&res.Items, it, match(it.Name)) },
	})
	if err != nil {
		return SearchResult{}, err
	}
	s.log.Debug("search",
		zap.Int("groups", len(res.Groups)),
		zap.Int("properties", len(res.Properties)),
		zap.Int("zones", len(res.Zones)),
		zap.Int("items", len(res.Items)))
	return res, nil
}

func appendIf[T any](dst *[]T, v T, ok bool) {
	if ok {
		*dst = append(*dst, v)
	}
}

type visitor struct {
	group    func(models.Group)
	property func(models.Property)
	zone     func(models.Zone)
	item     func(models.Item)
}

// walk visits the viewer's groups and everything visible under them, parents
// before children.
func (s *Service) walk(ctx context.Context, v Viewer, fn visitor) error {
	var rels []models.UserGroup
	if err := s.store.Query(ctx, storage.UserGroup, storage.Filter{"userId": v.UserID}, &rels); err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	for _, rel := range rels {
		var g models.Group
		if err := s.store.Get(ctx, storage.Groups, rel.GroupID.Hex(), &g); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return fmt.Errorf("load group: %w", err)
		}
		fn.group(g)

		props, err := s.Properties(ctx, v, g.ID)
		if err != nil {
			return err
		}
		for _, p := range props {
			fn.property(p)
			var zones []models.Zone
			if err := s.store.Query(ctx, storage.Zones, storage.Filter{"propertyId": p.ID.Hex()}, &zones); err != nil {
				return fmt.Errorf("list zones: %w", err)
			}
			for _, z := range zones {
				if !v.Sees(z.UserID) {
					continue
				}
				fn.zone(z)
				items, err := s.Items(ctx, z.ID)
				if err != nil {
					return err
				}
				for _, it := range items {
					fn.item(it)
				}
			}
		}
	}
	return nil
}
