package inventory

import (
	"context"

	"github.com/dalemusser/inventoryhub/internal/domain/models"
)

// Node kinds in a Tree.
const (
	KindGroup    = "group"
	KindProperty = "property"
	KindZone     = "zone"
	KindItem     = "item"
)

// Node is one entry of the inventory tree.
type Node struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Children []Node `json:"children,omitempty"`
}

// Tree returns the viewer's groups with their properties, nested zones and
// items. Zones whose parent is not visible are attached to their property.
func (s *Service) Tree(ctx context.Context, v Viewer) ([]Node, error) {
	var (
		groups     []models.Group
		props      = map[string][]models.Property{}
		zones      = map[string][]models.Zone{}
		itemsByZID = map[string][]Node{}
	)
	err := s.walk(ctx, v, visitor{
		group: func(g models.Group) { groups = append(groups, g) },
		property: func(p models.Property) {
			props[p.GroupID.Hex()] = append(props[p.GroupID.Hex()], p)
		},
		zone: func(z models.Zone) {
			zones[z.PropertyID.Hex()] = append(zones[z.PropertyID.Hex()], z)
		},
		item: func(it models.Item) {
			zid := it.ZoneID.Hex()
			itemsByZID[zid] = append(itemsByZID[zid], Node{ID: it.ID.Hex(), Name: it.Name, Type: KindItem})
		},
	})
	if err != nil {
		return nil, err
	}

	out := make([]Node, 0, len(groups))
	for _, g := range groups {
		gn := Node{ID: g.ID.Hex(), Name: g.Name, Type: KindGroup}
		for _, p := range props[g.ID.Hex()] {
			pn := Node{ID: p.ID.Hex(), Name: p.Name, Type: KindProperty}
			pn.Children = zoneForest(zones[p.ID.Hex()], itemsByZID)
			gn.Children = append(gn.Children, pn)
		}
		out = append(out, gn)
	}
	return out, nil
}

// zoneForest nests zones under their parents. Items come before sub-zones
// in a zone's children.
func zoneForest(zs []models.Zone, items map[string][]Node) []Node {
	byParent := map[string][]models.Zone{}
	present := map[string]bool{}
	for _, z := range zs {
		present[z.ID.Hex()] = true
	}
	var roots []models.Zone
	for _, z := range zs {
		if z.TopLevel() || !present[z.ParentZoneID.Hex()] {
			roots = append(roots, z)
			continue
		}
		byParent[z.ParentZoneID.Hex()] = append(byParent[z.ParentZoneID.Hex()], z)
	}

	var build func(z models.Zone, depth int) Node
	build = func(z models.Zone, depth int) Node {
		n := Node{ID: z.ID.Hex(), Name: z.Name, Type: KindZone}
		n.Children = append(n.Children, items[z.ID.Hex()]...)
		if depth < maxDepth {
			for _, c := range byParent[z.ID.Hex()] {
				n.Children = append(n.Children, build(c, depth+1))
			}
		}
		return n
	}

	out := make([]Node, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, 0))
	}
	return out
}
