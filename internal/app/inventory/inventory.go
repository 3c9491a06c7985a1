// Package inventory manages the property → zone → item hierarchy under a
// group: listing, creation with parent checks, cascading deletes, the
// ancestor (breadcrumb) walk, search and the per-user tree.
//
// Every id argument goes through ids.ObjectID first, so boxed ids coming
// from JSON are accepted anywhere a plain hex string is.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxDepth bounds zone nesting walks.
const maxDepth = 64

var (
	ErrInvalidParent = errors.New("parent does not exist or belongs elsewhere")
	ErrCycle         = errors.New("zone hierarchy contains a cycle")
)

// Viewer is who a listing is computed for. Non-admins do not see other
// users' private properties and zones.
type Viewer struct {
	UserID string
	Admin  bool
}

func (v Viewer) Sees(owner *primitive.ObjectID) bool {
	return v.Admin || owner == nil || owner.Hex() == v.UserID
}

// Service runs hierarchy operations against a storage binding.
type Service struct {
	store storage.Storage
	log   *zap.Logger
}

// New returns a Service over store.
func New(store storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, log: logger}
}

func hexOf(v any, what string) (string, error) {
	oid, err := ids.ObjectID(v)
	if err != nil {
		return "", fmt.Errorf("%s id: %w", what, err)
	}
	return oid.Hex(), nil
}

/*─────────────────────────────── properties ───────────────────────────────*/

// Properties lists the properties of a group visible to v.
func (s *Service) Properties(ctx context.Context, v Viewer, groupID any) ([]models.Property, error) {
	gid, err := hexOf(groupID, "group")
	if err != nil {
		return nil, err
	}
	var all []models.Property
	if err := s.store.Query(ctx, storage.Properties, storage.Filter{"groupId": gid}, &all); err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	out := all[:0]
	for _, p := range all {
		if v.Sees(p.UserID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateProperty stores p after checking its group exists.
func (s *Service) CreateProperty(ctx context.Context, p models.Property) (models.Property, error) {
	if p.GroupID.IsZero() {
		return models.Property{}, fmt.Errorf("group id: %w", ids.ErrInvalid)
	}
	if err := s.exists(ctx, storage.Groups, p.GroupID.Hex()); err != nil {
		return models.Property{}, err
	}
	p.ID = primitive.NilObjectID
	id, err := s.store.Create(ctx, storage.Properties, p)
	if err != nil {
		return models.Property{}, fmt.Errorf("create property: %w", err)
	}
	p.ID, _ = primitive.ObjectIDFromHex(id)
	return p, nil
}

// DeleteProperty removes a property with all of its zones and items.
func (s *Service) DeleteProperty(ctx context.Context, propertyID any) error {
	pid, err := hexOf(propertyID, "property")
	if err != nil {
		return err
	}
	var zones []models.Zone
	if err := s.store.Query(ctx, storage.Zones, storage.Filter{"propertyId": pid}, &zones); err != nil {
		return fmt.Errorf("list zones: %w", err)
	}
	for _, z := range zones {
		if err := s.deleteZoneOnly(ctx, z.ID.Hex()); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, storage.Properties, pid); err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	s.log.Debug("property deleted", zap.String("property_id", pid), zap.Int("zones", len(zones)))
	return nil
}

// PurgeGroup deletes every property of a group (and everything under
// them). Relations and the group document are left to the membership
// reconciler.
func (s *Service) PurgeGroup(ctx context.Context, groupID any) error {
	gid, err := hexOf(groupID, "group")
	if err != nil {
		return err
	}
	var props []models.Property
	if err := s.store.Query(ctx, storage.Properties, storage.Filter{"groupId": gid}, &props); err != nil {
		return fmt.Errorf("list properties: %w", err)
	}
	for _, p := range props {
		if err := s.DeleteProperty(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

/*────────────────────────────────── zones ─────────────────────────────────*/

// Zones lists the top-level zones of a property visible to v.
func (s *Service) Zones(ctx context.Context, v Viewer, propertyID any) ([]models.Zone, error) {
	pid, err := hexOf(propertyID, "property")
	if err != nil {
		return nil, err
	}
	var all []models.Zone
	if err := s.store.Query(ctx, storage.Zones, storage.Filter{"propertyId": pid}, &all); err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	out := make([]models.Zone, 0, len(all))
	for _, z := range all {
		if z.TopLevel() && v.Sees(z.UserID) {
			out = append(out, z)
		}
	}
	return out, nil
}

// SubZones lists the direct children of a zone visible to v.
func (s *Service) SubZones(ctx context.Context, v Viewer, parentZoneID any) ([]models.Zone, error) {
	zid, err := hexOf(parentZoneID, "zone")
	if err != nil {
		return nil, err
	}
	var all []models.Zone
	if err := s.store.Query(ctx, storage.Zones, storage.Filter{"parentZoneId": zid}, &all); err != nil {
		return nil, fmt.Errorf("list sub-zones: %w", err)
	}
	out := all[:0]
	for _, z := range all {
		if v.Sees(z.UserID) {
			out = append(out, z)
		}
	}
	return out, nil
}

// CreateZone stores z. Its property must exist; a parent zone, when set,
// must exist and belong to the same property.
func (s *Service) CreateZone(ctx context.Context, z models.Zone) (models.Zone, error) {
	if z.PropertyID.IsZero() {
		return models.Zone{}, fmt.Errorf("property id: %w", ids.ErrInvalid)
	}
	if err := s.exists(ctx, storage.Properties, z.PropertyID.Hex()); err != nil {
		return models.Zone{}, err
	}
	if z.ParentZoneID != nil && *z.ParentZoneID != z.PropertyID {
		var parent models.Zone
		if err := s.store.Get(ctx, storage.Zones, z.ParentZoneID.Hex(), &parent); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return models.Zone{}, fmt.Errorf("%w: zone %s", ErrInvalidParent, z.ParentZoneID.Hex())
			}
			return models.Zone{}, fmt.Errorf("load parent zone: %w", err)
		}
		if parent.PropertyID != z.PropertyID {
			return models.Zone{}, fmt.Errorf("%w: zone %s is in another property", ErrInvalidParent, parent.ID.Hex())
		}
	}
	z.ID = primitive.NilObjectID
	id, err := s.store.Create(ctx, storage.Zones, z)
	if err != nil {
		return models.Zone{}, fmt.Errorf("create zone: %w", err)
	}
	z.ID, _ = primitive.ObjectIDFromHex(id)
	return z, nil
}

// DeleteZone removes a zone, its sub-zones and every item in them.
func (s *Service) DeleteZone(ctx context.Context, zoneID any) error {
	zid, err := hexOf(zoneID, "zone")
	if err != nil {
		return err
	}
	return s.deleteSubtree(ctx, zid, 0)
}

func (s *Service) deleteSubtree(ctx context.Context, zid string, depth int) error {
	if depth > maxDepth {
		return ErrCycle
	}
	var children []models.Zone
	if err := s.store.Query(ctx, storage.Zones, storage.Filter{"parentZoneId": zid}, &children); err != nil {
		return fmt.Errorf("list sub-zones: %w", err)
	}
	for _, c := range children {
		if err := s.deleteSubtree(ctx, c.ID.Hex(), depth+1); err != nil {
			return err
		}
	}
	return s.deleteZoneOnly(ctx, zid)
}

// deleteZoneOnly removes one zone and its items. Missing documents are
// skipped so a cascade that overlaps an earlier one still completes.
func (s *Service) deleteZoneOnly(ctx context.Context, zid string) error {
	var items []models.Item
	if err := s.store.Query(ctx, storage.Items, storage.Filter{"zoneId": zid}, &items); err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	for _, it := range items {
		if err := s.store.Delete(ctx, storage.Items, it.ID.Hex()); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete item %s: %w", it.ID.Hex(), err)
		}
	}
	if err := s.store.Delete(ctx, storage.Zones, zid); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete zone %s: %w", zid, err)
	}
	return nil
}

/*────────────────────────────────── items ─────────────────────────────────*/

// Items lists the items stored in a zone.
func (s *Service) Items(ctx context.Context, zoneID any) ([]models.Item, error) {
	zid, err := hexOf(zoneID, "zone")
	if err != nil {
		return nil, err
	}
	var items []models.Item
	if err := s.store.Query(ctx, storage.Items, storage.Filter{"zoneId": zid}, &items); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// CreateItem stores it after checking its zone exists.
func (s *Service) CreateItem(ctx context.Context, it models.Item) (models.Item, error) {
	if it.ZoneID.IsZero() {
		return models.Item{}, fmt.Errorf("zone id: %w", ids.ErrInvalid)
	}
	if err := s.exists(ctx, storage.Zones, it.ZoneID.Hex()); err != nil {
		return models.Item{}, err
	}
	it.ID = primitive.NilObjectID
	id, err := s.store.Create(ctx, storage.Items, it)
	if err != nil {
		return models.Item{}, fmt.Errorf("create item: %w", err)
	}
	it.ID, _ = primitive.ObjectIDFromHex(id)
	return it, nil
}

// MoveItem puts an item into another zone.
func (s *Service) MoveItem(ctx context.Context, itemID, zoneID any) error {
	iid, err := hexOf(itemID, "item")
	if err != nil {
		return err
	}
	zid, err := hexOf(zoneID, "zone")
	if err != nil {
		return err
	}
	if err := s.exists(ctx, storage.Zones, zid); err != nil {
		return err
	}
	if err := s.store.Update(ctx, storage.Items, iid, map[string]any{"zoneId": zid}); err != nil {
		return fmt.Errorf("move item: %w", err)
	}
	return nil
}

// DeleteItem removes one item.
func (s *Service) DeleteItem(ctx context.Context, itemID any) error {
	iid, err := hexOf(itemID, "item")
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, storage.Items, iid); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *Service) exists(ctx context.Context, collection, id string) error {
	var doc map[string]any
	if err := s.store.Get(ctx, collection, id, &doc); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s %s", ErrInvalidParent, collection, id)
		}
		return fmt.Errorf("load %s: %w", collection, err)
	}
	return nil
}
