package bridge

import (
	"fmt"
	"sort"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
)

// zone is the proxy of a host trigger volume. Occupancy is mirrored from
// zone_enter and zone_leave events.
type zone struct {
	b         *Bridge
	id        string
	tag       host.ZoneTag
	shape     host.Shape
	occupants map[host.EntityID]bool
	destroyed bool
}

// CreateZone implements host.ZoneFactory. The zone exists locally at once;
// the host starts reporting occupancy when it has created its side.
func (b *Bridge) CreateZone(shape host.Shape, tag host.ZoneTag) (host.Zone, error) {
	b.nextZone++
	z := &zone{
		b:         b,
		id:        fmt.Sprintf("z%d", b.nextZone),
		tag:       tag,
		shape:     shape,
		occupants: make(map[host.EntityID]bool),
	}

	params := map[string]any{
		"shape": shape,
		"kind":  tag.Kind.String(),
	}
	switch tag.Kind {
	case host.ZoneManual:
		params["trigger_id"] = tag.TriggerID
	case host.ZoneStationEntry, host.ZoneStationStop:
		params["platform_id"] = tag.PlatformID
	}
	if err := b.send(mqtt.CommandZoneCreate, z.id, params); err != nil {
		return nil, fmt.Errorf("creating zone: %w", err)
	}

	b.zones[z.id] = z
	return z, nil
}

func (z *zone) Tag() host.ZoneTag              { return z.tag }
func (z *zone) Shape() host.Shape              { return z.shape }
func (z *zone) Contains(id host.EntityID) bool { return z.occupants[id] }

// Occupants returns the mirrored occupants ordered by id.
func (z *zone) Occupants() []host.EntityID {
	out := make([]host.EntityID, 0, len(z.occupants))
	for id := range z.occupants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (z *zone) Reshape(shape host.Shape) error {
	if z.destroyed {
		return fmt.Errorf("reshaping zone %s: destroyed", z.id)
	}
	if err := z.b.send(mqtt.CommandZoneReshape, z.id, map[string]any{"shape": shape}); err != nil {
		return fmt.Errorf("reshaping zone %s: %w", z.id, err)
	}
	z.shape = shape
	return nil
}

// Destroy is idempotent. Later events for the zone are ignored.
func (z *zone) Destroy() {
	if z.destroyed {
		return
	}
	z.destroyed = true
	delete(z.b.zones, z.id)
	z.occupants = make(map[host.EntityID]bool)
	z.b.sendAsync(mqtt.CommandZoneDestroy, z.id, nil)
}
