package bridge

import (
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
	"github.com/nerrad567/railrunner/internal/rail"
)

// avatar is the proxy of an operator avatar. Commands address it by
// handle; ID is zero until the host reports the spawned entity.
type avatar struct {
	b         *Bridge
	handle    string
	id        host.EntityID
	destroyed bool
}

// SpawnAvatar implements host.AvatarFactory.
func (b *Bridge) SpawnAvatar(position rail.Vector3) (host.Avatar, error) {
	a := &avatar{b: b, handle: b.newID()}
	if err := b.send(mqtt.CommandAvatarSpawn, a.handle, map[string]any{"position": position}); err != nil {
		return nil, err
	}
	b.avatars[a.handle] = a
	return a, nil
}

func (a *avatar) ID() host.EntityID { return a.id }

func (a *avatar) Dress(outfit []host.OutfitItem) {
	a.b.sendAsync(mqtt.CommandAvatarDress, a.handle, map[string]any{"outfit": outfit})
}

func (a *avatar) MountDriver(vehicle host.Vehicle) error {
	return a.b.send(mqtt.CommandAvatarMount, a.handle, map[string]any{"vehicle_id": vehicle.ID()})
}

func (a *avatar) SetDamageSuppressed(suppressed bool) {
	a.b.sendAsync(mqtt.CommandAvatarDamage, a.handle, map[string]any{"suppressed": suppressed})
}

func (a *avatar) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	delete(a.b.avatars, a.handle)
	a.b.sendAsync(mqtt.CommandAvatarDestroy, a.handle, nil)
}
