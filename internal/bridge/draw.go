package bridge

import (
	"time"

	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
	"github.com/nerrad567/railrunner/internal/rail"
)

// DrawBox implements host.Drawer.
func (b *Bridge) DrawBox(observer string, center, size rail.Vector3, yaw float64, colour string, duration time.Duration) {
	b.draw(observer, map[string]any{
		"shape":  "box",
		"center": center,
		"size":   size,
		"yaw":    yaw,
	}, colour, duration)
}

// DrawSphere implements host.Drawer.
func (b *Bridge) DrawSphere(observer string, center rail.Vector3, radius float64, colour string, duration time.Duration) {
	b.draw(observer, map[string]any{
		"shape":  "sphere",
		"center": center,
		"radius": radius,
	}, colour, duration)
}

// DrawText implements host.Drawer.
func (b *Bridge) DrawText(observer string, at rail.Vector3, text, colour string, duration time.Duration) {
	b.draw(observer, map[string]any{
		"shape":  "text",
		"center": at,
		"text":   text,
	}, colour, duration)
}

func (b *Bridge) draw(observer string, params map[string]any, colour string, duration time.Duration) {
	params["colour"] = colour
	params["duration_ms"] = duration.Milliseconds()
	b.sendAsync(mqtt.CommandDraw, observer, params)
}
