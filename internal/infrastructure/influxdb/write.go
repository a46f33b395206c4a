package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the client.
const (
	MeasurementPhaseTransition = "phase_transitions"
	MeasurementSpeedCommand    = "speed_commands"
)

// WritePhaseTransition records a controller phase change. It implements
// automation.Telemetry.
func (c *Client) WritePhaseTransition(vehicle uint64, from, to string) {
	c.writePoint(phaseTransitionPoint(vehicle, from, to, c.now()))
}

// WriteSpeedCommand records a speed command and why it was issued. It
// implements automation.Telemetry.
func (c *Client) WriteSpeedCommand(vehicle uint64, speed int, name, reason string) {
	c.writePoint(speedCommandPoint(vehicle, speed, name, reason, c.now()))
}

func (c *Client) writePoint(point *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(point)
}

func phaseTransitionPoint(vehicle uint64, from, to string, at time.Time) *write.Point {
	return write.NewPoint(MeasurementPhaseTransition,
		map[string]string{
			"vehicle_id": strconv.FormatUint(vehicle, 10),
			"to":         to,
		},
		map[string]any{
			"from": from,
		},
		at)
}

// speedCommandPoint tags by vehicle and reason; the speed is stored both
// as its signed notch value (for charts) and as its name.
func speedCommandPoint(vehicle uint64, speed int, name, reason string, at time.Time) *write.Point {
	return write.NewPoint(MeasurementSpeedCommand,
		map[string]string{
			"vehicle_id": strconv.FormatUint(vehicle, 10),
			"reason":     reason,
		},
		map[string]any{
			"speed": speed,
			"name":  name,
		},
		at)
}
