package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementCycleEvent is the measurement cycle events are written to.
const MeasurementCycleEvent = "cycle_event"

// CycleEvent is one controller event as recorded in InfluxDB.
type CycleEvent struct {
	Cycler string
	Kind   string
	Index  int
	Value  int32
	Error  string
	Time   time.Time
}

// WriteCycleEvent queues a cycle event point. Non-blocking; does nothing
// while disconnected.
func (c *Client) WriteCycleEvent(ev CycleEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(cycleEventPoint(ev))
}

// cycleEventPoint tags by cycler and kind so dashboards can group on both.
func cycleEventPoint(ev CycleEvent) *write.Point {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]any{
		"index": int64(ev.Index),
		"value": int64(ev.Value),
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}

	return write.NewPoint(MeasurementCycleEvent,
		map[string]string{"cycler": ev.Cycler, "kind": ev.Kind},
		fields, ts)
}

// WritePoint queues an arbitrary point.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
