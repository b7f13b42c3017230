// Package influxdb records cycle events in InfluxDB.
//
// Every trigger, apply, save and restore of a cycler can be written as a
// point in the cycle_event measurement, tagged by cycler and event kind.
// The integration is optional and disabled by default.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteCycleEvent(influxdb.CycleEvent{Cycler: "knob0", Kind: "trigger", Index: 2, Value: 1200})
//
// Writes are non-blocking and batched; asynchronous failures are reported
// through SetOnError.
package influxdb
