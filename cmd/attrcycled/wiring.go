package main

import (
	"fmt"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/history"
	"github.com/nerrad567/attrcycle/internal/infrastructure/config"
	"github.com/nerrad567/attrcycle/internal/infrastructure/influxdb"
	"github.com/nerrad567/attrcycle/internal/infrastructure/logging"
	"github.com/nerrad567/attrcycle/internal/target"
)

// devicePool resolves device names to targets.
type devicePool interface {
	Get(name string) (*target.Device, error)
}

// buildRegistry creates one controller per configured cycler.
//
// A device that cannot be watched is logged and the cycler runs without a
// target, the same as a cycler configured with no device.
func buildRegistry(cfg *config.Config, saver cycle.Saver, devices devicePool, log *logging.Logger, observer cycle.Observer) (*cycle.Registry, error) {
	registry := cycle.NewRegistry(cfg.Settings.Prefix)
	registry.SetLogger(log.Component("cycle"))

	for _, cc := range cfg.Cyclers {
		table, err := cycle.NewTable(cycle.TableConfig{
			ID:         cc.ID,
			Key:        registry.KeyFor(cc.ID),
			Attribute:  cycle.Attribute(cc.Attribute),
			Values:     cc.Values,
			SaveDelay:  cc.SaveDelay(),
			ApplyDelay: cc.ApplyDelay(),
			Persist:    cc.Persistent,
		})
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("cycler %s: %w", cc.ID, err)
		}

		ctrl := cycle.NewController(table, cycle.Options{
			Target:   resolveTarget(cc, devices, log),
			Saver:    saver,
			Logger:   log.Component("cycle").With("cycler", cc.ID),
			Observer: observer,
		})
		if err := registry.Register(ctrl); err != nil {
			ctrl.Close()
			registry.Close()
			return nil, fmt.Errorf("registering cycler %s: %w", cc.ID, err)
		}
	}
	return registry, nil
}

// resolveTarget returns nil, not a typed nil pointer, when there is no device.
func resolveTarget(cc config.CyclerConfig, devices devicePool, log *logging.Logger) cycle.Target {
	if cc.Device == "" || devices == nil {
		return nil
	}
	d, err := devices.Get(cc.Device)
	if err != nil {
		log.Warn("device unavailable, cycler runs without a target",
			"cycler", cc.ID, "device", cc.Device, "error", err)
		return nil
	}
	return d
}

// eventRecorder logs controller events, writes them to InfluxDB and
// forwards them to the event history.
type eventRecorder struct {
	log     *logging.Logger
	influx  *influxdb.Client
	history cycle.Observer
}

// newEventRecorder accepts nil for either sink.
func newEventRecorder(log *logging.Logger, influx *influxdb.Client, hist *history.Recorder) *eventRecorder {
	r := &eventRecorder{log: log.Component("events"), influx: influx}
	if hist != nil {
		r.history = hist
	}
	return r
}

// ObserveCycle implements cycle.Observer. It runs under the controller's
// lock; the InfluxDB write API only queues the point.
func (r *eventRecorder) ObserveCycle(e cycle.Event) {
	var errText string
	if e.Err != nil {
		errText = e.Err.Error()
	}

	switch e.Kind {
	case cycle.EventApplyFailed, cycle.EventSaveFailed, cycle.EventRestoreReset:
		r.log.Warn("cycle event", "cycler", e.ID, "kind", e.Kind, "index", e.Index, "error", errText)
	default:
		r.log.Debug("cycle event", "cycler", e.ID, "kind", e.Kind, "index", e.Index, "value", e.Value)
	}

	if r.history != nil {
		r.history.ObserveCycle(e)
	}
	if r.influx != nil {
		r.influx.WriteCycleEvent(influxdb.CycleEvent{
			Cycler: e.ID,
			Kind:   string(e.Kind),
			Index:  e.Index,
			Value:  e.Value,
			Error:  errText,
		})
	}
}
