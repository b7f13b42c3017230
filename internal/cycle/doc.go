// Package cycle implements attribute cycling controllers.
//
// A Controller owns an immutable Table of values and a single active index.
// Each trigger moves the index by a signed step with wraparound and pushes
// the selected value to an attribute Target. When persistence is enabled the
// index is written to a settings store after the trigger activity settles,
// and restored (then reapplied after a delay) on the next start.
//
// # Architecture
//
//	┌──────────────┐  Trigger(step)   ┌──────────────────────────────────┐
//	│ MQTT / HTTP  │ ───────────────▶ │            Controller            │
//	└──────────────┘                  │                                  │
//	                                  │  index ← (index+step) mod n      │──▶ Target.SetAttribute
//	┌──────────────┐  Restore(raw)    │                                  │
//	│   Registry   │ ───────────────▶ │  save slot   (debounced)         │──▶ Saver.Save
//	│ (key → ctrl) │                  │  apply slot  (one-shot, delayed) │──▶ Target.SetAttribute
//	└──────────────┘                  └──────────────────────────────────┘
//
// # Concurrency
//
// Every controller serialises triggers, restores and fired callbacks behind
// one mutex. Scheduled callbacks are guarded by the same mutex, so a save
// that was superseded by a newer trigger never runs.
//
// # Usage
//
//	table, err := cycle.NewTable(cycle.TableConfig{
//	    ID:        "backlight",
//	    Key:       "attr_cycle/backlight",
//	    Attribute: "brightness",
//	    Values:    []int32{10, 20, 30},
//	    SaveDelay: 5 * time.Second,
//	    Persist:   true,
//	})
//	ctrl := cycle.NewController(table, cycle.Options{Target: dev, Saver: store})
//	ctrl.Trigger(+1)
package cycle
