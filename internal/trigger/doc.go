// Package trigger feeds MQTT trigger messages into cycle controllers.
//
// A message on {prefix}/trigger/{cycler} steps that cycler. The payload is
// {"step":n}, a bare integer, or "next"/"previous". After each trigger the
// cycler's snapshot is published retained on {prefix}/state/{cycler}.
// Discovery documents describing the accepted steps are published retained
// on {prefix}/discovery/{cycler}.
package trigger
