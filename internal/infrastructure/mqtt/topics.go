package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root used when none is configured.
const DefaultTopicPrefix = "attrcycle"

// Topics builds the attrcycled topic hierarchy:
//
//	{prefix}/trigger/{cycler}              step requests, payload {"step":n}
//	{prefix}/state/{cycler}                retained cycler snapshot
//	{prefix}/discovery/{cycler}            retained parameter metadata
//	{prefix}/device/{device}/set           attribute writes to a device
//	{prefix}/device/{device}/availability  retained "online"/"offline" from the device
//	{prefix}/system/status                 retained daemon status and LWT
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix (DefaultTopicPrefix when empty).
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of the hierarchy.
func (t Topics) Prefix() string {
	return t.root()
}

func (t Topics) root() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Trigger returns the trigger topic of one cycler.
func (t Topics) Trigger(id string) string {
	return fmt.Sprintf("%s/trigger/%s", t.root(), id)
}

// AllTriggers matches the trigger topic of every cycler.
func (t Topics) AllTriggers() string {
	return t.root() + "/trigger/+"
}

// State returns the retained snapshot topic of one cycler.
func (t Topics) State(id string) string {
	return fmt.Sprintf("%s/state/%s", t.root(), id)
}

// Discovery returns the retained metadata topic of one cycler.
func (t Topics) Discovery(id string) string {
	return fmt.Sprintf("%s/discovery/%s", t.root(), id)
}

// Command returns the topic attribute writes for device are published on.
func (t Topics) Command(device string) string {
	return fmt.Sprintf("%s/device/%s/set", t.root(), device)
}

// Availability returns the retained availability topic of device.
func (t Topics) Availability(device string) string {
	return fmt.Sprintf("%s/device/%s/availability", t.root(), device)
}

// SystemStatus returns the daemon status topic.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// TriggerID extracts the cycler ID from a concrete trigger topic.
func (t Topics) TriggerID(topic string) (string, error) {
	id, ok := strings.CutPrefix(topic, t.root()+"/trigger/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q is not a trigger topic", ErrTopicMismatch, topic)
	}
	return id, nil
}
