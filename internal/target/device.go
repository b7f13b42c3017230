package target

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/infrastructure/mqtt"
)

// Availability payloads.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// Broker is the subset of the MQTT client a Device needs.
type Broker interface {
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Command is the payload published for every attribute write.
type Command struct {
	Attribute cycle.Attribute `json:"attribute"`
	Value     int32           `json:"value"`
}

// Device is an MQTT-attached attribute target.
//
// Thread Safety: All methods are safe for concurrent use.
type Device struct {
	name   string
	broker Broker
	topics mqtt.Topics
	qos    byte

	available atomic.Bool
}

// NewDevice creates a Device. Call Watch to start tracking availability;
// until the first "online" message the device is not ready.
func NewDevice(name string, broker Broker, topics mqtt.Topics, qos byte) (*Device, error) {
	if name == "" {
		return nil, ErrNoDevice
	}
	return &Device{name: name, broker: broker, topics: topics, qos: qos}, nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Watch subscribes to the device's availability topic.
func (d *Device) Watch() error {
	topic := d.topics.Availability(d.name)
	if err := d.broker.Subscribe(topic, d.qos, d.handleAvailability); err != nil {
		return fmt.Errorf("watching %s availability: %w", d.name, err)
	}
	return nil
}

// handleAvailability accepts a bare "online"/"offline" or {"status":"..."}.
func (d *Device) handleAvailability(_ string, payload []byte) error {
	status := strings.TrimSpace(string(payload))

	var msg struct {
		Status string `json:"status"`
	}
	if strings.HasPrefix(status, "{") {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("parsing %s availability: %w", d.name, err)
		}
		status = msg.Status
	}

	d.available.Store(strings.EqualFold(status, AvailabilityOnline))
	return nil
}

// Available reports the last availability the device announced.
func (d *Device) Available() bool {
	return d.available.Load()
}

// IsReady implements cycle.Target.
func (d *Device) IsReady() bool {
	return d.broker.IsConnected() && d.available.Load()
}

// SetAttribute implements cycle.Target by publishing a Command.
func (d *Device) SetAttribute(attr cycle.Attribute, value int32) error {
	if !d.IsReady() {
		return fmt.Errorf("%w: %s", ErrUnavailable, d.name)
	}

	payload, err := json.Marshal(Command{Attribute: attr, Value: value})
	if err != nil {
		return fmt.Errorf("encoding command for %s: %w", d.name, err)
	}
	if err := d.broker.Publish(d.topics.Command(d.name), payload, d.qos, false); err != nil {
		return fmt.Errorf("setting %s on %s: %w", attr, d.name, err)
	}
	return nil
}
