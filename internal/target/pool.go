package target

import (
	"sync"

	"github.com/nerrad567/attrcycle/internal/infrastructure/mqtt"
)

// Pool hands out one Device per device name.
type Pool struct {
	broker Broker
	topics mqtt.Topics
	qos    byte

	mu      sync.Mutex
	devices map[string]*Device
}

// NewPool creates an empty pool publishing through broker.
func NewPool(broker Broker, topics mqtt.Topics, qos byte) *Pool {
	return &Pool{
		broker:  broker,
		topics:  topics,
		qos:     qos,
		devices: make(map[string]*Device),
	}
}

// Get returns the Device for name, creating and watching it on first use.
// A device whose Watch fails is not cached, so a later Get retries.
func (p *Pool) Get(name string) (*Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.devices[name]; ok {
		return d, nil
	}

	d, err := NewDevice(name, p.broker, p.topics, p.qos)
	if err != nil {
		return nil, err
	}
	if err := d.Watch(); err != nil {
		return nil, err
	}
	p.devices[name] = d
	return d, nil
}

// Devices returns the number of devices in the pool.
func (p *Pool) Devices() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.devices)
}
