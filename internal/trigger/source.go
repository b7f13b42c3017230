package trigger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/infrastructure/mqtt"
)

// Broker is the subset of the MQTT client the source needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Controllers looks up registered cyclers.
type Controllers interface {
	Get(id string) (*cycle.Controller, bool)
	List() []*cycle.Controller
}

// Logger defines the logging interface used by the source.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Discovery is the retained document describing one cycler.
type Discovery struct {
	ID        string                  `json:"id"`
	Attribute cycle.Attribute         `json:"attribute"`
	Values    []int32                 `json:"values"`
	Persist   bool                    `json:"persist"`
	Trigger   string                  `json:"trigger_topic"`
	State     string                  `json:"state_topic"`
	Params    cycle.ParameterMetadata `json:"params"`
}

// queueSize bounds the trigger messages waiting for the worker.
const queueSize = 64

type message struct {
	topic   string
	payload []byte
}

// Source subscribes to trigger topics and steps the matching controller.
// Subscribed messages are handled one at a time, in arrival order, by a
// single worker so the broker's delivery goroutine never waits on a publish.
type Source struct {
	broker      Broker
	controllers Controllers
	topics      mqtt.Topics
	qos         byte
	logger      Logger

	queue     chan message
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSource creates a trigger source. Call Start to subscribe.
func NewSource(broker Broker, controllers Controllers, topics mqtt.Topics, qos byte) *Source {
	return &Source{
		broker:      broker,
		controllers: controllers,
		topics:      topics,
		qos:         qos,
		logger:      noopLogger{},
		queue:       make(chan message, queueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetLogger sets the logger for the source.
func (s *Source) SetLogger(logger Logger) {
	s.logger = logger
}

// Start publishes discovery documents, starts the worker and subscribes to
// every trigger topic. Discovery failures are logged; a failed subscription
// stops the worker and is returned.
func (s *Source) Start() error {
	if err := s.PublishDiscovery(); err != nil {
		s.logger.Warn("publishing discovery failed", "error", err)
	}
	s.startOnce.Do(func() { go s.run() })
	if err := s.broker.Subscribe(s.topics.AllTriggers(), s.qos, s.enqueue); err != nil {
		s.halt()
		return fmt.Errorf("subscribing to triggers: %w", err)
	}
	return nil
}

// Stop unsubscribes from the trigger topics, then waits for the worker to
// finish the messages already queued. It is safe to call more than once.
func (s *Source) Stop() error {
	err := s.broker.Unsubscribe(s.topics.AllTriggers())
	s.halt()
	return err
}

func (s *Source) halt() {
	s.startOnce.Do(func() { go s.run() })
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// enqueue hands a delivered message to the worker without blocking.
func (s *Source) enqueue(topic string, payload []byte) error {
	select {
	case <-s.stop:
		return ErrStopped
	default:
	}
	select {
	case s.queue <- message{topic: topic, payload: payload}:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, topic)
	}
}

func (s *Source) run() {
	defer close(s.done)
	for {
		select {
		case m := <-s.queue:
			s.dispatch(m)
		case <-s.stop:
			for {
				select {
				case m := <-s.queue:
					s.dispatch(m)
				default:
					return
				}
			}
		}
	}
}

func (s *Source) dispatch(m message) {
	if err := s.HandleMessage(m.topic, m.payload); err != nil {
		s.logger.Warn("trigger message rejected", "topic", m.topic, "error", err)
	}
}

// HandleMessage steps the cycler named by topic.
func (s *Source) HandleMessage(topic string, payload []byte) error {
	id, err := s.topics.TriggerID(topic)
	if err != nil {
		return err
	}
	ctrl, ok := s.controllers.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCycler, id)
	}
	step, err := ParseStep(payload)
	if err != nil {
		return fmt.Errorf("cycler %s: %w", id, err)
	}

	snap := ctrl.Trigger(step)
	s.logger.Debug("mqtt trigger", "cycler", id, "step", step, "index", snap.Index)

	if err := s.PublishState(snap); err != nil {
		s.logger.Warn("publishing cycler state failed", "cycler", id, "error", err)
	}
	return nil
}

// PublishState publishes snap retained on the cycler's state topic.
func (s *Source) PublishState(snap cycle.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding state of %s: %w", snap.ID, err)
	}
	return s.broker.Publish(s.topics.State(snap.ID), payload, s.qos, true)
}

// PublishDiscovery publishes a retained Discovery document per cycler.
// It returns the first error after trying every cycler.
func (s *Source) PublishDiscovery() error {
	var first error
	for _, ctrl := range s.controllers.List() {
		payload, err := json.Marshal(s.discovery(ctrl))
		if err == nil {
			err = s.broker.Publish(s.topics.Discovery(ctrl.Table().ID()), payload, s.qos, true)
		}
		if err != nil && first == nil {
			first = fmt.Errorf("discovery for %s: %w", ctrl.Table().ID(), err)
		}
	}
	return first
}

func (s *Source) discovery(ctrl *cycle.Controller) Discovery {
	t := ctrl.Table()
	return Discovery{
		ID:        t.ID(),
		Attribute: t.Attribute(),
		Values:    t.Values(),
		Persist:   t.Persist(),
		Trigger:   s.topics.Trigger(t.ID()),
		State:     s.topics.State(t.ID()),
		Params:    cycle.Metadata(),
	}
}
