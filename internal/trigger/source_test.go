package trigger

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/infrastructure/mqtt"
)

type publishedMsg struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeBroker struct {
	mu           sync.Mutex
	publishErr   error
	subscribeErr error
	published    []publishedMsg
	subscribed   map[string]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, publishedMsg{topic, payload, retained})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.subscribed[topic] = handler
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribed, topic)
	return nil
}

func (b *fakeBroker) lastOn(topic string) (publishedMsg, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.published) - 1; i >= 0; i-- {
		if b.published[i].topic == topic {
			return b.published[i], true
		}
	}
	return publishedMsg{}, false
}

func newTestRegistry(t *testing.T) *cycle.Registry {
	t.Helper()
	reg := cycle.NewRegistry("")
	for _, id := range []string{"knob0", "knob1"} {
		table, err := cycle.NewTable(cycle.TableConfig{
			ID:        id,
			Key:       reg.KeyFor(id),
			Attribute: "cpi",
			Values:    []int32{10, 20, 30},
		})
		if err != nil {
			t.Fatalf("NewTable() error = %v", err)
		}
		if err := reg.Register(cycle.NewController(table, cycle.Options{})); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	return reg
}

func TestSource_StartPublishesDiscoveryAndSubscribes(t *testing.T) {
	b := newFakeBroker()
	src := NewSource(b, newTestRegistry(t), mqtt.NewTopics("attrcycle"), 1)

	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, ok := b.subscribed["attrcycle/trigger/+"]; !ok {
		t.Errorf("not subscribed to trigger wildcard: %v", b.subscribed)
	}

	msg, ok := b.lastOn("attrcycle/discovery/knob1")
	if !ok || !msg.retained {
		t.Fatalf("discovery for knob1 missing or not retained: %+v", msg)
	}
	var doc Discovery
	if err := json.Unmarshal(msg.payload, &doc); err != nil {
		t.Fatalf("discovery not JSON: %v", err)
	}
	if doc.ID != "knob1" || doc.Trigger != "attrcycle/trigger/knob1" || len(doc.Values) != 3 {
		t.Errorf("discovery = %+v", doc)
	}
	if len(doc.Params.Step) != 2 || doc.Params.Step[0].DisplayName != "Next" || doc.Params.Step[1].Value != -1 {
		t.Errorf("discovery params = %+v", doc.Params)
	}

	if err := src.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if len(b.subscribed) != 0 {
		t.Error("Stop() left the subscription in place")
	}
}

func TestSource_StartSubscribeFailure(t *testing.T) {
	b := newFakeBroker()
	b.subscribeErr = mqtt.ErrNotConnected
	src := NewSource(b, newTestRegistry(t), mqtt.NewTopics("attrcycle"), 1)

	if err := src.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestSource_HandleMessage(t *testing.T) {
	b := newFakeBroker()
	reg := newTestRegistry(t)
	src := NewSource(b, reg, mqtt.NewTopics("attrcycle"), 1)

	if err := src.HandleMessage("attrcycle/trigger/knob0", []byte(`{"step":-1}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	ctrl, _ := reg.Get("knob0")
	if snap := ctrl.Snapshot(); snap.Index != 2 || snap.Value != 30 {
		t.Errorf("snapshot after step -1 = %+v, want index 2 value 30", snap)
	}
	other, _ := reg.Get("knob1")
	if other.Snapshot().Index != 0 {
		t.Error("trigger for knob0 moved knob1")
	}

	msg, ok := b.lastOn("attrcycle/state/knob0")
	if !ok || !msg.retained {
		t.Fatalf("state not published retained: %+v", msg)
	}
	var snap cycle.Snapshot
	if err := json.Unmarshal(msg.payload, &snap); err != nil {
		t.Fatalf("state not JSON: %v", err)
	}
	if snap.Index != 2 || snap.Value != 30 {
		t.Errorf("published state = %+v", snap)
	}
}

func TestSource_HandleMessageErrors(t *testing.T) {
	src := NewSource(newFakeBroker(), newTestRegistry(t), mqtt.NewTopics("attrcycle"), 1)

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"unknown cycler", "attrcycle/trigger/ghost", `next`, ErrUnknownCycler},
		{"bad payload", "attrcycle/trigger/knob0", `{}`, ErrInvalidPayload},
		{"foreign topic", "attrcycle/state/knob0", `next`, mqtt.ErrTopicMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := src.HandleMessage(tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("HandleMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSource_StatePublishFailureIsNotFatal(t *testing.T) {
	b := newFakeBroker()
	b.publishErr = mqtt.ErrNotConnected
	reg := newTestRegistry(t)
	src := NewSource(b, reg, mqtt.NewTopics("attrcycle"), 1)

	if err := src.HandleMessage("attrcycle/trigger/knob1", []byte("next")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	ctrl, _ := reg.Get("knob1")
	if ctrl.Snapshot().Index != 1 {
		t.Error("trigger was not applied")
	}

	if err := src.PublishDiscovery(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("PublishDiscovery() error = %v, want ErrNotConnected", err)
	}
}

func (b *fakeBroker) handler(topic string) mqtt.MessageHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed[topic]
}

func (b *fakeBroker) indexesOn(t *testing.T, topic string) []int {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int
	for _, m := range b.published {
		if m.topic != topic {
			continue
		}
		var snap cycle.Snapshot
		if err := json.Unmarshal(m.payload, &snap); err != nil {
			t.Fatalf("state not JSON: %v", err)
		}
		out = append(out, snap.Index)
	}
	return out
}

func TestSource_SubscribedTriggersApplyInArrivalOrder(t *testing.T) {
	b := newFakeBroker()
	reg := newTestRegistry(t)
	src := NewSource(b, reg, mqtt.NewTopics("attrcycle"), 1)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handle := b.handler("attrcycle/trigger/+")
	if handle == nil {
		t.Fatal("no trigger handler subscribed")
	}
	for _, p := range []string{"next", "next", "previous", "next", "next"} {
		if err := handle("attrcycle/trigger/knob0", []byte(p)); err != nil {
			t.Fatalf("handler(%q) error = %v", p, err)
		}
	}

	// Stop drains the queued messages before returning.
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	got := b.indexesOn(t, "attrcycle/state/knob0")
	want := []int{1, 2, 1, 2, 0}
	if len(got) != len(want) {
		t.Fatalf("published indexes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published indexes = %v, want %v", got, want)
		}
	}
	ctrl, _ := reg.Get("knob0")
	if ctrl.Snapshot().Index != 0 {
		t.Errorf("final Index = %d, want 0", ctrl.Snapshot().Index)
	}
}

func TestSource_QueueFullRejects(t *testing.T) {
	b := newFakeBroker()
	src := NewSource(b, newTestRegistry(t), mqtt.NewTopics("attrcycle"), 1)

	// Without Start nothing drains the queue.
	for i := 0; i < queueSize; i++ {
		if err := src.enqueue("attrcycle/trigger/knob1", []byte("next")); err != nil {
			t.Fatalf("enqueue %d error = %v", i, err)
		}
	}
	if err := src.enqueue("attrcycle/trigger/knob1", []byte("next")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("enqueue on a full queue error = %v, want ErrQueueFull", err)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n := len(b.indexesOn(t, "attrcycle/state/knob1")); n != queueSize {
		t.Errorf("states published after drain = %d, want %d", n, queueSize)
	}
}

func TestSource_EnqueueAfterStop(t *testing.T) {
	b := newFakeBroker()
	src := NewSource(b, newTestRegistry(t), mqtt.NewTopics("attrcycle"), 1)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if err := src.enqueue("attrcycle/trigger/knob0", []byte("next")); !errors.Is(err, ErrStopped) {
		t.Errorf("enqueue after Stop error = %v, want ErrStopped", err)
	}
}
