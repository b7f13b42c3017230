package cycle

// EventKind classifies a cycle Event.
type EventKind string

// Event kinds emitted by a Controller.
const (
	EventTrigger      EventKind = "trigger"
	EventApplied      EventKind = "applied"
	EventApplyFailed  EventKind = "apply_failed"
	EventSkipped      EventKind = "skipped"
	EventSaved        EventKind = "saved"
	EventSaveFailed   EventKind = "save_failed"
	EventRestored     EventKind = "restored"
	EventRestoreReset EventKind = "restore_reset"
)

// Event describes something a controller did. Index and Value are the
// active index and value at the time of the event.
type Event struct {
	ID    string
	Kind  EventKind
	Index int
	Value int32
	Err   error
}

// Observer receives controller events.
//
// ObserveCycle is called while the controller's lock is held and must not
// block or call back into the controller.
type Observer interface {
	ObserveCycle(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// ObserveCycle implements Observer.
func (f ObserverFunc) ObserveCycle(e Event) { f(e) }

type noopObserver struct{}

func (noopObserver) ObserveCycle(Event) {}
