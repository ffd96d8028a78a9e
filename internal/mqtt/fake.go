package mqtt

import (
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// StateMessage is a state snapshot recorded by FakePublisher.
type StateMessage struct {
	Snapshot logic.Snapshot
	Time     time.Time
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Events contains all transition events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads for transition events.
	Payloads [][]byte

	// States contains all state snapshots that were published.
	States []StateMessage

	// StatePayloads contains the JSON payloads for state snapshots.
	StatePayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish and PublishState.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the transition event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishState records the snapshot.
func (f *FakePublisher) PublishState(snap logic.Snapshot, t time.Time) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatStatePayload(snap, t)
	if err != nil {
		return err
	}
	f.States = append(f.States, StateMessage{Snapshot: snap, Time: t})
	f.StatePayloads = append(f.StatePayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// LastState returns the most recent snapshot, if any.
func (f *FakePublisher) LastState() (logic.Snapshot, bool) {
	if len(f.States) == 0 {
		return logic.Snapshot{}, false
	}
	return f.States[len(f.States)-1].Snapshot, true
}

// Reset clears recorded messages and injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
