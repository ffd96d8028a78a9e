package mqtt

import (
	"testing"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// These tests never connect: a fresh paho client reports the connection as
// closed, which exercises the buffering and dispatch paths.

func newOfflineClient(handler CommandHandler) *RealClient {
	return newRealClient(Options{
		Broker:     "tcp://127.0.0.1:1",
		ClientID:   "test",
		Topics:     NewTopics("garden/irrigation"),
		OnCommand:  handler,
		BufferSize: 4,
	})
}

func TestRealClientBuffersWhileDisconnected(t *testing.T) {
	c := newOfflineClient(nil)
	defer c.Close()

	if c.IsConnected() {
		t.Fatal("client should not be connected")
	}
	snap := logic.Snapshot{Humidity: 30, Mode: logic.ModeAutomatic, Threshold: 30}
	if err := c.PublishState(snap, ts); err != nil {
		t.Fatalf("PublishState should buffer, got %v", err)
	}
	if err := c.Publish(logic.Event{Timestamp: ts, Type: logic.EventPumpOn, Snapshot: snap}); err != nil {
		t.Fatalf("Publish should buffer, got %v", err)
	}
	if err := c.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("PublishSystem should buffer, got %v", err)
	}
	if c.Buffered() != 3 {
		t.Fatalf("expected 3 buffered messages, got %d", c.Buffered())
	}

	c.mu.Lock()
	msgs := c.buf.drainAll()
	c.mu.Unlock()
	wantTopics := []string{"garden/irrigation/state", "garden/irrigation/events", "garden/irrigation/system"}
	for i, msg := range msgs {
		if msg.topic != wantTopics[i] {
			t.Errorf("msg %d: topic %s, want %s", i, msg.topic, wantTopics[i])
		}
	}
	if !msgs[0].retained || msgs[0].qos != 1 {
		t.Error("state must be published retained with QoS 1")
	}
	if msgs[1].retained {
		t.Error("events must not be retained")
	}
	if !msgs[2].retained {
		t.Error("retained system event lost its flag")
	}
}

func TestRealClientBufferBounded(t *testing.T) {
	c := newOfflineClient(nil)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.PublishState(logic.Snapshot{Humidity: i}, ts.Add(time.Duration(i)*time.Second))
	}
	if c.Buffered() != 4 {
		t.Errorf("expected buffer capped at 4, got %d", c.Buffered())
	}
}

func TestRealClientDispatch(t *testing.T) {
	var got []logic.Command
	c := newOfflineClient(func(cmd logic.Command) { got = append(got, cmd) })
	defer c.Close()

	c.dispatch("garden/irrigation/cmd/mode", []byte("MANUAL"))
	c.dispatch("garden/irrigation/cmd/pump", []byte("ON"))
	c.dispatch("garden/irrigation/cmd/threshold", []byte("not a number"))
	c.dispatch("garden/irrigation/cmd/valve", []byte("ON"))

	want := []logic.Command{logic.SetMode(logic.ModeManual), logic.SetActuator(true)}
	if len(got) != len(want) {
		t.Fatalf("expected %d commands, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
