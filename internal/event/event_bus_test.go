// internal/event/event_bus_test.go
package event

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishReachesTopicSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	go bus.Start()
	defer bus.Stop()

	prints := bus.Subscribe(TypePrintJSON)
	alerts := bus.Subscribe(TypeAlert)

	bus.Publish(NewEvent(TypePrintJSON, "test", map[string]interface{}{"payload": "{}"}))

	ev := receive(t, prints)
	if ev.Data["payload"] != "{}" || ev.Source != "test" {
		t.Errorf("unexpected event %+v", ev)
	}

	select {
	case ev := <-alerts:
		t.Errorf("alert subscriber received %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(nil)
	ch := bus.Subscribe(TypeAlert)
	bus.Unsubscribe(TypeAlert, ch)

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}

func TestPublishAfterStopIsDropped(t *testing.T) {
	bus := NewEventBus(nil)
	bus.Stop()
	bus.Stop()
	bus.Publish(NewEvent(TypeAlert, "test", nil))
}
