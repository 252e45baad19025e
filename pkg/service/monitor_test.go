package service

import "testing"

func TestProcessMonitorPublishReachesSubscriber(t *testing.T) {
	m := NewProcessMonitor()
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	m.Publish(Event{ReportID: "r1", Status: StatusRunning})

	select {
	case ev := <-ch:
		if ev.ReportID != "r1" || ev.Status != StatusRunning {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a buffered event to be immediately available")
	}
}

func TestProcessMonitorUnsubscribeClosesChannel(t *testing.T) {
	m := NewProcessMonitor()
	ch := m.Subscribe()
	m.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
}

func TestProcessMonitorPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	m := NewProcessMonitor()
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		m.Publish(Event{ReportID: "r1", Status: StatusRunning})
	}
}
