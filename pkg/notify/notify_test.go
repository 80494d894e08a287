package notify

import "testing"

func TestHubDeliversInSubscriptionOrder(t *testing.T) {
	h := NewHub()
	var order []string
	h.Subscribe(ObserverFunc(func(Notification) { order = append(order, "a") }))
	h.Subscribe(ObserverFunc(func(Notification) { order = append(order, "b") }))

	h.Notify(Notification{Kind: SelectionChanged, Selection: "ABC123"})

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v", order)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	rec := &Recorder{}
	cancel := h.Subscribe(rec)

	h.Notify(Notification{Kind: DeviceListChanged})
	cancel()
	cancel()
	h.Notify(Notification{Kind: DeviceListChanged})

	if got := len(rec.All()); got != 1 {
		t.Errorf("recorded %d notifications, want 1", got)
	}
}

func TestHubSurvivesPanickingObserver(t *testing.T) {
	h := NewHub()
	rec := &Recorder{}
	h.Subscribe(ObserverFunc(func(Notification) { panic("bad observer") }))
	h.Subscribe(rec)

	h.Notify(Notification{Kind: Error, Failure: "spawn"})

	all := rec.All()
	if len(all) != 1 {
		t.Fatalf("recorded %d, want 1", len(all))
	}
	if all[0].Time.IsZero() {
		t.Error("Notify should stamp Time")
	}
}

func TestRecorderOfKind(t *testing.T) {
	rec := &Recorder{}
	rec.Notify(Notification{Kind: OperationLine, Line: "a"})
	rec.Notify(Notification{Kind: OperationCompleted})
	rec.Notify(Notification{Kind: OperationLine, Line: "b"})

	lines := rec.OfKind(OperationLine)
	if len(lines) != 2 || lines[1].Line != "b" {
		t.Errorf("OfKind = %+v", lines)
	}
	rec.Reset()
	if len(rec.All()) != 0 {
		t.Error("Reset did not clear")
	}
}
