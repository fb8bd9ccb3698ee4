package bus

import (
	"context"
	"testing"
)

func TestEventSubject(t *testing.T) {
	e := Event{Entity: "orders", Op: "create", ID: 3}
	if got := e.Subject("admin"); got != "krafti.admin.orders.create" {
		t.Fatalf("Subject() = %q", got)
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus
	if err := b.Publish(context.Background(), "krafti.admin.orders.create", Event{}); err == nil {
		t.Fatal("Publish on nil bus succeeded")
	}
	if _, err := b.Subscribe(context.Background(), "krafti.>", "test", func(context.Context, []byte) error { return nil }); err == nil {
		t.Fatal("Subscribe on nil bus succeeded")
	}
	b.Close()
}
