package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish("fault")
	v := <-ch
	if v != "fault" {
		t.Fatalf("expected fault got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := New()
	bus.Subscribe() // never drained, buffer 16
	for i := 0; i < 100; i++ {
		bus.Publish(i)
	}
	if got := bus.Dropped(); got != 84 {
		t.Fatalf("dropped = %d, want 84", got)
	}
}

func TestBusSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	bus := New()
	bus.Close()
	ch := bus.Subscribe()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish("ignored") // must not panic
}
