package debounce

import (
	"testing"
	"time"
)

const testWindow = 50 * time.Millisecond

func collector() (chan string, func(string)) {
	ch := make(chan string, 16)
	return ch, func(s string) { ch <- s }
}

func expectNone(t *testing.T, ch <-chan string, wait time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected emission %q", v)
	case <-time.After(wait):
	}
}

func expectValue(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case v := <-ch:
		if v != want {
			t.Fatalf("emitted %q, want %q", v, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestOnlyLastValueEmitted(t *testing.T) {
	ch, emit := collector()
	d := New(testWindow, emit)

	for _, s := range []string{"b", "ba", "bat", "batman"} {
		d.Push(s)
		time.Sleep(testWindow / 10)
	}

	expectValue(t, ch, "batman")
	expectNone(t, ch, 3*testWindow)
}

func TestNothingBeforeQuiescence(t *testing.T) {
	ch, emit := collector()
	d := New(time.Hour, emit)
	d.Push("a")

	expectNone(t, ch, 20*time.Millisecond)
	if !d.Pending() {
		t.Error("expected pending value")
	}
}

func TestFlush(t *testing.T) {
	ch, emit := collector()
	d := New(time.Hour, emit)

	if d.Flush() {
		t.Fatal("Flush with nothing pending should report false")
	}

	d.Push("dune")
	if !d.Flush() {
		t.Fatal("expected Flush to emit")
	}
	expectValue(t, ch, "dune")
	if d.Pending() {
		t.Error("nothing should be pending after Flush")
	}
}

func TestStop(t *testing.T) {
	ch, emit := collector()
	d := New(testWindow, emit)

	d.Push("a")
	d.Stop()
	d.Push("b")

	expectNone(t, ch, 3*testWindow)
}

func TestEmitsAgainAfterQuietPeriod(t *testing.T) {
	ch, emit := collector()
	d := New(testWindow, emit)

	d.Push("first")
	expectValue(t, ch, "first")

	d.Push("second")
	expectValue(t, ch, "second")
}

func TestDefaultWindow(t *testing.T) {
	d := New(0, func(string) {})
	if d.window != DefaultWindow {
		t.Errorf("window = %v, want %v", d.window, DefaultWindow)
	}
}
