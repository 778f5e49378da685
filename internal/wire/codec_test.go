package wire

import (
	"reflect"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	frames := []Frame{
		{CmdAdd, "foo.txt"},
		{CmdSchedule, "bar"},
		{CmdRemove, ""},
		{CmdUnschedule, "a:/mnt/usb"},
	}
	for _, f := range frames {
		w.Push(f.Command, f.Name)
	}

	buf := w.Output(w.Available())
	if w.Available() != 0 {
		t.Fatal("queue should be drained")
	}

	r := NewReader()
	got := r.Feed(buf)
	if !reflect.DeepEqual(got, frames) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, frames)
	}
}

func TestNulBytesDropped(t *testing.T) {
	r := NewReader()
	raw := []byte{'a', 0, 'f', 'o', 'o', end}
	got := r.Feed(raw)
	want := []Frame{{CmdAdd, "foo"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestUndefinedCommandDropped(t *testing.T) {
	r := NewReader()
	raw := []byte{'z', 'x', end, 'a', 'o', 'k', end}
	got := r.Feed(raw)
	want := []Frame{{CmdAdd, "ok"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestFeedByteAtATime(t *testing.T) {
	w := NewWriter()
	w.Push(CmdSchedule, "x")
	buf := w.Output(w.Available())

	r := NewReader()
	var got []Frame
	for _, b := range buf {
		got = append(got, r.Feed([]byte{b})...)
	}
	want := []Frame{{CmdSchedule, "x"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestPartialSendRequeue(t *testing.T) {
	w := NewWriter()
	w.Push(CmdAdd, "hello")
	full := w.Available()

	sent := w.Output(2)
	if w.Available() != full-2 {
		t.Fatalf("expected %d left, got %d", full-2, w.Available())
	}
	w.Requeue(sent[1:]) // pretend only 1 byte actually reached send(2)
	if w.Available() != full-1 {
		t.Fatalf("expected %d left after requeue, got %d", full-1, w.Available())
	}
}
