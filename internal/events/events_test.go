package events

import (
	"testing"
	"time"
)

func TestEventsBasic(t *testing.T) {
	l := NewLogger()
	s := l.Subscribe(JobEnterWait | JobEndAction)
	defer l.Unsubscribe(s)

	l.Log(JobStartAction, "ignored")
	l.Log(JobEnterWait, "j1")

	ev, err := s.Poll(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != JobEnterWait {
		t.Fatalf("expected JobEnterWait, got %v", ev.Type)
	}
	if ev.Data.(string) != "j1" {
		t.Fatalf("unexpected data %v", ev.Data)
	}

	_, err = s.Poll(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	l := NewLogger()
	s := l.Subscribe(AllEvents)
	l.Unsubscribe(s)

	_, err := s.Poll(time.Second)
	if err != ErrClosed {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestMaskFiltersEvents(t *testing.T) {
	l := NewLogger()
	s := l.Subscribe(JobCancel)
	defer l.Unsubscribe(s)

	l.Log(JobEndAction, "nope")
	l.Log(JobCancel, "yes")

	ev, err := s.Poll(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Data.(string) != "yes" {
		t.Fatalf("mask did not filter, got %v", ev.Data)
	}
}
