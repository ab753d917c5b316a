package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)
	for _, typ := range []string{"login.success", "session.invalidated", "logout"} {
		d.Emit(context.Background(), Event{Type: typ})
	}
	d.Close()

	var got []string
	for i := 0; i < 3; i++ {
		ev := <-sink.Events()
		if ev.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be set")
		}
		got = append(got, ev.Type)
	}
	if strings.Join(got, ",") != "login.success,session.invalidated,logout" {
		t.Fatalf("unexpected order %v", got)
	}
	if d.Delivered() != 3 {
		t.Fatalf("expected 3 delivered, got %d", d.Delivered())
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, nil, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{Type: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero")
	}
}

func TestDropIfFull(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	sink := FuncSink(func(context.Context, Event) {
		once.Do(func() { <-block })
	})
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Type: "burst"})
	}
	close(block)
	d.Close()
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and a one-slot buffer")
	}
}

func TestSinkPanicIsContained(t *testing.T) {
	var n int
	sink := FuncSink(func(_ context.Context, ev Event) {
		n++
		if ev.Type == "bad" {
			panic("sink failure")
		}
	})
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, nil)
	d.Emit(context.Background(), Event{Type: "bad"})
	d.Emit(context.Background(), Event{Type: "good"})
	d.Close()
	if n != 2 || d.Delivered() != 1 {
		t.Fatalf("expected both events attempted and one delivered, n=%d delivered=%d", n, d.Delivered())
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{Type: "logout", UserID: "u-1", Success: true})
	s.Emit(context.Background(), Event{Type: "login.failure", Error: "invalid credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil || ev.UserID != "u-1" {
		t.Fatalf("unexpected first line %q err=%v", lines[0], err)
	}
}
