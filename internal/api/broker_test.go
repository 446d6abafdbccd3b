package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"fleetspan/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	rid := "r1"
	ch := b.Subscribe(rid)

	evt := model.RunEvent{Type: "run.progress", RunID: rid, Fitness: 1.5}
	b.Publish(rid, evt)
	b.Publish("other", model.RunEvent{Type: "run.progress", RunID: "other"})

	select {
	case got := <-ch:
		if got.Type != evt.Type || got.RunID != rid {
			t.Fatalf("got %+v, want %+v", got, evt)
		}
		if got.Fitness != 1.5 {
			t.Fatalf("bad payload: %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(rid, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// a second unsubscribe must not close twice
	b.Unsubscribe(rid, ch)
	b.Publish(rid, evt)
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r1")
	defer b.Unsubscribe("r1", ch)
	for i := 0; i < cap(ch)+5; i++ {
		b.Publish("r1", model.RunEvent{Type: "run.progress"})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("want full buffer %d, got %d", cap(ch), len(ch))
	}
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	defer b.Close()
	if err := b.Ping(testContext(t)); err != nil {
		t.Fatalf("ping: %v", err)
	}

	ch := b.Subscribe("r1")
	b.Publish("r1", model.RunEvent{Type: "run.completed", RunID: "r1", Status: model.RunSucceeded, Fitness: 47.8})
	select {
	case got := <-ch:
		if got.Type != "run.completed" || got.Status != model.RunSucceeded || got.Fitness != 47.8 {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe("r1", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
	b.Unsubscribe("r1", ch)
}

func TestRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not a url"); err == nil {
		t.Fatal("expected error")
	}
}
