package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicPlans)
	defer func() { recover() }() // ignore close panic if already closed

	evt := Event{Type: "plan.created", Data: map[string]any{"planId": "p1"}}
	b.Publish(TopicPlans, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["planId"].(string) != "p1" {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(TopicPlans, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerTopicIsolation(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("other")
	b.Publish(TopicPlans, Event{Type: "plan.created"})

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event on other topic: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
	b.Unsubscribe("other", ch)
}
