package server

import (
	"context"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
)

func TestActivityDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewActivityDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "bob")
	defer cleanup()

	dispatcher.Publish(activity.Event{
		Recipient: "bob",
		Type:      activity.TypeRecipeFavourited,
		Actor:     "alice",
		Recipe:    "bread",
		Timestamp: time.Now().UTC(),
	})

	select {
	case received := <-stream:
		if received.Type != activity.TypeRecipeFavourited {
			t.Fatalf("expected event type %s, got %s", activity.TypeRecipeFavourited, received.Type)
		}
		if received.Recipe != "bread" {
			t.Fatalf("expected recipe bread, got %s", received.Recipe)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected activity event within deadline")
	}
}

func TestActivityDispatcherIsolatedByRecipient(t *testing.T) {
	dispatcher := NewActivityDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bobStream, bobCleanup := dispatcher.Subscribe(ctx, "bob")
	defer bobCleanup()
	carolStream, carolCleanup := dispatcher.Subscribe(ctx, "carol")
	defer carolCleanup()

	dispatcher.Publish(activity.Event{Recipient: "carol", Type: activity.TypeNewFollower, Actor: "alice"})

	select {
	case <-bobStream:
		t.Fatal("did not expect an event for an unrelated user")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case event := <-carolStream:
		if event.Actor != "alice" {
			t.Fatalf("expected actor alice, got %s", event.Actor)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected an event for the subscribed user")
	}
}

func TestActivityDispatcherDropsWhenBufferFull(t *testing.T) {
	dispatcher := NewActivityDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "bob")
	defer cleanup()

	for i := 0; i < defaultActivityBuffer*2; i++ {
		dispatcher.Publish(activity.Event{Recipient: "bob", Type: activity.TypeRecipeCommented, Actor: "alice"})
	}
	if len(stream) != defaultActivityBuffer {
		t.Fatalf("expected %d buffered events, got %d", defaultActivityBuffer, len(stream))
	}
}

func TestActivityDispatcherUnsubscribesOnCancel(t *testing.T) {
	dispatcher := NewActivityDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "bob")
	defer cleanup()
	if count := dispatcher.SubscriberCount("bob"); count != 1 {
		t.Fatalf("expected one subscriber, got %d", count)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for dispatcher.SubscriberCount("bob") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestActivityDispatcherIgnoresIncompleteEvents(t *testing.T) {
	dispatcher := NewActivityDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "bob")
	defer cleanup()

	dispatcher.Publish(activity.Event{Recipient: "bob"})
	dispatcher.Publish(activity.Event{Type: activity.TypeNewFollower})
	if len(stream) != 0 {
		t.Fatalf("expected no buffered events, got %d", len(stream))
	}

	anonymous, _ := dispatcher.Subscribe(ctx, "")
	if _, open := <-anonymous; open {
		t.Fatal("expected anonymous stream to be closed")
	}
}
