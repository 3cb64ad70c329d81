package parser

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBrokerPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	uploadID := uuid.New()
	ch, unsubscribe := b.Subscribe(uploadID)
	defer unsubscribe()

	b.Publish(ProgressEvent{UploadID: uploadID, Type: EventStarted})

	select {
	case ev := <-ch:
		if ev.Type != EventStarted {
			t.Fatalf("expected EventStarted, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerPublishIgnoresOtherUploads(t *testing.T) {
	b := NewBroker()
	ch, unsubscribe := b.Subscribe(uuid.New())
	defer unsubscribe()

	b.Publish(ProgressEvent{UploadID: uuid.New(), Type: EventStarted})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	uploadID := uuid.New()
	ch, unsubscribe := b.Subscribe(uploadID)
	unsubscribe()

	b.Publish(ProgressEvent{UploadID: uploadID, Type: EventCompleted})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}
