package parser

import (
	"sync"

	"github.com/google/uuid"
)

// ProgressEventType names the lifecycle/batch events spec.md §6's
// /progress/{id} SSE stream emits.
type ProgressEventType string

const (
	EventStarted    ProgressEventType = "STARTED"
	EventProcessing ProgressEventType = "PROCESSING"
	EventCompleted  ProgressEventType = "COMPLETED"
	EventFailed     ProgressEventType = "FAILED"
)

// ProgressEvent is one SSE payload: a lifecycle transition, or a batch
// checkpoint (one per 500 processed entries, per spec.md §4.3).
type ProgressEvent struct {
	UploadID         uuid.UUID         `json:"uploadId"`
	Type             ProgressEventType `json:"type"`
	ProcessedEntries int               `json:"processedEntries"`
	TotalEntries     int               `json:"totalEntries"`
	Message          string            `json:"message,omitempty"`
}

// Broker fans each upload's progress events out to any number of
// subscribers (typically one per open SSE connection). There is no
// library in the reference pack for an in-process pub/sub broadcaster
// of this shape; it is plain channel-and-mutex bookkeeping in the same
// idiom internal/pool uses for its free lists, so it stays on the
// standard library rather than reaching for a messaging dependency no
// SPEC_FULL.md component otherwise needs.
type Broker struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]chan ProgressEvent
}

// NewBroker builds an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uuid.UUID][]chan ProgressEvent)}
}

// Subscribe registers a new buffered channel for uploadID's events. The
// returned unsubscribe function must be called once the caller (the SSE
// handler) stops reading, or the channel leaks.
func (b *Broker) Subscribe(uploadID uuid.UUID) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 16)
	b.mu.Lock()
	b.subs[uploadID] = append(b.subs[uploadID], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[uploadID]
		for i, c := range chans {
			if c == ch {
				b.subs[uploadID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(b.subs[uploadID]) == 0 {
			delete(b.subs, uploadID)
		}
	}
	return ch, unsubscribe
}

// Publish fans ev out to every current subscriber of its upload,
// dropping the event for any subscriber whose buffer is full rather
// than blocking the pipeline on a slow SSE client.
func (b *Broker) Publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.UploadID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
