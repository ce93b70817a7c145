package invalidation

import (
	"sync"
	"time"
)

// EventType names the dataset an invalidation touched.
type EventType string

const (
	EventChampionData EventType = "champion_data"
	EventMatchData    EventType = "match_data"
	EventSummonerData EventType = "summoner_data"
	EventDeckData     EventType = "deck_data"
	EventStaticData   EventType = "static_data_refresh"
	EventFullFlush    EventType = "full_flush"
)

// Event is one audit record. Events are append-only: written once when
// the invalidation completes (or partially fails), never mutated.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TriggeredBy string    `json:"triggered_by"`
	Timestamp   time.Time `json:"timestamp"`
	Tags        []string  `json:"tags"`
	Removed     int       `json:"removed"`
	Err         string    `json:"error,omitempty"`
}

// eventRing is a fixed-capacity ring buffer of events. When full, the
// oldest event is overwritten.
type eventRing struct {
	mu     sync.Mutex
	events []Event
	next   int
	filled bool
}

func newEventRing(capacity int) *eventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &eventRing{events: make([]Event, capacity)}
}

func (r *eventRing) append(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.next] = ev
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.filled = true
	}
}

// size returns how many events are currently retained.
func (r *eventRing) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled {
		return len(r.events)
	}
	return r.next
}

// snapshot returns a copy of the recorded events, newest first.
func (r *eventRing) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.filled {
		count = len(r.events)
	}

	out := make([]Event, 0, count)
	for i := 1; i <= count; i++ {
		idx := (r.next - i + len(r.events)) % len(r.events)
		out = append(out, r.events[idx])
	}
	return out
}
