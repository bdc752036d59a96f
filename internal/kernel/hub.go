package kernel

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/sched"
)

// subscriberBuffer bounds each event stream subscriber. A slow consumer loses
// events rather than stalling the scheduler.
const subscriberBuffer = 256

// hub fans scheduler events out to monitor subscribers. Publish runs under
// the scheduler lock and never blocks.
type hub struct {
	mu   sync.Mutex
	subs map[int]chan sched.Event
	next int
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan sched.Event)}
}

func (h *hub) publish(e sched.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// subscribe registers a new event consumer. The cancel function closes the
// channel.
func (h *hub) subscribe() (<-chan sched.Event, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan sched.Event, subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
