package broadcast

import "sync"

// DefaultChannelName is the well-known channel the portal uses for auth
// synchronization.
const DefaultChannelName = "easybase-auth"

// queueSize bounds the per-handle backlog; messages beyond it are dropped.
const queueSize = 16

// buses is the process-wide registry of named channels, mirroring the
// origin-scoped namespace of the browser's BroadcastChannel.
var (
	busesMu sync.Mutex
	buses   = make(map[string]*bus)
)

type bus struct {
	mu      sync.Mutex
	handles map[*Handle]struct{}
}

// Handle is one endpoint on a named channel. Every Open on the same name
// joins the same bus; a handle receives messages published by the other
// handles but never its own.
type Handle struct {
	name  string
	bus   *bus
	queue chan Message

	mu      sync.Mutex
	handler func(Message)
	closed  bool
}

// Open joins the named channel and starts delivering incoming messages.
func Open(name string) *Handle {
	h := &Handle{
		name:  name,
		queue: make(chan Message, queueSize),
	}

	// The handle is added while still holding the registry lock, so a
	// concurrent Close of the bus's last handle cannot remove the bus from
	// the registry between the lookup and the add, which would strand this
	// handle on a bus later Opens can no longer reach.
	busesMu.Lock()
	b, ok := buses[name]
	if !ok {
		b = &bus{handles: make(map[*Handle]struct{})}
		buses[name] = b
	}
	h.bus = b
	b.mu.Lock()
	b.handles[h] = struct{}{}
	b.mu.Unlock()
	busesMu.Unlock()

	go h.deliver()
	return h
}

// Publish sends msg to every other handle on the channel. Full subscriber
// queues drop the message rather than block the publisher.
func (h *Handle) Publish(msg Message) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}

	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	for peer := range h.bus.handles {
		if peer == h {
			continue
		}
		select {
		case peer.queue <- msg:
		default:
		}
	}
}

// OnMessage registers the handler for received messages. Messages arriving
// before a handler is registered are dropped.
func (h *Handle) OnMessage(handler func(Message)) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Close detaches the handle from the channel. Safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.bus.mu.Lock()
	delete(h.bus.handles, h)
	empty := len(h.bus.handles) == 0
	h.bus.mu.Unlock()

	if empty {
		busesMu.Lock()
		if b, ok := buses[h.name]; ok && b == h.bus {
			b.mu.Lock()
			if len(b.handles) == 0 {
				delete(buses, h.name)
			}
			b.mu.Unlock()
		}
		busesMu.Unlock()
	}

	close(h.queue)
	return nil
}

// deliver runs on a dedicated goroutine so each handle applies messages one
// at a time in receipt order.
func (h *Handle) deliver() {
	for msg := range h.queue {
		h.mu.Lock()
		handler := h.handler
		h.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

var _ Channel = (*Handle)(nil)
