package socket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/agent-racer/leagueconnect/transport"
)

// Handler receives the data of a matching event plus the full envelope.
// data is the raw JSON value and may be the literal null.
type Handler func(data json.RawMessage, event EventResponse)

// Subscription is the handle returned by Subscribe. Cancel removes exactly
// this registration and leaves others on the same path in place.
type Subscription struct {
	ID   uuid.UUID
	Path string

	handler Handler
	reg     *registry
}

// Cancel unregisters the handler. It is safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.reg.remove(sub)
}

// registry maps normalized paths to handlers. Both the paths and the
// handlers under each path keep their registration order.
type registry struct {
	mu    sync.RWMutex
	order []string
	subs  map[string][]*Subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string][]*Subscription)}
}

func (r *registry) add(path string, h Handler) *Subscription {
	p := transport.NormalizePath(path)
	sub := &Subscription{ID: uuid.New(), Path: p, handler: h, reg: r}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[p]; !ok {
		r.order = append(r.order, p)
	}
	r.subs[p] = append(r.subs[p], sub)
	return sub
}

// removePath drops every handler registered for path.
func (r *registry) removePath(path string) {
	p := transport.NormalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(p)
}

func (r *registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.subs[sub.Path]
	for i, s := range list {
		if s != sub {
			continue
		}
		if len(list) == 1 {
			r.dropLocked(sub.Path)
			return
		}
		next := make([]*Subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		r.subs[sub.Path] = append(next, list[i+1:]...)
		return
	}
}

// dropLocked removes path entirely. Caller must hold r.mu.
func (r *registry) dropLocked(p string) {
	if _, ok := r.subs[p]; !ok {
		return
	}
	delete(r.subs, p)
	for i, o := range r.order {
		if o == p {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// handlers returns a snapshot so callbacks run without holding the lock and
// may themselves subscribe or unsubscribe.
func (r *registry) handlers(uri string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.subs[transport.NormalizePath(uri)]
	if len(list) == 0 {
		return nil
	}
	out := make([]*Subscription, len(list))
	copy(out, list)
	return out
}

func (r *registry) paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *registry) count(path string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[transport.NormalizePath(path)])
}
