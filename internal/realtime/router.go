package realtime

import (
	"fmt"
	"log"
	"sync"
)

// RowHandler consumes one change event. Handlers must return quickly; long
// work belongs on a separate goroutine.
type RowHandler func(ChangeEvent)

// Filter restricts a subscription to rows where Column equals Value.
type Filter struct {
	Column string
	Value  any
}

type registration struct {
	id      uint64
	table   string
	filter  *Filter
	handler RowHandler
}

// Router is the per-user demultiplexer over a single change-stream
// subscription. UI components register handlers by table, optionally
// narrowed by a column equality filter; the router dispatches each incoming
// event to every matching handler.
//
// Losing the transport flips the connected flag but never drops
// registrations; reconnection is the transport's concern.
type Router struct {
	mu        sync.RWMutex
	userID    string
	connected bool
	nextID    uint64
	byTable   map[string]map[uint64]*registration
}

// NewRouter constructs a router bound to one authenticated user.
func NewRouter(userID string) *Router {
	return &Router{
		userID:  userID,
		byTable: make(map[string]map[uint64]*registration),
	}
}

// UserID returns the user the underlying subscription is keyed by.
func (r *Router) UserID() string {
	return r.userID
}

// Subscribe registers a handler for a table, optionally narrowed by a
// filter. The returned function removes only this handler; it never tears
// down the channel.
func (r *Router) Subscribe(table string, handler RowHandler, filter *Filter) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	reg := &registration{id: id, table: table, filter: filter, handler: handler}
	if _, ok := r.byTable[table]; !ok {
		r.byTable[table] = make(map[uint64]*registration)
	}
	r.byTable[table][id] = reg
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if regs, ok := r.byTable[table]; ok {
			delete(regs, id)
			if len(regs) == 0 {
				delete(r.byTable, table)
			}
		}
	}
}

// Dispatch routes one event to every handler registered for its table whose
// filter (if any) matches. A panicking handler is logged and must not break
// routing to the others.
func (r *Router) Dispatch(evt ChangeEvent) {
	r.mu.RLock()
	regs := make([]*registration, 0, len(r.byTable[evt.Table]))
	for _, reg := range r.byTable[evt.Table] {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	row := evt.Row()
	for _, reg := range regs {
		if reg.filter != nil && !filterMatches(reg.filter, row) {
			continue
		}
		invoke(reg.handler, evt)
	}
}

// SetConnected records transport state. Registrations survive disconnects.
func (r *Router) SetConnected(connected bool) {
	r.mu.Lock()
	r.connected = connected
	r.mu.Unlock()
}

// Connected reports whether the underlying transport is up.
func (r *Router) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// HandlerCount returns the number of live registrations for a table.
func (r *Router) HandlerCount(table string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTable[table])
}

func filterMatches(f *Filter, row map[string]any) bool {
	if row == nil {
		return false
	}
	value, ok := row[f.Column]
	if !ok {
		return false
	}
	// Rows arrive JSON-decoded, so compare on string form to tolerate
	// number-vs-string drift across the wire.
	return fmt.Sprint(value) == fmt.Sprint(f.Value)
}

func invoke(handler RowHandler, evt ChangeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("realtime: handler panic on %s %s: %v", evt.Table, evt.Type, rec)
		}
	}()
	handler(evt)
}
