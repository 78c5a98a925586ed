//go:build linux

package meter

import "maps"

// Registry tracks which threads were alive at the last sample and the
// labels callers attached to thread ids.
//
// Registry is not safe for concurrent use; Meter serializes access.
type Registry struct {
	known ThreadSet
	names map[int]label
	gen   uint64 // completed reconciles
}

// label remembers the reconcile generation it was set in, so a label set
// for a thread that reuses a tid survives the exit of the previous owner.
type label struct {
	name string
	gen  uint64
}

func NewRegistry() *Registry {
	return &Registry{
		known: make(ThreadSet),
		names: make(map[int]label),
	}
}

// Reconcile diffs live against the threads known from the previous call and
// replaces the known set with live. A thread whose stats could not be read
// must not be in live; it is then reported as vanished.
//
// appeared and vanished are disjoint. A recycled tid shows up in both, under
// two different ThreadIDs.
func (r *Registry) Reconcile(live ThreadSet) (appeared, vanished ThreadSet) {
	appeared = make(ThreadSet)
	vanished = make(ThreadSet)
	liveTIDs := make(map[int]bool, len(live))
	for id := range live {
		liveTIDs[id.TID] = true
		if !r.known.Has(id) {
			appeared[id] = struct{}{}
		}
	}
	for id := range r.known {
		if live.Has(id) {
			continue
		}
		vanished[id] = struct{}{}
		// The label belongs to the exited thread unless it was set after
		// the last reconcile and the tid is live again.
		if l, ok := r.names[id.TID]; ok && (l.gen < r.gen || !liveTIDs[id.TID]) {
			delete(r.names, id.TID)
		}
	}
	r.known = maps.Clone(live)
	r.gen++
	return appeared, vanished
}

// Known returns a copy of the threads seen at the last reconcile.
func (r *Registry) Known() ThreadSet { return maps.Clone(r.known) }

// Len returns the number of threads seen at the last reconcile.
func (r *Registry) Len() int { return len(r.known) }

func (r *Registry) SetName(tid int, name string) {
	r.names[tid] = label{name: name, gen: r.gen}
}

func (r *Registry) Forget(tid int) { delete(r.names, tid) }

// Name returns the label set for tid, or fallback.
func (r *Registry) Name(tid int, fallback string) string {
	if l, ok := r.names[tid]; ok {
		return l.name
	}
	return fallback
}
