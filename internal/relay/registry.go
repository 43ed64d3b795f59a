package relay

import "sort"

// Registry maps each symbol to the set of connection ids interested in it.
// A symbol is present only while its set is non-empty.
//
// Registry is not safe for concurrent use; the Relay guards it.
type Registry struct {
	subs map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[string]map[string]struct{}),
	}
}

// Add records interest of connID in every symbol. Symbols are normalized and
// blank entries skipped. Returns true if a new symbol key was created.
func (r *Registry) Add(connID string, symbols []string) bool {
	changed := false
	for _, raw := range symbols {
		sym := NormalizeSymbol(raw)
		if sym == "" {
			continue
		}
		set, ok := r.subs[sym]
		if !ok {
			set = make(map[string]struct{})
			r.subs[sym] = set
			changed = true
		}
		set[connID] = struct{}{}
	}
	return changed
}

// Remove drops interest of connID in every symbol, pruning emptied keys.
// Returns true if any symbol key was removed.
func (r *Registry) Remove(connID string, symbols []string) bool {
	changed := false
	for _, raw := range symbols {
		sym := NormalizeSymbol(raw)
		if r.removeOne(sym, connID) {
			changed = true
		}
	}
	return changed
}

// RemoveConn drops connID from every symbol.
// Returns true if any symbol key was removed.
func (r *Registry) RemoveConn(connID string) bool {
	changed := false
	for sym := range r.subs {
		if r.removeOne(sym, connID) {
			changed = true
		}
	}
	return changed
}

func (r *Registry) removeOne(sym, connID string) bool {
	set, ok := r.subs[sym]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.subs, sym)
		return true
	}
	return false
}

// Has reports whether any connection wants sym.
func (r *Registry) Has(sym string) bool {
	_, ok := r.subs[NormalizeSymbol(sym)]
	return ok
}

// Subscribers returns the sorted connection ids interested in sym.
func (r *Registry) Subscribers(sym string) []string {
	set := r.subs[NormalizeSymbol(sym)]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Symbols returns the sorted key set.
func (r *Registry) Symbols() []string {
	syms := make([]string, 0, len(r.subs))
	for sym := range r.subs {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Snapshot returns a copy of the registry as symbol -> sorted connection ids.
func (r *Registry) Snapshot() map[string][]string {
	out := make(map[string][]string, len(r.subs))
	for sym := range r.subs {
		out[sym] = r.Subscribers(sym)
	}
	return out
}

// Len returns the number of symbols with at least one subscriber.
func (r *Registry) Len() int {
	return len(r.subs)
}

// Pairs returns the total number of (connection, symbol) pairs.
func (r *Registry) Pairs() int {
	n := 0
	for _, set := range r.subs {
		n += len(set)
	}
	return n
}
