package archive

import "sync"

// buildGroup is a minimal per-target build guard. It only prevents this
// process from starting two builds of the same target; cross-process safety
// comes from the marker protocol and the builder's refusal to overwrite.
type buildGroup struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// begin reports whether the caller may build target. A false return means a
// build is already in flight.
func (g *buildGroup) begin(target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[target]; busy {
		return false
	}
	g.active[target] = struct{}{}
	return true
}

func (g *buildGroup) end(target string) {
	g.mu.Lock()
	delete(g.active, target)
	g.mu.Unlock()
}
