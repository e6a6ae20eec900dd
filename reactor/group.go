package reactor

import "golang.org/x/sync/errgroup"

// Group runs a fixed number of independent Poller instances
// concurrently, letting a caller stripe connections across them
// instead of funneling every registration through a single poller.
type Group struct {
	pollers []*Poller
}

// NewGroup creates n pollers.
func NewGroup(n int) (*Group, error) {
	g := &Group{pollers: make([]*Poller, n)}
	for i := range g.pollers {
		p, err := NewPoller()
		if err != nil {
			g.closeAll()
			return nil, err
		}
		g.pollers[i] = p
	}
	return g, nil
}

// Poller returns the i-th poller, so callers can stripe registrations
// across the group (e.g. round-robin by accepted connection count).
func (g *Group) Poller(i int) *Poller {
	return g.pollers[i%len(g.pollers)]
}

// Len reports how many pollers are in the group.
func (g *Group) Len() int {
	return len(g.pollers)
}

// Run starts every poller's readiness loop and blocks until all of
// them return, which only happens once every poller has been Closed.
// The first non-nil error from any poller is returned; the rest are
// dropped.
func (g *Group) Run() error {
	var eg errgroup.Group
	for _, p := range g.pollers {
		p := p
		eg.Go(p.Run)
	}
	return eg.Wait()
}

func (g *Group) closeAll() {
	for _, p := range g.pollers {
		if p != nil {
			_ = p.Close()
		}
	}
}

// Close stops every poller in the group.
func (g *Group) Close() error {
	g.closeAll()
	return nil
}
