package resilience

import "sync"

// Group hands out one breaker per key. The session client keys breakers by
// notebook server base URL so a dead server never fails calls to a healthy one.
type Group struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates a group whose breakers share settings.
func NewGroup(settings Settings) *Group {
	return &Group{
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[key]
	if !ok {
		b = New(key, g.settings)
		g.breakers[key] = b
	}
	return b
}

// Remove forgets the breaker for key, e.g. once its server is shut down.
func (g *Group) Remove(key string) {
	g.mu.Lock()
	delete(g.breakers, key)
	g.mu.Unlock()
}

// Len returns the number of tracked breakers.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.breakers)
}
