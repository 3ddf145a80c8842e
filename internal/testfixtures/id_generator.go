package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator yields "<prefix>-<n>" identifiers in place of uuid.NewString.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

// NewIDGenerator starts a sequence with the given prefix, "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// Last returns the most recent identifier, or "" before the first call to Next.
func (g *IDGenerator) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counter == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc exposes Next as the idGenerator argument of the service constructors.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence under a new prefix. An empty prefix keeps the current one.
func (g *IDGenerator) Reset(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prefix != "" {
		g.prefix = prefix
	}
	g.counter = 0
}
