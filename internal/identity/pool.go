// Package identity supplies randomized client-identity headers.
//
// The platform's risk-control layer correlates requests by User-Agent, so the
// executor draws a fresh identity from the pool on every attempt. Selection
// is uniform random, except that the pool never hands out the same string on
// two consecutive calls (when it holds more than one).
package identity

import (
	"math/rand/v2"
	"sync"
)

// defaultAgents mixes common browser UAs with the platform's own TV client UA.
var defaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
	"Mozilla/5.0 (Linux; Android 12; Pixel 6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 BiliTV/1110500 (Linux; Android 11) bilibili-tv;free",
}

// Pool is a fixed sequence of User-Agent strings.
type Pool struct {
	mu     sync.Mutex
	agents []string
	last   int // index of the previously returned agent, -1 initially
}

// NewPool creates a pool from the given agents. An empty or nil slice falls
// back to the built-in default set.
func NewPool(agents []string) *Pool {
	if len(agents) == 0 {
		agents = defaultAgents
	}
	copied := make([]string, len(agents))
	copy(copied, agents)
	return &Pool{agents: copied, last: -1}
}

// Next returns a User-Agent string. Consecutive calls never return the same
// string when the pool holds more than one entry.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.agents) == 1 {
		p.last = 0
		return p.agents[0]
	}

	idx := rand.IntN(len(p.agents))
	if idx == p.last {
		// Shift by a random non-zero offset instead of re-rolling.
		idx = (idx + 1 + rand.IntN(len(p.agents)-1)) % len(p.agents)
	}
	p.last = idx
	return p.agents[idx]
}

// Replace swaps the agent list (config reload). An empty list is ignored so a
// bad config cannot leave the pool unable to serve.
func (p *Pool) Replace(agents []string) {
	if len(agents) == 0 {
		return
	}
	copied := make([]string, len(agents))
	copy(copied, agents)

	p.mu.Lock()
	p.agents = copied
	p.last = -1
	p.mu.Unlock()
}

// Size returns the number of agents in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.agents)
}
