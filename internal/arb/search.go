package arb

import (
	"math"
	"sort"
	"strings"
)

// Cycle is one trading loop found by the search, first coin == last.
type Cycle struct {
	Coins     []string
	Pools     []string
	GrossRate float64 // cumulative rate before fees
	NetRate   float64 // cumulative rate net of fees
}

// FindCycles searches for cycles through the start coin with a net rate
// above 1, visiting at most maxDepth pools. The walk accumulates log
// rates, so a profitable cycle is a positive-sum loop. Results are
// ordered by net rate descending, shorter cycle first on ties.
func (g *Graph) FindCycles(start string, maxDepth int) []Cycle {
	g.mu.RLock()
	defer g.mu.RUnlock()

	root, ok := g.nodeIndex[start]
	if !ok {
		return nil
	}

	s := &searcher{graph: g, root: root, maxDepth: maxDepth}
	s.visited = make([]bool, len(g.nodes))
	s.visited[root] = true
	s.walk(root, 0, 0)

	sort.Slice(s.found, func(i, j int) bool {
		if s.found[i].NetRate != s.found[j].NetRate {
			return s.found[i].NetRate > s.found[j].NetRate
		}
		return len(s.found[i].Pools) < len(s.found[j].Pools)
	})
	return s.found
}

type searcher struct {
	graph    *Graph
	root     int
	maxDepth int
	visited  []bool
	path     []int // edge indices
	found    []Cycle
}

func (s *searcher) walk(node int, logNet, logGross float64) {
	if len(s.path) >= s.maxDepth {
		return
	}

	for _, ei := range s.graph.adj[node] {
		e := &s.graph.edges[ei]
		if e.rate <= 0 {
			continue
		}

		stepGross := math.Log(e.rate)
		stepNet := stepGross + math.Log1p(-e.fee)

		if e.to == s.root {
			// A two-hop loop back through the same pool is not a trade.
			if len(s.path) >= 1 && s.graph.edges[s.path[len(s.path)-1]].pool == e.pool {
				continue
			}
			if logNet+stepNet > 0 {
				s.path = append(s.path, ei)
				s.found = append(s.found, s.cycle(logNet+stepNet, logGross+stepGross))
				s.path = s.path[:len(s.path)-1]
			}
			continue
		}
		if s.visited[e.to] {
			continue
		}

		s.visited[e.to] = true
		s.path = append(s.path, ei)
		s.walk(e.to, logNet+stepNet, logGross+stepGross)
		s.path = s.path[:len(s.path)-1]
		s.visited[e.to] = false
	}
}

func (s *searcher) cycle(logNet, logGross float64) Cycle {
	c := Cycle{
		Coins:     make([]string, 0, len(s.path)+1),
		Pools:     make([]string, 0, len(s.path)),
		GrossRate: math.Exp(logGross),
		NetRate:   math.Exp(logNet),
	}
	c.Coins = append(c.Coins, s.graph.nodes[s.root])
	for _, ei := range s.path {
		e := &s.graph.edges[ei]
		c.Coins = append(c.Coins, s.graph.nodes[e.to])
		c.Pools = append(c.Pools, e.pool)
	}
	return c
}

// key identifies a cycle independent of its starting coin, for
// deduplicating the same loop found from different nodes.
func (c *Cycle) key() string {
	pools := append([]string(nil), c.Pools...)
	sort.Strings(pools)
	return strings.Join(pools, "|")
}
