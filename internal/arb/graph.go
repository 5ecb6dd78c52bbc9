// Package arb maintains a live exchange-rate graph over trading pools
// and searches it for profitable cycles.
package arb

import (
	"math"
	"strconv"
	"sync"

	"sui-mev-indexer/internal/domain"
)

// q64 is the fixed-point scale of concentrated-liquidity sqrt prices.
const q64 = float64(1 << 64)

// edge is one direction of one pool. rate is the amount of `to` received
// per unit of `from` in raw on-chain units, before fees; around a cycle
// the coin decimal scalings cancel, so raw units are safe to multiply.
// A rate of 0 disables the edge.
type edge struct {
	from int
	to   int
	pool string
	rate float64
	fee  float64 // fraction of input taken as fee
}

// Graph is a directed weighted graph with coins as nodes and pools as
// edges. Nodes and edges are addressed by index; updating a pool touches
// only its own two edges.
type Graph struct {
	mu        sync.RWMutex
	nodeIndex map[string]int
	nodes     []string
	edges     []edge
	adj       [][]int           // node index -> outgoing edge indices
	poolEdges map[string][2]int // pool address -> its two edge indices
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodeIndex: make(map[string]int),
		poolEdges: make(map[string][2]int),
	}
}

// Upsert adds the pool's two directed edges or refreshes their rates.
func (g *Graph) Upsert(p *domain.Pool) {
	ab, ba := poolRates(p)
	fee := poolFee(p)

	g.mu.Lock()
	defer g.mu.Unlock()

	if idx, ok := g.poolEdges[p.Address]; ok {
		g.edges[idx[0]].rate = ab
		g.edges[idx[0]].fee = fee
		g.edges[idx[1]].rate = ba
		g.edges[idx[1]].fee = fee
		return
	}

	a := g.nodeLocked(p.CoinA)
	b := g.nodeLocked(p.CoinB)

	i := len(g.edges)
	g.edges = append(g.edges,
		edge{from: a, to: b, pool: p.Address, rate: ab, fee: fee},
		edge{from: b, to: a, pool: p.Address, rate: ba, fee: fee},
	)
	g.adj[a] = append(g.adj[a], i)
	g.adj[b] = append(g.adj[b], i+1)
	g.poolEdges[p.Address] = [2]int{i, i + 1}
}

// Coins returns the two coin types of a known pool.
func (g *Graph) Coins(address string) (string, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.poolEdges[address]
	if !ok {
		return "", "", false
	}
	e := g.edges[idx[0]]
	return g.nodes[e.from], g.nodes[e.to], true
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func (g *Graph) nodeLocked(coinType string) int {
	if i, ok := g.nodeIndex[coinType]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodeIndex[coinType] = i
	g.nodes = append(g.nodes, coinType)
	g.adj = append(g.adj, nil)
	return i
}

// poolRates derives the raw exchange rates of both directions from the
// pool's current state. Unknown or degenerate state disables the pool.
func poolRates(p *domain.Pool) (ab, ba float64) {
	if p.IsPaused {
		return 0, 0
	}

	if p.Concentrated() {
		if p.SqrtPrice == nil {
			return 0, 0
		}
		sqrt, err := strconv.ParseFloat(*p.SqrtPrice, 64)
		if err != nil || sqrt <= 0 {
			return 0, 0
		}
		price := (sqrt / q64) * (sqrt / q64)
		if !finitePositive(price) {
			return 0, 0
		}
		return price, 1 / price
	}

	if p.AmountA == nil || p.AmountB == nil {
		return 0, 0
	}
	a, errA := strconv.ParseFloat(*p.AmountA, 64)
	b, errB := strconv.ParseFloat(*p.AmountB, 64)
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return 0, 0
	}
	return b / a, a / b
}

func poolFee(p *domain.Pool) float64 {
	if p.FeeRate == nil {
		return 0
	}
	return float64(*p.FeeRate) / 1_000_000
}

func finitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}
