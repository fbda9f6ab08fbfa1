package nocgen

// routes.go computes shortest-path routing over a topology graph.  The
// approach converts the Graph arena into the gonum graph representation
// and lets graph/path do the path discovery, weighting every edge by 1 so
// a shortest path minimizes hop count.  Shortest-path trees are computed
// per source and cached; ties among equal-length paths are broken by
// always stepping to the lowest-id neighbor, which makes the resulting
// tables deterministic.

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// routeBuilder wraps a Graph with its gonum representation and a cache
// of shortest-path trees
type routeBuilder struct {
	g         *Graph
	connGraph *simple.WeightedDirectedGraph
	trees     map[int]path.Shortest
}

// newRouteBuilder converts the arena into gonum form.  Every node is
// added explicitly so isolated nodes are representable too.
func newRouteBuilder(g *Graph) *routeBuilder {
	rb := new(routeBuilder)
	rb.g = g
	rb.connGraph = simple.NewWeightedDirectedGraph(0, math.Inf(1))
	rb.trees = make(map[int]path.Shortest)

	for _, n := range g.Nodes() {
		rb.connGraph.AddNode(simple.Node(n.ID))
	}
	for _, e := range g.Edges() {
		weightedEdge := simple.WeightedEdge{F: simple.Node(e.Src), T: simple.Node(e.Dst), W: 1.0}
		rb.connGraph.SetWeightedEdge(weightedEdge)
	}
	return rb
}

// spTree returns the shortest-path tree rooted at 'from', computing and
// caching it on first use
func (rb *routeBuilder) spTree(from int) path.Shortest {
	spTree, present := rb.trees[from]
	if present {
		return spTree
	}
	spTree = path.DijkstraFrom(simple.Node(from), rb.connGraph)
	rb.trees[from] = spTree
	return spTree
}

// distance gives the hop count of a shortest src->dst path, with a flag
// that is false when dst is unreachable
func (rb *routeBuilder) distance(src, dst int) (int, bool) {
	if src == dst {
		return 0, true
	}
	w := rb.spTree(src).WeightTo(int64(dst))
	if math.IsInf(w, 1) {
		return 0, false
	}
	return int(w), true
}

// firstHop gives the next node after src on the deterministic shortest
// path to dst: the lowest-id out-neighbor that lies on some shortest path
func (rb *routeBuilder) firstHop(src, dst int) (int, bool) {
	dist, reachable := rb.distance(src, dst)
	if !reachable || dist == 0 {
		return 0, false
	}
	for _, nbr := range rb.g.Neighbors(src, DirOut) {
		if nbr == dst {
			return nbr, true
		}
		nbrDist, ok := rb.distance(nbr, dst)
		if ok && nbrDist == dist-1 {
			return nbr, true
		}
	}
	return 0, false
}

// route expands the full deterministic shortest path src..dst, inclusive
// of both endpoints.  The second return is false when no path exists.
func (rb *routeBuilder) route(src, dst int) ([]int, bool) {
	if _, reachable := rb.distance(src, dst); !reachable {
		return nil, false
	}
	rtn := []int{src}
	here := src
	for here != dst {
		hop, ok := rb.firstHop(here, dst)
		if !ok {
			return nil, false
		}
		rtn = append(rtn, hop)
		here = hop
	}
	return rtn, true
}

// routeLatency sums the edge latencies along a node sequence produced by
// route, plus the destination's own access latency when it declares one
func (rb *routeBuilder) routeLatency(rt []int) int {
	total := 0
	for idx := 1; idx < len(rt); idx++ {
		e, present := rb.g.EdgeBetween(rt[idx-1], rt[idx])
		if present {
			total += e.Latency
		}
	}
	if len(rt) > 0 {
		last, present := rb.g.Node(rt[len(rt)-1])
		if present && last.Kind == TargetNode {
			total += last.Latency
		}
	}
	return total
}

// A RouteTable maps each reachable ordered (src,dst) node pair to the
// output port src forwards on.  Port 0 is always the node's own local
// port; the out-neighbors, sorted by id, occupy ports 1..n.  Unreachable
// pairs are absent, never defaulted: a lookup miss means "no route".
type RouteTable struct {
	ports map[intPair]int
	hops  map[intPair]int
}

// BuildRouteTable derives the routing table for a Graph.  It never
// errors; pairs with no path are simply omitted from the table.
func BuildRouteTable(g *Graph) *RouteTable {
	rb := newRouteBuilder(g)
	rt := new(RouteTable)
	rt.ports = make(map[intPair]int)
	rt.hops = make(map[intPair]int)

	for _, src := range g.nodeOrder {
		nbrs := g.Neighbors(src, DirOut)
		for _, dst := range g.nodeOrder {
			if src == dst {
				continue
			}
			hop, ok := rb.firstHop(src, dst)
			if !ok {
				continue
			}
			// ports are 1-based over the sorted neighbor list; port 0 is
			// the local port
			port := 0
			for idx, nbr := range nbrs {
				if nbr == hop {
					port = idx + 1
					break
				}
			}
			ip := intPair{i: src, j: dst}
			rt.ports[ip] = port
			rt.hops[ip] = hop
		}
	}
	return rt
}

// OutputPort looks up the port src uses to forward toward dst.  The
// second return is false when dst is unreachable from src; callers must
// treat that as "no route", not as port 0.
func (rt *RouteTable) OutputPort(src, dst int) (int, bool) {
	port, present := rt.ports[intPair{i: src, j: dst}]
	return port, present
}

// NextHop looks up the node src forwards to when routing toward dst
func (rt *RouteTable) NextHop(src, dst int) (int, bool) {
	hop, present := rt.hops[intPair{i: src, j: dst}]
	return hop, present
}

// Len counts the routed (src,dst) pairs
func (rt *RouteTable) Len() int {
	return len(rt.ports)
}
