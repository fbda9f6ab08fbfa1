package nocgen

// graph.go holds the topology graph data structures: the typed node
// variants, directed edges, clock domains, traffic flows, and the Graph
// arena that owns them.  Nodes and edges are addressed by stable integer
// ids; transform passes clone the arena and return a new snapshot rather
// than mutating a shared one.

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

// NodeKind is the closed set of node variants a topology graph can hold.
// The validator and generator switch exhaustively over these, so adding
// a kind is a compile-visible change.
type NodeKind int

const (
	InitiatorNode NodeKind = iota
	TargetNode
	NIUNode
	RouterNode
	ArbiterNode
	DecoderNode
	ClockConverterNode
	WidthConverterNode
)

var nodeKindToStr = map[NodeKind]string{
	InitiatorNode:      "Initiator",
	TargetNode:         "Target",
	NIUNode:            "NIU",
	RouterNode:         "Router",
	ArbiterNode:        "Arbiter",
	DecoderNode:        "Decoder",
	ClockConverterNode: "ClockConverter",
	WidthConverterNode: "WidthConverter",
}

var strToNodeKind = map[string]NodeKind{
	"Initiator":      InitiatorNode,
	"Target":         TargetNode,
	"NIU":            NIUNode,
	"Router":         RouterNode,
	"Arbiter":        ArbiterNode,
	"Decoder":        DecoderNode,
	"ClockConverter": ClockConverterNode,
	"WidthConverter": WidthConverterNode,
}

func (nk NodeKind) String() string {
	return nodeKindToStr[nk]
}

// arbitration policies recognized on Arbiter nodes
const (
	PriorityPolicy   = "priority"
	RoundRobinPolicy = "round_robin"
	WeightedPolicy   = "weighted"
)

// traffic patterns recognized on Initiator nodes
const (
	BurstyPattern    = "bursty"
	StreamingPattern = "streaming"
	UniformPattern   = "uniform"
)

// supportedWidths lists the legal data widths, in bits, smallest first
var supportedWidths = []int{32, 64, 128, 256, 512, 1024}

// MaxFanIn bounds an Arbiter's fan-in, MaxFanOut a Decoder's fan-out
const (
	MaxFanIn  = 4
	MaxFanOut = 4
)

// A Node is one device in the topology graph.  Kind selects the variant;
// only the attribute group belonging to that variant is meaningful, the
// rest stay at their zero values.
type Node struct {
	ID   int
	Name string
	Kind NodeKind

	// Initiator attributes
	AvgThroughput float64 // GB/s
	MaxThroughput float64 // GB/s
	LatencyReq    int     // cycles
	Priority      int     // 0 is highest
	Pattern       string  // bursty, streaming, uniform

	// Target attributes
	MaxBandwidth float64 // GB/s
	Latency      int     // access latency, cycles
	Size         float64 // GB

	// NIU / Router / Arbiter / Decoder / converter attributes
	Width       int    // bits
	ClockDomain string // name of the domain the node runs in
	NumPorts    int    // Router
	NumInputs   int    // Arbiter
	NumOutputs  int    // Decoder
	Policy      string // Arbiter

	// ClockConverter attributes
	SrcClockDomain string
	DstClockDomain string

	// WidthConverter attributes
	SrcWidth int
	DstWidth int
}

// CreateInitiatorNode is a constructor for an Initiator variant
func CreateInitiatorNode(id int, name string, avg, max float64, latencyReq, priority int, pattern string) *Node {
	return &Node{ID: id, Name: name, Kind: InitiatorNode, AvgThroughput: avg,
		MaxThroughput: max, LatencyReq: latencyReq, Priority: priority, Pattern: pattern}
}

// CreateTargetNode is a constructor for a Target variant
func CreateTargetNode(id int, name string, maxBW float64, latency int, size float64) *Node {
	return &Node{ID: id, Name: name, Kind: TargetNode, MaxBandwidth: maxBW,
		Latency: latency, Size: size}
}

// CreateNIUNode is a constructor for an NIU variant
func CreateNIUNode(id int, name string, width int, clockDomain string) *Node {
	return &Node{ID: id, Name: name, Kind: NIUNode, Width: width, ClockDomain: clockDomain}
}

// CreateRouterNode is a constructor for a Router variant
func CreateRouterNode(id int, name string, width int, clockDomain string, numPorts int) *Node {
	return &Node{ID: id, Name: name, Kind: RouterNode, Width: width,
		ClockDomain: clockDomain, NumPorts: numPorts}
}

// CreateArbiterNode is a constructor for an Arbiter variant
func CreateArbiterNode(id int, name string, numInputs, width int, clockDomain, policy string) *Node {
	return &Node{ID: id, Name: name, Kind: ArbiterNode, NumInputs: numInputs,
		Width: width, ClockDomain: clockDomain, Policy: policy}
}

// CreateDecoderNode is a constructor for a Decoder variant
func CreateDecoderNode(id int, name string, numOutputs, width int, clockDomain string) *Node {
	return &Node{ID: id, Name: name, Kind: DecoderNode, NumOutputs: numOutputs,
		Width: width, ClockDomain: clockDomain}
}

// CreateClockConverterNode is a constructor for a ClockConverter variant
func CreateClockConverterNode(id int, name string, width int, srcDomain, dstDomain string) *Node {
	return &Node{ID: id, Name: name, Kind: ClockConverterNode, Width: width,
		SrcClockDomain: srcDomain, DstClockDomain: dstDomain}
}

// CreateWidthConverterNode is a constructor for a WidthConverter variant
func CreateWidthConverterNode(id int, name string, srcWidth, dstWidth int, clockDomain string) *Node {
	return &Node{ID: id, Name: name, Kind: WidthConverterNode, SrcWidth: srcWidth,
		DstWidth: dstWidth, Width: dstWidth, ClockDomain: clockDomain}
}

// isConverter reports whether the node is one of the two converter variants
func (n *Node) isConverter() bool {
	return n.Kind == ClockConverterNode || n.Kind == WidthConverterNode
}

// widthAsSrc gives the data width the node presents on its outbound side,
// or 0 when the variant declares no width (Initiator, Target)
func (n *Node) widthAsSrc() int {
	switch n.Kind {
	case WidthConverterNode:
		return n.DstWidth
	case NIUNode, RouterNode, ArbiterNode, DecoderNode, ClockConverterNode:
		return n.Width
	}
	return 0
}

// widthAsDst gives the data width the node presents on its inbound side
func (n *Node) widthAsDst() int {
	switch n.Kind {
	case WidthConverterNode:
		return n.SrcWidth
	case NIUNode, RouterNode, ArbiterNode, DecoderNode, ClockConverterNode:
		return n.Width
	}
	return 0
}

// clockAsSrc gives the clock domain the node presents on its outbound
// side, or "" when the variant declares none
func (n *Node) clockAsSrc() string {
	switch n.Kind {
	case ClockConverterNode:
		return n.DstClockDomain
	case NIUNode, RouterNode, ArbiterNode, DecoderNode, WidthConverterNode:
		return n.ClockDomain
	}
	return ""
}

// clockAsDst gives the clock domain the node presents on its inbound side
func (n *Node) clockAsDst() string {
	switch n.Kind {
	case ClockConverterNode:
		return n.SrcClockDomain
	case NIUNode, RouterNode, ArbiterNode, DecoderNode, WidthConverterNode:
		return n.ClockDomain
	}
	return ""
}

// An Edge is a directed connection between two node ids.  Width is the
// number of bits actually carried, Latency the transfer cost in cycles.
// At most one edge may exist per ordered (Src,Dst) pair.
type Edge struct {
	Src     int
	Dst     int
	Width   int
	Latency int
}

// A ClockDomain names a clock and its frequency.  Nodes refer to domains
// by name; the domain list is owned by the requirements or topology
// description, never by the nodes.
type ClockDomain struct {
	Name      string  `json:"name" yaml:"name"`
	Frequency float64 `json:"frequency" yaml:"frequency"` // MHz
}

// A TrafficFlow is a guaranteed-bandwidth requirement from an Initiator
// node to a Target node.  Flows drive the generator and optimizer; they
// are not persisted inside the Graph itself.
type TrafficFlow struct {
	Src        int     // Initiator node id
	Dst        int     // Target node id
	Bandwidth  float64 // GB/s, guaranteed
	MaxLatency int     // cycles
	Priority   int     // 0 is highest
}

type intPair struct {
	i, j int
}

// Direction selects which adjacency a query walks
type Direction int

const (
	DirOut Direction = iota
	DirIn
)

// A Graph owns a set of nodes and directed edges.  All lookups are by
// node id.  The zero value is not usable; construct with NewGraph or
// CreateGraph.
type Graph struct {
	nodes     map[int]*Node
	nodeOrder []int // ids in insertion order, for deterministic iteration
	edges     []*Edge
	edgeIdx   map[intPair]int
	outAdj    map[int][]int
	inAdj     map[int][]int
	maxID     int
}

// NewGraph creates an empty Graph
func NewGraph() *Graph {
	g := new(Graph)
	g.nodes = make(map[int]*Node)
	g.nodeOrder = make([]int, 0)
	g.edges = make([]*Edge, 0)
	g.edgeIdx = make(map[intPair]int)
	g.outAdj = make(map[int][]int)
	g.inAdj = make(map[int][]int)
	g.maxID = -1
	return g
}

// CreateGraph builds a Graph from explicit node and edge lists.  It
// returns a StructuralError if node ids are duplicated, if an edge
// references a node id that does not exist, or if two edges share the
// same ordered (src,dst) pair.
func CreateGraph(nodes []*Node, edges []*Edge) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if err := g.addNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.addEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// addNode places a node in the arena.  A negative id requests assignment
// of the next free id; the assigned id is stored back into the node.
func (g *Graph) addNode(n *Node) error {
	if n.ID < 0 {
		n.ID = g.maxID + 1
	}
	_, present := g.nodes[n.ID]
	if present {
		return structuralErrorf("node id %d used more than once", n.ID)
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	if n.ID > g.maxID {
		g.maxID = n.ID
	}
	return nil
}

// addEdge places a directed edge in the arena, rejecting dangling
// endpoints and multi-edges
func (g *Graph) addEdge(e *Edge) error {
	_, present := g.nodes[e.Src]
	if !present {
		return structuralErrorf("edge (%d,%d) references unknown node %d", e.Src, e.Dst, e.Src)
	}
	_, present = g.nodes[e.Dst]
	if !present {
		return structuralErrorf("edge (%d,%d) references unknown node %d", e.Src, e.Dst, e.Dst)
	}
	ip := intPair{i: e.Src, j: e.Dst}
	_, present = g.edgeIdx[ip]
	if present {
		return structuralErrorf("duplicate edge (%d,%d)", e.Src, e.Dst)
	}
	g.edgeIdx[ip] = len(g.edges)
	g.edges = append(g.edges, e)
	g.outAdj[e.Src] = append(g.outAdj[e.Src], e.Dst)
	g.inAdj[e.Dst] = append(g.inAdj[e.Dst], e.Src)
	return nil
}

// removeEdge drops the edge (src,dst) if present
func (g *Graph) removeEdge(src, dst int) {
	idx, present := g.edgeIdx[intPair{i: src, j: dst}]
	if !present {
		return
	}
	g.edges = append(g.edges[:idx], g.edges[idx+1:]...)
	g.reindex()
}

// removeNode drops a node and every edge incident to it
func (g *Graph) removeNode(id int) {
	_, present := g.nodes[id]
	if !present {
		return
	}
	delete(g.nodes, id)
	orderIdx := slices.Index(g.nodeOrder, id)
	g.nodeOrder = append(g.nodeOrder[:orderIdx], g.nodeOrder[orderIdx+1:]...)

	kept := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.Src != id && e.Dst != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.reindex()
}

// reindex rebuilds the edge index and adjacency maps from the edge slice
func (g *Graph) reindex() {
	g.edgeIdx = make(map[intPair]int)
	g.outAdj = make(map[int][]int)
	g.inAdj = make(map[int][]int)
	for idx, e := range g.edges {
		g.edgeIdx[intPair{i: e.Src, j: e.Dst}] = idx
		g.outAdj[e.Src] = append(g.outAdj[e.Src], e.Dst)
		g.inAdj[e.Dst] = append(g.inAdj[e.Dst], e.Src)
	}
}

// Clone returns a deep copy of the Graph.  Transform passes operate on a
// clone so the input graph is never mutated.
func (g *Graph) Clone() *Graph {
	cp := NewGraph()
	for _, id := range g.nodeOrder {
		n := *g.nodes[id]
		_ = cp.addNode(&n)
	}
	for _, e := range g.edges {
		ec := *e
		_ = cp.addEdge(&ec)
	}
	return cp
}

// Node looks up a node by id
func (g *Graph) Node(id int) (*Node, bool) {
	n, present := g.nodes[id]
	return n, present
}

// EdgeBetween looks up the directed edge (src,dst)
func (g *Graph) EdgeBetween(src, dst int) (*Edge, bool) {
	idx, present := g.edgeIdx[intPair{i: src, j: dst}]
	if !present {
		return nil, false
	}
	return g.edges[idx], true
}

// Nodes lists every node in insertion order
func (g *Graph) Nodes() []*Node {
	rtn := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		rtn = append(rtn, g.nodes[id])
	}
	return rtn
}

// Edges lists every edge
func (g *Graph) Edges() []*Edge {
	rtn := make([]*Edge, len(g.edges))
	copy(rtn, g.edges)
	return rtn
}

// NumNodes gives the node count
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges gives the edge count
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// Neighbors lists the node ids adjacent to id in the requested direction,
// sorted ascending
func (g *Graph) Neighbors(id int, dir Direction) []int {
	var adj []int
	if dir == DirOut {
		adj = g.outAdj[id]
	} else {
		adj = g.inAdj[id]
	}
	rtn := make([]int, len(adj))
	copy(rtn, adj)
	sort.Ints(rtn)
	return rtn
}

// Degree counts the edges incident to id in the requested direction
func (g *Graph) Degree(id int, dir Direction) int {
	if dir == DirOut {
		return len(g.outAdj[id])
	}
	return len(g.inAdj[id])
}

// Find lists the ids of every node of the given kind, in insertion order
func (g *Graph) Find(kind NodeKind) []int {
	rtn := []int{}
	for _, id := range g.nodeOrder {
		if g.nodes[id].Kind == kind {
			rtn = append(rtn, id)
		}
	}
	return rtn
}

// FindByName looks a node up by its name attribute
func (g *Graph) FindByName(name string) (*Node, bool) {
	for _, id := range g.nodeOrder {
		if g.nodes[id].Name == name {
			return g.nodes[id], true
		}
	}
	return nil, false
}

// nxtID hands out the next unused node id in this arena
func (g *Graph) nxtID() int {
	return g.maxID + 1
}

// nodeName is a lookup helper used when formatting findings and reports
func (g *Graph) nodeName(id int) string {
	n, present := g.nodes[id]
	if !present {
		return fmt.Sprintf("#%d", id)
	}
	return n.Name
}
