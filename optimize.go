package nocgen

// optimize.go holds the bandwidth-driven restructuring pass.  The
// generator gives every flow the same shared crossbar; this pass sorts
// the flows into three classes and rebuilds the fabric around them:
// flows at or above the high threshold get a dedicated point-to-point
// router, flows below the low threshold are grouped behind shared
// arbiters with fan-in capped at MaxFanIn, and everything in between
// stays on the crossbar.  The pass is idempotent: a flow that already
// has its dedicated router or arbiter is recognized and left alone, so
// running the pass twice gives the same fabric as running it once.

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// An OptimizationReport records what the restructuring pass did
type OptimizationReport struct {
	HighFlows   int `json:"highflows" yaml:"highflows"`
	MediumFlows int `json:"mediumflows" yaml:"mediumflows"`
	LowFlows    int `json:"lowflows" yaml:"lowflows"`

	// DedicatedRouters and Arbiters name the nodes the pass created
	DedicatedRouters []string `json:"dedicatedrouters" yaml:"dedicatedrouters"`
	Arbiters         []string `json:"arbiters" yaml:"arbiters"`

	// CrossbarRemoved is set when the restructuring drained every flow
	// off the crossbar and the pass deleted it
	CrossbarRemoved bool `json:"crossbarremoved" yaml:"crossbarremoved"`
}

// succThroughConverters gives the non-converter nodes reachable from id
// by out-edges that pass only through converter nodes
func succThroughConverters(g *Graph, id int) []int {
	return throughConverters(g, id, DirOut)
}

// predThroughConverters is the inbound analog of succThroughConverters
func predThroughConverters(g *Graph, id int) []int {
	return throughConverters(g, id, DirIn)
}

func throughConverters(g *Graph, id int, dir Direction) []int {
	var rtn []int
	seen := map[int]bool{id: true}
	var walk func(here int)
	walk = func(here int) {
		for _, nbr := range g.Neighbors(here, dir) {
			if seen[nbr] {
				continue
			}
			seen[nbr] = true
			n, _ := g.Node(nbr)
			if n.isConverter() {
				walk(nbr)
			} else {
				rtn = append(rtn, nbr)
			}
		}
	}
	walk(id)
	slices.Sort(rtn)
	return rtn
}

// converterPath finds the converter-only node sequence joining from to
// to, exclusive of both endpoints.  An empty sequence with ok true means
// the two are joined by a direct edge.
func converterPath(g *Graph, from, to int) ([]int, bool) {
	var walk func(here int, acc []int) ([]int, bool)
	walk = func(here int, acc []int) ([]int, bool) {
		for _, nbr := range g.Neighbors(here, DirOut) {
			if nbr == to {
				return acc, true
			}
			n, _ := g.Node(nbr)
			if !n.isConverter() {
				continue
			}
			if slices.Contains(acc, nbr) {
				continue
			}
			if p, ok := walk(nbr, append(slices.Clone(acc), nbr)); ok {
				return p, true
			}
		}
		return nil, false
	}
	return walk(from, nil)
}

// removeChain deletes the edge sequence joining from to to, together
// with any interposed converter nodes the deletion orphans
func removeChain(g *Graph, from, to int) {
	mid, ok := converterPath(g, from, to)
	if !ok {
		return
	}
	seq := append(append([]int{from}, mid...), to)
	for idx := 1; idx < len(seq); idx++ {
		g.removeEdge(seq[idx-1], seq[idx])
	}
	for _, id := range mid {
		if g.Degree(id, DirIn)+g.Degree(id, DirOut) == 0 {
			g.removeNode(id)
		}
	}
}

// endpointNIU finds the NIU serving a traffic endpoint: the node on the
// fabric side of the endpoint's single attachment edge
func endpointNIU(g *Graph, id int, dir Direction) (int, bool) {
	for _, nbr := range succOrPred(g, id, dir) {
		n, _ := g.Node(nbr)
		if n.Kind == NIUNode {
			return nbr, true
		}
	}
	return 0, false
}

func succOrPred(g *Graph, id int, dir Direction) []int {
	if dir == DirOut {
		return succThroughConverters(g, id)
	}
	return predThroughConverters(g, id)
}

// hasDedicatedRouter reports whether initNIU already reaches tgtNIU
// through a private router other than the crossbar
func hasDedicatedRouter(g *Graph, initNIU, tgtNIU, crossbarID int) bool {
	for _, mid := range succThroughConverters(g, initNIU) {
		n, _ := g.Node(mid)
		if n.Kind != RouterNode || mid == crossbarID {
			continue
		}
		if slices.Contains(succThroughConverters(g, mid), tgtNIU) {
			return true
		}
	}
	return false
}

// hasArbiterFor reports whether initNIU already feeds one of the
// arbiters grouping flows toward the named target.  The target is
// recovered from the arbiter's name since the arbiter's output goes to
// the crossbar, not to the target's NIU.
func hasArbiterFor(g *Graph, initNIU int, tgtName string) bool {
	prefix := "arb_" + tgtName + "_"
	for _, mid := range succThroughConverters(g, initNIU) {
		n, _ := g.Node(mid)
		if n.Kind != ArbiterNode || !strings.HasPrefix(n.Name, prefix) {
			continue
		}
		if slices.Contains(predThroughConverters(g, mid), initNIU) {
			return true
		}
	}
	return false
}

// flow placement classes after restructuring
const (
	placedCrossbar = iota
	placedDedicated
	placedArbiter
)

// OptimizeBandwidth restructures the fabric of g around the guaranteed
// bandwidth of each flow.  The input graph is not modified; the result
// has converters re-inserted on any edge the restructuring left with a
// clock or width mismatch, so it passes validation whenever the input
// did.  Reachability of every flow's (src,dst) pair is preserved.
func OptimizeBandwidth(g *Graph, flows []TrafficFlow, cfg TopoConfig) (*Graph, *OptimizationReport, error) {
	out := g.Clone()
	report := &OptimizationReport{DedicatedRouters: []string{}, Arbiters: []string{}}

	crossbar, present := out.FindByName(crossbarName)
	if !present || crossbar.Kind != RouterNode {
		// nothing to restructure around
		return out, report, nil
	}

	placement := make([]int, len(flows))

	// pass 1: dedicated routers for the high-bandwidth flows
	for idx, flow := range flows {
		if flow.Bandwidth < cfg.HighBWThreshold {
			continue
		}
		placement[idx] = placedDedicated
		report.HighFlows += 1

		initNIU, iOK := endpointNIU(out, flow.Src, DirOut)
		tgtNIU, tOK := endpointNIU(out, flow.Dst, DirIn)
		if !iOK || !tOK {
			continue
		}
		if hasDedicatedRouter(out, initNIU, tgtNIU, crossbar.ID) {
			continue
		}

		width, err := calcWidth(flow.Bandwidth, cfg.DefaultFrequency)
		if err != nil {
			return nil, nil, err
		}
		src, _ := out.Node(flow.Src)
		dst, _ := out.Node(flow.Dst)
		router := CreateRouterNode(out.nxtID(),
			fmt.Sprintf("r_%s_%s", src.Name, dst.Name), width, fastDomain, 2)
		_ = out.addNode(router)
		niu, _ := out.Node(initNIU)
		_ = out.addEdge(&Edge{Src: initNIU, Dst: router.ID, Width: niu.widthAsSrc(), Latency: fabricEdgeLatency})
		_ = out.addEdge(&Edge{Src: router.ID, Dst: tgtNIU, Width: width, Latency: fabricEdgeLatency})
		report.DedicatedRouters = append(report.DedicatedRouters, router.Name)
	}

	// pass 2: arbiters for the low-bandwidth flows, grouped per target in
	// chunks of at most MaxFanIn.  Each arbiter replaces its members'
	// individual crossbar attachments with a single crossbar input; the
	// crossbar still forwards the merged traffic to the target.  Flows in
	// a chunk of one stay on the crossbar, since a 1:1 arbiter buys nothing.
	for _, tgtID := range out.Find(TargetNode) {
		tgt, _ := out.Node(tgtID)

		var members []int // flow indices
		for idx, flow := range flows {
			if flow.Dst != tgtID || placement[idx] != placedCrossbar {
				continue
			}
			if flow.Bandwidth >= cfg.LowBWThreshold {
				continue
			}
			initNIU, iOK := endpointNIU(out, flow.Src, DirOut)
			if iOK && hasArbiterFor(out, initNIU, tgt.Name) {
				placement[idx] = placedArbiter
				report.LowFlows += 1
				continue
			}
			members = append(members, idx)
		}
		// priority first, declaration order among equals
		slices.SortStableFunc(members, func(a, b int) int {
			return flows[a].Priority - flows[b].Priority
		})

		for start := 0; start < len(members); start += MaxFanIn {
			chunk := members[start:minInt(start+MaxFanIn, len(members))]
			if len(chunk) < 2 {
				// stays on the crossbar
				continue
			}
			aggregate := 0.0
			for _, idx := range chunk {
				aggregate += flows[idx].Bandwidth
			}
			width, err := calcWidth(aggregate, cfg.DefaultFrequency)
			if err != nil {
				return nil, nil, err
			}
			arb := CreateArbiterNode(out.nxtID(),
				fmt.Sprintf("arb_%s_%d", tgt.Name, start/MaxFanIn),
				len(chunk), width, crossbar.ClockDomain, PriorityPolicy)
			_ = out.addNode(arb)
			for _, idx := range chunk {
				initNIU, _ := endpointNIU(out, flows[idx].Src, DirOut)
				niu, _ := out.Node(initNIU)
				_ = out.addEdge(&Edge{Src: initNIU, Dst: arb.ID, Width: niu.widthAsSrc(), Latency: fabricEdgeLatency})
				placement[idx] = placedArbiter
				report.LowFlows += 1
			}
			_ = out.addEdge(&Edge{Src: arb.ID, Dst: crossbar.ID, Width: width, Latency: fabricEdgeLatency})
			report.Arbiters = append(report.Arbiters, arb.Name)
		}
	}
	report.MediumFlows = len(flows) - report.HighFlows - report.LowFlows

	// pass 3: prune crossbar attachments that no remaining flow uses.
	// An arbitered flow leaves its initiator's direct attachment behind
	// but still exits the crossbar toward its target.  Endpoints that
	// appear in no flow keep their crossbar edges.
	crossbarSrc := make(map[int]bool)
	crossbarDst := make(map[int]bool)
	flowSrc := make(map[int]bool)
	flowDst := make(map[int]bool)
	for idx, flow := range flows {
		flowSrc[flow.Src] = true
		flowDst[flow.Dst] = true
		if placement[idx] == placedCrossbar {
			crossbarSrc[flow.Src] = true
		}
		if placement[idx] != placedDedicated {
			crossbarDst[flow.Dst] = true
		}
	}
	for _, id := range out.Find(InitiatorNode) {
		if !flowSrc[id] || crossbarSrc[id] {
			continue
		}
		if initNIU, ok := endpointNIU(out, id, DirOut); ok {
			removeChain(out, initNIU, crossbar.ID)
		}
	}
	for _, id := range out.Find(TargetNode) {
		if !flowDst[id] || crossbarDst[id] {
			continue
		}
		if tgtNIU, ok := endpointNIU(out, id, DirIn); ok {
			removeChain(out, crossbar.ID, tgtNIU)
		}
	}

	// resize or retire the crossbar
	used := out.Degree(crossbar.ID, DirIn) + out.Degree(crossbar.ID, DirOut)
	if used == 0 {
		out.removeNode(crossbar.ID)
		report.CrossbarRemoved = true
	} else {
		crossbar.NumPorts = used
	}

	// the new attachments may cross clock domains or widths
	if cfg.AutoInsertConverters {
		out, _ = InsertConverters(out, cfg)
	}
	return out, report, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
