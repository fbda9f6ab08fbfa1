package nocgen

// validate.go checks a topology graph against the structural, capacity,
// domain, bandwidth, and latency rules.  The validator never mutates the
// graph and never raises its findings as Go errors: violations come back
// as data so the caller can decide to proceed, fix, or abort.  It is run
// before and after every transform pass.

import (
	"fmt"
	"sort"
)

// targetUtilizationWarn is the utilization fraction above which a target
// draws a warning even though it is not oversubscribed
const targetUtilizationWarn = 0.9

// A Finding is one validator observation, classified by the error family
// it belongs to
type Finding struct {
	Class FindingClass
	Msg   string
}

func (f Finding) String() string {
	return f.Class.String() + ": " + f.Msg
}

// A ValidationResult separates violations that make the topology
// non-functional (Errors) from legal but suboptimal conditions (Warnings)
type ValidationResult struct {
	Errors   []Finding
	Warnings []Finding
}

func errorFinding(class FindingClass, format string, args ...any) Finding {
	return Finding{Class: class, Msg: fmt.Sprintf(format, args...)}
}

// ValidateTopology evaluates every rule against the full node and edge
// set of g.  The flow list drives the bandwidth and latency checks; an
// empty list skips those two.  Each rule is evaluated independently, so
// one malformed node cannot mask findings on another.
func ValidateTopology(g *Graph, flows []TrafficFlow, cfg TopoConfig) ValidationResult {
	vr := ValidationResult{Errors: []Finding{}, Warnings: []Finding{}}

	vr.checkNIUEntry(g, cfg)
	vr.checkEdgeWidths(g)
	vr.checkClockDomains(g)
	vr.checkFanLimits(g)
	vr.checkRouterPorts(g)
	vr.checkTargetBandwidth(g, flows)
	vr.checkFlowLatency(g, flows)

	return vr
}

// checkNIUEntry enforces the rule that traffic endpoints attach to the
// fabric only through NIUs, unless the relaxation flag disabled it
func (vr *ValidationResult) checkNIUEntry(g *Graph, cfg TopoConfig) {
	if !cfg.NIUEntryOnly {
		return
	}
	for _, id := range g.Find(InitiatorNode) {
		for _, nbr := range g.Neighbors(id, DirOut) {
			n, _ := g.Node(nbr)
			if n.Kind != NIUNode {
				vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
					"initiator %s connects to %s (%s), expected an NIU",
					g.nodeName(id), n.Name, n.Kind))
			}
		}
	}
	for _, id := range g.Find(TargetNode) {
		for _, nbr := range g.Neighbors(id, DirIn) {
			n, _ := g.Node(nbr)
			if n.Kind != NIUNode {
				vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
					"target %s is fed by %s (%s), expected an NIU",
					g.nodeName(id), n.Name, n.Kind))
			}
		}
	}
}

// checkEdgeWidths verifies that every edge carries matching widths on
// both sides.  A WidthConverter endpoint is examined side-aware (its
// SrcWidth inbound, DstWidth outbound), so a correctly wired converter
// chain passes while a genuine mismatch does not.
func (vr *ValidationResult) checkEdgeWidths(g *Graph) {
	for _, e := range g.Edges() {
		u, _ := g.Node(e.Src)
		v, _ := g.Node(e.Dst)
		srcW := u.widthAsSrc()
		dstW := v.widthAsDst()

		if srcW > 0 && dstW > 0 && srcW != dstW &&
			u.Kind != WidthConverterNode && v.Kind != WidthConverterNode {
			vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
				"width mismatch on edge %s->%s: %d vs %d bits and no width converter",
				u.Name, v.Name, srcW, dstW))
			continue
		}
		if e.Width > 0 && srcW > 0 && e.Width != srcW {
			vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
				"edge %s->%s carries %d bits but %s presents %d",
				u.Name, v.Name, e.Width, u.Name, srcW))
		}
		if e.Width > 0 && dstW > 0 && e.Width != dstW {
			vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
				"edge %s->%s carries %d bits but %s accepts %d",
				u.Name, v.Name, e.Width, v.Name, dstW))
		}
	}
}

// checkClockDomains verifies that no edge crosses clock domains without
// an interposed ClockConverter
func (vr *ValidationResult) checkClockDomains(g *Graph) {
	for _, e := range g.Edges() {
		u, _ := g.Node(e.Src)
		v, _ := g.Node(e.Dst)
		if u.Kind == ClockConverterNode || v.Kind == ClockConverterNode {
			continue
		}
		srcC := u.clockAsSrc()
		dstC := v.clockAsDst()
		if srcC != "" && dstC != "" && srcC != dstC {
			vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
				"clock domain crossing on edge %s->%s: %s vs %s and no clock converter",
				u.Name, v.Name, srcC, dstC))
		}
	}
}

// checkFanLimits verifies arbiter fan-in and decoder fan-out against
// their declared counts and the hard limit of 4
func (vr *ValidationResult) checkFanLimits(g *Graph) {
	for _, id := range g.Find(ArbiterNode) {
		n, _ := g.Node(id)
		if n.NumInputs > MaxFanIn {
			vr.Errors = append(vr.Errors, errorFinding(CapacityClass,
				"arbiter %s declares %d inputs, limit is %d", n.Name, n.NumInputs, MaxFanIn))
		}
		inDeg := g.Degree(id, DirIn)
		if inDeg != n.NumInputs {
			vr.Errors = append(vr.Errors, errorFinding(CapacityClass,
				"arbiter %s declares %d inputs but has in-degree %d", n.Name, n.NumInputs, inDeg))
		}
	}
	for _, id := range g.Find(DecoderNode) {
		n, _ := g.Node(id)
		if n.NumOutputs > MaxFanOut {
			vr.Errors = append(vr.Errors, errorFinding(CapacityClass,
				"decoder %s declares %d outputs, limit is %d", n.Name, n.NumOutputs, MaxFanOut))
		}
		outDeg := g.Degree(id, DirOut)
		if outDeg != n.NumOutputs {
			vr.Errors = append(vr.Errors, errorFinding(CapacityClass,
				"decoder %s declares %d outputs but has out-degree %d", n.Name, n.NumOutputs, outDeg))
		}
	}
}

// checkRouterPorts verifies that each router declares at least as many
// ports as it has incident edges
func (vr *ValidationResult) checkRouterPorts(g *Graph) {
	for _, id := range g.Find(RouterNode) {
		n, _ := g.Node(id)
		used := g.Degree(id, DirIn) + g.Degree(id, DirOut)
		if n.NumPorts < used {
			vr.Errors = append(vr.Errors, errorFinding(CapacityClass,
				"router %s declares %d ports but %d edges attach to it", n.Name, n.NumPorts, used))
		}
	}
}

// checkTargetBandwidth sums the guaranteed bandwidth of the flows
// terminating at each target; exceeding the target's capacity is an
// error, running above 90% of it a warning
func (vr *ValidationResult) checkTargetBandwidth(g *Graph, flows []TrafficFlow) {
	demand := make(map[int]float64)
	for _, flow := range flows {
		demand[flow.Dst] += flow.Bandwidth
	}

	// report in a deterministic target order
	targets := make([]int, 0, len(demand))
	for id := range demand {
		targets = append(targets, id)
	}
	sort.Ints(targets)

	for _, id := range targets {
		n, present := g.Node(id)
		if !present || n.Kind != TargetNode {
			continue
		}
		if demand[id] > n.MaxBandwidth {
			vr.Errors = append(vr.Errors, errorFinding(BandwidthClass,
				"target %s oversubscribed: %.1f GB/s guaranteed against %.1f GB/s capacity",
				n.Name, demand[id], n.MaxBandwidth))
		} else if demand[id] > targetUtilizationWarn*n.MaxBandwidth {
			vr.Warnings = append(vr.Warnings, errorFinding(BandwidthClass,
				"target %s at %.0f%% of capacity", n.Name, 100*demand[id]/n.MaxBandwidth))
		}
	}
}

// checkFlowLatency walks each flow's realized shortest path and compares
// its summed edge latency (plus the target's access latency) against the
// originating initiator's requirement.  A flow with no path at all is a
// structural error.
func (vr *ValidationResult) checkFlowLatency(g *Graph, flows []TrafficFlow) {
	if len(flows) == 0 {
		return
	}
	rb := newRouteBuilder(g)
	for _, flow := range flows {
		src, srcOK := g.Node(flow.Src)
		dst, dstOK := g.Node(flow.Dst)
		if !srcOK || !dstOK {
			vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
				"flow references unknown node pair (%d,%d)", flow.Src, flow.Dst))
			continue
		}
		rt, reachable := rb.route(flow.Src, flow.Dst)
		if !reachable {
			vr.Errors = append(vr.Errors, errorFinding(StructuralClass,
				"no path for flow %s->%s", src.Name, dst.Name))
			continue
		}
		realized := rb.routeLatency(rt)
		if src.Kind == InitiatorNode && src.LatencyReq > 0 && realized > src.LatencyReq {
			vr.Errors = append(vr.Errors, errorFinding(LatencyClass,
				"flow %s->%s realizes %d cycles, requirement is %d",
				src.Name, dst.Name, realized, src.LatencyReq))
		}
		if flow.MaxLatency > 0 && realized > flow.MaxLatency {
			vr.Errors = append(vr.Errors, errorFinding(LatencyClass,
				"flow %s->%s realizes %d cycles, flow bound is %d",
				src.Name, dst.Name, realized, flow.MaxLatency))
		}
	}
}
