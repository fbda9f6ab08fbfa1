package nocgen

// perfsim.go holds a queueing-level discrete event simulator used as
// the packaged latency oracle for the sweep controller.  Each fabric
// node is modeled as a single server whose service time is the cycles
// needed to move one packet across the node's data width; packets
// follow the same deterministic shortest paths the routing tables
// encode.  Interarrival times follow the originating initiator's
// declared traffic pattern.  The model trades flit-level fidelity for
// speed: it captures queueing growth toward saturation, which is all
// the sweep needs.

import (
	"math"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
)

// A SimResult carries what one simulation run measured
type SimResult struct {
	// AvgLatency is the mean source-to-target packet latency in cycles
	AvgLatency float64

	PktGenerated  int
	TotalReceived int

	// Timeout is set when the run hit its time limit with packets still
	// in flight
	Timeout bool
}

// A SimOracle measures a topology under load.  PerfSim is the packaged
// implementation; an external harness can stand in for it.
type SimOracle interface {
	Simulate(g *Graph, flows []TrafficFlow, injectionRate float64) SimResult
}

// PerfSim configures the packaged simulator
type PerfSim struct {
	// PktBytes is the modeled packet size
	PktBytes int

	// PktsPerFlow is how many packets each flow injects per run
	PktsPerFlow int

	// CyclePeriod is the seconds per fabric clock cycle
	CyclePeriod float64

	// TimeLimit bounds one run, in simulated seconds
	TimeLimit float64

	// BurstLen is how many packets a bursty initiator emits back to back
	BurstLen int
}

// CreatePerfSim is a constructor, giving the defaults
func CreatePerfSim() *PerfSim {
	return &PerfSim{PktBytes: 64, PktsPerFlow: 500, CyclePeriod: 1e-9,
		TimeLimit: 1.0, BurstLen: 4}
}

// simRun carries the mutable state of one Simulate call
type simRun struct {
	ps        *PerfSim
	g         *Graph
	flows     []TrafficFlow
	rb        *routeBuilder
	routes    [][]int
	rng       *rngstream.RngStream
	rate      float64 // fraction of each initiator's peak, 0..1
	busyUntil map[int]float64
	burstLeft []int
	sent      []int
	generated int
	received  int
	totalLat  float64 // cycles
}

// simPkt is one packet in flight
type simPkt struct {
	flowIdx int
	hop     int
	genTime float64
}

// serviceTime gives the seconds a node holds one packet: the cycles to
// move PktBytes across its width.  Width-less nodes forward in one cycle.
func (sr *simRun) serviceTime(id int) float64 {
	n, _ := sr.g.Node(id)
	cycles := 1
	width := n.widthAsSrc()
	if width > 0 {
		cycles = maxInt(1, sr.ps.PktBytes*8/width)
	}
	return float64(cycles) * sr.ps.CyclePeriod
}

// interarrival samples the gap to the next packet of a flow, honoring
// the initiator's traffic pattern
func (sr *simRun) interarrival(flowIdx int) float64 {
	flow := sr.flows[flowIdx]
	src, _ := sr.g.Node(flow.Src)
	bytesPerSec := (sr.rate * src.MaxThroughput) * 1e9
	mean := float64(sr.ps.PktBytes) / bytesPerSec

	switch src.Pattern {
	case StreamingPattern:
		return mean
	case BurstyPattern:
		// BurstLen back-to-back packets, then a gap that restores the mean
		if sr.burstLeft[flowIdx] > 0 {
			sr.burstLeft[flowIdx] -= 1
			return sr.ps.CyclePeriod
		}
		sr.burstLeft[flowIdx] = sr.ps.BurstLen - 1
		gapMean := mean * float64(sr.ps.BurstLen)
		return sampleExpRV(sr.rng.RandU01(), 1.0/gapMean)
	default:
		return sampleExpRV(sr.rng.RandU01(), 1.0/mean)
	}
}

// sampleExpRV converts a unit uniform sample into an exponential one
// with the given rate
func sampleExpRV(u01, rate float64) float64 {
	return -math.Log(u01) / rate
}

// genPktEvent injects one packet of a flow and schedules the next
func genPktEvent(evtMgr *evtm.EventManager, context any, data any) any {
	sr := context.(*simRun)
	flowIdx := data.(int)

	pkt := &simPkt{flowIdx: flowIdx, hop: 0, genTime: evtMgr.CurrentSeconds()}
	sr.generated += 1
	evtMgr.Schedule(sr, pkt, arrivalEvent, vrtime.SecondsToTime(0.0))

	sr.sent[flowIdx] += 1
	if sr.sent[flowIdx] < sr.ps.PktsPerFlow {
		gap := sr.interarrival(flowIdx)
		evtMgr.Schedule(sr, flowIdx, genPktEvent, vrtime.SecondsToTime(gap))
	}
	return nil
}

// arrivalEvent services a packet at its current hop and forwards it
func arrivalEvent(evtMgr *evtm.EventManager, context any, data any) any {
	sr := context.(*simRun)
	pkt := data.(*simPkt)
	route := sr.routes[pkt.flowIdx]
	here := route[pkt.hop]
	now := evtMgr.CurrentSeconds()

	if pkt.hop == len(route)-1 {
		// at the target; charge its access latency
		tgt, _ := sr.g.Node(here)
		sr.received += 1
		sr.totalLat += (now-pkt.genTime)/sr.ps.CyclePeriod + float64(tgt.Latency)
		return nil
	}

	start := math.Max(now, sr.busyUntil[here])
	depart := start + sr.serviceTime(here)
	sr.busyUntil[here] = depart

	next := route[pkt.hop+1]
	wireDelay := 0.0
	if e, present := sr.g.EdgeBetween(here, next); present {
		wireDelay = float64(e.Latency) * sr.ps.CyclePeriod
	}
	pkt.hop += 1
	evtMgr.Schedule(sr, pkt, arrivalEvent, vrtime.SecondsToTime(depart-now+wireDelay))
	return nil
}

// Simulate runs the model at the given injection rate, a percentage of
// each initiator's peak throughput.  Rate 0 short-circuits to the
// uncontended path latency, the zero-load figure the sweep calibrates
// against.  Flows whose endpoints have no path are skipped.
func (ps *PerfSim) Simulate(g *Graph, flows []TrafficFlow, injectionRate float64) SimResult {
	rb := newRouteBuilder(g)

	routable := make([]TrafficFlow, 0, len(flows))
	routes := make([][]int, 0, len(flows))
	for _, flow := range flows {
		rt, ok := rb.route(flow.Src, flow.Dst)
		if !ok {
			continue
		}
		routable = append(routable, flow)
		routes = append(routes, rt)
	}
	if len(routable) == 0 {
		return SimResult{}
	}

	if injectionRate <= 0.0 {
		total := 0.0
		for _, rt := range routes {
			// edge latencies plus one service cycle per fabric hop
			total += float64(rb.routeLatency(rt)) + float64(len(rt)-1)
		}
		return SimResult{AvgLatency: total / float64(len(routes))}
	}

	sr := &simRun{
		ps: ps, g: g, flows: routable, rb: rb, routes: routes,
		rng:       rngstream.New("perfsim"),
		rate:      injectionRate / 100.0,
		busyUntil: make(map[int]float64),
		burstLeft: make([]int, len(routable)),
		sent:      make([]int, len(routable)),
	}

	evtMgr := evtm.New()
	for flowIdx := range routable {
		// desynchronize the flows' first packets
		offset := sr.interarrival(flowIdx) * sr.rng.RandU01()
		evtMgr.Schedule(sr, flowIdx, genPktEvent, vrtime.SecondsToTime(offset))
	}
	evtMgr.Run(ps.TimeLimit)

	result := SimResult{PktGenerated: sr.generated, TotalReceived: sr.received}
	result.Timeout = sr.received < len(routable)*ps.PktsPerFlow
	if sr.received > 0 {
		result.AvgLatency = sr.totalLat / float64(sr.received)
	}
	return result
}

// Oracle adapts the simulator to the sweep controller's callback form,
// closing over a fixed topology and flow set
func (ps *PerfSim) Oracle(g *Graph, flows []TrafficFlow) LatencyOracle {
	return func(injectionRate float64) float64 {
		return ps.Simulate(g, flows, injectionRate).AvgLatency
	}
}
