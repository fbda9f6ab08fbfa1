package nocgen

// generate.go builds an initial topology graph from a high-level
// requirements description.  Users specify only the traffic endpoints
// and their flows; the generator derives per-node data widths and clock
// domains, creates one NIU per endpoint, and connects everything through
// a single central crossbar giving full initiator-to-target connectivity.
// Bandwidth-driven restructuring is the optimizer's job (optimize.go),
// not the generator's.

import "fmt"

// An InitiatorSpec describes one traffic generator in a requirements
// description
type InitiatorSpec struct {
	Name          string  `json:"name" yaml:"name"`
	AvgThroughput float64 `json:"avgthroughput" yaml:"avgthroughput"` // GB/s
	MaxThroughput float64 `json:"maxthroughput" yaml:"maxthroughput"` // GB/s
	LatencyReq    int     `json:"latencyreq" yaml:"latencyreq"`       // cycles
	Priority      int     `json:"priority" yaml:"priority"`
	Pattern       string  `json:"pattern" yaml:"pattern"`
}

// A TargetSpec describes one memory or peripheral target
type TargetSpec struct {
	Name         string  `json:"name" yaml:"name"`
	MaxBandwidth float64 `json:"maxbandwidth" yaml:"maxbandwidth"` // GB/s
	Latency      int     `json:"latency" yaml:"latency"`           // cycles
	Size         float64 `json:"size" yaml:"size"`                 // GB
}

// A FlowSpec is a guaranteed-bandwidth traffic requirement, endpoints
// named rather than id'd since ids do not exist until generation
type FlowSpec struct {
	Src        string  `json:"src" yaml:"src"`
	Dst        string  `json:"dst" yaml:"dst"`
	Bandwidth  float64 `json:"bandwidth" yaml:"bandwidth"` // GB/s
	MaxLatency int     `json:"maxlatency" yaml:"maxlatency"`
	Priority   int     `json:"priority" yaml:"priority"`
}

// TopoRequirements is the generator's input: the requirements
// description after deserialization
type TopoRequirements struct {
	Initiators   []InitiatorSpec `json:"initiators" yaml:"initiators"`
	Targets      []TargetSpec    `json:"targets" yaml:"targets"`
	Flows        []FlowSpec      `json:"trafficflows" yaml:"trafficflows"`
	ClockDomains []ClockDomain   `json:"clockdomains" yaml:"clockdomains"`
	OptimizeFor  string          `json:"optimizefor" yaml:"optimizefor"` // bandwidth, latency, none
}

// values the optimize_for requirements field accepts
const (
	OptimizeForBandwidth = "bandwidth"
	OptimizeForLatency   = "latency"
	OptimizeForNone      = "none"
)

// edge latencies the generator assigns, in cycles
const (
	endpointEdgeLatency = 1 // Initiator -> NIU
	fabricEdgeLatency   = 2 // NIU <-> crossbar
)

// calcWidth derives the data width, in bits, needed to carry the given
// bandwidth at the given clock frequency, rounded up to the next
// supported power of two.  bandwidth GB/s * 8000 / frequency MHz gives
// the required bits per cycle.
func calcWidth(bandwidth, frequency float64) (int, error) {
	requiredBits := bandwidth * 8000.0 / frequency
	for _, width := range supportedWidths {
		if float64(width) >= requiredBits {
			return width, nil
		}
	}
	return 0, configErrorf("%.1f GB/s at %.0f MHz needs %.0f bits, max supported width is %d",
		bandwidth, frequency, requiredBits, supportedWidths[len(supportedWidths)-1])
}

// clockDomainFor assigns a node to the fast or slow domain based on the
// bandwidth it has to move
func clockDomainFor(bandwidth float64, cfg TopoConfig) string {
	if bandwidth >= cfg.FastClockThreshold {
		return fastDomain
	}
	return slowDomain
}

// GenerateTopology builds the baseline crossbar topology for a
// requirements description.  It returns the graph, the traffic flows
// resolved to node ids, and a synthesis report.  Non-positive bandwidth
// or frequency values, unknown flow endpoints, and underivable widths
// all fail fast with a ConfigError.
func GenerateTopology(req *TopoRequirements, cfg TopoConfig) (*Graph, []TrafficFlow, *SynthReport, error) {
	if len(req.Initiators) == 0 || len(req.Targets) == 0 {
		return nil, nil, nil, configErrorf("requirements need at least one initiator and one target")
	}
	switch req.OptimizeFor {
	case "", OptimizeForNone, OptimizeForBandwidth, OptimizeForLatency:
	default:
		return nil, nil, nil, configErrorf("unknown optimize_for value %q", req.OptimizeFor)
	}

	freqByDomain := make(map[string]float64)
	for _, cd := range req.ClockDomains {
		if cd.Frequency <= 0 {
			return nil, nil, nil, configErrorf("clock domain %s has non-positive frequency %.1f", cd.Name, cd.Frequency)
		}
		freqByDomain[cd.Name] = cd.Frequency
	}
	freqOf := func(domain string) float64 {
		f, present := freqByDomain[domain]
		if present {
			return f
		}
		return cfg.DefaultFrequency
	}

	g := NewGraph()
	report := CreateSynthReport()
	nxt := 0
	nodeByName := make(map[string]int)
	niuByEndpoint := make(map[string]int) // endpoint name -> its NIU id

	// traffic endpoints and their NIUs
	for _, init := range req.Initiators {
		if init.MaxThroughput <= 0 {
			return nil, nil, nil, configErrorf("initiator %s has non-positive max throughput %.1f", init.Name, init.MaxThroughput)
		}
		pattern := init.Pattern
		if pattern == "" {
			pattern = BurstyPattern
		}
		initNode := CreateInitiatorNode(nxt, init.Name, init.AvgThroughput,
			init.MaxThroughput, init.LatencyReq, init.Priority, pattern)
		nxt += 1

		domain := clockDomainFor(init.MaxThroughput, cfg)
		width, err := calcWidth(init.MaxThroughput, freqOf(domain))
		if err != nil {
			return nil, nil, nil, err
		}
		niu := CreateNIUNode(nxt, init.Name+"_niu", width, domain)
		nxt += 1

		if err := g.addNode(initNode); err != nil {
			return nil, nil, nil, err
		}
		if err := g.addNode(niu); err != nil {
			return nil, nil, nil, err
		}
		_ = g.addEdge(&Edge{Src: initNode.ID, Dst: niu.ID, Width: width, Latency: endpointEdgeLatency})

		nodeByName[init.Name] = initNode.ID
		niuByEndpoint[init.Name] = niu.ID
		report.DerivedWidths[niu.Name] = width
	}

	for _, tgt := range req.Targets {
		if tgt.MaxBandwidth <= 0 {
			return nil, nil, nil, configErrorf("target %s has non-positive bandwidth %.1f", tgt.Name, tgt.MaxBandwidth)
		}
		tgtNode := CreateTargetNode(nxt, tgt.Name, tgt.MaxBandwidth, tgt.Latency, tgt.Size)
		nxt += 1

		domain := clockDomainFor(tgt.MaxBandwidth, cfg)
		width, err := calcWidth(tgt.MaxBandwidth, freqOf(domain))
		if err != nil {
			return nil, nil, nil, err
		}
		niu := CreateNIUNode(nxt, tgt.Name+"_niu", width, domain)
		nxt += 1

		if err := g.addNode(tgtNode); err != nil {
			return nil, nil, nil, err
		}
		if err := g.addNode(niu); err != nil {
			return nil, nil, nil, err
		}
		_ = g.addEdge(&Edge{Src: niu.ID, Dst: tgtNode.ID, Width: width, Latency: maxInt(1, tgt.Latency/10)})

		nodeByName[tgt.Name] = tgtNode.ID
		niuByEndpoint[tgt.Name] = niu.ID
		report.DerivedWidths[niu.Name] = width
	}

	// the central crossbar: widest derived width, one port per endpoint
	maxWidth := 0
	for _, width := range report.DerivedWidths {
		if width > maxWidth {
			maxWidth = width
		}
	}
	numPorts := len(req.Initiators) + len(req.Targets)
	crossbar := CreateRouterNode(nxt, crossbarName, maxWidth, fastDomain, numPorts)
	_ = g.addNode(crossbar)

	// full connectivity: every initiator NIU feeds the crossbar, the
	// crossbar feeds every target NIU
	for _, init := range req.Initiators {
		niuID := niuByEndpoint[init.Name]
		niu, _ := g.Node(niuID)
		_ = g.addEdge(&Edge{Src: niuID, Dst: crossbar.ID, Width: niu.Width, Latency: fabricEdgeLatency})
	}
	for _, tgt := range req.Targets {
		niuID := niuByEndpoint[tgt.Name]
		niu, _ := g.Node(niuID)
		_ = g.addEdge(&Edge{Src: crossbar.ID, Dst: niuID, Width: niu.Width, Latency: fabricEdgeLatency})
	}

	// resolve flows to node ids
	flows := make([]TrafficFlow, 0, len(req.Flows))
	for _, fs := range req.Flows {
		if fs.Bandwidth <= 0 {
			return nil, nil, nil, configErrorf("flow %s->%s has non-positive bandwidth %.1f", fs.Src, fs.Dst, fs.Bandwidth)
		}
		srcID, present := nodeByName[fs.Src]
		if !present {
			return nil, nil, nil, configErrorf("flow references unknown initiator %q", fs.Src)
		}
		dstID, present := nodeByName[fs.Dst]
		if !present {
			return nil, nil, nil, configErrorf("flow references unknown target %q", fs.Dst)
		}
		flows = append(flows, TrafficFlow{Src: srcID, Dst: dstID,
			Bandwidth: fs.Bandwidth, MaxLatency: fs.MaxLatency, Priority: fs.Priority})
		report.TotalBandwidthReq += fs.Bandwidth
	}

	for _, tgt := range req.Targets {
		report.TotalBandwidthCap += tgt.MaxBandwidth
	}
	report.NetworkName = fmt.Sprintf("crossbar_%dx%d", len(req.Initiators), len(req.Targets))
	report.CrossbarWidth = maxWidth
	report.CrossbarPorts = numPorts
	report.NumNodes = g.NumNodes()
	report.NumEdges = g.NumEdges()
	for _, n := range g.Nodes() {
		report.NodeCounts[n.Kind.String()] += 1
	}

	return g, flows, report, nil
}
