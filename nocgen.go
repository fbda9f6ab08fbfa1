// Package nocgen synthesizes, validates, and optimizes the interconnect
// topology of an on-chip network.  A topology can be supplied as an
// explicit graph or generated from a high-level requirements description
// (initiators, targets, traffic flows); the passes in this package then
// close clock-domain and data-width mismatches, check structural and
// capacity rules, restructure the fabric around per-flow bandwidth, and
// derive shortest-path routing tables.  A sweep controller characterizes
// a finished topology's latency curve against an injected simulation
// oracle.
package nocgen

// nocgen.go holds the engine configuration and the pipeline driver that
// chains the passes: generate -> insert converters -> validate ->
// optimize -> validate -> build routes.

// TopoConfig collects every knob the engine consumes.  Thresholds live
// here rather than as package constants so experiments are reproducible
// and the rules are testable in isolation.
type TopoConfig struct {
	// AutoInsertConverters enables the converter-insertion pass.  When
	// false the pass reports mismatches as findings instead of fixing them.
	AutoInsertConverters bool `json:"autoinsertconverters" yaml:"autoinsertconverters"`

	// NIUEntryOnly requires every Initiator and Target to attach to the
	// fabric through an NIU.  Clearing it relaxes that rule.
	NIUEntryOnly bool `json:"niuentryonly" yaml:"niuentryonly"`

	// HighBWThreshold (GB/s): flows at or above it get a dedicated router
	HighBWThreshold float64 `json:"highbwthreshold" yaml:"highbwthreshold"`

	// LowBWThreshold (GB/s): flows below it are grouped behind arbiters
	LowBWThreshold float64 `json:"lowbwthreshold" yaml:"lowbwthreshold"`

	// FastClockThreshold (GB/s): nodes moving at least this much traffic
	// are placed in the fast clock domain, the rest in the slow one
	FastClockThreshold float64 `json:"fastclockthreshold" yaml:"fastclockthreshold"`

	// DefaultFrequency (MHz) is used for width derivation when a node's
	// clock domain is not among the declared domains
	DefaultFrequency float64 `json:"defaultfrequency" yaml:"defaultfrequency"`

	// SweepStep is the initial injection-rate step of the sweep controller
	SweepStep float64 `json:"sweepstep" yaml:"sweepstep"`

	// SweepThreshold is the zero-load-latency multiplier that defines the
	// saturation condition
	SweepThreshold float64 `json:"sweepthreshold" yaml:"sweepthreshold"`
}

// DefaultTopoConfig gives the configuration the engine ships with
func DefaultTopoConfig() TopoConfig {
	return TopoConfig{
		AutoInsertConverters: true,
		NIUEntryOnly:         true,
		HighBWThreshold:      50.0,
		LowBWThreshold:       5.0,
		FastClockThreshold:   2.0,
		DefaultFrequency:     2000.0,
		SweepStep:            10.0,
		SweepThreshold:       2.5,
	}
}

// names of the two clock domains the generator assigns
const (
	fastDomain = "fast"
	slowDomain = "slow"
)

// crossbarName is the name the generator gives the shared central router
const crossbarName = "crossbar"

// A SynthResult carries everything the pipeline produces for one
// requirements description.
type SynthResult struct {
	// Graph is the final topology, converters inserted and bandwidth
	// restructuring applied
	Graph *Graph

	// Flows are the traffic flows resolved to node ids
	Flows []TrafficFlow

	// Report summarizes the synthesis (node counts, derived widths)
	Report *SynthReport

	// Validation holds the findings of the final validator run
	Validation ValidationResult

	// Routes is the routing table for the final graph.  It is left nil
	// when validation reported errors.
	Routes *RouteTable
}

// SynthesizeTopology runs the full pipeline over a requirements
// description.  Generation, conversion, and optimization fail fast with
// typed errors on bad input; validator findings are returned as data in
// the result so the caller decides whether to proceed.
func SynthesizeTopology(req *TopoRequirements, cfg TopoConfig) (*SynthResult, error) {
	g, flows, report, err := GenerateTopology(req, cfg)
	if err != nil {
		return nil, err
	}

	g, inserted := InsertConverters(g, cfg)

	vr := ValidateTopology(g, flows, cfg)
	vr.Errors = append(vr.Errors, inserted...)
	if len(vr.Errors) > 0 {
		return &SynthResult{Graph: g, Flows: flows, Report: report, Validation: vr}, nil
	}

	// only the bandwidth hint triggers restructuring; latency, none, and
	// an unset field all keep the generated crossbar
	if req.OptimizeFor == OptimizeForBandwidth {
		var optReport *OptimizationReport
		g, optReport, err = OptimizeBandwidth(g, flows, cfg)
		if err != nil {
			return nil, err
		}
		report.Optimization = optReport
	}

	vr = ValidateTopology(g, flows, cfg)
	res := &SynthResult{Graph: g, Flows: flows, Report: report, Validation: vr}
	if len(vr.Errors) > 0 {
		return res, nil
	}

	res.Routes = BuildRouteTable(g)
	report.NumNodes = g.NumNodes()
	report.NumEdges = g.NumEdges()
	return res, nil
}
