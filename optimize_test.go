package nocgen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lowFlowReq gives four 2 GB/s initiators all talking to one target,
// every flow under the low-bandwidth threshold
func lowFlowReq() *TopoRequirements {
	req := &TopoRequirements{
		Targets: []TargetSpec{{Name: "mem", MaxBandwidth: 12.0, Latency: 40, Size: 4.0}},
		ClockDomains: []ClockDomain{
			{Name: fastDomain, Frequency: 2000.0},
			{Name: slowDomain, Frequency: 500.0},
		},
		OptimizeFor: OptimizeForBandwidth,
	}
	for idx := 0; idx < 4; idx++ {
		name := fmt.Sprintf("dev%d", idx)
		req.Initiators = append(req.Initiators, InitiatorSpec{
			Name: name, AvgThroughput: 1.0, MaxThroughput: 2.0, Priority: idx, Pattern: UniformPattern})
		req.Flows = append(req.Flows, FlowSpec{
			Src: name, Dst: "mem", Bandwidth: 2.0, Priority: idx})
	}
	return req
}

// prepared runs generation and converter insertion, the state the
// optimizer receives from the pipeline
func prepared(t *testing.T, req *TopoRequirements) (*Graph, []TrafficFlow) {
	cfg := DefaultTopoConfig()
	g, flows, _, err := GenerateTopology(req, cfg)
	require.NoError(t, err)
	out, findings := InsertConverters(g, cfg)
	require.Empty(t, findings)
	return out, flows
}

func TestLowFlowsGroupedBehindArbiter(t *testing.T) {
	cfg := DefaultTopoConfig()
	g, flows := prepared(t, lowFlowReq())

	out, report, err := OptimizeBandwidth(g, flows, cfg)
	require.NoError(t, err)

	arbs := out.Find(ArbiterNode)
	require.Len(t, arbs, 1)
	arb, _ := out.Node(arbs[0])
	assert.Equal(t, 4, arb.NumInputs)
	assert.Equal(t, PriorityPolicy, arb.Policy)
	assert.Equal(t, 4, out.Degree(arb.ID, DirIn))
	assert.Equal(t, 4, report.LowFlows)

	// the four direct attachments collapse into one crossbar input; the
	// crossbar keeps forwarding the merged traffic to the target
	xb, present := out.FindByName(crossbarName)
	require.True(t, present)
	assert.False(t, report.CrossbarRemoved)
	assert.Contains(t, succThroughConverters(out, arb.ID), xb.ID)
	assert.Equal(t, 2, xb.NumPorts)
	dev0NIU, _ := out.FindByName("dev0_niu")
	assert.NotContains(t, succThroughConverters(out, dev0NIU.ID), xb.ID)

	vr := ValidateTopology(out, flows, cfg)
	assert.Empty(t, vr.Errors)

	rt := BuildRouteTable(out)
	for _, flow := range flows {
		_, ok := rt.OutputPort(flow.Src, flow.Dst)
		assert.True(t, ok)
	}
}

func TestSingletonLowFlowStaysOnCrossbar(t *testing.T) {
	req := lowFlowReq()
	// a fifth device with the worst priority becomes the chunk of one
	req.Initiators = append(req.Initiators, InitiatorSpec{
		Name: "dev4", AvgThroughput: 1.0, MaxThroughput: 2.0, Priority: 4, Pattern: UniformPattern})
	req.Flows = append(req.Flows, FlowSpec{Src: "dev4", Dst: "mem", Bandwidth: 2.0, Priority: 4})

	cfg := DefaultTopoConfig()
	g, flows := prepared(t, req)
	out, report, err := OptimizeBandwidth(g, flows, cfg)
	require.NoError(t, err)

	require.Len(t, out.Find(ArbiterNode), 1)
	assert.Equal(t, 4, report.LowFlows)
	assert.False(t, report.CrossbarRemoved)

	// the odd flow out still rides the crossbar, the grouped ones don't
	xb, present := out.FindByName(crossbarName)
	require.True(t, present)
	dev4NIU, _ := out.FindByName("dev4_niu")
	dev0NIU, _ := out.FindByName("dev0_niu")
	assert.Contains(t, succThroughConverters(out, dev4NIU.ID), xb.ID)
	assert.NotContains(t, succThroughConverters(out, dev0NIU.ID), xb.ID)

	vr := ValidateTopology(out, flows, cfg)
	assert.Empty(t, vr.Errors)
}

func TestHighFlowGetsDedicatedRouter(t *testing.T) {
	req := scenarioHighReq()
	cfg := DefaultTopoConfig()
	g, flows := prepared(t, req)
	out, report, err := OptimizeBandwidth(g, flows, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, report.HighFlows)
	assert.Equal(t, 1, report.MediumFlows)
	require.Len(t, report.DedicatedRouters, 1)
	assert.Equal(t, "r_cpu_hi_mem", report.DedicatedRouters[0])

	// the crossbar survives for the medium flow, shrunk to its real use
	xb, present := out.FindByName(crossbarName)
	require.True(t, present)
	assert.Equal(t, 2, xb.NumPorts)

	// the high flow's NIU no longer touches the crossbar
	hiNIU, _ := out.FindByName("cpu_hi_niu")
	assert.NotContains(t, succThroughConverters(out, hiNIU.ID), xb.ID)

	vr := ValidateTopology(out, flows, cfg)
	assert.Empty(t, vr.Errors)

	rt := BuildRouteTable(out)
	for _, flow := range flows {
		_, ok := rt.OutputPort(flow.Src, flow.Dst)
		assert.True(t, ok)
	}
}

func TestOptimizedEdgesCarryWidths(t *testing.T) {
	cfg := DefaultTopoConfig()

	for name, req := range map[string]*TopoRequirements{
		"low":  lowFlowReq(),
		"high": scenarioHighReq(),
	} {
		t.Run(name, func(t *testing.T) {
			g, flows := prepared(t, req)
			out, _, err := OptimizeBandwidth(g, flows, cfg)
			require.NoError(t, err)
			for _, e := range out.Edges() {
				assert.Greater(t, e.Width, 0, "edge %d->%d", e.Src, e.Dst)
			}
		})
	}
}

func TestDedicatedRouterEdgeWidths(t *testing.T) {
	cfg := DefaultTopoConfig()
	g, flows := prepared(t, scenarioHighReq())
	out, _, err := OptimizeBandwidth(g, flows, cfg)
	require.NoError(t, err)

	hiNIU, present := out.FindByName("cpu_hi_niu")
	require.True(t, present)
	router, present := out.FindByName("r_cpu_hi_mem")
	require.True(t, present)

	// NIU side carries the NIU's presented width, router side the
	// router's derived width; both are 256 at 60 GB/s and 2000 MHz
	e, ok := out.EdgeBetween(hiNIU.ID, router.ID)
	require.True(t, ok)
	assert.Equal(t, hiNIU.Width, e.Width)
	memNIU, _ := out.FindByName("mem_niu")
	e, ok = out.EdgeBetween(router.ID, memNIU.ID)
	if !ok {
		// a width converter may sit between them
		mid, joined := converterPath(out, router.ID, memNIU.ID)
		require.True(t, joined)
		require.NotEmpty(t, mid)
		e, ok = out.EdgeBetween(router.ID, mid[0])
		require.True(t, ok)
	}
	assert.Equal(t, router.Width, e.Width)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	cfg := DefaultTopoConfig()

	for name, req := range map[string]*TopoRequirements{
		"low":  lowFlowReq(),
		"high": scenarioHighReq(),
	} {
		t.Run(name, func(t *testing.T) {
			g, flows := prepared(t, req)
			once, _, err := OptimizeBandwidth(g, flows, cfg)
			require.NoError(t, err)
			twice, report, err := OptimizeBandwidth(once, flows, cfg)
			require.NoError(t, err)

			assert.Equal(t, once.NumNodes(), twice.NumNodes())
			assert.Equal(t, once.NumEdges(), twice.NumEdges())
			assert.Empty(t, report.DedicatedRouters)
			assert.Empty(t, report.Arbiters)
		})
	}
}

func scenarioHighReq() *TopoRequirements {
	return &TopoRequirements{
		Initiators: []InitiatorSpec{
			{Name: "cpu_hi", AvgThroughput: 30.0, MaxThroughput: 60.0, Pattern: StreamingPattern},
			{Name: "cpu_med", AvgThroughput: 5.0, MaxThroughput: 10.0, Pattern: BurstyPattern},
		},
		Targets:      []TargetSpec{{Name: "mem", MaxBandwidth: 100.0, Latency: 40, Size: 16.0}},
		ClockDomains: []ClockDomain{{Name: fastDomain, Frequency: 2000.0}},
		Flows: []FlowSpec{
			{Src: "cpu_hi", Dst: "mem", Bandwidth: 60.0},
			{Src: "cpu_med", Dst: "mem", Bandwidth: 10.0},
		},
		OptimizeFor: OptimizeForBandwidth,
	}
}

func TestOptimizeWithoutCrossbarIsNoOp(t *testing.T) {
	g := smallFabric(t)
	flows := []TrafficFlow{{Src: 0, Dst: 4, Bandwidth: 60.0}}

	out, report, err := OptimizeBandwidth(g, flows, DefaultTopoConfig())
	require.NoError(t, err)
	assert.Equal(t, g.NumNodes(), out.NumNodes())
	assert.Equal(t, g.NumEdges(), out.NumEdges())
	assert.Empty(t, report.DedicatedRouters)
}
