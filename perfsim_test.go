package nocgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simFabric gives a converter-clean single-flow topology for the
// simulator tests
func simFabric(t *testing.T) (*Graph, []TrafficFlow) {
	req := &TopoRequirements{
		Initiators: []InitiatorSpec{
			{Name: "cpu", AvgThroughput: 5.0, MaxThroughput: 10.0, Pattern: StreamingPattern},
		},
		Targets:      []TargetSpec{{Name: "mem", MaxBandwidth: 12.0, Latency: 40, Size: 4.0}},
		ClockDomains: []ClockDomain{{Name: fastDomain, Frequency: 2000.0}},
		Flows:        []FlowSpec{{Src: "cpu", Dst: "mem", Bandwidth: 5.0}},
	}
	cfg := DefaultTopoConfig()
	g, flows, _, err := GenerateTopology(req, cfg)
	require.NoError(t, err)
	out, findings := InsertConverters(g, cfg)
	require.Empty(t, findings)
	return out, flows
}

func TestSimulateZeroLoad(t *testing.T) {
	g, flows := simFabric(t)
	ps := CreatePerfSim()

	result := ps.Simulate(g, flows, 0.0)
	assert.Zero(t, result.PktGenerated)
	assert.Greater(t, result.AvgLatency, 0.0)
	assert.False(t, result.Timeout)
}

func TestSimulateDeliversEverything(t *testing.T) {
	g, flows := simFabric(t)
	ps := CreatePerfSim()
	ps.PktsPerFlow = 100

	result := ps.Simulate(g, flows, 20.0)
	assert.Equal(t, 100, result.PktGenerated)
	assert.Equal(t, 100, result.TotalReceived)
	assert.False(t, result.Timeout)
	assert.Greater(t, result.AvgLatency, 0.0)
}

func TestLatencyGrowsWithLoad(t *testing.T) {
	g, flows := simFabric(t)
	ps := CreatePerfSim()
	ps.PktsPerFlow = 200

	light := ps.Simulate(g, flows, 20.0)
	heavy := ps.Simulate(g, flows, 100.0)
	require.Positive(t, light.TotalReceived)
	require.Positive(t, heavy.TotalReceived)

	// at full injection the bottleneck NIU cannot keep up and queueing
	// delay accumulates
	assert.Greater(t, heavy.AvgLatency, light.AvgLatency)
}

func TestSimulateSkipsUnroutableFlows(t *testing.T) {
	g, flows := simFabric(t)
	xb, present := g.FindByName(crossbarName)
	require.True(t, present)
	g.removeNode(xb.ID)

	ps := CreatePerfSim()
	result := ps.Simulate(g, flows, 20.0)
	assert.Zero(t, result.TotalReceived)
	assert.Zero(t, result.PktGenerated)
}

func TestOracleDrivesSweep(t *testing.T) {
	g, flows := simFabric(t)
	ps := CreatePerfSim()
	ps.PktsPerFlow = 100

	result := RunSweep(ps.Oracle(g, flows), DefaultTopoConfig())
	assert.Contains(t, []SweepState{Saturated, ExhaustedRange}, result.State)
	assert.Greater(t, result.ZeroLoadLatency, 0.0)
	assert.NotEmpty(t, result.Samples)
}
