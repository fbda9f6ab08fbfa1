package nocgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReportWriteToFile(t *testing.T) {
	_, _, report, err := GenerateTopology(scenarioReq(), DefaultTopoConfig())
	require.NoError(t, err)

	fname := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, report.WriteToFile(fname))

	dict, err := os.ReadFile(fname)
	require.NoError(t, err)
	var back SynthReport
	require.NoError(t, yaml.Unmarshal(dict, &back))
	assert.Equal(t, report.NumNodes, back.NumNodes)
	assert.Equal(t, report.DerivedWidths, back.DerivedWidths)
	assert.Nil(t, back.Optimization)
}

func TestNodeCountsByKind(t *testing.T) {
	_, _, report, err := GenerateTopology(scenarioReq(), DefaultTopoConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, report.NodeCounts["Initiator"])
	assert.Equal(t, 1, report.NodeCounts["Target"])
	assert.Equal(t, 3, report.NodeCounts["NIU"])
	assert.Equal(t, 1, report.NodeCounts["Router"])
}

func TestTopoStatsCrossbarIsBottleneck(t *testing.T) {
	g, _, _, err := GenerateTopology(scenarioReq(), DefaultTopoConfig())
	require.NoError(t, err)

	stats := ComputeTopoStats(g)
	assert.Equal(t, 1, stats.NumComponents)
	// every initiator-to-target path funnels through the crossbar
	assert.Equal(t, crossbarName, stats.Bottleneck)
	assert.Greater(t, stats.BottleneckBetweenness, 0.0)
	assert.Greater(t, stats.AvgDegree, 0.0)
}

func TestTopoStatsDisconnected(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.addNode(CreateNIUNode(0, "a", 64, "fast")))
	require.NoError(t, g.addNode(CreateNIUNode(1, "b", 64, "fast")))

	stats := ComputeTopoStats(g)
	assert.Equal(t, 2, stats.NumComponents)
}
