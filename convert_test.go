package nocgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockThenWidthInsertion(t *testing.T) {
	nodes := []*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 128, "slow"),
	}
	edges := []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 4}}
	g, err := CreateGraph(nodes, edges)
	require.NoError(t, err)

	out, findings := InsertConverters(g, DefaultTopoConfig())
	require.Empty(t, findings)
	assert.Equal(t, 4, out.NumNodes())
	assert.Len(t, out.Find(ClockConverterNode), 1)
	assert.Len(t, out.Find(WidthConverterNode), 1)

	// clock conversion happens first, so the CDC sits nearer the source
	succ := out.Neighbors(0, DirOut)
	require.Len(t, succ, 1)
	cdc, _ := out.Node(succ[0])
	assert.Equal(t, ClockConverterNode, cdc.Kind)
	assert.Equal(t, "fast", cdc.SrcClockDomain)
	assert.Equal(t, "slow", cdc.DstClockDomain)

	after := out.Neighbors(cdc.ID, DirOut)
	require.Len(t, after, 1)
	wc, _ := out.Node(after[0])
	assert.Equal(t, WidthConverterNode, wc.Kind)
	assert.Equal(t, 64, wc.SrcWidth)
	assert.Equal(t, 128, wc.DstWidth)

	// the rewritten chain satisfies the validator
	vr := ValidateTopology(out, nil, DefaultTopoConfig())
	assert.Empty(t, vr.Errors)
}

func TestInsertionIsIdempotent(t *testing.T) {
	nodes := []*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 128, "slow"),
	}
	edges := []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 4}}
	g, err := CreateGraph(nodes, edges)
	require.NoError(t, err)

	once, _ := InsertConverters(g, DefaultTopoConfig())
	twice, _ := InsertConverters(once, DefaultTopoConfig())
	assert.Equal(t, once.NumNodes(), twice.NumNodes())
	assert.Equal(t, once.NumEdges(), twice.NumEdges())
}

func TestMatchedEdgeUntouched(t *testing.T) {
	nodes := []*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 64, "fast"),
	}
	edges := []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 3}}
	g, err := CreateGraph(nodes, edges)
	require.NoError(t, err)

	out, _ := InsertConverters(g, DefaultTopoConfig())
	assert.Equal(t, 2, out.NumNodes())
	e, present := out.EdgeBetween(0, 1)
	require.True(t, present)
	assert.Equal(t, 3, e.Latency)
}

func TestLatencySplitAcrossConverter(t *testing.T) {
	nodes := []*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 128, "fast"),
	}
	edges := []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 5}}
	g, err := CreateGraph(nodes, edges)
	require.NoError(t, err)

	out, _ := InsertConverters(g, DefaultTopoConfig())
	wcs := out.Find(WidthConverterNode)
	require.Len(t, wcs, 1)

	before, present := out.EdgeBetween(0, wcs[0])
	require.True(t, present)
	after, present := out.EdgeBetween(wcs[0], 1)
	require.True(t, present)
	assert.Equal(t, 2, before.Latency)
	assert.Equal(t, 3, after.Latency)

	// a 1-cycle edge splits into two 1-cycle halves, never zero
	g2, err := CreateGraph([]*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 128, "fast"),
	}, []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 1}})
	require.NoError(t, err)
	out2, _ := InsertConverters(g2, DefaultTopoConfig())
	wcs2 := out2.Find(WidthConverterNode)
	require.Len(t, wcs2, 1)
	b2, _ := out2.EdgeBetween(0, wcs2[0])
	a2, _ := out2.EdgeBetween(wcs2[0], 1)
	assert.Equal(t, 1, b2.Latency)
	assert.Equal(t, 1, a2.Latency)
}

func TestDisabledInsertionReportsFindings(t *testing.T) {
	nodes := []*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 128, "slow"),
	}
	edges := []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 4}}
	g, err := CreateGraph(nodes, edges)
	require.NoError(t, err)

	cfg := DefaultTopoConfig()
	cfg.AutoInsertConverters = false
	out, findings := InsertConverters(g, cfg)

	assert.Same(t, g, out)
	assert.Equal(t, 2, g.NumNodes())
	// one clock crossing and one width mismatch on the same edge
	assert.Len(t, findings, 2)
}

func TestInputGraphNotMutated(t *testing.T) {
	nodes := []*Node{
		CreateNIUNode(0, "a", 64, "fast"),
		CreateNIUNode(1, "b", 128, "slow"),
	}
	edges := []*Edge{{Src: 0, Dst: 1, Width: 64, Latency: 4}}
	g, err := CreateGraph(nodes, edges)
	require.NoError(t, err)

	_, _ = InsertConverters(g, DefaultTopoConfig())
	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, 1, g.NumEdges())
}
