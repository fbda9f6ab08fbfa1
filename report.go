package nocgen

// report.go holds the synthesis report the pipeline assembles for each
// run and the graph statistics derived for it.  Reports serialize to
// yaml or json, selected by the output file extension.

import (
	"encoding/json"
	"math"
	"os"
	"path"
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gopkg.in/yaml.v3"
)

// A SynthReport summarizes one synthesis run: what was generated, the
// widths the generator derived, the aggregate bandwidth picture, and
// what the optimizer did
type SynthReport struct {
	NetworkName string `json:"networkname" yaml:"networkname"`
	NumNodes    int    `json:"numnodes" yaml:"numnodes"`
	NumEdges    int    `json:"numedges" yaml:"numedges"`

	// NodeCounts maps node kind names to their population
	NodeCounts map[string]int `json:"nodecounts" yaml:"nodecounts"`

	// DerivedWidths maps NIU names to the width the generator computed
	DerivedWidths map[string]int `json:"derivedwidths" yaml:"derivedwidths"`

	CrossbarWidth int `json:"crossbarwidth" yaml:"crossbarwidth"`
	CrossbarPorts int `json:"crossbarports" yaml:"crossbarports"`

	// total guaranteed bandwidth the flows demand, and the total the
	// targets can absorb, both GB/s
	TotalBandwidthReq float64 `json:"totalbandwidthreq" yaml:"totalbandwidthreq"`
	TotalBandwidthCap float64 `json:"totalbandwidthcap" yaml:"totalbandwidthcap"`

	// Optimization is nil when the restructuring pass did not run
	Optimization *OptimizationReport `json:"optimization,omitempty" yaml:"optimization,omitempty"`
}

// CreateSynthReport is a constructor
func CreateSynthReport() *SynthReport {
	rpt := new(SynthReport)
	rpt.NodeCounts = make(map[string]int)
	rpt.DerivedWidths = make(map[string]int)
	return rpt
}

// WriteToFile stores the report into file filename, using a format
// selected by the extension
func (rpt *SynthReport) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*rpt)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*rpt, "", "\t")
	}
	if merr != nil {
		return merr
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		return cerr
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		return werr
	}
	return f.Close()
}

// TopoStats carries the connectivity and centrality figures computed
// for a finished topology
type TopoStats struct {
	// NumComponents counts weakly connected components; a well-formed
	// fabric has exactly one
	NumComponents int `json:"numcomponents" yaml:"numcomponents"`

	// Bottleneck names the node with the highest betweenness centrality,
	// the point the most shortest paths funnel through
	Bottleneck            string  `json:"bottleneck" yaml:"bottleneck"`
	BottleneckBetweenness float64 `json:"bottleneckbetweenness" yaml:"bottleneckbetweenness"`

	// AvgDegree is the mean number of edges incident to a node
	AvgDegree float64 `json:"avgdegree" yaml:"avgdegree"`
}

// ComputeTopoStats derives TopoStats for a graph.  Weak connectivity is
// evaluated over the undirected view, since a fabric whose request and
// response sides split into separate pieces is broken either way.
func ComputeTopoStats(g *Graph) TopoStats {
	var stats TopoStats
	if g.NumNodes() == 0 {
		return stats
	}

	undirected := simple.NewUndirectedGraph()
	directed := simple.NewDirectedGraph()
	for _, n := range g.Nodes() {
		undirected.AddNode(simple.Node(n.ID))
		directed.AddNode(simple.Node(n.ID))
	}
	for _, e := range g.Edges() {
		undirected.SetEdge(simple.Edge{F: simple.Node(e.Src), T: simple.Node(e.Dst)})
		directed.SetEdge(simple.Edge{F: simple.Node(e.Src), T: simple.Node(e.Dst)})
	}

	stats.NumComponents = len(topo.ConnectedComponents(undirected))

	centrality := network.Betweenness(directed)
	ids := make([]int64, 0, len(centrality))
	for id := range centrality {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	best := math.Inf(-1)
	for _, id := range ids {
		if centrality[id] > best {
			best = centrality[id]
			stats.Bottleneck = g.nodeName(int(id))
			stats.BottleneckBetweenness = centrality[id]
		}
	}

	stats.AvgDegree = 2.0 * float64(g.NumEdges()) / float64(g.NumNodes())
	return stats
}
