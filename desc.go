package nocgen

// desc.go holds the serializable descriptions of topologies and
// requirements.  A description is the file form; BuildGraph and
// DescribeGraph convert between it and the in-memory Graph.  Files may
// be yaml or json, chosen by extension on writes and by the caller's
// useYAML flag on reads.

import (
	"encoding/json"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// A NodeDesc describes one node.  Kind selects the variant; only the
// fields that variant carries are populated, the rest stay at their
// zero values and are omitted from the file.
type NodeDesc struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`

	AvgThroughput float64 `json:"avgthroughput,omitempty" yaml:"avgthroughput,omitempty"`
	MaxThroughput float64 `json:"maxthroughput,omitempty" yaml:"maxthroughput,omitempty"`
	LatencyReq    int     `json:"latencyreq,omitempty" yaml:"latencyreq,omitempty"`
	Priority      int     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Pattern       string  `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	MaxBandwidth float64 `json:"maxbandwidth,omitempty" yaml:"maxbandwidth,omitempty"`
	Latency      int     `json:"latency,omitempty" yaml:"latency,omitempty"`
	Size         float64 `json:"size,omitempty" yaml:"size,omitempty"`

	Width       int    `json:"width,omitempty" yaml:"width,omitempty"`
	ClockDomain string `json:"clockdomain,omitempty" yaml:"clockdomain,omitempty"`
	NumPorts    int    `json:"numports,omitempty" yaml:"numports,omitempty"`
	NumInputs   int    `json:"numinputs,omitempty" yaml:"numinputs,omitempty"`
	NumOutputs  int    `json:"numoutputs,omitempty" yaml:"numoutputs,omitempty"`
	Policy      string `json:"policy,omitempty" yaml:"policy,omitempty"`

	SrcClockDomain string `json:"srcclockdomain,omitempty" yaml:"srcclockdomain,omitempty"`
	DstClockDomain string `json:"dstclockdomain,omitempty" yaml:"dstclockdomain,omitempty"`
	SrcWidth       int    `json:"srcwidth,omitempty" yaml:"srcwidth,omitempty"`
	DstWidth       int    `json:"dstwidth,omitempty" yaml:"dstwidth,omitempty"`
}

// An EdgeDesc describes one directed edge by endpoint node ids
type EdgeDesc struct {
	Src     int `json:"src" yaml:"src"`
	Dst     int `json:"dst" yaml:"dst"`
	Width   int `json:"width,omitempty" yaml:"width,omitempty"`
	Latency int `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// A FlowDesc describes a traffic flow between node ids, the form used
// once a topology exists.  Requirements files use name-keyed FlowSpecs
// instead.
type FlowDesc struct {
	Src        int     `json:"src" yaml:"src"`
	Dst        int     `json:"dst" yaml:"dst"`
	Bandwidth  float64 `json:"bandwidth" yaml:"bandwidth"`
	MaxLatency int     `json:"maxlatency,omitempty" yaml:"maxlatency,omitempty"`
	Priority   int     `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// A GraphDesc groups the edge list under its own key
type GraphDesc struct {
	Edges []EdgeDesc `json:"edges" yaml:"edges"`
}

// A ConstraintsDesc carries the validation context stored alongside a
// topology: the clock domain table, the guaranteed-bandwidth flows, and
// the NIU entry rule setting
type ConstraintsDesc struct {
	ClockDomains        []ClockDomain `json:"clockdomains" yaml:"clockdomains"`
	BandwidthAllocation []FlowDesc    `json:"bandwidthallocation" yaml:"bandwidthallocation"`
	NIUEntryOnly        bool          `json:"niuentryonly" yaml:"niuentryonly"`
}

// A TopoDesc is the serializable form of a complete topology
type TopoDesc struct {
	Network     string          `json:"network" yaml:"network"`
	NumNodes    int             `json:"numnodes" yaml:"numnodes"`
	Nodes       []NodeDesc      `json:"nodes" yaml:"nodes"`
	Graph       GraphDesc       `json:"graph" yaml:"graph"`
	Constraints ConstraintsDesc `json:"constraints" yaml:"constraints"`
}

// ReadTopoDesc deserializes a byte slice holding a representation of a
// TopoDesc.  If the input argument of dict is empty, the file whose
// name is given is read to acquire the bytes.
func ReadTopoDesc(filename string, useYAML bool, dict []byte) (*TopoDesc, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	example := TopoDesc{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, err
	}
	return &example, nil
}

// ReadTopoRequirements deserializes a requirements description, with
// the same file conventions as ReadTopoDesc
func ReadTopoRequirements(filename string, useYAML bool, dict []byte) (*TopoRequirements, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	example := TopoRequirements{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, err
	}
	return &example, nil
}

// WriteToFile stores the TopoDesc into file filename, using a format
// selected by the extension
func (td *TopoDesc) WriteToFile(filename string) error {
	return writeDescFile(filename, *td)
}

// WriteToFile stores the requirements into file filename
func (req *TopoRequirements) WriteToFile(filename string) error {
	return writeDescFile(filename, *req)
}

func writeDescFile(filename string, value any) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(value)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(value, "", "\t")
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

// BuildGraph converts the description into a Graph and flow list.
// Unknown node kinds, duplicate ids, dangling edge endpoints, and
// duplicated edges all fail with a StructuralError.
func (td *TopoDesc) BuildGraph() (*Graph, []TrafficFlow, error) {
	nodes := make([]*Node, 0, len(td.Nodes))
	for _, nd := range td.Nodes {
		kind, present := strToNodeKind[nd.Kind]
		if !present {
			return nil, nil, structuralErrorf("node %s has unknown kind %q", nd.Name, nd.Kind)
		}
		nodes = append(nodes, &Node{ID: nd.ID, Name: nd.Name, Kind: kind,
			AvgThroughput: nd.AvgThroughput, MaxThroughput: nd.MaxThroughput,
			LatencyReq: nd.LatencyReq, Priority: nd.Priority, Pattern: nd.Pattern,
			MaxBandwidth: nd.MaxBandwidth, Latency: nd.Latency, Size: nd.Size,
			Width: nd.Width, ClockDomain: nd.ClockDomain, NumPorts: nd.NumPorts,
			NumInputs: nd.NumInputs, NumOutputs: nd.NumOutputs, Policy: nd.Policy,
			SrcClockDomain: nd.SrcClockDomain, DstClockDomain: nd.DstClockDomain,
			SrcWidth: nd.SrcWidth, DstWidth: nd.DstWidth})
	}

	edges := make([]*Edge, 0, len(td.Graph.Edges))
	for _, ed := range td.Graph.Edges {
		edges = append(edges, &Edge{Src: ed.Src, Dst: ed.Dst, Width: ed.Width, Latency: ed.Latency})
	}

	g, err := CreateGraph(nodes, edges)
	if err != nil {
		return nil, nil, err
	}

	flows := make([]TrafficFlow, 0, len(td.Constraints.BandwidthAllocation))
	for _, fd := range td.Constraints.BandwidthAllocation {
		if _, present := g.Node(fd.Src); !present {
			return nil, nil, structuralErrorf("flow references unknown node %d", fd.Src)
		}
		if _, present := g.Node(fd.Dst); !present {
			return nil, nil, structuralErrorf("flow references unknown node %d", fd.Dst)
		}
		flows = append(flows, TrafficFlow{Src: fd.Src, Dst: fd.Dst,
			Bandwidth: fd.Bandwidth, MaxLatency: fd.MaxLatency, Priority: fd.Priority})
	}
	return g, flows, nil
}

// DescribeGraph converts a Graph and flow list back into the
// serializable form
func DescribeGraph(g *Graph, flows []TrafficFlow, network string) *TopoDesc {
	td := new(TopoDesc)
	td.Network = network
	td.NumNodes = g.NumNodes()
	td.Nodes = make([]NodeDesc, 0, g.NumNodes())
	td.Graph.Edges = make([]EdgeDesc, 0, g.NumEdges())
	td.Constraints.BandwidthAllocation = make([]FlowDesc, 0, len(flows))

	for _, n := range g.Nodes() {
		td.Nodes = append(td.Nodes, NodeDesc{ID: n.ID, Name: n.Name, Kind: n.Kind.String(),
			AvgThroughput: n.AvgThroughput, MaxThroughput: n.MaxThroughput,
			LatencyReq: n.LatencyReq, Priority: n.Priority, Pattern: n.Pattern,
			MaxBandwidth: n.MaxBandwidth, Latency: n.Latency, Size: n.Size,
			Width: n.Width, ClockDomain: n.ClockDomain, NumPorts: n.NumPorts,
			NumInputs: n.NumInputs, NumOutputs: n.NumOutputs, Policy: n.Policy,
			SrcClockDomain: n.SrcClockDomain, DstClockDomain: n.DstClockDomain,
			SrcWidth: n.SrcWidth, DstWidth: n.DstWidth})
	}
	for _, e := range g.Edges() {
		td.Graph.Edges = append(td.Graph.Edges, EdgeDesc{Src: e.Src, Dst: e.Dst, Width: e.Width, Latency: e.Latency})
	}
	for _, flow := range flows {
		td.Constraints.BandwidthAllocation = append(td.Constraints.BandwidthAllocation,
			FlowDesc{Src: flow.Src, Dst: flow.Dst, Bandwidth: flow.Bandwidth,
				MaxLatency: flow.MaxLatency, Priority: flow.Priority})
	}
	return td
}
