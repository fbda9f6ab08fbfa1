package nocgen

// convert.go holds the converter-insertion pass.  It rewrites a graph so
// that no edge crosses a clock domain without a ClockConverter and no
// edge joins mismatched data widths without a WidthConverter.  Clock
// mismatches are resolved first: a width converter operates in a single
// clock domain, so closing the domain gaps first keeps any inserted
// width converter from straddling two domains.  The pass is idempotent,
// since its own output contains no remaining mismatches.

import "fmt"

// InsertConverters returns a new graph with every clock-domain and
// data-width mismatch closed by an interposed converter node.  The input
// graph is not modified.  When the pass is disabled by configuration the
// input graph is returned untouched together with the mismatches
// expressed as validator-style findings.
func InsertConverters(g *Graph, cfg TopoConfig) (*Graph, []Finding) {
	if !cfg.AutoInsertConverters {
		vr := ValidationResult{Errors: []Finding{}}
		vr.checkClockDomains(g)
		vr.checkEdgeWidths(g)
		return g, vr.Errors
	}

	out := g.Clone()
	insertClockConverters(out)
	insertWidthConverters(out)
	return out, nil
}

// insertClockConverters interposes a ClockConverter on every edge whose
// endpoints present differing clock domains
func insertClockConverters(g *Graph) {
	for _, e := range g.Edges() {
		u, _ := g.Node(e.Src)
		v, _ := g.Node(e.Dst)
		if u.Kind == ClockConverterNode || v.Kind == ClockConverterNode {
			continue
		}
		srcC := u.clockAsSrc()
		dstC := v.clockAsDst()
		if srcC == "" || dstC == "" || srcC == dstC {
			continue
		}

		width := u.widthAsSrc()
		if width == 0 {
			width = e.Width
		}
		cdc := CreateClockConverterNode(g.nxtID(),
			fmt.Sprintf("%s_%s_cdc", u.Name, v.Name), width, srcC, dstC)
		_ = g.addNode(cdc)

		g.removeEdge(e.Src, e.Dst)
		_ = g.addEdge(&Edge{Src: e.Src, Dst: cdc.ID, Width: e.Width, Latency: maxInt(1, e.Latency/2)})
		_ = g.addEdge(&Edge{Src: cdc.ID, Dst: e.Dst, Width: e.Width, Latency: maxInt(1, e.Latency-e.Latency/2)})
	}
}

// insertWidthConverters interposes a WidthConverter on every edge whose
// endpoints present differing widths.  Runs after the clock pass, so
// both sides of a mismatched edge already share a domain.
func insertWidthConverters(g *Graph) {
	for _, e := range g.Edges() {
		u, _ := g.Node(e.Src)
		v, _ := g.Node(e.Dst)
		if u.Kind == WidthConverterNode || v.Kind == WidthConverterNode {
			continue
		}
		srcW := u.widthAsSrc()
		dstW := v.widthAsDst()
		if srcW == 0 || dstW == 0 || srcW == dstW {
			continue
		}

		domain := u.clockAsSrc()
		if domain == "" {
			domain = v.clockAsDst()
		}
		wc := CreateWidthConverterNode(g.nxtID(),
			fmt.Sprintf("%s_%s_wc", u.Name, v.Name), srcW, dstW, domain)
		_ = g.addNode(wc)

		g.removeEdge(e.Src, e.Dst)
		_ = g.addEdge(&Edge{Src: e.Src, Dst: wc.ID, Width: srcW, Latency: maxInt(1, e.Latency/2)})
		_ = g.addEdge(&Edge{Src: wc.ID, Dst: e.Dst, Width: dstW, Latency: maxInt(1, e.Latency-e.Latency/2)})
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
