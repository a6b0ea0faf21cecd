// Package cluster groups OCR bounding boxes into paragraph-like blocks.
//
// Two rectangles are adjacent when, after growing each one by a fraction of
// its smaller side, they overlap and their heights are within a relative
// tolerance. Clusters are the connected components of that graph.
package cluster

import (
	"math"

	"github.com/nextlevelbuilder/unlost/internal/geom"
)

// DefaultThreshold is the expansion factor used by the ingestion pipeline.
const DefaultThreshold = 0.35

// heightTolerance scales the threshold into the allowed relative height difference.
const heightTolerance = 0.75

// Expand grows r symmetrically by min(width, height) * threshold.
func Expand(r geom.Rect, threshold float64) geom.Rect {
	d := math.Min(r.Width()*threshold, r.Height()*threshold)
	return r.Expand(d)
}

// SimilarHeight reports whether the relative height difference of a and b
// is below tolerance. Two zero-height rectangles are never similar.
func SimilarHeight(a, b geom.Rect, tolerance float64) bool {
	ha, hb := a.Height(), b.Height()
	m := math.Max(ha, hb)
	if m <= 0 {
		return false
	}
	return math.Abs(ha-hb)/m < tolerance
}

// Graph builds the symmetric adjacency lists for rects. Pairs are visited
// with i < j in order, so neighbour lists come out ascending.
func Graph(rects []geom.Rect, threshold float64) [][]int {
	expanded := make([]geom.Rect, len(rects))
	for i, r := range rects {
		expanded[i] = Expand(r, threshold)
	}

	adj := make([][]int, len(rects))
	for i := range expanded {
		for j := i + 1; j < len(expanded); j++ {
			if expanded[i].Overlaps(expanded[j]) &&
				SimilarHeight(expanded[i], expanded[j], threshold*heightTolerance) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	return adj
}

// Cluster partitions rects into connected components and returns each
// component as indices into rects, in depth-first discovery order.
// Discovery starts from the lowest unvisited index, so output is
// deterministic for a fixed input order.
func Cluster(rects []geom.Rect, threshold float64) [][]int {
	adj := Graph(rects, threshold)
	visited := make([]bool, len(rects))

	var clusters [][]int
	var dfs func(node int, acc []int) []int
	dfs = func(node int, acc []int) []int {
		visited[node] = true
		acc = append(acc, node)
		for _, n := range adj[node] {
			if !visited[n] {
				acc = dfs(n, acc)
			}
		}
		return acc
	}

	for i := range rects {
		if visited[i] {
			continue
		}
		clusters = append(clusters, dfs(i, nil))
	}
	return clusters
}

// Rects maps a cluster of indices back to the original rectangles.
func Rects(rects []geom.Rect, members []int) []geom.Rect {
	out := make([]geom.Rect, len(members))
	for i, m := range members {
		out[i] = rects[m]
	}
	return out
}
