package cluster

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/nextlevelbuilder/unlost/internal/geom"
)

func TestCluster_AdjacentMerge(t *testing.T) {
	rects := []geom.Rect{
		{MinX: 0, MinY: 0, MaxX: 10, MaxY: 2},
		{MinX: 10, MinY: 0, MaxX: 20, MaxY: 2},
		{MinX: 0, MinY: 100, MaxX: 10, MaxY: 102},
	}

	clusters := Cluster(rects, 0.35)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %v", len(clusters), clusters)
	}
	if len(clusters[0]) != 2 || clusters[0][0] != 0 || clusters[0][1] != 1 {
		t.Errorf("first cluster = %v, want [0 1]", clusters[0])
	}
	if len(clusters[1]) != 1 || clusters[1][0] != 2 {
		t.Errorf("second cluster = %v, want [2]", clusters[1])
	}

	got := Rects(rects, clusters[0])
	if got[1] != rects[1] {
		t.Errorf("cluster should hold original rectangles, got %v", got[1])
	}
}

func TestCluster_DifferentHeightsDoNotMerge(t *testing.T) {
	// overlapping, but a heading next to body text
	rects := []geom.Rect{
		{MinX: 0, MinY: 0, MaxX: 10, MaxY: 2},
		{MinX: 5, MinY: 0, MaxX: 15, MaxY: 6},
	}
	if clusters := Cluster(rects, 0.35); len(clusters) != 2 {
		t.Errorf("expected separate clusters, got %v", clusters)
	}
}

func TestCluster_TransitiveChain(t *testing.T) {
	// 0-1 and 1-2 adjacent, 0-2 not: still one component
	rects := []geom.Rect{
		{MinX: 0, MinY: 0, MaxX: 10, MaxY: 2},
		{MinX: 0, MinY: 2.5, MaxX: 10, MaxY: 4.5},
		{MinX: 0, MinY: 5, MaxX: 10, MaxY: 7},
	}
	clusters := Cluster(rects, 0.35)
	if len(clusters) != 1 || len(clusters[0]) != 3 {
		t.Fatalf("expected one 3-member cluster, got %v", clusters)
	}
}

func TestGraph_Symmetric(t *testing.T) {
	rects := randomRects(60, 7)
	adj := Graph(rects, DefaultThreshold)
	for i, ns := range adj {
		for _, j := range ns {
			found := false
			for _, k := range adj[j] {
				if k == i {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("edge %d->%d has no reverse edge", i, j)
			}
		}
	}
}

func TestGraph_NeighboursAscending(t *testing.T) {
	adj := Graph(randomRects(80, 11), DefaultThreshold)
	for i, ns := range adj {
		if !slices.IsSorted(ns) {
			t.Fatalf("neighbours of %d not ascending: %v", i, ns)
		}
	}
}

func TestCluster_IsPartition(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rects := randomRects(80, seed)
		clusters := Cluster(rects, DefaultThreshold)

		seen := make(map[int]int)
		for _, c := range clusters {
			for _, m := range c {
				seen[m]++
			}
		}
		if len(seen) != len(rects) {
			t.Fatalf("seed %d: %d rects covered, want %d", seed, len(seen), len(rects))
		}
		for m, n := range seen {
			if n != 1 {
				t.Fatalf("seed %d: rect %d appears %d times", seed, m, n)
			}
		}
	}
}

func TestCluster_Deterministic(t *testing.T) {
	rects := randomRects(50, 42)
	a := Cluster(rects, DefaultThreshold)
	b := Cluster(rects, DefaultThreshold)
	if len(a) != len(b) {
		t.Fatalf("cluster counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			t.Fatalf("cluster %d sizes differ", i)
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("cluster %d differs at %d", i, j)
			}
		}
	}
}

func TestCluster_Empty(t *testing.T) {
	if clusters := Cluster(nil, DefaultThreshold); len(clusters) != 0 {
		t.Errorf("expected no clusters, got %v", clusters)
	}
}

func randomRects(n int, seed uint64) []geom.Rect {
	rng := rand.New(rand.NewPCG(seed, seed*31))
	rects := make([]geom.Rect, n)
	for i := range rects {
		x, y := rng.Float64()*0.9, rng.Float64()*0.9
		w, h := 0.01+rng.Float64()*0.1, 0.005+rng.Float64()*0.02
		rects[i] = geom.Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
	}
	return rects
}
