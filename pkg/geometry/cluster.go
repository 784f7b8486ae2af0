package geometry

import (
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// ClusterByOverlap groups boxes whose IoU exceeds threshold, transitively.
// Each cluster lists indexes into boxes in ascending order, and clusters are
// ordered by their first index.
func ClusterByOverlap(boxes []types.NormalizedBbox, threshold float64) [][]int {
	parent := make([]int, len(boxes))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			if CalculateIoU(boxes[i], boxes[j]) > threshold {
				ri, rj := find(i), find(j)
				if ri == rj {
					continue
				}
				if ri < rj {
					parent[rj] = ri
				} else {
					parent[ri] = rj
				}
			}
		}
	}

	byRoot := make(map[int]int)
	var clusters [][]int
	for i := range boxes {
		root := find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(clusters)
			byRoot[root] = idx
			clusters = append(clusters, nil)
		}
		clusters[idx] = append(clusters[idx], i)
	}

	return clusters
}

// MergeCluster returns the union hull of the selected boxes
func MergeCluster(boxes []types.NormalizedBbox, cluster []int) types.NormalizedBbox {
	if len(cluster) == 0 {
		return types.NormalizedBbox{}
	}

	merged := boxes[cluster[0]]
	for _, i := range cluster[1:] {
		merged = CalculateUnion(merged, boxes[i])
	}
	return merged
}

// IsDuplicate reports whether candidate overlaps any existing box with IoU above threshold
func IsDuplicate(candidate types.NormalizedBbox, existing []types.NormalizedBbox, threshold float64) bool {
	for _, b := range existing {
		if CalculateIoU(candidate, b) > threshold {
			return true
		}
	}
	return false
}
