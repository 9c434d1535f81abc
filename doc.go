// Package colorhist accumulates weighted observations keyed by small integer
// tuples (such as RGB triples), orders the distinct keys by weight and
// partitions them with a weighted k-means.
//
// A Histogram stores one node per distinct key in a slab of fixed-size
// blocks. The same nodes are linked into a binary search tree for
// insert-or-accumulate and addressed by position for sorting and random
// access:
//
//	h, _ := colorhist.New[uint8](3)
//	h.Add(1, colorhist.MustKey[uint8](255, 0, 0))
//	h.Sort()            // At(0) is now the lightest key, At(h.Len()-1) the heaviest
//	h.RebuildTree()     // optional: Lookup rebuilds lazily
//
// Clustering works on any View, which *Histogram satisfies:
//
//	cfg := colorhist.DefaultConfig()
//	cfg.K = 4
//	cfg.MaxIterations = 100
//	result, err := colorhist.Cluster[uint8](h, cfg)
//	// result.Centers[c] is the weighted centroid of cluster c
//	// result.Labels[i] is the cluster of h.At(i)
//
// Callers that want to observe each step can set Config.OnIteration, or drive
// the loop themselves with InitCenters and Iterate.
package colorhist
