package colorhist

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmpty is returned when clustering an empty view.
	ErrEmpty = errors.New("no keys to cluster")
	// ErrInvalidK is returned when the cluster count is outside [1, Len()].
	ErrInvalidK = errors.New("invalid cluster count")
	// ErrNotConverged is returned with a partial Result when MaxIterations
	// is reached before the center shift drops below Epsilon.
	ErrNotConverged = errors.New("did not converge")
)

// Seeding selects how initial centers are picked.
type Seeding string

const (
	// SeedingStride takes the keys at positions 0, Stride, 2*Stride, ...
	SeedingStride Seeding = "stride"
	// SeedingHeaviest takes the K heaviest keys.
	SeedingHeaviest Seeding = "heaviest"
	// SeedingRandom takes K distinct positions drawn with Seed.
	SeedingRandom Seeding = "random"
	// SeedingFarthest starts from the heaviest key and repeatedly adds the
	// key farthest from all centers picked so far.
	SeedingFarthest Seeding = "farthest"
)

// EmptyClusterPolicy decides what happens to a center that attracts no
// weight during an iteration.
type EmptyClusterPolicy string

const (
	// EmptyKeep leaves the center where it is.
	EmptyKeep EmptyClusterPolicy = "keep"
	// EmptyReseed moves the center onto the key that is farthest from its
	// nearest center. Each key is used at most once per iteration.
	EmptyReseed EmptyClusterPolicy = "reseed"
)

// Config controls k-means clustering over a View.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// K is the number of clusters. Must be in [1, Len()]. Default: 9.
	K int

	// Epsilon stops iterating once the summed squared center shift of an
	// iteration drops below it. Must be > 0. Default: 0.001.
	Epsilon float64

	// MaxIterations caps the number of iterations. 0 means no cap, in which
	// case an oscillating run never returns. Default: 0.
	MaxIterations int

	// Seeding picks the initial centers. Default: "stride".
	Seeding Seeding

	// Stride is the position step for SeedingStride. It is shrunk to
	// Len()/K when the stride would run past the end. Default: 10.
	Stride int

	// Seed drives SeedingRandom.
	Seed int64

	// EmptyCluster is the policy for clusters with no assigned weight.
	// Default: "keep".
	EmptyCluster EmptyClusterPolicy

	// Metric is used for nearest-center assignment. Only its ReducedDistance
	// is called; Distance is never consulted. Center shifts are always
	// squared Euclidean. Default: EuclideanMetric.
	Metric DistanceMetric

	// Logger receives per-iteration debug output. Default: no-op.
	Logger *zap.Logger

	// OnIteration, if set, is called by Cluster after every iteration with
	// the 1-based iteration number, the clusters of that iteration and its
	// shift. The clusters slice must not be retained.
	OnIteration func(iteration int, clusters [][]int, shift float64)
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		K:            9,
		Epsilon:      0.001,
		Seeding:      SeedingStride,
		Stride:       10,
		EmptyCluster: EmptyKeep,
		Metric:       EuclideanMetric{},
		Logger:       zap.NewNop(),
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 0.001
	}
	if cfg.Seeding == "" {
		cfg.Seeding = SeedingStride
	}
	if cfg.Stride == 0 {
		cfg.Stride = 10
	}
	if cfg.EmptyCluster == "" {
		cfg.EmptyCluster = EmptyKeep
	}
	if cfg.Metric == nil {
		cfg.Metric = EuclideanMetric{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

func validateConfig(cfg *Config, n int) error {
	if n == 0 {
		return fmt.Errorf("colorhist: %w", ErrEmpty)
	}
	if cfg.K < 1 || cfg.K > n {
		return fmt.Errorf("colorhist: K must be in [1, %d], got %d: %w", n, cfg.K, ErrInvalidK)
	}
	if !(cfg.Epsilon > 0) {
		return fmt.Errorf("colorhist: Epsilon must be > 0, got %f", cfg.Epsilon)
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("colorhist: MaxIterations must be >= 0, got %d", cfg.MaxIterations)
	}
	if cfg.Stride < 1 {
		return fmt.Errorf("colorhist: Stride must be >= 1, got %d", cfg.Stride)
	}
	switch cfg.Seeding {
	case SeedingStride, SeedingHeaviest, SeedingRandom, SeedingFarthest:
	default:
		return fmt.Errorf("colorhist: invalid Seeding %q", cfg.Seeding)
	}
	switch cfg.EmptyCluster {
	case EmptyKeep, EmptyReseed:
	default:
		return fmt.Errorf("colorhist: invalid EmptyCluster %q", cfg.EmptyCluster)
	}
	return nil
}

// Result is the outcome of Cluster.
type Result[T Element] struct {
	// Centers holds one center per cluster.
	Centers []Key[T]

	// Clusters lists, per cluster, the view positions assigned to it in
	// ascending order.
	Clusters [][]int

	// Labels maps each view position to its cluster.
	Labels []int

	// Weights is the total weight assigned to each cluster.
	Weights []float64

	// Shifts is the summed squared center shift of every iteration.
	Shifts []float64

	// Iterations is the number of iterations run.
	Iterations int

	// Converged reports whether the last shift was below Epsilon.
	Converged bool
}

// LabelMap returns a key -> cluster table for the view the result was
// computed from.
func (r *Result[T]) LabelMap(view View[T]) map[Key[T]]int {
	m := make(map[Key[T]]int, len(r.Labels))
	for i, label := range r.Labels {
		m[view.At(i).Key] = label
	}
	return m
}

// InitCenters picks cfg.K initial centers from view according to cfg.Seeding.
func InitCenters[T Element](view View[T], cfg Config) ([]Key[T], error) {
	applyDefaults(&cfg)
	n := view.Len()
	if err := validateConfig(&cfg, n); err != nil {
		return nil, err
	}
	centers := make([]Key[T], 0, cfg.K)
	switch cfg.Seeding {
	case SeedingHeaviest:
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return view.At(idx[a]).Count > view.At(idx[b]).Count
		})
		for _, i := range idx[:cfg.K] {
			centers = append(centers, view.At(i).Key)
		}
	case SeedingRandom:
		rng := rand.New(rand.NewSource(cfg.Seed))
		for _, i := range rng.Perm(n)[:cfg.K] {
			centers = append(centers, view.At(i).Key)
		}
	case SeedingFarthest:
		first := 0
		for i := 1; i < n; i++ {
			if view.At(i).Count > view.At(first).Count {
				first = i
			}
		}
		centers = append(centers, view.At(first).Key)
		dist := make([]float64, n)
		for i := range dist {
			dist[i] = SquaredDistance(view.At(i).Key, centers[0])
		}
		for len(centers) < cfg.K {
			next := 0
			for i, d := range dist {
				if d > dist[next] {
					next = i
				}
			}
			c := view.At(next).Key
			centers = append(centers, c)
			for i := range dist {
				dist[i] = min(dist[i], SquaredDistance(view.At(i).Key, c))
			}
		}
	default:
		stride := cfg.Stride
		if (cfg.K-1)*stride >= n {
			stride = n / cfg.K
		}
		for i := 0; i < cfg.K; i++ {
			centers = append(centers, view.At(i*stride).Key)
		}
	}
	return centers, nil
}

// Iterate runs one assignment and update step. It assigns every view
// position to its nearest center (the lowest center index wins ties),
// replaces each center in place with the weighted centroid of its cluster
// and returns the clusters and the summed squared center shift.
//
// Centroid coordinates are truncated toward zero. Weights must be
// non-negative. Clusters with zero total weight are handled by
// cfg.EmptyCluster. It panics if a center's arity differs from the keys'.
func Iterate[T Element](view View[T], centers []Key[T], cfg Config) (clusters [][]int, shift float64) {
	applyDefaults(&cfg)
	n, k := view.Len(), len(centers)
	if k == 0 {
		return nil, 0
	}
	dims := centers[0].Arity()
	if n > 0 {
		dims = view.At(0).Key.Arity()
	}
	for c, center := range centers {
		if center.Arity() != dims {
			panic(fmt.Sprintf("colorhist: center %d has arity %d, keys have %d", c, center.Arity(), dims))
		}
	}

	centerVecs := make([][]float64, k)
	for c, center := range centers {
		centerVecs[c] = center.Vector(make([]float64, 0, dims))
	}

	clusters = make([][]int, k)
	nearest := make([]float64, n)
	vec := make([]float64, 0, dims)
	for i := 0; i < n; i++ {
		vec = view.At(i).Key.Vector(vec[:0])
		best := 0
		bestDist := cfg.Metric.ReducedDistance(vec, centerVecs[0])
		for c := 1; c < k; c++ {
			if d := cfg.Metric.ReducedDistance(vec, centerVecs[c]); d < bestDist {
				best, bestDist = c, d
			}
		}
		clusters[best] = append(clusters[best], i)
		nearest[i] = bestDist
	}

	sum := make([]float64, dims)
	var reseeded map[int]bool
	for c, members := range clusters {
		for j := range sum {
			sum[j] = 0
		}
		var weight float64
		for _, i := range members {
			e := view.At(i)
			vec = e.Key.Vector(vec[:0])
			floats.AddScaled(sum, e.Count, vec)
			weight += e.Count
		}

		var next Key[T]
		switch {
		case weight > 0:
			// Divide, not multiply by 1/weight, so integer centroids stay
			// exact before truncation.
			for j := range sum {
				sum[j] /= weight
			}
			next = keyFromVector[T](sum)
		case cfg.EmptyCluster == EmptyReseed:
			if reseeded == nil {
				reseeded = make(map[int]bool)
			}
			far := farthest(nearest, reseeded)
			if far < 0 {
				next = centers[c]
				break
			}
			reseeded[far] = true
			next = view.At(far).Key
		default:
			next = centers[c]
		}

		shift += squaredEuclidean(next.Vector(vec[:0]), centerVecs[c])
		centers[c] = next
	}
	return clusters, shift
}

// farthest returns the position with the largest distance to its center that
// is not in used, or -1 if none is left.
func farthest(dist []float64, used map[int]bool) int {
	best, bestDist := -1, -1.0
	for i, d := range dist {
		if d > bestDist && !used[i] {
			best, bestDist = i, d
		}
	}
	return best
}

// Cluster partitions the keys of view into cfg.K clusters, iterating until
// the center shift drops below cfg.Epsilon. When cfg.MaxIterations is
// reached first, the partial result is returned together with
// ErrNotConverged.
func Cluster[T Element](view View[T], cfg Config) (*Result[T], error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg, view.Len()); err != nil {
		return nil, err
	}
	centers, err := InitCenters(view, cfg)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	res := &Result[T]{Centers: centers}
	for {
		clusters, shift := Iterate(view, centers, cfg)
		res.Iterations++
		res.Clusters = clusters
		res.Shifts = append(res.Shifts, shift)

		if log.Core().Enabled(zap.DebugLevel) {
			empty := 0
			for _, members := range clusters {
				if len(members) == 0 {
					empty++
				}
			}
			log.Debug("kmeans iteration",
				zap.Int("iteration", res.Iterations),
				zap.Float64("shift", shift),
				zap.Int("empty", empty))
		}
		if cfg.OnIteration != nil {
			cfg.OnIteration(res.Iterations, clusters, shift)
		}

		if shift < cfg.Epsilon {
			res.Converged = true
			break
		}
		if cfg.MaxIterations > 0 && res.Iterations >= cfg.MaxIterations {
			break
		}
	}

	res.Labels = make([]int, view.Len())
	res.Weights = make([]float64, len(res.Clusters))
	for c, members := range res.Clusters {
		for _, i := range members {
			res.Labels[i] = c
			res.Weights[c] += view.At(i).Count
		}
	}

	if !res.Converged {
		log.Warn("kmeans stopped before converging",
			zap.Int("iterations", res.Iterations),
			zap.Float64("shift", res.Shifts[len(res.Shifts)-1]),
			zap.Float64("epsilon", cfg.Epsilon))
		return res, fmt.Errorf("colorhist: %d iterations: %w", res.Iterations, ErrNotConverged)
	}
	log.Info("kmeans converged",
		zap.Int("k", cfg.K),
		zap.Int("keys", view.Len()),
		zap.Int("iterations", res.Iterations))
	return res, nil
}
